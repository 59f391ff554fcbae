package handlers

import (
	"database/sql"
	"log"
	"net/http"
)

// SessionCounter は現在のセッション数を返します。tetris.SessionManager が実装します。
type SessionCounter interface {
	SessionCount() int
}

// PublicHandler handles public API endpoints
type PublicHandler struct {
	db       *sql.DB // nilの場合はデータベースなし
	sessions SessionCounter
}

// NewPublicHandler creates a new instance of PublicHandler
func NewPublicHandler(db *sql.DB, sessions SessionCounter) *PublicHandler {
	return &PublicHandler{db: db, sessions: sessions}
}

// Health はサーバーの稼働状況を返します。
// GET /api/public/health
func (h *PublicHandler) Health(w http.ResponseWriter, r *http.Request) {
	database := "disabled"
	status := http.StatusOK
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			log.Printf("[PublicHandler] Database ping failed: %v", err)
			database = "unavailable"
			status = http.StatusServiceUnavailable
		} else {
			database = "ok"
		}
	}

	WriteJSONResponse(w, status, map[string]interface{}{
		"status":   http.StatusText(status),
		"database": database,
		"sessions": h.sessions.SessionCount(),
	})
}
