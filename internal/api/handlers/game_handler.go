package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket" // WebSocketライブラリ

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/services/tetris" // SessionManager をインポート
)

// authTimeout は接続後に認証メッセージを待つ時間です。
const authTimeout = 10 * time.Second

// TokenAuthenticator はトークンからユーザーIDを取得します。middleware.Authenticator が実装します。
type TokenAuthenticator interface {
	Authenticate(token string) (string, error)
}

// GameHandler はゲーム関連のHTTPリクエスト（セッション作成、状態取得、WebSocket接続）を処理します。
type GameHandler struct {
	sessionManager *tetris.SessionManager
	auth           TokenAuthenticator
	upgrader       websocket.Upgrader
}

// NewGameHandler は新しい GameHandler インスタンスを作成します。
//
// Parameters:
//   sm      : セッションマネージャーへのポインタ
//   auth    : WebSocketの認証メッセージを検証する Authenticator
//   origins : WebSocket接続を許可するオリジン (空なら全て許可)
// Returns:
//   *GameHandler: 新しく作成された GameHandler のポインタ
func NewGameHandler(sm *tetris.SessionManager, auth TokenAuthenticator, origins []string) *GameHandler {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return &GameHandler{
		sessionManager: sm,
		auth:           auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return len(allowed) == 0 || origin == "" || allowed[origin]
			},
		},
	}
}

// ExtractUserIDFromContext はリクエストのコンテキストからユーザーIDを抽出します。
func ExtractUserIDFromContext(r *http.Request) (string, error) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		return "", fmt.Errorf("ユーザーIDがコンテキストに見つかりません")
	}
	return userID, nil
}

// WriteErrorResponse はエラーレスポンスをJSON形式で書き込みます。
func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// WriteJSONResponse はJSONレスポンスを書き込みます。
func WriteJSONResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

type sessionResponse struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// CreateSession は新しいゲームセッションを作成するためのHTTPハンドラーです。
// POST /api/sessions
func (h *GameHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, err.Error())
		return
	}

	session := h.sessionManager.CreateSession(userID)
	WriteJSONResponse(w, http.StatusCreated, sessionResponse{
		SessionID: session.ID,
		UserID:    session.UserID,
		CreatedAt: session.CreatedAt,
	})
}

// GetSession はセッションの最新の状態を返すハンドラーです。
// GET /api/sessions/{sessionID}
func (h *GameHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, err.Error())
		return
	}

	session, ok := h.sessionManager.GetSession(sessionID)
	if !ok || session.UserID != userID {
		WriteErrorResponse(w, http.StatusNotFound, "指定されたセッションは見つかりませんでした")
		return
	}

	state := session.LastState()
	if state == nil {
		WriteJSONResponse(w, http.StatusOK, sessionResponse{SessionID: session.ID, UserID: session.UserID, CreatedAt: session.CreatedAt})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(state)
}

// DeleteSession はセッションを終了するハンドラーです。
// DELETE /api/sessions/{sessionID}
func (h *GameHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	userID, err := ExtractUserIDFromContext(r)
	if err != nil {
		WriteErrorResponse(w, http.StatusUnauthorized, err.Error())
		return
	}

	session, ok := h.sessionManager.GetSession(sessionID)
	if !ok || session.UserID != userID {
		WriteErrorResponse(w, http.StatusNotFound, "指定されたセッションは見つかりませんでした")
		return
	}
	if err := h.sessionManager.EndSession(sessionID); err != nil {
		WriteErrorResponse(w, http.StatusNotFound, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type authMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

// HandleWebSocketConnection はHTTP接続をWebSocketプロトコルにアップグレードし、
// 最初のメッセージで認証を行ったあと、接続をセッションマネージャーに引き渡します。
// GET /ws/{sessionID}
func (h *GameHandler) HandleWebSocketConnection(w http.ResponseWriter, r *http.Request) {
	sessionID := mux.Vars(r)["sessionID"]
	if _, ok := h.sessionManager.GetSession(sessionID); !ok {
		WriteErrorResponse(w, http.StatusNotFound, "指定されたセッションは見つかりませんでした")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[GameHandler] Failed to upgrade to websocket for session %s: %v", sessionID, err)
		return
	}

	userID, err := h.authenticate(conn)
	if err != nil {
		log.Printf("[GameHandler] WebSocket auth failed for session %s: %v", sessionID, err)
		conn.WriteJSON(map[string]string{"type": "error", "error": err.Error()})
		conn.Close()
		return
	}
	conn.WriteJSON(map[string]string{"type": "auth_success", "message": "Authentication successful"})

	// ここでは閉じない。SessionManagerが管理する
	if err := h.sessionManager.RegisterClient(sessionID, userID, conn); err != nil {
		log.Printf("[GameHandler] Failed to register client %s to session %s: %v", userID, sessionID, err)
		conn.WriteJSON(map[string]string{"type": "error", "error": err.Error()})
		conn.Close()
	}
}

// authenticate は {"type":"auth","token":"..."} メッセージを待ってユーザーIDを返します。
func (h *GameHandler) authenticate(conn *websocket.Conn) (string, error) {
	conn.SetReadDeadline(time.Now().Add(authTimeout))
	defer conn.SetReadDeadline(time.Time{})

	_, message, err := conn.ReadMessage()
	if err != nil {
		return "", fmt.Errorf("認証メッセージの読み込みに失敗しました: %w", err)
	}

	var msg authMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		return "", fmt.Errorf("認証メッセージのパースに失敗しました: %w", err)
	}
	if msg.Type != "auth" {
		return "", errors.New("expected auth message")
	}
	return h.auth.Authenticate(msg.Token)
}
