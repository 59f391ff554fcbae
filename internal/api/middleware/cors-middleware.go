package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSHandler はCORS設定を適用するミドルウェアを返します。
//
// Parameters:
//   origins : 許可するフロントエンドのオリジン
func CORSHandler(origins []string) func(http.Handler) http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})
	return c.Handler
}
