package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/api/handlers"
	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/api/middleware"
	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/config"
	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/database"
	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/services/tetris"
)

func main() {
	cfg := config.Load()

	// 結果の保存先 (DATABASE_URL がなければ保存しない)
	var (
		db       *sql.DB
		recorder tetris.ResultRecorder
		results  database.ResultRepository
	)
	if cfg.DatabaseURL != "" {
		dbService, err := database.NewDatabaseService(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("データベースの初期化に失敗しました: %v", err)
		}
		defer dbService.Close()
		if err := dbService.EnsureSchema(); err != nil {
			log.Fatalf("スキーマの作成に失敗しました: %v", err)
		}
		db = dbService.DB
		results = database.NewResultRepository(db)
		recorder = results
	} else {
		log.Printf("warning: DATABASE_URL is not set, game results will not be saved")
	}

	sessionManager := tetris.NewSessionManager(cfg.Stage, recorder)
	auth := middleware.NewAuthenticator(cfg.JWTSecret, cfg.BypassAuth)
	gameHandler := handlers.NewGameHandler(sessionManager, auth, cfg.AllowedOrigins)
	publicHandler := handlers.NewPublicHandler(db, sessionManager)

	r := mux.NewRouter()
	// 認証不要な公開エンドポイント
	r.HandleFunc("/api/public/health", publicHandler.Health).Methods("GET")
	// WebSocketは接続後の最初のメッセージで認証する
	r.HandleFunc("/ws/{sessionID}", gameHandler.HandleWebSocketConnection)

	if results != nil {
		resultHandler := handlers.NewResultHandler(results)
		r.HandleFunc("/api/results", resultHandler.GetTopResults).Methods("GET")
		r.HandleFunc("/api/results/user/{userID}", resultHandler.GetUserResult).Methods("GET")
	}

	// 認証が必要なルート
	protectedRouter := r.PathPrefix("/api/sessions").Subrouter()
	protectedRouter.Use(auth.Middleware)
	protectedRouter.HandleFunc("", gameHandler.CreateSession).Methods("POST")
	protectedRouter.HandleFunc("/{sessionID}", gameHandler.GetSession).Methods("GET")
	protectedRouter.HandleFunc("/{sessionID}", gameHandler.DeleteSession).Methods("DELETE")

	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: middleware.CORSHandler(cfg.AllowedOrigins)(r),
	}

	go func() {
		log.Printf("Server starting on :%s", cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("サーバーの起動に失敗しました: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sessionManager.Shutdown()
	if err := server.Shutdown(ctx); err != nil {
		log.Printf("サーバーのシャットダウンに失敗しました: %v", err)
	}
}
