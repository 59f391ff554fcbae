package database

import (
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq" // PostgreSQLドライバー
)

// DatabaseService provides methods for interacting with the database.
type DatabaseService struct {
	DB *sql.DB
}

// NewDatabaseService creates a new instance of DatabaseService and establishes a database connection.
func NewDatabaseService(databaseURL string) (*DatabaseService, error) {
	log.Printf("データベース接続を試行中: %s", RedactURL(databaseURL))
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("データベースへの接続オブジェクト作成に失敗しました: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("データベースのPingに失敗しました。接続情報やネットワークを確認してください: %w", err)
	}

	log.Println("データベースに正常に接続しました。")
	return &DatabaseService{DB: db}, nil
}

// resultsSchema はゲーム結果テーブルの定義です。
const resultsSchema = `
	CREATE TABLE IF NOT EXISTS results (
		id         BIGSERIAL PRIMARY KEY,
		user_id    TEXT        NOT NULL,
		score      INTEGER     NOT NULL,
		lines      INTEGER     NOT NULL DEFAULT 0,
		level      INTEGER     NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL
	)
`

// EnsureSchema は results テーブルがなければ作成します。
func (s *DatabaseService) EnsureSchema() error {
	if _, err := s.DB.Exec(resultsSchema); err != nil {
		return fmt.Errorf("resultsテーブルの作成に失敗しました: %w", err)
	}
	return nil
}

// Version はデータベースのバージョン文字列を返します。
func (s *DatabaseService) Version() (string, error) {
	var version string
	if err := s.DB.QueryRow("SELECT version()").Scan(&version); err != nil {
		return "", fmt.Errorf("SELECT version() の実行に失敗しました: %w", err)
	}
	return version, nil
}

// Close はデータベース接続を閉じます。
func (s *DatabaseService) Close() error {
	return s.DB.Close()
}

// RedactURL はログ出力用に接続文字列の先頭50文字だけを返します。
func RedactURL(databaseURL string) string {
	const limit = 50
	if len(databaseURL) <= limit {
		return databaseURL
	}
	return databaseURL[:limit] + "..."
}
