package main

import (
	"fmt"
	"log"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/config"
	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/database"
)

func main() {
	cfg := config.Load()
	if cfg.DatabaseURL == "" {
		log.Fatal("エラー: DATABASE_URL 環境変数が設定されていません。")
	}

	fmt.Printf("テスト開始: データベース接続を試行中...\n%s\n", database.RedactURL(cfg.DatabaseURL))

	dbService, err := database.NewDatabaseService(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("エラー: %v", err)
	}
	defer dbService.Close()

	fmt.Println("成功: データベースに正常に接続し、Pingが成功しました！")

	if version, err := dbService.Version(); err != nil {
		log.Printf("警告: %v", err)
	} else {
		fmt.Printf("データベースバージョン: %s\n", version)
	}

	if err := dbService.EnsureSchema(); err != nil {
		log.Fatalf("エラー: %v", err)
	}

	best, err := database.NewResultRepository(dbService.DB).GetTopResults(1)
	if err != nil {
		log.Fatalf("エラー: %v", err)
	}
	if len(best) == 0 {
		fmt.Println("results テーブルは空です。")
	} else {
		fmt.Printf("最高スコア: %d (user %s)\n", best[0].Score, best[0].UserID)
	}
}
