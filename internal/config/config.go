package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/services/tetris"
)

// Config はサーバー全体の設定値です。
type Config struct {
	Port           string
	DatabaseURL    string // 空の場合は結果を保存しない
	JWTSecret      string
	BypassAuth     bool
	AllowedOrigins []string
	Stage          tetris.StageConfig
}

// Load は .env ファイル (本番環境以外) と環境変数から設定を読み込みます。
// 数値として解釈できない値は警告を出して既定値を使います。
func Load() Config {
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err != nil {
			log.Printf("warning: Error loading .env file (this is fine in production): %v", err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv は getenv から設定を組み立てます。テストでは任意の関数を渡せます。
func FromEnv(getenv func(string) string) Config {
	stage := tetris.DefaultStageConfig()
	stage.DropDelay = durationMS(getenv, "DROP_DELAY_MS", stage.DropDelay)
	if stage.DropDelay < tetris.MinDropDelay {
		log.Printf("warning: DROP_DELAY_MS below %v, using %v", tetris.MinDropDelay, tetris.MinDropDelay)
		stage.DropDelay = tetris.MinDropDelay
	}
	stage.LockDelay = durationMS(getenv, "LOCK_DELAY_MS", stage.LockDelay)
	stage.NextDelay = durationMS(getenv, "NEXT_DELAY_MS", stage.NextDelay)
	stage.ClearDelay = durationMS(getenv, "CLEAR_DELAY_MS", stage.ClearDelay)
	stage.LoadDelay = durationMS(getenv, "LOAD_DELAY_MS", stage.LoadDelay)
	stage.SpeedUpLines = positiveInt(getenv, "SPEEDUP_LINES", stage.SpeedUpLines)
	stage.Ghost = boolean(getenv, "GHOST", stage.Ghost)

	port := getenv("PORT")
	if port == "" {
		port = "8080"
	}

	return Config{
		Port:           port,
		DatabaseURL:    getenv("DATABASE_URL"),
		JWTSecret:      getenv("JWT_SECRET"),
		BypassAuth:     boolean(getenv, "BYPASS_AUTH", false),
		AllowedOrigins: origins(getenv("ALLOWED_ORIGINS")),
		Stage:          stage,
	}
}

func origins(raw string) []string {
	if raw == "" {
		return []string{"http://localhost:3000"}
	}
	var list []string
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			list = append(list, o)
		}
	}
	return list
}

func durationMS(getenv func(string) string, key string, def time.Duration) time.Duration {
	raw := getenv(key)
	if raw == "" {
		return def
	}
	ms, err := strconv.Atoi(raw)
	if err != nil || ms < 0 {
		log.Printf("warning: invalid %s=%q, using default %v", key, raw, def)
		return def
	}
	return time.Duration(ms) * time.Millisecond
}

func positiveInt(getenv func(string) string, key string, def int) int {
	raw := getenv(key)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		log.Printf("warning: invalid %s=%q, using default %d", key, raw, def)
		return def
	}
	return n
}

func boolean(getenv func(string) string, key string, def bool) bool {
	raw := getenv(key)
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		log.Printf("warning: invalid %s=%q, using default %t", key, raw, def)
		return def
	}
	return b
}
