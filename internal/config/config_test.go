package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/progate-hackathon-strawberry-flavor/GITRIS-stage/internal/services/tetris"
)

func envMap(m map[string]string) func(string) string {
	return func(key string) string { return m[key] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg := FromEnv(envMap(nil))

	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.False(t, cfg.BypassAuth)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.AllowedOrigins)
	assert.Equal(t, tetris.DefaultStageConfig(), cfg.Stage)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg := FromEnv(envMap(map[string]string{
		"PORT":            "9000",
		"DATABASE_URL":    "postgres://localhost/gitris",
		"JWT_SECRET":      "secret",
		"BYPASS_AUTH":     "true",
		"ALLOWED_ORIGINS": "http://a.example, http://b.example,",
		"DROP_DELAY_MS":   "500",
		"LOCK_DELAY_MS":   "0",
		"SPEEDUP_LINES":   "5",
		"GHOST":           "1",
		"LOAD_DELAY_MS":   "20",
	}))

	assert.Equal(t, "9000", cfg.Port)
	assert.Equal(t, "postgres://localhost/gitris", cfg.DatabaseURL)
	assert.Equal(t, "secret", cfg.JWTSecret)
	assert.True(t, cfg.BypassAuth)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 500*time.Millisecond, cfg.Stage.DropDelay)
	assert.Equal(t, time.Duration(0), cfg.Stage.LockDelay)
	assert.Equal(t, 5, cfg.Stage.SpeedUpLines)
	assert.True(t, cfg.Stage.Ghost)
	assert.Equal(t, 20*time.Millisecond, cfg.Stage.LoadDelay)
}

func TestFromEnvInvalidValuesFallBack(t *testing.T) {
	cfg := FromEnv(envMap(map[string]string{
		"DROP_DELAY_MS":  "fast",
		"CLEAR_DELAY_MS": "-5",
		"SPEEDUP_LINES":  "0",
		"GHOST":          "maybe",
		"BYPASS_AUTH":    "yes please",
	}))

	def := tetris.DefaultStageConfig()
	assert.Equal(t, def.DropDelay, cfg.Stage.DropDelay)
	assert.Equal(t, def.ClearDelay, cfg.Stage.ClearDelay)
	assert.Equal(t, def.SpeedUpLines, cfg.Stage.SpeedUpLines)
	assert.False(t, cfg.Stage.Ghost)
	assert.False(t, cfg.BypassAuth)
}

func TestFromEnvDropDelayFloor(t *testing.T) {
	cfg := FromEnv(envMap(map[string]string{"DROP_DELAY_MS": "0"}))
	assert.Equal(t, tetris.MinDropDelay, cfg.Stage.DropDelay)

	cfg = FromEnv(envMap(map[string]string{"DROP_DELAY_MS": "1"}))
	assert.Equal(t, time.Millisecond, cfg.Stage.DropDelay)
}
