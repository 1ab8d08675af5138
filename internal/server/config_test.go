package server

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestNewConfig tests the configuration defaults.
func TestNewConfig(t *testing.T) {
	cfg := NewConfig()

	assert.Equal(t, ":8080", cfg.Port)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.AllowedOrigins)
	assert.EqualValues(t, 8192, cfg.MaxMessageSize)
	assert.Equal(t, RateLimitConfig{Burst: 10, RefillInterval: time.Second}, cfg.RateLimit)
	assert.Equal(t, 1000, cfg.HistoryCapacity)
	assert.Equal(t, 50, cfg.ReplayLimit)
	assert.Equal(t, 256, cfg.SendBufferSize)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
}

func TestSanitize(t *testing.T) {
	cfg := Config{HistoryCapacity: 20, ReplayLimit: 80}.Sanitize()

	assert.Equal(t, defaultPort, cfg.Port)
	assert.EqualValues(t, defaultMaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, defaultBurst, cfg.RateLimit.Burst)
	assert.Equal(t, 20, cfg.HistoryCapacity)
	assert.Equal(t, 20, cfg.ReplayLimit, "replay never exceeds the retained history")
	assert.Equal(t, defaultSendBufferSize, cfg.SendBufferSize)
}

func TestNewConfigFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", ":9090")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("MAX_MESSAGE_SIZE", "4096")
	t.Setenv("RATE_LIMIT_BURST", "3")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "5")
	t.Setenv("HISTORY_CAPACITY", "200")
	t.Setenv("REPLAY_LIMIT", "20")
	t.Setenv("SEND_BUFFER_SIZE", "64")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "json")

	cfg := NewConfigFromEnv()

	assert.Equal(t, ":9090", cfg.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.EqualValues(t, 4096, cfg.MaxMessageSize)
	assert.Equal(t, RateLimitConfig{Burst: 3, RefillInterval: 5 * time.Second}, cfg.RateLimit)
	assert.Equal(t, 200, cfg.HistoryCapacity)
	assert.Equal(t, 20, cfg.ReplayLimit)
	assert.Equal(t, 64, cfg.SendBufferSize)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
}

func TestNewConfigFromEnvInvalidValues(t *testing.T) {
	t.Setenv("MAX_MESSAGE_SIZE", "-1")
	t.Setenv("RATE_LIMIT_BURST", "many")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "soon")
	t.Setenv("SEND_BUFFER_SIZE", "0")

	cfg := NewConfigFromEnv()

	assert.EqualValues(t, defaultMaxMessageSize, cfg.MaxMessageSize)
	assert.Equal(t, defaultBurst, cfg.RateLimit.Burst)
	assert.Equal(t, defaultRefillInterval, cfg.RateLimit.RefillInterval)
	assert.Equal(t, defaultSendBufferSize, cfg.SendBufferSize)
}

func TestParseRefillInterval(t *testing.T) {
	assert.Equal(t, 2*time.Second, parseRefillInterval("2", time.Second))
	assert.Equal(t, 250*time.Millisecond, parseRefillInterval("250ms", time.Second))
	assert.Equal(t, time.Second, parseRefillInterval("-5s", time.Second))
}

func TestLoadConfigFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "messenger.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
port: ":7000"
allowed_origins:
  - "*"
rate_limit:
  burst: 4
  refill_interval: 2s
replay_limit: 25
log_format: json
`), 0o600))
	t.Setenv("SERVER_PORT", ":7100")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ":7100", cfg.Port, "environment wins over the file")
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, RateLimitConfig{Burst: 4, RefillInterval: 2 * time.Second}, cfg.RateLimit)
	assert.Equal(t, 25, cfg.ReplayLimit)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 1000, cfg.HistoryCapacity, "unset keys keep their defaults")
}

func TestLoadConfigErrors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "config file not found")

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: [unterminated"), 0o600))
	_, err = LoadConfig(path)
	assert.ErrorContains(t, err, "parse config")
}

func TestLoadConfigWithoutFile(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, defaultConfig().Sanitize(), cfg)
}
