package app

import (
	"bytes"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DESK_API_URL", "https://desk.example.com/api")
	t.Setenv("DESK_TOKEN_STORE", "memory")

	cfg, err := LoadConfig()

	require.NoError(t, err)
	assert.Equal(t, ":8090", cfg.AppAddr)
	assert.Equal(t, "wss://desk.example.com", cfg.WSURL)
	assert.Equal(t, 30*time.Second, cfg.RealtimeHeartbeat)
	assert.Equal(t, 5*time.Second, cfg.RealtimeReconnectBase)
	assert.Equal(t, 5, cfg.RealtimeMaxAttempts)
	assert.Equal(t, time.Duration(0), cfg.AppWriteTimeout)
	assert.False(t, cfg.IsProduction())
}

func TestLoadConfigRequiresAPIURL(t *testing.T) {
	t.Setenv("DESK_API_URL", "")

	_, err := LoadConfig()

	assert.Error(t, err)
}

func TestNormalize(t *testing.T) {
	cfg := &Config{APIURL: "http://localhost:8000/api", TokenStore: "FILE", TokenFile: filepath.Join(t.TempDir(), "tok"), WSURL: "ws://push.local"}
	require.NoError(t, cfg.Normalize())
	assert.Equal(t, TokenStoreFile, cfg.TokenStore)
	assert.Equal(t, "ws://push.local", cfg.WSURL)
	assert.Equal(t, 10, cfg.LoginRateLimit)

	bad := &Config{APIURL: "http://localhost", TokenStore: "etcd"}
	assert.ErrorContains(t, bad.Normalize(), "unknown token store")

	noScheme := &Config{APIURL: "localhost:8000", TokenStore: "memory"}
	assert.Error(t, noScheme.Normalize())
}

func TestNewLoggerLevelAndFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&Config{LogFormat: "json", LogLevel: "warn"}, &buf)

	logger.Info("hidden")
	logger.Warn("shown", slog.String("k", "v"))

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.True(t, strings.HasPrefix(out, "{"))
	assert.Contains(t, out, `"k":"v"`)
	assert.Equal(t, slog.LevelDebug, parseLevel("DEBUG"))
	assert.Equal(t, slog.LevelInfo, parseLevel("verbose"))
}

func TestTruthy(t *testing.T) {
	assert.True(t, truthy("1"))
	assert.True(t, truthy(" TRUE "))
	assert.False(t, truthy("0"))
	assert.False(t, truthy(""))
}
