package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SPLUNK_CONFIG", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Splunk.Host)
	assert.Equal(t, 8089, cfg.Splunk.Port)
	assert.Equal(t, "https", cfg.Splunk.Scheme)
	assert.True(t, cfg.Splunk.Verify)
	assert.Equal(t, "user", cfg.Splunk.Sharing)
	assert.Equal(t, 10*time.Second, cfg.Splunk.RetryDelay)
	assert.Equal(t, BackendSplunk, cfg.KVBackend)
	assert.Equal(t, slog.LevelInfo, cfg.LogLevel)
	assert.Equal(t, time.Second, cfg.PollInterval)
}

func TestLoadFileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "splunk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
splunk:
  host: splunk.example.com
  port: 9089
  verify: false
  app: search
  username: admin
  retry_delay: 2s
kv_backend: surreal
surreal:
  namespace: ops
log_level: debug
poll_interval: 250ms
`), 0o600))

	t.Setenv("SPLUNK_CONFIG", path)
	t.Setenv("SPLUNK_HOST", "override.example.com")
	t.Setenv("SPLUNK_RETRIES", "3")
	t.Setenv("SURREALDB_DATABASE", "lookups")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "override.example.com", cfg.Splunk.Host, "env wins over file")
	assert.Equal(t, 9089, cfg.Splunk.Port)
	assert.False(t, cfg.Splunk.Verify)
	assert.Equal(t, "search", cfg.Splunk.App)
	assert.Equal(t, "admin", cfg.Splunk.Username)
	assert.Equal(t, "https", cfg.Splunk.Scheme, "unset keys keep defaults")
	assert.Equal(t, 2*time.Second, cfg.Splunk.RetryDelay)
	assert.Equal(t, 3, cfg.Splunk.Retries)

	assert.Equal(t, BackendSurreal, cfg.KVBackend)
	assert.Equal(t, "ops", cfg.Surreal.Namespace)
	assert.Equal(t, "lookups", cfg.Surreal.Database)
	assert.Equal(t, "root", cfg.Surreal.Username)

	assert.Equal(t, slog.LevelDebug, cfg.LogLevel)
	assert.Equal(t, 250*time.Millisecond, cfg.PollInterval)
}

func TestLoadErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv("SPLUNK_CONFIG", filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		assert.Error(t, err)
	})

	t.Run("bad env", func(t *testing.T) {
		t.Setenv("SPLUNK_CONFIG", "")
		t.Setenv("SPLUNK_PORT", "eighty")
		t.Setenv("SPLUNK_VERIFY", "maybe")
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "SPLUNK_PORT")
		assert.Contains(t, err.Error(), "SPLUNK_VERIFY")
	})

	t.Run("bad backend", func(t *testing.T) {
		t.Setenv("SPLUNK_CONFIG", "")
		t.Setenv("SPLUNK_KV_BACKEND", "redis")
		_, err := Load()
		assert.ErrorContains(t, err, "kv_backend")
	})
}

func TestParseLogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLogLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLogLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLogLevel("ERROR"))
	assert.Equal(t, slog.LevelInfo, parseLogLevel("nonsense"))
}

func TestSetupLoggerWithWriters(t *testing.T) {
	var stderr, file bytes.Buffer
	logger := SetupLoggerWithWriters(&stderr, &file, slog.LevelInfo)

	logger.Debug("hidden")
	logger.Info("search submitted", "sid", "123")

	assert.NotContains(t, stderr.String(), "hidden")
	assert.Contains(t, stderr.String(), "sid=123")

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(strings.TrimSpace(file.String())), &entry))
	assert.Equal(t, "search submitted", entry["msg"])
	assert.Equal(t, "123", entry["sid"])
}

func TestSetupLoggerFile(t *testing.T) {
	cfg := Default()
	cfg.LogFile = filepath.Join(t.TempDir(), "out.log")

	logger, cleanup := SetupLogger(cfg)
	logger.Info("hello")
	require.NoError(t, cleanup())

	data, err := os.ReadFile(cfg.LogFile)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"hello"`)
}
