package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "jsonmapper.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
database: /tmp/records.db
lookup:
  timeout: 750ms
  rate_limit: 2.5
  retries: 0
batch:
  concurrency: 8
log:
  level: debug
`), 0644))

	t.Setenv("JSONMAPPER_DATABASE", "postgres://localhost/mapper")
	t.Setenv("JSONMAPPER_FUNCTION_TIMEOUT", "3s")
	t.Setenv("JSONMAPPER_EVENT_SOURCE", "orders-api")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://localhost/mapper", cfg.Database)
	assert.Equal(t, 750*time.Millisecond, cfg.Lookup.Timeout)
	assert.Equal(t, 2.5, cfg.Lookup.RateLimit)
	assert.Equal(t, 5, cfg.Lookup.Burst, "unset keys keep defaults")
	assert.Equal(t, 0, cfg.Lookup.Retries)
	assert.Equal(t, 8, cfg.Batch.Concurrency)
	assert.Equal(t, 3*time.Second, cfg.Function.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "orders-api", cfg.Event.Source)
	assert.Equal(t, ":8080", cfg.Listen)
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	assert.ErrorContains(t, err, "read config")

	bad := filepath.Join(dir, "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("batch: [1"), 0644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "parse config")

	invalid := filepath.Join(dir, "invalid.yaml")
	require.NoError(t, os.WriteFile(invalid, []byte("batch:\n  concurrency: 0\nlog:\n  level: loud\n"), 0644))
	_, err = Load(invalid)
	require.Error(t, err)
	assert.ErrorContains(t, err, "batch.concurrency")
	assert.ErrorContains(t, err, "unknown log level")
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("JSONMAPPER_LOOKUP_TIMEOUT", "soon")
	_, err := Load("")
	assert.ErrorContains(t, err, "JSONMAPPER_LOOKUP_TIMEOUT")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
