package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, "incremental", cfg.Sync.Transfer)
	assert.Equal(t, 0.8, cfg.Sync.SimilarityThreshold)
}

func TestLoadLayersFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "knowsync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
log:
  level: debug
  format: json
sync:
  transfer: full
  counterpart_timeout: 30s
storage:
  backend: sqlite
  sqlite:
    path: /tmp/test.db
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "full", cfg.Sync.Transfer)
	assert.Equal(t, 30*time.Second, cfg.Sync.CounterpartTimeout)
	assert.Equal(t, "sqlite", cfg.Storage.Backend)
	assert.Equal(t, "/tmp/test.db", cfg.Storage.SQLite.Path)
	// Untouched sections keep their defaults.
	assert.Equal(t, "default", cfg.Sync.Algorithm)
	assert.Equal(t, 0.8, cfg.Sync.SimilarityThreshold)
}

func TestLoadEmptyPathUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Storage.Backend)
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("KNOWSYNC_LOG_LEVEL", "warn")
	t.Setenv("KNOWSYNC_STORAGE_BACKEND", "redis")
	t.Setenv("KNOWSYNC_REDIS_ADDR", "redis.internal:6380")
	t.Setenv("KNOWSYNC_REDIS_DB", "3")
	t.Setenv("KNOWSYNC_SYNC_TRANSFER", "full")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Log.Level)
	assert.Equal(t, "redis", cfg.Storage.Backend)
	assert.Equal(t, "redis.internal:6380", cfg.Storage.Redis.Addr)
	assert.Equal(t, 3, cfg.Storage.Redis.DB)
	assert.Equal(t, "full", cfg.Sync.Transfer)
}

func TestEnvOverridesRejectBadInteger(t *testing.T) {
	t.Setenv("KNOWSYNC_REDIS_DB", "three")
	_, err := Load("")
	assert.Error(t, err)
}

func TestValidateCollectsAllFailures(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "verbose"
	cfg.Sync.Transfer = "sideways"
	cfg.Sync.SimilarityThreshold = 1.5
	cfg.Storage.Backend = "orbit"

	err := cfg.Validate()
	require.Error(t, err)
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Errors, 4)
}

func TestValidateBackendRequirements(t *testing.T) {
	cfg := Default()
	cfg.Storage.Backend = "sqlite"
	cfg.Storage.SQLite.Path = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Storage.Backend = "redis"
	cfg.Storage.Redis.Addr = ""
	assert.Error(t, cfg.Validate())
}
