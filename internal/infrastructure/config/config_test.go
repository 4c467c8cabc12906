package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DriverPostgres, cfg.Database.Driver)
	assert.Equal(t, "Asia/Jakarta", cfg.App.Timezone)
	assert.Equal(t, "Asia/Jakarta", cfg.App.Location().String())
	assert.False(t, cfg.Timer.AutoApprove)
	assert.EqualValues(t, 10<<20, cfg.Timer.MaxAttachmentBytes)
	assert.Equal(t, 30*time.Second, cfg.Server.RequestTimeout)
	assert.Equal(t, "host=localhost port=5432 user=postgres password= dbname=tracker sslmode=disable", cfg.Database.GetDSN())
}

func TestLoadEnvironmentOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("TIMER_AUTO_APPROVE", "true")
	t.Setenv("APP_TIMEZONE", "UTC")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, DriverMemory, cfg.Database.Driver)
	assert.True(t, cfg.Timer.AutoApprove)
	assert.Equal(t, time.UTC, cfg.App.Location())
}

func TestLoadConfigFile(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	dir := t.TempDir()
	path := filepath.Join(dir, "tracker.yaml")
	body := "jwt:\n  secret: file-secret\ntimer:\n  max_attachments: 3\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "file-secret", cfg.JWT.Secret)
	assert.Equal(t, 3, cfg.Timer.MaxAttachments)
}

func TestLoadRejectsInvalidConfig(t *testing.T) {
	t.Setenv("JWT_SECRET", "")

	_, err := Load("")
	assert.ErrorContains(t, err, "JWT secret")

	t.Setenv("JWT_SECRET", "test-secret")
	t.Setenv("DB_DRIVER", "sqlite")
	_, err = Load("")
	assert.ErrorContains(t, err, "unsupported database driver")

	t.Setenv("DB_DRIVER", "memory")
	t.Setenv("APP_TIMEZONE", "Mars/Olympus")
	_, err = Load("")
	assert.ErrorContains(t, err, "unknown timezone")
}

func TestRedisLockingIsOptIn(t *testing.T) {
	t.Setenv("JWT_SECRET", "test-secret")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.False(t, cfg.Redis.Enabled())

	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("REDIS_LOCK_WAIT", "2s")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.True(t, cfg.Redis.Enabled())
	assert.Equal(t, 30*time.Second, cfg.Redis.LockTTL)
	assert.Equal(t, 2*time.Second, cfg.Redis.LockWait)

	t.Setenv("REDIS_LOCK_TTL", "0s")
	_, err = Load("")
	assert.ErrorContains(t, err, "lock ttl")
}
