package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad(t *testing.T) {
	t.Setenv("DB_HOST", "test-host")
	t.Setenv("DB_MAX_OPEN_CONNS", "20")
	t.Setenv("STORAGE_USE_SSL", "true")
	t.Setenv("STORAGE_DRIVER", "memory")
	t.Setenv("QUOTA_DEFAULT_STORAGE_BYTES", "2147483648")
	t.Setenv("ADMIN_TOKEN", "ops-token")

	cfg := Load()

	assert.Equal(t, "test-host", cfg.Database.Host)
	assert.Equal(t, 20, cfg.Database.MaxOpenConns)
	assert.True(t, cfg.Storage.UseSSL)
	assert.Equal(t, "memory", cfg.Storage.Driver)
	assert.Equal(t, uint64(2147483648), cfg.Quota.DefaultStorageLimitBytes)
	assert.Equal(t, "ops-token", cfg.AdminToken)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("ADMIN_TOKEN", "")
	cfg := Load()

	assert.Equal(t, 3, cfg.Retry.MaxAttempts)
	assert.Equal(t, 200*time.Millisecond, cfg.Retry.InitialInterval)
	assert.Equal(t, 15*time.Minute, cfg.Grants.UploadTTL)
	assert.Equal(t, time.Hour, cfg.Grants.DownloadTTL)
	assert.Equal(t, uint64(1<<30), cfg.Quota.DefaultStorageLimitBytes)
	assert.Equal(t, uint64(200), cfg.Quota.DefaultDocumentLimit)
	assert.Equal(t, 5*time.Minute, cfg.Queue.SLA)
	assert.Equal(t, 5, cfg.Database.ConnectAttempts)
	assert.Equal(t, 64<<20, cfg.BodyLimitBytes)
	assert.Empty(t, cfg.AdminToken)
}

func TestGetEnv(t *testing.T) {
	key := "TEST_ENV_VAR"
	os.Setenv(key, "value")
	defer os.Unsetenv(key)

	assert.Equal(t, "value", getEnv(key, "default"))
	assert.Equal(t, "default", getEnv("NON_EXISTENT", "default"))
}

func TestGetEnvBool(t *testing.T) {
	key := "TEST_BOOL_VAR"

	os.Setenv(key, "true")
	assert.True(t, getEnvBool(key, false))

	os.Setenv(key, "false")
	assert.False(t, getEnvBool(key, true))

	os.Setenv(key, "invalid")
	assert.True(t, getEnvBool(key, true))

	os.Unsetenv(key)
	assert.True(t, getEnvBool(key, true))
}

func TestGetEnvInt(t *testing.T) {
	key := "TEST_INT_VAR"

	os.Setenv(key, "123")
	assert.Equal(t, 123, getEnvInt(key, 0))

	os.Setenv(key, "invalid")
	assert.Equal(t, 10, getEnvInt(key, 10))

	os.Unsetenv(key)
	assert.Equal(t, 10, getEnvInt(key, 10))
}

func TestGetEnvDuration(t *testing.T) {
	key := "TEST_DURATION_VAR"

	os.Setenv(key, "250ms")
	assert.Equal(t, 250*time.Millisecond, getEnvDuration(key, time.Second))

	os.Setenv(key, "soon")
	assert.Equal(t, time.Second, getEnvDuration(key, time.Second))

	os.Setenv(key, "-5s")
	assert.Equal(t, time.Second, getEnvDuration(key, time.Second))

	os.Unsetenv(key)
	assert.Equal(t, time.Second, getEnvDuration(key, time.Second))
}

func TestGetEnvUint64(t *testing.T) {
	key := "TEST_UINT_VAR"

	os.Setenv(key, "18446744073709551615")
	assert.Equal(t, uint64(18446744073709551615), getEnvUint64(key, 0))

	os.Setenv(key, "-1")
	assert.Equal(t, uint64(7), getEnvUint64(key, 7))

	os.Unsetenv(key)
}
