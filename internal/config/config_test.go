package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("WEBHOOK_PASSPHRASE", "hook-pass")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:8080", cfg.Server.Addr())
	assert.Equal(t, "./data", cfg.Logging.DataDir)
	assert.False(t, cfg.Server.Production())
	assert.False(t, cfg.Exchange.Configured())
	assert.Equal(t, "hook-pass", cfg.Exchange.WebhookPassphrase)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, "@every 15m", cfg.Snapshots.Interval)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, "info", cfg.Logging.Level)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("WEBHOOK_PASSPHRASE", "hook-pass")
	t.Setenv("HOST", "127.0.0.1")
	t.Setenv("PORT", "9000")
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("API_KEY", "key")
	t.Setenv("API_SECRET", "secret")
	t.Setenv("DATABASE_URL", "postgres://localhost/tradehook")
	t.Setenv("REDIS_ADDR", "localhost:6379")
	t.Setenv("RATE_LIMIT_RPM", "120")
	t.Setenv("JWT_TOKEN_TTL", "1h")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr())
	assert.True(t, cfg.Server.Production())
	assert.True(t, cfg.Exchange.Configured())
	assert.Equal(t, "postgres://localhost/tradehook", cfg.Database.URL)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Equal(t, 120, cfg.RateLimit.RequestsPerMinute)
	assert.Equal(t, time.Hour, cfg.Auth.TokenTTL)
}

func TestLoadRequiresPassphrase(t *testing.T) {
	t.Setenv("WEBHOOK_PASSPHRASE", "")

	_, err := Load()
	require.Error(t, err)
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("WEBHOOK_PASSPHRASE", "hook-pass")
	t.Setenv("PORT", "70000")

	_, err := Load()
	require.Error(t, err)
}

func TestInvalidIntFallsBack(t *testing.T) {
	t.Setenv("WEBHOOK_PASSPHRASE", "hook-pass")
	t.Setenv("RATE_LIMIT_RPM", "not-a-number")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 60, cfg.RateLimit.RequestsPerMinute)
}
