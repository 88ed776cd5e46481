package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_parseEnv(t *testing.T) {
	t.Setenv("PORT", "8080")
	t.Setenv("DATABASE_URL", "postgres://env")
	t.Setenv("JWT_SECRET", "env-jwt")
	t.Setenv("ENCRYPTION_SECRET", "env-enc")
	t.Setenv("REDIS_HOST", "redis")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("MESSAGE_PAGE_SIZE", "30")
	t.Setenv("SIGNED_URL_TTL", "15m")
	t.Setenv("SIGNED_URL_CACHE_FRACTION", "0.75")
	t.Setenv("GOOGLE_CLIENT_ID", "gid")
	t.Setenv("CLIENT_URL", "https://client")
	t.Setenv("APP_ENV", "production")
	t.Setenv("KV_DEFAULT_TTL", "not-a-duration")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, ":8080", cfg.EndpointAddrHTTP)
	assert.Equal(t, "postgres://env", cfg.DatabaseDSN)
	assert.Equal(t, "env-jwt", cfg.SecretKey)
	assert.Equal(t, "env-enc", cfg.EncryptionSecret)
	assert.Equal(t, "redis:6380", cfg.RedisAddr)
	assert.Equal(t, 30, cfg.MessagePageSize)
	assert.Equal(t, 15*time.Minute, cfg.SignedURLValidity)
	assert.InDelta(t, 0.75, cfg.SignedURLCacheFraction, 1e-9)
	assert.Equal(t, "gid", cfg.GoogleClientID)
	assert.Equal(t, "https://client", cfg.ClientURL)
	assert.True(t, cfg.Production)
	assert.Equal(t, 300*time.Second, cfg.KVDefaultTTL, "unparsable value is ignored")
}

func Test_parseEnv_RedisHostOnly(t *testing.T) {
	t.Setenv("REDIS_HOST", "cache.internal")

	cfg := &Config{}
	cfg.LoadDefaults()
	parseEnv(cfg)

	assert.Equal(t, "cache.internal:6379", cfg.RedisAddr)
}
