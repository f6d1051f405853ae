package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadAppliesDefaults(t *testing.T) {
	t.Setenv("APP_PORT", "5000")
	t.Setenv("DB_USER", "cvb")
	t.Setenv("DB_HOST", "localhost")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "cvb")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("ACCESS_MAX_DOWNLOADS", "")
	t.Setenv("SESSION_TTL", "")

	cfg := Load()

	assert.Equal(t, "5000", cfg.Port)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
	assert.Equal(t, 5, cfg.AccessMaxDownloads)
	assert.Equal(t, 7*24*time.Hour, cfg.AccessTTL)
	assert.Equal(t, int64(100<<20), cfg.UploadMaxBytes)
	assert.False(t, cfg.PaymentsConfigured())
}

func TestRateLimitConfigClampsValues(t *testing.T) {
	t.Setenv("RATE_LIMIT_CAPACITY", "0")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "1s")
	t.Setenv("RATE_LIMIT_TTL", "1s")

	cfg := LoadRateLimitConfig()

	assert.Equal(t, 1, cfg.Capacity)
	assert.Equal(t, 2*time.Second, cfg.TTL)
}

func TestLoadCacheConfigMethods(t *testing.T) {
	t.Setenv("CACHE_METHODS", "get, head,,")

	cfg := LoadCacheConfig()

	assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Methods)
	assert.Equal(t, 15*time.Second, cfg.TTL)
}

func TestRedisOptions(t *testing.T) {
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("REDIS_HOST", "cache")
	t.Setenv("REDIS_PORT", "6380")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("REDIS_TLS", "true")

	opts := RedisOptions()

	assert.Equal(t, "cache:6380", opts.Addr)
	assert.Equal(t, 2, opts.DB)
	assert.NotNil(t, opts.TLSConfig)
}

func TestEnvBool(t *testing.T) {
	t.Setenv("CVB_FLAG", "off")
	assert.False(t, envBool("CVB_FLAG", true))
	t.Setenv("CVB_FLAG", "YES")
	assert.True(t, envBool("CVB_FLAG", false))
	t.Setenv("CVB_FLAG", "maybe")
	assert.True(t, envBool("CVB_FLAG", true))
}

func TestEnvList(t *testing.T) {
	t.Setenv("CORS_ORIGINS", " https://a.example, ,https://b.example ")
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, envList("CORS_ORIGINS"))
	t.Setenv("CORS_ORIGINS", "")
	assert.Nil(t, envList("CORS_ORIGINS"))
}
