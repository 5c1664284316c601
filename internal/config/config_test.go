package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")

	c, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "dev", c.App.Env)
	assert.True(t, c.App.IsDev())
	assert.Equal(t, "8080", c.App.Port)
	assert.Equal(t, "memory", c.Store.Driver)
	assert.Equal(t, 10*time.Minute, c.Hold.TTL)
	assert.Equal(t, 30*time.Minute, c.Hold.MaxTTL)
	assert.Equal(t, 30*time.Second, c.Hold.SweepInterval)
	assert.Equal(t, 24*time.Hour, c.Hold.Retention)
	assert.Equal(t, "memory", c.Hold.LockStore)
	assert.Equal(t, []string{"GET"}, c.Cache.Methods)
	assert.Equal(t, 60, c.RateLimit.Capacity)
	assert.False(t, c.RabbitMQ.Enabled)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("STORE_DRIVER", "mysql")
	t.Setenv("SEED_FILE", "seed.json")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_NAME", "booking")
	t.Setenv("HOLD_TTL", "5m")
	t.Setenv("HOLD_MAX_TTL", "1m")
	t.Setenv("LOCK_STORE", "redis")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("CACHE_METHODS", "get, head")
	t.Setenv("RATE_LIMIT_REFILL_INTERVAL", "5m")

	c, err := Load()
	require.NoError(t, err)
	assert.False(t, c.App.IsDev())
	assert.Equal(t, "seed.json", c.Store.SeedFile)
	assert.Equal(t, "app", c.DB.User)
	assert.Equal(t, 5*time.Minute, c.Hold.TTL)
	assert.Equal(t, 5*time.Minute, c.Hold.MaxTTL, "max ttl is raised to the default ttl")
	assert.Equal(t, "redis", c.Hold.LockStore)
	assert.Equal(t, "redis:6379", c.Redis.Addr)
	assert.Equal(t, []string{"GET", "HEAD"}, c.Cache.Methods)
	assert.True(t, c.Cache.Cacheable("HEAD"))
	assert.Equal(t, 25*time.Minute, c.RateLimit.TTL)
}

func TestLoadRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"missing secret", map[string]string{}},
		{"unknown driver", map[string]string{"JWT_SECRET": "x", "STORE_DRIVER": "postgres"}},
		{"mysql without db", map[string]string{"JWT_SECRET": "x", "STORE_DRIVER": "mysql"}},
		{"unknown lock store", map[string]string{"JWT_SECRET": "x", "LOCK_STORE": "etcd"}},
		{"bad duration", map[string]string{"JWT_SECRET": "x", "HOLD_TTL": "soon"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("JWT_SECRET", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			assert.Error(t, err)
		})
	}
}
