package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func setRequired(t *testing.T) {
    t.Helper()
    t.Setenv("DB_USER", "app")
    t.Setenv("DB_HOST", "127.0.0.1")
    t.Setenv("DB_NAME", "accounts")
    t.Setenv("JWT_SECRET", "s3cret")
}

func TestLoad_Defaults(t *testing.T) {
    setRequired(t)

    cfg, err := Load()
    require.NoError(t, err)
    assert.Equal(t, "8080", cfg.Port)
    assert.Equal(t, "3306", cfg.DBPort)
    assert.Equal(t, 15*time.Minute, cfg.AccessTTL())
    assert.Equal(t, 7*24*time.Hour, cfg.RefreshTTL())
    assert.Equal(t, 10, cfg.BcryptCost)
    assert.Equal(t, 5*time.Second, cfg.StoreTimeout)
    assert.False(t, cfg.EventsEnabled)
    assert.Equal(t, "localhost:6379", cfg.Redis.Address())
    assert.Equal(t, map[string]bool{"GET": true}, cfg.Cache.MethodSet())
    assert.Equal(t, "cache:users", cfg.Cache.Prefix)
}

func TestLoad_Overrides(t *testing.T) {
    setRequired(t)
    t.Setenv("ACCESS_TOKEN_TTL_MIN", "5")
    t.Setenv("REFRESH_TOKEN_TTL_DAYS", "30")
    t.Setenv("STORE_TIMEOUT", "750ms")
    t.Setenv("REDIS_HOST", "redis")
    t.Setenv("REDIS_PORT", "6380")
    t.Setenv("CACHE_METHODS", "get, head")
    t.Setenv("CACHE_TTL", "2m")

    cfg, err := Load()
    require.NoError(t, err)
    assert.Equal(t, 5*time.Minute, cfg.AccessTTL())
    assert.Equal(t, 30*24*time.Hour, cfg.RefreshTTL())
    assert.Equal(t, 750*time.Millisecond, cfg.StoreTimeout)
    assert.Equal(t, "redis:6380", cfg.Redis.Address())
    assert.Equal(t, map[string]bool{"GET": true, "HEAD": true}, cfg.Cache.MethodSet())
    assert.Equal(t, 2*time.Minute, cfg.Cache.TTL)
}

func TestLoad_MissingSecretFails(t *testing.T) {
    setRequired(t)
    t.Setenv("JWT_SECRET", "")

    _, err := Load()
    require.Error(t, err)
    assert.Contains(t, err.Error(), "JWT_SECRET")
}

func TestLoad_RejectsNonPositiveLifetimes(t *testing.T) {
    setRequired(t)
    t.Setenv("ACCESS_TOKEN_TTL_MIN", "0")

    _, err := Load()
    assert.Error(t, err)
}
