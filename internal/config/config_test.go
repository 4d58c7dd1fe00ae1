package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "postgres", cfg.Storage.Backend)
	assert.Equal(t, 8*time.Second, cfg.Geo.Timeout)
	assert.Equal(t, "np", cfg.Geo.Region)
	assert.InDelta(t, 25.0, cfg.Geo.MinLat, 1e-9)
	assert.InDelta(t, 89.3, cfg.Geo.MaxLon, 1e-9)
	assert.InDelta(t, 3.0, cfg.Proximity.DefaultRadiusKm, 1e-9)
	assert.Equal(t, 10, cfg.Proximity.DisplayThreshold)
	assert.Equal(t, 200, cfg.Proximity.MaxCandidates)
	assert.Equal(t, 250*time.Millisecond, cfg.Proximity.Debounce)
	assert.True(t, cfg.Proximity.Clustering)
	assert.Equal(t, "local", cfg.Assignment.LockBackend)
	assert.False(t, cfg.NewRelic.Enabled)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORAGE_BACKEND", "Memory")
	t.Setenv("GEO_TIMEOUT", "2s")
	t.Setenv("PROXIMITY_DISPLAY_THRESHOLD", "25")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("ASSIGNMENT_LOCK_BACKEND", "redis")

	cfg := Load()

	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "memory", cfg.Storage.Backend)
	assert.Equal(t, 2*time.Second, cfg.Geo.Timeout)
	assert.Equal(t, 25, cfg.Proximity.DisplayThreshold)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.Equal(t, "redis", cfg.Assignment.LockBackend)
}
