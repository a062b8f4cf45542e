package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.HTTPPort)
	assert.Equal(t, []string{"http://localhost:8080"}, cfg.Backends)
	assert.Equal(t, "http://localhost:8003", cfg.Services["blog"])
	assert.Len(t, cfg.Services, 4)
	assert.Equal(t, 60*time.Second, cfg.StatsWindow)
	assert.Equal(t, 15*time.Second, cfg.HealthCheckInterval)
}

func TestLoad_MultipleBackends(t *testing.T) {
	t.Setenv("BACKENDS", "http://gw-1:8080,http://gw-2:8080")
	t.Setenv("LB_SERVICES", "gateway=http://gw-1:8080")

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, []string{"http://gw-1:8080", "http://gw-2:8080"}, cfg.Backends)
	assert.Equal(t, map[string]string{"gateway": "http://gw-1:8080"}, cfg.Services)
}

func TestLoad_RejectsRelativeBackend(t *testing.T) {
	t.Setenv("BACKENDS", "gw-1:8080")

	cfg, err := Load()

	assert.Nil(t, cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BACKENDS entry must be an absolute URL")
}

func TestValidate_RejectsZeroWindow(t *testing.T) {
	cfg := &Config{
		HTTPPort:            8000,
		Backends:            []string{"http://gw:8080"},
		HealthCheckInterval: time.Second,
	}

	err := cfg.Validate()

	require.Error(t, err)
	assert.Contains(t, err.Error(), "STATS_WINDOW")
}
