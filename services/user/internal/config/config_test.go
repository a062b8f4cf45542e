package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setEnvs sets multiple env vars for the duration of the test.
func setEnvs(t *testing.T, envs map[string]string) {
	t.Helper()
	for k, v := range envs {
		t.Setenv(k, v)
	}
}

func TestLoad_Defaults(t *testing.T) {
	setEnvs(t, map[string]string{"ENVIRONMENT": "development"})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 8002, cfg.HTTPPort)
	assert.Equal(t, "redis", cfg.CacheBackend)
	assert.Equal(t, time.Hour, cfg.CacheTTL)
	assert.Equal(t, 12, cfg.BcryptCost)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_Overrides(t *testing.T) {
	setEnvs(t, map[string]string{
		"USER_HTTP_PORT": "9100",
		"CACHE_BACKEND":  "memory",
		"CACHE_TTL":      "15m",
		"KAFKA_ENABLED":  "true",
		"KAFKA_BROKERS":  "k1:9092,k2:9092",
	})

	cfg, err := Load()

	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.HTTPPort)
	assert.Equal(t, "memory", cfg.CacheBackend)
	assert.Equal(t, 15*time.Minute, cfg.CacheTTL)
	assert.True(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
}

func TestLoad_RejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name    string
		envs    map[string]string
		wantErr string
	}{
		{"port", map[string]string{"USER_HTTP_PORT": "70000"}, "invalid HTTP port"},
		{"cache backend", map[string]string{"CACHE_BACKEND": "memcached"}, "CACHE_BACKEND"},
		{"cache ttl", map[string]string{"CACHE_TTL": "0s"}, "CACHE_TTL"},
		{"bcrypt cost", map[string]string{"BCRYPT_COST": "40"}, "BCRYPT_COST"},
		{"weak bcrypt in production", map[string]string{"ENVIRONMENT": "production", "BCRYPT_COST": "4"}, "only allowed in development"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setEnvs(t, tt.envs)

			cfg, err := Load()

			assert.Nil(t, cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestPostgres(t *testing.T) {
	cfg := &Config{
		PostgresUser:          "u",
		PostgresPass:          "p",
		PostgresHost:          "db",
		PostgresPort:          5432,
		PostgresDB:            "user_db",
		PostgresSSL:           "disable",
		DBMaxConns:            8,
		DBMaxConnLifetimeMins: 2,
	}
	pg := cfg.Postgres()
	assert.Equal(t, "postgres://u:p@db:5432/user_db?sslmode=disable", pg.DSN())
	assert.Equal(t, int32(8), pg.MaxConns)
	assert.Equal(t, 2*time.Minute, pg.MaxConnLifetime)
}

func TestSlowQueryThreshold(t *testing.T) {
	assert.Equal(t, 200*time.Millisecond, (&Config{SlowQueryThresholdMs: 200}).SlowQueryThreshold())
	assert.Zero(t, (&Config{SlowQueryThresholdMs: -1}).SlowQueryThreshold())
}
