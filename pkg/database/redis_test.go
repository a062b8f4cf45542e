package database

import (
	"context"
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func redisConfigFor(t *testing.T, mr *miniredis.Miniredis) RedisConfig {
	t.Helper()
	port, err := strconv.Atoi(mr.Port())
	require.NoError(t, err)
	return RedisConfig{Host: mr.Host(), Port: port, Timeout: 100 * time.Millisecond}
}

func TestOpenRedisClient(t *testing.T) {
	mr := miniredis.RunT(t)
	client := OpenRedisClient(redisConfigFor(t, mr))
	defer client.Close()

	require.NoError(t, client.Set(context.Background(), "profile:u-1", "{}", time.Minute).Err())
	assert.True(t, mr.Exists("profile:u-1"))
}

func TestOpenRedisClient_ServerDownFailsPerCommand(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := redisConfigFor(t, mr)
	mr.Close()

	client := OpenRedisClient(cfg)
	defer client.Close()

	start := time.Now()
	assert.Error(t, client.Ping(context.Background()).Err())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestRedisConfig_Addr(t *testing.T) {
	assert.Equal(t, "cache:6379", RedisConfig{Host: "cache", Port: 6379}.Addr())
	assert.Equal(t, "[::1]:6380", RedisConfig{Host: "::1", Port: 6380}.Addr())
}
