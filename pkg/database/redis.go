package database

import (
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultRedisTimeout bounds a cache round trip. A cache slower than this
// costs more than it saves.
const defaultRedisTimeout = 500 * time.Millisecond

// RedisConfig locates the cache server.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	// Timeout applies to dialing, reads and writes. Zero means 500ms.
	Timeout time.Duration
}

func (c RedisConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// OpenRedisClient returns a client that dials on first use, so a service
// starts, degraded, while Redis is down. Commands are retried once.
func OpenRedisClient(cfg RedisConfig) *redis.Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultRedisTimeout
	}
	return redis.NewClient(&redis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  timeout,
		ReadTimeout:  timeout,
		WriteTimeout: timeout,
		MaxRetries:   1,
	})
}
