package database

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresConfig describes a PostgreSQL connection and its pool limits.
type PostgresConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string

	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// DSN renders the config as a postgres:// URL.
func (c *PostgresConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

const (
	connectAttempts = 3
	connectBaseWait = time.Second
	connectJitter   = 0.25
)

// connectWait doubles from connectBaseWait per attempt and spreads the
// result by up to connectJitter either way.
func connectWait(attempt int) time.Duration {
	base := connectBaseWait << max(attempt, 0)
	spread := float64(base) * connectJitter * (2*rand.Float64() - 1) // #nosec G404
	return base + time.Duration(spread)
}

// PingChecker adapts a pool to the health checker signature.
func PingChecker(pool *pgxpool.Pool) func(ctx context.Context) error {
	return pool.Ping
}

// NewPostgresPool opens a pool and pings it. The database usually comes up
// alongside the services, so a failed attempt is retried with backoff
// before giving up. logger may be nil.
func NewPostgresPool(ctx context.Context, cfg *PostgresConfig, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse postgres config: %w", err)
	}
	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	poolCfg.MaxConnIdleTime = cfg.MaxConnIdleTime

	var lastErr error
	for attempt := range connectAttempts {
		pool, err := connect(ctx, poolCfg)
		if err == nil {
			return pool, nil
		}
		lastErr = err
		if attempt == connectAttempts-1 {
			break
		}

		wait := connectWait(attempt)
		if logger != nil {
			logger.Warn("postgres not ready, retrying",
				slog.Int("attempt", attempt+1),
				slog.Duration("backoff", wait),
				slog.String("error", err.Error()),
			)
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("connect to postgres: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return nil, fmt.Errorf("connect to postgres after %d attempts: %w", connectAttempts, lastErr)
}

func connect(ctx context.Context, cfg *pgxpool.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	return pool, nil
}
