package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
)

// Setup describes what a service needs from its database at startup.
type Setup struct {
	Service    string
	Migrations fs.FS
	// SlowQuery enables slow statement logging when positive.
	SlowQuery time.Duration
	// Registerer receives the pool collector. Nil means the default registry.
	Registerer prometheus.Registerer
}

// Open connects to PostgreSQL, registers the pool metrics and applies the
// pending migrations. The pool is closed again if migrating fails.
func Open(ctx context.Context, cfg *PostgresConfig, setup Setup, logger *slog.Logger) (*pgxpool.Pool, error) {
	pool, err := NewPostgresPool(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("connected to postgres",
		slog.String("host", cfg.Host),
		slog.Int("port", cfg.Port),
		slog.String("database", cfg.DBName),
	)

	reg := setup.Registerer
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := RegisterPoolMetrics(reg, pool, setup.Service); err != nil {
		logger.Warn("pool metrics not registered", slog.String("error", err.Error()))
	}

	if setup.Migrations != nil {
		if err := RunMigrations(ctx, pool, setup.Migrations, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		logger.Info("database migrations completed")
	}

	if setup.SlowQuery > 0 {
		SetSlowQueryLogging(setup.SlowQuery, logger)
	}
	return pool, nil
}
