package database

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"slices"
	"strings"
	"time"
)

// migrationLockKey is the advisory lock every migration transaction takes,
// so instances starting together apply each file once.
const migrationLockKey int64 = 0x706c616e6e6572

const migrationSuffix = ".up.sql"

// RunMigrations applies the *.up.sql files at the root of migrations in name
// order, recording each in schema_migrations. A file already recorded is
// skipped. The run is retried with backoff while the server is unreachable;
// a failing statement is returned at once.
func RunMigrations(ctx context.Context, db DBTX, migrations fs.FS, logger *slog.Logger) error {
	var err error
	for attempt := range connectAttempts {
		if err = migrate(ctx, db, migrations, logger); err == nil || !isConnectionError(err) {
			return err
		}
		if attempt == connectAttempts-1 {
			break
		}
		wait := connectWait(attempt)
		logger.Warn("migrations interrupted, retrying",
			slog.Int("attempt", attempt+1),
			slog.Duration("backoff", wait),
			slog.String("error", err.Error()),
		)
		select {
		case <-ctx.Done():
			return fmt.Errorf("run migrations: %w", ctx.Err())
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("run migrations after %d attempts: %w", connectAttempts, err)
}

func pendingFiles(migrations fs.FS) ([]string, error) {
	entries, err := fs.ReadDir(migrations, ".")
	if err != nil {
		return nil, fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), migrationSuffix) {
			names = append(names, e.Name())
		}
	}
	slices.Sort(names)
	return names, nil
}

func migrate(ctx context.Context, db DBTX, migrations fs.FS, logger *slog.Logger) error {
	if _, err := db.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version    TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	names, err := pendingFiles(migrations)
	if err != nil {
		return err
	}
	for _, name := range names {
		applied, err := applyMigration(ctx, db, migrations, name)
		if err != nil {
			return err
		}
		if applied {
			logger.Info("migration applied", slog.String("version", name))
		}
	}
	return nil
}

// applyMigration runs one file and its bookkeeping row in a single
// transaction. It reports false when the file was already recorded.
func applyMigration(ctx context.Context, db DBTX, migrations fs.FS, name string) (bool, error) {
	body, err := fs.ReadFile(migrations, name)
	if err != nil {
		return false, fmt.Errorf("read migration %s: %w", name, err)
	}

	tx, err := db.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin migration %s: %w", name, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
		return false, fmt.Errorf("lock migration %s: %w", name, err)
	}
	var done bool
	if err := tx.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version = $1)", name).Scan(&done); err != nil {
		return false, fmt.Errorf("check migration %s: %w", name, err)
	}
	if done {
		return false, nil
	}

	if _, err := tx.Exec(ctx, string(body)); err != nil {
		return false, fmt.Errorf("execute migration %s: %w", name, err)
	}
	if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (version) VALUES ($1)", name); err != nil {
		return false, fmt.Errorf("record migration %s: %w", name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit migration %s: %w", name, err)
	}
	return true, nil
}
