// Package migrate applies the embedded SQL schema migrations in file name
// order. Each file runs in its own transaction and is recorded in
// schema_migrations so it is applied once.
package migrate

import (
	"context"
	"embed"
	"fmt"
	"io/fs"
	"log/slog"
	"sort"

	"github.com/jmoiron/sqlx"
)

//go:embed migrations/*.sql
var files embed.FS

// Names returns the migration file names in the order they are applied.
func Names() ([]string, error) {
	names, err := fs.Glob(files, "migrations/*.sql")
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Apply runs the pending migrations. Concurrent callers against the same
// database are serialized with an advisory lock.
func Apply(ctx context.Context, db *sqlx.DB, logger *slog.Logger) error {
	conn, err := db.Connx(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, lockQuery, advisoryLockKey); err != nil {
		return fmt.Errorf("lock migrations: %w", err)
	}
	defer conn.ExecContext(context.Background(), unlockQuery, advisoryLockKey)

	if _, err := db.ExecContext(ctx, createMigrationsTableQuery); err != nil {
		return fmt.Errorf("create schema_migrations: %w", err)
	}

	applied := []string{}
	if err := db.SelectContext(ctx, &applied, listAppliedQuery); err != nil {
		return fmt.Errorf("list applied migrations: %w", err)
	}
	done := make(map[string]bool, len(applied))
	for _, name := range applied {
		done[name] = true
	}

	names, err := Names()
	if err != nil {
		return err
	}
	for _, name := range names {
		if done[name] {
			continue
		}
		if err := applyOne(ctx, db, name); err != nil {
			return fmt.Errorf("apply %s: %w", name, err)
		}
		logger.Info("migration applied", slog.String("name", name))
	}
	return nil
}

func applyOne(ctx context.Context, db *sqlx.DB, name string) error {
	body, err := files.ReadFile(name)
	if err != nil {
		return err
	}

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(body)); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, recordMigrationQuery, name); err != nil {
		return err
	}
	return tx.Commit()
}

const createMigrationsTableQuery = `
CREATE TABLE IF NOT EXISTS schema_migrations (
    name       text PRIMARY KEY,
    applied_at timestamptz NOT NULL DEFAULT now()
)
`

const listAppliedQuery = `SELECT name FROM schema_migrations`

const recordMigrationQuery = `INSERT INTO schema_migrations (name) VALUES ($1)`

// advisoryLockKey is an arbitrary key reserved for schema migrations.
const advisoryLockKey int64 = 727_001

const lockQuery = `SELECT pg_advisory_lock($1)`

const unlockQuery = `SELECT pg_advisory_unlock($1)`
