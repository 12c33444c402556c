package storage

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
)

// RunMigrations applies the *.sql files of migrationsFS in lexical order.
// Each file runs at most once: applied versions are tracked in
// schema_migrations and a file is applied and recorded in one transaction.
func (db *DB) RunMigrations(ctx context.Context, migrationsFS fs.FS) error {
	if _, err := db.pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("storage: create schema_migrations: %w", err)
	}

	applied, err := db.appliedMigrations(ctx)
	if err != nil {
		return fmt.Errorf("storage: load applied migrations: %w", err)
	}

	names, err := fs.Glob(migrationsFS, "*.sql")
	if err != nil {
		return fmt.Errorf("storage: list migrations: %w", err)
	}
	slices.Sort(names)

	for _, name := range names {
		version := path.Base(name)
		if applied[version] {
			db.logger.Debug("storage: migration already applied", "file", version)
			continue
		}
		body, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			return fmt.Errorf("storage: read migration %s: %w", version, err)
		}
		db.logger.Info("storage: running migration", "file", version)
		if err := db.applyMigration(ctx, version, string(body)); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) applyMigration(ctx context.Context, version, body string) error {
	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("storage: begin migration %s: %w", version, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, body); err != nil {
		return fmt.Errorf("storage: execute migration %s: %w", version, err)
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO schema_migrations (version) VALUES ($1) ON CONFLICT DO NOTHING`, version,
	); err != nil {
		return fmt.Errorf("storage: record migration %s: %w", version, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("storage: commit migration %s: %w", version, err)
	}
	return nil
}

func (db *DB) appliedMigrations(ctx context.Context) (map[string]bool, error) {
	rows, err := db.pool.Query(ctx, `SELECT version FROM schema_migrations`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		applied[v] = true
	}
	return applied, rows.Err()
}
