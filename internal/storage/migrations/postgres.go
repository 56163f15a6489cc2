package migrations

import (
	"context"
	"fmt"

	"canonical-trade-ingest/internal/storage/postgres"
)

// RunPostgresMigrations applies embedded SQL files in lexical order.
// Applied file names are recorded in schema_migrations and skipped on later runs;
// each file runs in its own transaction together with its bookkeeping row.
// Returns the names applied by this call.
func RunPostgresMigrations(ctx context.Context, pool *postgres.Pool) ([]string, error) {
	files, err := readMigrations(PostgresFS, "postgres")
	if err != nil {
		return nil, err
	}

	if _, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name        TEXT PRIMARY KEY,
			applied_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return nil, fmt.Errorf("create schema_migrations: %w", err)
	}

	var applied []string
	for _, f := range files {
		var done bool
		if err := pool.QueryRow(ctx,
			`SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE name = $1)`, f.Name,
		).Scan(&done); err != nil {
			return applied, fmt.Errorf("check migration %s: %w", f.Name, err)
		}
		if done {
			continue
		}

		if err := applyPostgres(ctx, pool, f); err != nil {
			return applied, err
		}
		applied = append(applied, f.Name)
	}

	return applied, nil
}

func applyPostgres(ctx context.Context, pool *postgres.Pool, f migrationFile) error {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, f.SQL); err != nil {
		return fmt.Errorf("apply migration %s: %w", f.Name, err)
	}
	if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, f.Name); err != nil {
		return fmt.Errorf("record migration %s: %w", f.Name, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit migration %s: %w", f.Name, err)
	}
	return nil
}
