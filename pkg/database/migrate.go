package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

// Migrate runs embedded PostgreSQL migrations in order (001_schema.sql, 002_..., etc.).
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	return runMigrations("migrations/postgres", func(name, stmt string) error {
		_, err := pool.Exec(ctx, stmt)
		return err
	})
}

// MigrateSQLite runs the embedded SQLite migrations against db.
func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	return runMigrations("migrations/sqlite", func(name, stmt string) error {
		_, err := db.ExecContext(ctx, stmt)
		return err
	})
}

func runMigrations(dir string, exec func(name, stmt string) error) error {
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read migrations dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)
	for _, name := range names {
		body, err := migrationsFS.ReadFile(dir + "/" + name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if err := exec(name, string(body)); err != nil {
			return fmt.Errorf("execute migration %s: %w", name, err)
		}
	}
	return nil
}
