package database

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// NewSQLite opens the embedded single-node store at path.
// A single connection serialises writers; SQLite allows one writer at a time anyway
// and this keeps busy errors out of the vote path.
func NewSQLite(ctx context.Context, path string, logger *zap.Logger) (*sql.DB, error) {
	dsn := "file:" + path + "?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	logger.Info("SQLite database opened", zap.String("path", path))
	return db, nil
}
