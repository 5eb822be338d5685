// Package testutil opens throwaway SQLite databases for package tests.
package testutil

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/civic-connect/portal/internal/auth"
	"github.com/civic-connect/portal/internal/models"
	"github.com/civic-connect/portal/pkg/database"
)

// NewSQLiteDB returns a migrated database in the test's temp dir, closed on cleanup.
func NewSQLiteDB(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()
	db, err := database.NewSQLite(ctx, filepath.Join(t.TempDir(), "portal.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.MigrateSQLite(ctx, db))
	return db
}

// CreateUser provisions a user with the given username and role.
func CreateUser(t *testing.T, db *sql.DB, username string, role models.Role) *models.User {
	t.Helper()
	u := &models.User{Username: username, Role: role}
	require.NoError(t, auth.NewSQLiteRepository(db).Upsert(context.Background(), u))
	return u
}
