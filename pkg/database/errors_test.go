package database

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestIsUniqueViolationPostgres(t *testing.T) {
	err := fmt.Errorf("insert vote: %w", &pgconn.PgError{Code: "23505", ConstraintName: "poll_votes_poll_voter_key"})

	assert.True(t, IsUniqueViolation(err, ""))
	assert.True(t, IsUniqueViolation(err, "poll_votes_poll_voter_key"))
	assert.False(t, IsUniqueViolation(err, "users_username_key"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, IsUniqueViolation(errors.New("boom"), ""))
	assert.False(t, IsUniqueViolation(nil, ""))
}

func TestIsUniqueViolationSQLite(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "t.db"), zap.NewNop())
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, MigrateSQLite(ctx, db))

	insert := `INSERT INTO users (id, username, role, created_at) VALUES (?, 'asha', 'resident', 0)`
	_, err = db.ExecContext(ctx, insert, "u1")
	require.NoError(t, err)
	_, err = db.ExecContext(ctx, insert, "u2")
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err, ""))

	_, err = db.ExecContext(ctx, `INSERT INTO chat_messages (author_id, body, created_at) VALUES ('u1', '  ', 0)`)
	require.Error(t, err)
	assert.False(t, IsUniqueViolation(err, ""), "check constraint is not a unique violation")
}

func TestMigrateSQLiteIsRepeatable(t *testing.T) {
	ctx := context.Background()
	db, err := NewSQLite(ctx, filepath.Join(t.TempDir(), "t.db"), zap.NewNop())
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, MigrateSQLite(ctx, db))
	require.NoError(t, MigrateSQLite(ctx, db))
}
