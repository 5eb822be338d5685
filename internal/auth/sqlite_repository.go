package auth

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/civic-connect/portal/internal/models"
)

// SQLiteRepository reads and provisions resident accounts in the embedded SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite-backed auth repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// GetByID returns a user by ID.
func (r *SQLiteRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var (
		u       models.User
		rawID   string
		role    string
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, username, display_name, role, created_at FROM users WHERE id = ?`, id.String()).
		Scan(&rawID, &u.Username, &u.DisplayName, &role, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	if u.ID, err = uuid.Parse(rawID); err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	u.CreatedAt = time.Unix(0, created).UTC()
	return &u, nil
}

// Upsert creates u or refreshes its display name and role, keyed by username.
func (r *SQLiteRepository) Upsert(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	var (
		rawID   string
		created int64
	)
	err := r.db.QueryRowContext(ctx, `INSERT INTO users (id, username, display_name, role, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (username) DO UPDATE SET display_name = excluded.display_name, role = excluded.role
		RETURNING id, created_at`,
		u.ID.String(), u.Username, u.DisplayName, string(u.Role), time.Now().UTC().UnixNano()).Scan(&rawID, &created)
	if err != nil {
		return err
	}
	if u.ID, err = uuid.Parse(rawID); err != nil {
		return err
	}
	u.CreatedAt = time.Unix(0, created).UTC()
	return nil
}
