package auth

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civic-connect/portal/internal/models"
)

// Repository reads and provisions resident accounts in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByID returns a user by ID.
func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	const q = `SELECT id, username, display_name, role, created_at FROM users WHERE id = $1`
	var u models.User
	var role string
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Username, &u.DisplayName, &role, &u.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = models.Role(role)
	return &u, nil
}

// Upsert creates u or refreshes its display name and role, keyed by username.
// u.ID and u.CreatedAt are set to the stored values.
func (r *Repository) Upsert(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	const q = `INSERT INTO users (id, username, display_name, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (username) DO UPDATE SET display_name = EXCLUDED.display_name, role = EXCLUDED.role
		RETURNING id, created_at`
	return r.pool.QueryRow(ctx, q, u.ID, u.Username, u.DisplayName, string(u.Role)).Scan(&u.ID, &u.CreatedAt)
}
