package feed

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civic-connect/portal/internal/models"
)

// Repository stores chat messages in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a feed repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append inserts a message; the id comes from the BIGSERIAL sequence.
func (r *Repository) Append(ctx context.Context, authorID uuid.UUID, body string) (*models.Message, error) {
	const query = `WITH ins AS (
			INSERT INTO chat_messages (author_id, body) VALUES ($1, $2)
			RETURNING id, author_id, body, created_at
		)
		SELECT ins.id, ins.author_id, COALESCE(NULLIF(u.display_name, ''), u.username), ins.body, ins.created_at
		FROM ins JOIN users u ON u.id = ins.author_id`
	var m models.Message
	err := r.pool.QueryRow(ctx, query, authorID, body).
		Scan(&m.ID, &m.AuthorID, &m.AuthorName, &m.Body, &m.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// Recent returns the newest limit messages, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]models.Message, error) {
	const query = `SELECT m.id, m.author_id, COALESCE(NULLIF(u.display_name, ''), u.username), m.body, m.created_at
		FROM chat_messages m JOIN users u ON u.id = m.author_id
		ORDER BY m.id DESC LIMIT $1`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

// Since returns messages with id > cursor, oldest first. Served by the primary key index.
func (r *Repository) Since(ctx context.Context, cursor int64) ([]models.Message, error) {
	const query = `SELECT m.id, m.author_id, COALESCE(NULLIF(u.display_name, ''), u.username), m.body, m.created_at
		FROM chat_messages m JOIN users u ON u.id = m.author_id
		WHERE m.id > $1
		ORDER BY m.id ASC`
	rows, err := r.pool.Query(ctx, query, cursor)
	if err != nil {
		return nil, err
	}
	return scanMessages(rows)
}

func scanMessages(rows pgx.Rows) ([]models.Message, error) {
	defer rows.Close()
	list := []models.Message{}
	for rows.Next() {
		var m models.Message
		if err := rows.Scan(&m.ID, &m.AuthorID, &m.AuthorName, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, m)
	}
	return list, rows.Err()
}
