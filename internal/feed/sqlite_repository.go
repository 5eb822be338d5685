package feed

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/civic-connect/portal/internal/models"
)

// SQLiteRepository stores chat messages in the embedded SQLite database.
// AUTOINCREMENT keeps ids monotonic even after the newest row is gone.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite-backed feed repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const sqliteSelectMessages = `SELECT m.id, m.author_id, COALESCE(NULLIF(u.display_name, ''), u.username), m.body, m.created_at
	FROM chat_messages m JOIN users u ON u.id = m.author_id`

// Append inserts a message and reads it back with the author's name.
func (r *SQLiteRepository) Append(ctx context.Context, authorID uuid.UUID, body string) (*models.Message, error) {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO chat_messages (author_id, body, created_at) VALUES (?, ?, ?)`,
		authorID.String(), body, time.Now().UTC().UnixNano())
	if err != nil {
		return nil, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, err
	}
	list, err := r.query(ctx, sqliteSelectMessages+` WHERE m.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, sql.ErrNoRows
	}
	return &list[0], nil
}

// Recent returns the newest limit messages, newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, limit int) ([]models.Message, error) {
	return r.query(ctx, sqliteSelectMessages+` ORDER BY m.id DESC LIMIT ?`, limit)
}

// Since returns messages with id > cursor, oldest first.
func (r *SQLiteRepository) Since(ctx context.Context, cursor int64) ([]models.Message, error) {
	return r.query(ctx, sqliteSelectMessages+` WHERE m.id > ? ORDER BY m.id ASC`, cursor)
}

func (r *SQLiteRepository) query(ctx context.Context, query string, args ...interface{}) ([]models.Message, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Message{}
	for rows.Next() {
		var (
			m        models.Message
			authorID string
			created  int64
		)
		if err := rows.Scan(&m.ID, &authorID, &m.AuthorName, &m.Body, &created); err != nil {
			return nil, err
		}
		if m.AuthorID, err = uuid.Parse(authorID); err != nil {
			return nil, err
		}
		m.CreatedAt = time.Unix(0, created).UTC()
		list = append(list, m)
	}
	return list, rows.Err()
}
