package feed

import (
	"context"

	"github.com/google/uuid"

	"github.com/civic-connect/portal/internal/models"
)

// Store is the append-only message log. Identifiers come from the backend's own
// sequence, so they are strictly increasing in allocation order and never reused.
// Under concurrent appends on PostgreSQL a lower id can commit after a higher one.
type Store interface {
	// Append stores body for author and returns the message with its id and author name.
	Append(ctx context.Context, authorID uuid.UUID, body string) (*models.Message, error)
	// Recent returns up to limit messages, newest first.
	Recent(ctx context.Context, limit int) ([]models.Message, error)
	// Since returns every message with id > cursor, oldest first.
	Since(ctx context.Context, cursor int64) ([]models.Message, error)
}
