package models

import (
	"time"

	"github.com/google/uuid"
)

// Message is one entry of the community chat stream. Immutable once stored.
type Message struct {
	ID         int64     `json:"id"`
	AuthorID   uuid.UUID `json:"author_id"`
	AuthorName string    `json:"author"`
	Body       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`
}
