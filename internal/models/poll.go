package models

import (
	"time"

	"github.com/google/uuid"
)

// Poll is a single-choice community poll.
type Poll struct {
	ID        int64        `json:"id"`
	Question  string       `json:"question"`
	CreatedBy uuid.UUID    `json:"created_by"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"created_at"`
	Options   []PollOption `json:"options,omitempty"`
}

// PollOption is one fixed choice of a poll.
type PollOption struct {
	ID     int64  `json:"id"`
	PollID int64  `json:"poll_id"`
	Label  string `json:"label"`
}

// Vote is a voter's single choice on a poll. At most one per (poll, voter).
type Vote struct {
	ID        int64     `json:"id"`
	PollID    int64     `json:"poll_id"`
	OptionID  int64     `json:"option_id"`
	VoterID   uuid.UUID `json:"voter_id"`
	CreatedAt time.Time `json:"created_at"`
}

// OptionTally is the derived count and share of votes for one option.
type OptionTally struct {
	OptionID   int64   `json:"option_id"`
	Label      string  `json:"label"`
	Votes      int     `json:"votes"`
	Percentage float64 `json:"percentage"`
}
