package polls

import (
	"context"

	"github.com/google/uuid"

	"github.com/civic-connect/portal/internal/models"
)

// OptionCount is one row of a vote count snapshot.
type OptionCount struct {
	Option models.PollOption
	Votes  int
}

// Store persists polls, their options and votes. Lookups that miss return ErrNotFound.
type Store interface {
	// CreatePoll inserts p and one option per label atomically, filling ids and timestamps.
	CreatePoll(ctx context.Context, p *models.Poll, labels []string) error
	GetPoll(ctx context.Context, id int64) (*models.Poll, error)
	// LatestActive returns the most recently created active poll.
	LatestActive(ctx context.Context) (*models.Poll, error)
	SetActive(ctx context.Context, id int64, active bool) error
	// Options lists a poll's options in creation order.
	Options(ctx context.Context, pollID int64) ([]models.PollOption, error)
	GetOption(ctx context.Context, id int64) (*models.PollOption, error)
	// InsertVote creates v. A second vote for the same (poll, voter) is rejected by the
	// storage uniqueness constraint and reported as ErrDuplicateVote.
	InsertVote(ctx context.Context, v *models.Vote) error
	VoteOf(ctx context.Context, pollID int64, voterID uuid.UUID) (*models.Vote, error)
	// CountVotes returns per-option counts for a poll from a single statement, so all
	// counts come from the same snapshot of committed votes.
	CountVotes(ctx context.Context, pollID int64) ([]OptionCount, error)
}
