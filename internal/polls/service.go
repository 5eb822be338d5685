package polls

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civic-connect/portal/internal/metrics"
	"github.com/civic-connect/portal/internal/models"
)

const (
	MinOptions = 2
	MaxOptions = 10
)

var (
	ErrNotFound      = errors.New("poll or option not found")
	ErrInvalidOption = errors.New("option does not belong to poll")
	ErrPollClosed    = errors.New("poll is not open for votes")
	ErrInvalidPoll   = errors.New("invalid poll")
	// ErrDuplicateVote is the storage signal for a second vote on the same (poll, voter).
	// The service turns it into OutcomeAlreadyVoted; callers never see it.
	ErrDuplicateVote = errors.New("voter already voted on poll")
)

// Outcome is the result of a vote submission that did not fail.
type Outcome string

const (
	OutcomeAccepted     Outcome = "accepted"
	OutcomeAlreadyVoted Outcome = "already_voted"
)

// Results is a poll with its live tally. MyVote is the viewer's option, when known.
type Results struct {
	Poll       *models.Poll         `json:"poll"`
	Tally      []models.OptionTally `json:"tally"`
	TotalVotes int                  `json:"total_votes"`
	MyVote     *int64               `json:"my_vote,omitempty"`
}

// Service owns poll selection, tallying and vote casting.
type Service struct {
	store  Store
	logger *zap.Logger
}

// NewService creates the polls service.
func NewService(store Store, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, logger: logger}
}

// Create validates and stores a poll with its fixed options. New polls are active.
func (s *Service) Create(ctx context.Context, creator uuid.UUID, question string, labels []string) (*models.Poll, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, fmt.Errorf("%w: question is required", ErrInvalidPoll)
	}
	clean := make([]string, 0, len(labels))
	seen := make(map[string]struct{}, len(labels))
	for _, l := range labels {
		l = strings.TrimSpace(l)
		if l == "" {
			return nil, fmt.Errorf("%w: option labels must not be empty", ErrInvalidPoll)
		}
		key := strings.ToLower(l)
		if _, dup := seen[key]; dup {
			return nil, fmt.Errorf("%w: duplicate option %q", ErrInvalidPoll, l)
		}
		seen[key] = struct{}{}
		clean = append(clean, l)
	}
	if len(clean) < MinOptions || len(clean) > MaxOptions {
		return nil, fmt.Errorf("%w: need between %d and %d options", ErrInvalidPoll, MinOptions, MaxOptions)
	}

	p := &models.Poll{Question: question, CreatedBy: creator, Active: true}
	if err := s.store.CreatePoll(ctx, p, clean); err != nil {
		return nil, fmt.Errorf("create poll: %w", err)
	}
	s.logger.Info("poll created", zap.Int64("poll_id", p.ID), zap.Int("options", len(p.Options)))
	return p, nil
}

// SetActive opens or closes a poll for voting and display.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (*models.Poll, error) {
	if err := s.store.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("set poll active: %w", err)
	}
	s.logger.Info("poll activation changed", zap.Int64("poll_id", id), zap.Bool("active", active))
	return s.store.GetPoll(ctx, id)
}

// ActivePoll returns the most recently created active poll, or nil when none is active.
func (s *Service) ActivePoll(ctx context.Context) (*models.Poll, error) {
	p, err := s.store.LatestActive(ctx)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("active poll: %w", err)
	}
	return p, nil
}

// Tally recomputes the per-option counts and shares for p from the committed votes.
func (s *Service) Tally(ctx context.Context, p *models.Poll) ([]models.OptionTally, int, error) {
	counts, err := s.store.CountVotes(ctx, p.ID)
	if err != nil {
		return nil, 0, fmt.Errorf("count votes: %w", err)
	}
	tally, total := ComputeTally(counts)
	return tally, total, nil
}

// Results returns poll id with options and tally. viewer may be uuid.Nil.
func (s *Service) Results(ctx context.Context, id int64, viewer uuid.UUID) (*Results, error) {
	p, err := s.store.GetPoll(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get poll: %w", err)
	}
	return s.results(ctx, p, viewer)
}

// ActiveResults returns the active poll's results, or nil when no poll is active.
func (s *Service) ActiveResults(ctx context.Context, viewer uuid.UUID) (*Results, error) {
	p, err := s.ActivePoll(ctx)
	if err != nil || p == nil {
		return nil, err
	}
	return s.results(ctx, p, viewer)
}

func (s *Service) results(ctx context.Context, p *models.Poll, viewer uuid.UUID) (*Results, error) {
	opts, err := s.store.Options(ctx, p.ID)
	if err != nil {
		return nil, fmt.Errorf("list options: %w", err)
	}
	p.Options = opts
	tally, total, err := s.Tally(ctx, p)
	if err != nil {
		return nil, err
	}
	res := &Results{Poll: p, Tally: tally, TotalVotes: total}
	if viewer != uuid.Nil {
		v, err := s.store.VoteOf(ctx, p.ID, viewer)
		switch {
		case err == nil:
			res.MyVote = &v.OptionID
		case !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("lookup vote: %w", err)
		}
	}
	return res, nil
}

// CastVote records voter's choice of optionID on pollID. The one-vote-per-voter rule is
// enforced by the store's uniqueness constraint at insert time, so concurrent submissions
// from the same voter yield exactly one OutcomeAccepted.
func (s *Service) CastVote(ctx context.Context, pollID, optionID int64, voter uuid.UUID) (Outcome, error) {
	p, err := s.store.GetPoll(ctx, pollID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get poll: %w", err)
	}
	opt, err := s.store.GetOption(ctx, optionID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("get option: %w", err)
	}
	if opt.PollID != p.ID {
		return "", ErrInvalidOption
	}
	if !p.Active {
		return "", ErrPollClosed
	}

	v := &models.Vote{PollID: p.ID, OptionID: opt.ID, VoterID: voter}
	if err := s.store.InsertVote(ctx, v); err != nil {
		if errors.Is(err, ErrDuplicateVote) {
			s.logger.Debug("duplicate vote rejected", zap.Int64("poll_id", p.ID), zap.String("voter_id", voter.String()))
			metrics.Votes.WithLabelValues(string(OutcomeAlreadyVoted)).Inc()
			return OutcomeAlreadyVoted, nil
		}
		return "", fmt.Errorf("insert vote: %w", err)
	}
	metrics.Votes.WithLabelValues(string(OutcomeAccepted)).Inc()
	return OutcomeAccepted, nil
}
