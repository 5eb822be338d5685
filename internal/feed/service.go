package feed

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/civic-connect/portal/internal/metrics"
	"github.com/civic-connect/portal/internal/models"
	"github.com/civic-connect/portal/internal/polls"
)

// MaxMessageLength bounds a single chat message, in runes.
const MaxMessageLength = 2000

var (
	ErrEmptyMessage   = errors.New("message text is empty")
	ErrMessageTooLong = errors.New("message text is too long")
	ErrInvalidCursor  = errors.New("cursor must be a non-negative integer")
)

// IsValidation reports whether err rejects the request's input rather than signalling a failure.
func IsValidation(err error) bool {
	return errors.Is(err, ErrEmptyMessage) || errors.Is(err, ErrMessageTooLong) || errors.Is(err, ErrInvalidCursor)
}

// PollReader supplies the active poll and its live tally for a full feed load.
type PollReader interface {
	ActiveResults(ctx context.Context, viewer uuid.UUID) (*polls.Results, error)
}

// Options tunes the feed views.
type Options struct {
	DefaultLimit int
	MaxLimit     int
	TimeFormat   string
	Location     *time.Location
}

// Entry is the client-facing projection of a message.
type Entry struct {
	ID     int64  `json:"id"`
	Author string `json:"author"`
	Text   string `json:"text"`
	Time   string `json:"time"`
}

// Snapshot is a full feed render: recent history oldest first, the active poll and the sync cursor.
type Snapshot struct {
	Messages []Entry        `json:"messages"`
	Poll     *polls.Results `json:"poll"`
	Cursor   int64          `json:"cursor"`
}

// Service serves the community chat stream. It holds no per-client state; every
// incremental fetch is answered purely from the cursor the client supplies.
type Service struct {
	store  Store
	polls  PollReader
	opts   Options
	logger *zap.Logger
}

// NewService creates the feed service.
func NewService(store Store, pollReader PollReader, opts Options, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.DefaultLimit <= 0 {
		opts.DefaultLimit = 50
	}
	if opts.MaxLimit < opts.DefaultLimit {
		opts.MaxLimit = opts.DefaultLimit
	}
	if opts.TimeFormat == "" {
		opts.TimeFormat = "15:04"
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	return &Service{store: store, polls: pollReader, opts: opts, logger: logger}
}

// Append validates text and appends it to the stream as authorID.
func (s *Service) Append(ctx context.Context, authorID uuid.UUID, text string) (*models.Message, error) {
	body := strings.TrimSpace(text)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	if utf8.RuneCountInString(body) > MaxMessageLength {
		return nil, ErrMessageTooLong
	}
	m, err := s.store.Append(ctx, authorID, body)
	if err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}
	metrics.MessagesAppended.Inc()
	return m, nil
}

// FetchRecent returns the newest limit messages in display order (oldest first) and
// the sync cursor, which is the highest id in the stream or 0 when it is empty.
func (s *Service) FetchRecent(ctx context.Context, limit int) ([]models.Message, int64, error) {
	list, err := s.store.Recent(ctx, s.clampLimit(limit))
	if err != nil {
		return nil, 0, fmt.Errorf("fetch recent messages: %w", err)
	}
	var cursor int64
	if len(list) > 0 {
		cursor = list[0].ID
	}
	for i, j := 0, len(list)-1; i < j; i, j = i+1, j-1 {
		list[i], list[j] = list[j], list[i]
	}
	return list, cursor, nil
}

// FetchSince returns every message with id > cursor, oldest first. An empty result is not an error.
func (s *Service) FetchSince(ctx context.Context, cursor int64) ([]models.Message, error) {
	if cursor < 0 {
		return nil, ErrInvalidCursor
	}
	list, err := s.store.Since(ctx, cursor)
	if err != nil {
		return nil, fmt.Errorf("fetch messages since %d: %w", cursor, err)
	}
	return list, nil
}

// LoadFeed builds the initial page for viewer.
func (s *Service) LoadFeed(ctx context.Context, viewer uuid.UUID, limit int) (*Snapshot, error) {
	list, cursor, err := s.FetchRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	snap := &Snapshot{Messages: s.ProjectAll(list), Cursor: cursor}
	if s.polls != nil {
		res, err := s.polls.ActiveResults(ctx, viewer)
		if err != nil {
			return nil, fmt.Errorf("load active poll: %w", err)
		}
		snap.Poll = res
	}
	metrics.FeedFetches.WithLabelValues("full").Inc()
	return snap, nil
}

// PollNew is the incremental fetch clients issue on a timer.
// The same cursor with no intervening appends always yields the same entries.
func (s *Service) PollNew(ctx context.Context, cursor int64) ([]Entry, error) {
	list, err := s.FetchSince(ctx, cursor)
	if err != nil {
		return nil, err
	}
	metrics.FeedFetches.WithLabelValues("incremental").Inc()
	return s.ProjectAll(list), nil
}

// Project converts a message to its client-facing form.
func (s *Service) Project(m models.Message) Entry {
	return Entry{
		ID:     m.ID,
		Author: m.AuthorName,
		Text:   m.Body,
		Time:   m.CreatedAt.In(s.opts.Location).Format(s.opts.TimeFormat),
	}
}

// ProjectAll projects list preserving order.
func (s *Service) ProjectAll(list []models.Message) []Entry {
	out := make([]Entry, 0, len(list))
	for _, m := range list {
		out = append(out, s.Project(m))
	}
	return out
}

func (s *Service) clampLimit(limit int) int {
	if limit <= 0 {
		return s.opts.DefaultLimit
	}
	if limit > s.opts.MaxLimit {
		return s.opts.MaxLimit
	}
	return limit
}

// ParseCursor parses a client-supplied cursor. Empty means the beginning of the stream.
func ParseCursor(raw string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || n < 0 {
		return 0, ErrInvalidCursor
	}
	return n, nil
}
