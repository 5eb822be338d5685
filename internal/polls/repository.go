package polls

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/civic-connect/portal/internal/models"
	"github.com/civic-connect/portal/pkg/database"
)

// voteUniqueConstraint is the (poll_id, voter_id) key on poll_votes.
const voteUniqueConstraint = "poll_votes_poll_voter_key"

// Repository handles poll persistence in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a polls repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// CreatePoll inserts a poll and its options in one transaction.
func (r *Repository) CreatePoll(ctx context.Context, p *models.Poll, labels []string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	const pollQuery = `INSERT INTO polls (question, created_by, is_active)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	if err := tx.QueryRow(ctx, pollQuery, p.Question, p.CreatedBy, p.Active).Scan(&p.ID, &p.CreatedAt); err != nil {
		return err
	}

	const optionQuery = `INSERT INTO poll_options (poll_id, label) VALUES ($1, $2) RETURNING id`
	p.Options = make([]models.PollOption, 0, len(labels))
	for _, label := range labels {
		o := models.PollOption{PollID: p.ID, Label: label}
		if err := tx.QueryRow(ctx, optionQuery, p.ID, label).Scan(&o.ID); err != nil {
			return err
		}
		p.Options = append(p.Options, o)
	}
	return tx.Commit(ctx)
}

// GetPoll returns a poll by ID.
func (r *Repository) GetPoll(ctx context.Context, id int64) (*models.Poll, error) {
	const query = `SELECT id, question, created_by, is_active, created_at FROM polls WHERE id = $1`
	return r.scanPoll(r.pool.QueryRow(ctx, query, id))
}

// LatestActive returns the newest active poll; ties on created_at go to the higher id.
func (r *Repository) LatestActive(ctx context.Context) (*models.Poll, error) {
	const query = `SELECT id, question, created_by, is_active, created_at FROM polls
		WHERE is_active = TRUE
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	return r.scanPoll(r.pool.QueryRow(ctx, query))
}

func (r *Repository) scanPoll(row pgx.Row) (*models.Poll, error) {
	var p models.Poll
	err := row.Scan(&p.ID, &p.Question, &p.CreatedBy, &p.Active, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SetActive flips the poll's active flag.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) error {
	const query = `UPDATE polls SET is_active = $2 WHERE id = $1`
	tag, err := r.pool.Exec(ctx, query, id, active)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Options lists a poll's options in creation order.
func (r *Repository) Options(ctx context.Context, pollID int64) ([]models.PollOption, error) {
	const query = `SELECT id, poll_id, label FROM poll_options WHERE poll_id = $1 ORDER BY id`
	rows, err := r.pool.Query(ctx, query, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.PollOption{}
	for rows.Next() {
		var o models.PollOption
		if err := rows.Scan(&o.ID, &o.PollID, &o.Label); err != nil {
			return nil, err
		}
		list = append(list, o)
	}
	return list, rows.Err()
}

// GetOption returns an option by ID.
func (r *Repository) GetOption(ctx context.Context, id int64) (*models.PollOption, error) {
	const query = `SELECT id, poll_id, label FROM poll_options WHERE id = $1`
	var o models.PollOption
	err := r.pool.QueryRow(ctx, query, id).Scan(&o.ID, &o.PollID, &o.Label)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// InsertVote records a vote. The UNIQUE (poll_id, voter_id) constraint is checked at
// commit of this single statement; losing a race surfaces as ErrDuplicateVote.
func (r *Repository) InsertVote(ctx context.Context, v *models.Vote) error {
	const query = `INSERT INTO poll_votes (poll_id, option_id, voter_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	err := r.pool.QueryRow(ctx, query, v.PollID, v.OptionID, v.VoterID).Scan(&v.ID, &v.CreatedAt)
	if database.IsUniqueViolation(err, voteUniqueConstraint) {
		return ErrDuplicateVote
	}
	return err
}

// VoteOf returns voterID's vote on pollID.
func (r *Repository) VoteOf(ctx context.Context, pollID int64, voterID uuid.UUID) (*models.Vote, error) {
	const query = `SELECT id, poll_id, option_id, voter_id, created_at FROM poll_votes
		WHERE poll_id = $1 AND voter_id = $2`
	var v models.Vote
	err := r.pool.QueryRow(ctx, query, pollID, voterID).Scan(&v.ID, &v.PollID, &v.OptionID, &v.VoterID, &v.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// CountVotes counts votes per option in one statement.
func (r *Repository) CountVotes(ctx context.Context, pollID int64) ([]OptionCount, error) {
	const query = `SELECT o.id, o.poll_id, o.label, COUNT(v.id)
		FROM poll_options o
		LEFT JOIN poll_votes v ON v.option_id = o.id AND v.poll_id = o.poll_id
		WHERE o.poll_id = $1
		GROUP BY o.id, o.poll_id, o.label
		ORDER BY o.id`
	rows, err := r.pool.Query(ctx, query, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []OptionCount{}
	for rows.Next() {
		var c OptionCount
		var n int64
		if err := rows.Scan(&c.Option.ID, &c.Option.PollID, &c.Option.Label, &n); err != nil {
			return nil, err
		}
		c.Votes = int(n)
		list = append(list, c)
	}
	return list, rows.Err()
}
