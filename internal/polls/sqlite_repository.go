package polls

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/civic-connect/portal/internal/models"
	"github.com/civic-connect/portal/pkg/database"
)

// SQLiteRepository handles poll persistence in the embedded SQLite database.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a SQLite-backed polls repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// CreatePoll inserts a poll and its options in one transaction.
func (r *SQLiteRepository) CreatePoll(ctx context.Context, p *models.Poll, labels []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO polls (question, created_by, is_active, created_at) VALUES (?, ?, ?, ?)`,
		p.Question, p.CreatedBy.String(), p.Active, now.UnixNano())
	if err != nil {
		return err
	}
	if p.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	p.CreatedAt = now

	p.Options = make([]models.PollOption, 0, len(labels))
	for _, label := range labels {
		res, err := tx.ExecContext(ctx, `INSERT INTO poll_options (poll_id, label) VALUES (?, ?)`, p.ID, label)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		p.Options = append(p.Options, models.PollOption{ID: id, PollID: p.ID, Label: label})
	}
	return tx.Commit()
}

// GetPoll returns a poll by ID.
func (r *SQLiteRepository) GetPoll(ctx context.Context, id int64) (*models.Poll, error) {
	return scanSQLitePoll(r.db.QueryRowContext(ctx,
		`SELECT id, question, created_by, is_active, created_at FROM polls WHERE id = ?`, id))
}

// LatestActive returns the newest active poll; ties on created_at go to the higher id.
func (r *SQLiteRepository) LatestActive(ctx context.Context) (*models.Poll, error) {
	return scanSQLitePoll(r.db.QueryRowContext(ctx,
		`SELECT id, question, created_by, is_active, created_at FROM polls
		WHERE is_active = 1 ORDER BY created_at DESC, id DESC LIMIT 1`))
}

func scanSQLitePoll(row *sql.Row) (*models.Poll, error) {
	var (
		p       models.Poll
		creator string
		created int64
	)
	err := row.Scan(&p.ID, &p.Question, &creator, &p.Active, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if p.CreatedBy, err = uuid.Parse(creator); err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(0, created).UTC()
	return &p, nil
}

// SetActive flips the poll's active flag.
func (r *SQLiteRepository) SetActive(ctx context.Context, id int64, active bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE polls SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Options lists a poll's options in creation order.
func (r *SQLiteRepository) Options(ctx context.Context, pollID int64) ([]models.PollOption, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id, poll_id, label FROM poll_options WHERE poll_id = ? ORDER BY id`, pollID)
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
func (r *SQLiteRepository) GetOption(ctx context.Context, id int64) (*models.PollOption, error) {
	var o models.PollOption
	err := r.db.QueryRowContext(ctx, `SELECT id, poll_id, label FROM poll_options WHERE id = ?`, id).
		Scan(&o.ID, &o.PollID, &o.Label)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// InsertVote records a vote; UNIQUE (poll_id, voter_id) failures become ErrDuplicateVote.
func (r *SQLiteRepository) InsertVote(ctx context.Context, v *models.Vote) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO poll_votes (poll_id, option_id, voter_id, created_at) VALUES (?, ?, ?, ?)`,
		v.PollID, v.OptionID, v.VoterID.String(), now.UnixNano())
	if database.IsUniqueViolation(err, "") {
		return ErrDuplicateVote
	}
	if err != nil {
		return err
	}
	if v.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	v.CreatedAt = now
	return nil
}

// VoteOf returns voterID's vote on pollID.
func (r *SQLiteRepository) VoteOf(ctx context.Context, pollID int64, voterID uuid.UUID) (*models.Vote, error) {
	var (
		v       models.Vote
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, poll_id, option_id, created_at FROM poll_votes WHERE poll_id = ? AND voter_id = ?`,
		pollID, voterID.String()).Scan(&v.ID, &v.PollID, &v.OptionID, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	v.VoterID = voterID
	v.CreatedAt = time.Unix(0, created).UTC()
	return &v, nil
}

// CountVotes counts votes per option in one statement.
func (r *SQLiteRepository) CountVotes(ctx context.Context, pollID int64) ([]OptionCount, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT o.id, o.poll_id, o.label, COUNT(v.id)
		FROM poll_options o
		LEFT JOIN poll_votes v ON v.option_id = o.id AND v.poll_id = o.poll_id
		WHERE o.poll_id = ?
		GROUP BY o.id, o.poll_id, o.label
		ORDER BY o.id`, pollID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []OptionCount{}
	for rows.Next() {
		var c OptionCount
		if err := rows.Scan(&c.Option.ID, &c.Option.PollID, &c.Option.Label, &c.Votes); err != nil {
			return nil, err
		}
		list = append(list, c)
	}
	return list, rows.Err()
}
