package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when a requested score does not exist.
var ErrNotFound = errors.New("score not found")

// Store provides database operations for the service.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore creates a new Store with the given database connection pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Score represents one scored Solana transaction in our system.
type Score struct {
	Signature        string
	Slot             int64
	BlockTime        *time.Time // nil when the block carried no timestamp
	Priority         int64
	ComputeUnitLimit int64
	Fee              int64
	Unresolved       bool
	CreatedAt        time.Time
}

// CreateScoreParams contains the parameters for recording a score.
type CreateScoreParams struct {
	Signature        string
	Slot             int64
	BlockTime        *time.Time
	Priority         int64
	ComputeUnitLimit int64
	Fee              int64
	Unresolved       bool
}

// ListTopScoresParams contains pagination parameters for the ranking query.
type ListTopScoresParams struct {
	Limit  int32
	Offset int32
}

const scoreColumns = `signature, slot, block_time, priority, compute_unit_limit, fee, unresolved, created_at`

// CreateScore inserts a new score. Signatures are unique; re-inserting an
// already-scored transaction returns a duplicate key error that callers can
// detect with IsDuplicateKeyError.
func (s *Store) CreateScore(ctx context.Context, params CreateScoreParams) (*Score, error) {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO scores (signature, slot, block_time, priority, compute_unit_limit, fee, unresolved)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+scoreColumns,
		params.Signature,
		params.Slot,
		pgTimestamptzFromTimePtr(params.BlockTime),
		params.Priority,
		params.ComputeUnitLimit,
		params.Fee,
		params.Unresolved,
	)
	return scanScore(row)
}

// GetScore retrieves a score by its transaction signature.
func (s *Store) GetScore(ctx context.Context, signature string) (*Score, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+scoreColumns+`
		FROM scores
		WHERE signature = $1`,
		signature,
	)
	score, err := scanScore(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return score, err
}

// ListTopScores retrieves scores in descending priority order with pagination.
func (s *Store) ListTopScores(ctx context.Context, params ListTopScoresParams) ([]*Score, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+scoreColumns+`
		FROM scores
		ORDER BY priority DESC, signature
		LIMIT $1 OFFSET $2`,
		params.Limit,
		params.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScores(rows)
}

// ListScoresBySlot retrieves all scores recorded for a slot.
func (s *Store) ListScoresBySlot(ctx context.Context, slot int64) ([]*Score, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+scoreColumns+`
		FROM scores
		WHERE slot = $1
		ORDER BY priority DESC, signature`,
		slot,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanScores(rows)
}

// CountScores counts all recorded scores.
func (s *Store) CountScores(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `SELECT count(*) FROM scores`).Scan(&count)
	return count, err
}

// DeleteScoresOlderThan deletes scores recorded before the given time.
// Returns the number of rows removed.
func (s *Store) DeleteScoresOlderThan(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM scores
		WHERE created_at < $1`,
		pgtype.Timestamptz{Time: before, Valid: true},
	)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// IsDuplicateKeyError reports whether err is a Postgres unique violation.
func IsDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func scanScore(row pgx.Row) (*Score, error) {
	var (
		score     Score
		blockTime pgtype.Timestamptz
		createdAt pgtype.Timestamptz
	)
	err := row.Scan(
		&score.Signature,
		&score.Slot,
		&blockTime,
		&score.Priority,
		&score.ComputeUnitLimit,
		&score.Fee,
		&score.Unresolved,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}
	score.BlockTime = timePtrFromPgTimestamptz(blockTime)
	score.CreatedAt = createdAt.Time
	return &score, nil
}

func scanScores(rows pgx.Rows) ([]*Score, error) {
	var scores []*Score
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, err
		}
		scores = append(scores, score)
	}
	return scores, rows.Err()
}

func pgTimestamptzFromTimePtr(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}

func timePtrFromPgTimestamptz(t pgtype.Timestamptz) *time.Time {
	if !t.Valid {
		return nil
	}
	return &t.Time
}
