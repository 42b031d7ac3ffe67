package repository

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// ClickRepository defines the data access contract for click events.
type ClickRepository interface {
	Record(ctx context.Context, ownerID, timestampMillis int64) error
	// CountSince counts the owner's clicks strictly newer than thresholdMillis.
	CountSince(ctx context.Context, ownerID, thresholdMillis int64) (int64, error)
}

// PgxQuerier is the subset of *pgxpool.Pool used by the click repository.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type clickRepository struct {
	db PgxQuerier
}

// NewClickRepository returns a pgx-backed ClickRepository.
func NewClickRepository(db PgxQuerier) ClickRepository {
	return &clickRepository{db: db}
}

const (
	insertClickSQL = `INSERT INTO click_events (url_id, timestamp_millis) VALUES ($1, $2)`
	countClicksSQL = `SELECT count(*) FROM click_events WHERE url_id = $1 AND timestamp_millis > $2`
)

func (r *clickRepository) Record(ctx context.Context, ownerID, timestampMillis int64) error {
	_, err := r.db.Exec(ctx, insertClickSQL, ownerID, timestampMillis)
	return err
}

func (r *clickRepository) CountSince(ctx context.Context, ownerID, thresholdMillis int64) (int64, error) {
	var count int64
	if err := r.db.QueryRow(ctx, countClicksSQL, ownerID, thresholdMillis).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}
