package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sifan077/tinyurl/internal/app/model"
)

// SQLiteStore implements URLRepository and ClickRepository on a single
// SQLite database. The schema is created by the sqlite infra package.
type SQLiteStore struct {
	db *sql.DB
}

var (
	_ URLRepository   = (*SQLiteStore)(nil)
	_ ClickRepository = (*SQLiteStore)(nil)
)

// NewSQLiteStore wraps an opened SQLite handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) Insert(ctx context.Context, code, longURL string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO urls (short_code, long_url, created_at) VALUES (?, ?, ?)`,
		code, longURL, time.Now().UTC(),
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return 0, ErrDuplicateCode
		}
		return 0, err
	}
	return res.LastInsertId()
}

func (s *SQLiteStore) FindByCode(ctx context.Context, code string) (*model.URLMapping, error) {
	var m model.URLMapping
	err := s.db.QueryRowContext(ctx,
		`SELECT id, short_code, long_url, created_at FROM urls WHERE short_code = ?`,
		code,
	).Scan(&m.ID, &m.ShortCode, &m.LongURL, &m.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrURLNotFound
		}
		return nil, err
	}
	return &m, nil
}

func (s *SQLiteStore) DeleteByCode(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM urls WHERE short_code = ?`, code)
	return err
}

func (s *SQLiteStore) Record(ctx context.Context, ownerID, timestampMillis int64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO click_events (url_id, timestamp_millis) VALUES (?, ?)`,
		ownerID, timestampMillis,
	)
	return err
}

func (s *SQLiteStore) CountSince(ctx context.Context, ownerID, thresholdMillis int64) (int64, error) {
	var count int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM click_events WHERE url_id = ? AND timestamp_millis > ?`,
		ownerID, thresholdMillis,
	).Scan(&count)
	return count, err
}
