package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sifan077/tinyurl/internal/app/model"
	"gorm.io/gorm"
)

var (
	// ErrURLNotFound signals that no mapping exists for the requested code.
	ErrURLNotFound = errors.New("url not found")
	// ErrDuplicateCode signals that the short code is already taken.
	ErrDuplicateCode = errors.New("short code already exists")
)

// uniqueViolation is the Postgres SQLSTATE for unique_violation.
const uniqueViolation = "23505"

// URLRepository defines the data access contract for short code mappings.
// Insert must rely on the store's unique constraint and report collisions
// as ErrDuplicateCode. DeleteByCode succeeds for unknown codes.
type URLRepository interface {
	Insert(ctx context.Context, code, longURL string) (int64, error)
	FindByCode(ctx context.Context, code string) (*model.URLMapping, error)
	DeleteByCode(ctx context.Context, code string) error
}

type urlRepository struct {
	db *gorm.DB
}

// NewURLRepository returns a GORM-backed URLRepository.
func NewURLRepository(db *gorm.DB) URLRepository {
	return &urlRepository{db: db}
}

func (r *urlRepository) Insert(ctx context.Context, code, longURL string) (int64, error) {
	mapping := &model.URLMapping{ShortCode: code, LongURL: longURL}
	if err := r.db.WithContext(ctx).Create(mapping).Error; err != nil {
		if isUniqueViolation(err) {
			return 0, ErrDuplicateCode
		}
		return 0, err
	}
	return mapping.ID, nil
}

func (r *urlRepository) FindByCode(ctx context.Context, code string) (*model.URLMapping, error) {
	var mapping model.URLMapping
	if err := r.db.WithContext(ctx).Where("short_code = ?", code).First(&mapping).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrURLNotFound
		}
		return nil, err
	}
	return &mapping, nil
}

func (r *urlRepository) DeleteByCode(ctx context.Context, code string) error {
	return r.db.WithContext(ctx).Where("short_code = ?", code).Delete(&model.URLMapping{}).Error
}

func isUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
