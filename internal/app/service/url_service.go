package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sifan077/tinyurl/internal/app/model"
	"github.com/sifan077/tinyurl/internal/app/repository"
	"go.uber.org/zap"
)

var (
	// ErrValidation marks input rejected before touching the store.
	ErrValidation = errors.New("invalid input")
	// ErrConflict means every generated code collided with an existing one.
	ErrConflict = errors.New("could not allocate a unique short code")
	// ErrNotFound means the code has no mapping.
	ErrNotFound = errors.New("short code not found")
	// ErrStoreUnavailable wraps any store failure other than a code collision.
	ErrStoreUnavailable = errors.New("store unavailable")
)

const (
	// DefaultMaxAttempts bounds the generate-and-insert loop of Assign.
	DefaultMaxAttempts = 5
	maxLongURLLength   = 2048
)

// URLService defines the operations exposed to the HTTP layer.
type URLService interface {
	Assign(ctx context.Context, longURL string) (string, error)
	Resolve(ctx context.Context, code string) (string, error)
	Remove(ctx context.Context, code string) error
	Stats(ctx context.Context, code string, now time.Time) ([]model.WindowCount, error)
}

// Recorder accepts clicks without blocking; *ClickRecorder implements it.
type Recorder interface {
	Record(ownerID, timestampMillis int64)
}

// Aggregator computes windowed click counts; *WindowAggregator implements it.
type Aggregator interface {
	Compute(ctx context.Context, ownerID, nowMillis int64) ([]model.WindowCount, error)
}

// Dependencies bundles the collaborators of the URL service.
type Dependencies struct {
	Logger      *zap.Logger
	URLs        repository.URLRepository
	Generator   CodeGenerator
	Recorder    Recorder
	Aggregator  Aggregator
	MaxAttempts int
	Now         func() time.Time
}

type urlService struct {
	logger      *zap.Logger
	urls        repository.URLRepository
	gen         CodeGenerator
	recorder    Recorder
	aggregator  Aggregator
	maxAttempts int
	now         func() time.Time
}

// NewURLService returns the service backed by the given dependencies.
func NewURLService(deps Dependencies) URLService {
	s := &urlService{
		logger:      deps.Logger,
		urls:        deps.URLs,
		gen:         deps.Generator,
		recorder:    deps.Recorder,
		aggregator:  deps.Aggregator,
		maxAttempts: deps.MaxAttempts,
		now:         deps.Now,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.gen == nil {
		s.gen = MustDefaultGenerator()
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = DefaultMaxAttempts
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

// Assign stores longURL under a freshly generated code. Collisions are
// detected by the store's unique constraint and retried with a new code;
// any other store error aborts at once.
func (s *urlService) Assign(ctx context.Context, longURL string) (string, error) {
	if err := validateLongURL(longURL); err != nil {
		return "", err
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		code := s.gen.Generate()
		assignAttempts.Inc()

		_, err := s.urls.Insert(ctx, code, longURL)
		if err == nil {
			assignOutcomes.WithLabelValues("created").Inc()
			return code, nil
		}
		if !errors.Is(err, repository.ErrDuplicateCode) {
			assignOutcomes.WithLabelValues("store_error").Inc()
			return "", fmt.Errorf("%w: insert: %w", ErrStoreUnavailable, err)
		}

		assignCollisions.Inc()
		s.logger.Debug("short code collision", zap.String("code", code), zap.Int("attempt", attempt))
	}

	assignOutcomes.WithLabelValues("conflict").Inc()
	s.logger.Warn("short code attempts exhausted", zap.Int("attempts", s.maxAttempts))
	return "", ErrConflict
}

// Resolve returns the long URL for code and queues a click for it.
func (s *urlService) Resolve(ctx context.Context, code string) (string, error) {
	mapping, err := s.find(ctx, code)
	if err != nil {
		return "", err
	}

	if s.recorder != nil {
		s.recorder.Record(mapping.ID, s.now().UnixMilli())
	}
	return mapping.LongURL, nil
}

func (s *urlService) Remove(ctx context.Context, code string) error {
	if err := s.urls.DeleteByCode(ctx, code); err != nil {
		return fmt.Errorf("%w: delete: %w", ErrStoreUnavailable, err)
	}
	return nil
}

// Stats reports click counts per window as of now.
func (s *urlService) Stats(ctx context.Context, code string, now time.Time) ([]model.WindowCount, error) {
	mapping, err := s.find(ctx, code)
	if err != nil {
		return nil, err
	}

	counts, err := s.aggregator.Compute(ctx, mapping.ID, now.UnixMilli())
	if err != nil {
		return nil, fmt.Errorf("%w: stats: %w", ErrStoreUnavailable, err)
	}
	return counts, nil
}

func (s *urlService) find(ctx context.Context, code string) (*model.URLMapping, error) {
	mapping, err := s.urls.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, repository.ErrURLNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("%w: find: %w", ErrStoreUnavailable, err)
	}
	return mapping, nil
}

func validateLongURL(longURL string) error {
	if strings.TrimSpace(longURL) == "" {
		return fmt.Errorf("%w: long url is required", ErrValidation)
	}
	if len(longURL) > maxLongURLLength {
		return fmt.Errorf("%w: long url exceeds %d bytes", ErrValidation, maxLongURLLength)
	}
	return nil
}
