package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/sifan077/tinyurl/internal/app/model"
	"github.com/sifan077/tinyurl/internal/app/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStoreDown = errors.New("connection refused")

func newTestService(urls repository.URLRepository, gen CodeGenerator, rec Recorder, agg Aggregator) URLService {
	return NewURLService(Dependencies{
		URLs:       urls,
		Generator:  gen,
		Recorder:   rec,
		Aggregator: agg,
		Now:        func() time.Time { return time.UnixMilli(1_700_000_000_000) },
	})
}

func TestURLService_Assign_RetriesCollisions(t *testing.T) {
	for k := 0; k < DefaultMaxAttempts; k++ {
		t.Run(fmt.Sprintf("%d collisions", k), func(t *testing.T) {
			codes := make([]string, k+1)
			for i := range codes {
				codes[i] = fmt.Sprintf("code%04d", i)
			}
			gen := &sequenceGenerator{codes: codes}
			repo := &mockURLRepository{
				insertFn: func(ctx context.Context, code, longURL string) (int64, error) {
					if code != codes[k] {
						return 0, repository.ErrDuplicateCode
					}
					return 7, nil
				},
			}

			code, err := newTestService(repo, gen, nil, nil).Assign(context.Background(), "https://example.com")
			require.NoError(t, err)
			assert.Equal(t, codes[k], code)
			assert.Equal(t, k+1, gen.calls)
			assert.Equal(t, codes, repo.insertCalls())
		})
	}
}

func TestURLService_Assign_ConflictAfterMaxAttempts(t *testing.T) {
	gen := &sequenceGenerator{codes: []string{"aaaaaaaa", "bbbbbbbb"}}
	repo := &mockURLRepository{
		insertFn: func(ctx context.Context, code, longURL string) (int64, error) {
			return 0, repository.ErrDuplicateCode
		},
	}

	_, err := newTestService(repo, gen, nil, nil).Assign(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, repo.insertCalls(), DefaultMaxAttempts)
	assert.Equal(t, DefaultMaxAttempts, gen.calls)
}

func TestURLService_Assign_CustomMaxAttempts(t *testing.T) {
	repo := &mockURLRepository{
		insertFn: func(ctx context.Context, code, longURL string) (int64, error) {
			return 0, repository.ErrDuplicateCode
		},
	}
	svc := NewURLService(Dependencies{URLs: repo, MaxAttempts: 2})

	_, err := svc.Assign(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, ErrConflict)
	assert.Len(t, repo.insertCalls(), 2)
}

func TestURLService_Assign_StoreErrorNotRetried(t *testing.T) {
	gen := &sequenceGenerator{codes: []string{"aaaaaaaa"}}
	repo := &mockURLRepository{
		insertFn: func(ctx context.Context, code, longURL string) (int64, error) {
			return 0, errStoreDown
		},
	}

	_, err := newTestService(repo, gen, nil, nil).Assign(context.Background(), "https://example.com")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, errStoreDown)
	assert.Len(t, repo.insertCalls(), 1)
}

func TestURLService_Assign_Validation(t *testing.T) {
	repo := &mockURLRepository{}
	svc := newTestService(repo, MustDefaultGenerator(), nil, nil)

	for _, input := range []string{"", "   ", "https://example.com/" + strings.Repeat("a", maxLongURLLength)} {
		_, err := svc.Assign(context.Background(), input)
		assert.ErrorIs(t, err, ErrValidation)
	}
	assert.Empty(t, repo.insertCalls())
}

func TestURLService_Assign_GeneratedCode(t *testing.T) {
	repo := &mockURLRepository{}
	code, err := newTestService(repo, MustDefaultGenerator(), nil, nil).Assign(context.Background(), "https://example.com")
	require.NoError(t, err)
	assert.Len(t, code, DefaultCodeLength)
	assert.Equal(t, []string{code}, repo.insertCalls())
}

func TestURLService_Resolve(t *testing.T) {
	repo := &mockURLRepository{
		findFn: func(ctx context.Context, code string) (*model.URLMapping, error) {
			return &model.URLMapping{ID: 42, ShortCode: code, LongURL: "https://example.com/long"}, nil
		},
	}
	rec := &spyRecorder{}

	longURL, err := newTestService(repo, nil, rec, nil).Resolve(context.Background(), "abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/long", longURL)
	assert.Equal(t, []recordedClick{{ownerID: 42, timestampMillis: 1_700_000_000_000}}, rec.recorded())
}

func TestURLService_Resolve_RecordingFailureIgnored(t *testing.T) {
	repo := &mockURLRepository{
		findFn: func(ctx context.Context, code string) (*model.URLMapping, error) {
			return &model.URLMapping{ID: 1, ShortCode: code, LongURL: "https://example.com"}, nil
		},
	}
	failures := make(chan struct{}, 1)
	sink := &mockClickRepository{
		recordFn: func(ctx context.Context, ownerID, timestampMillis int64) error {
			failures <- struct{}{}
			return errStoreDown
		},
	}
	rec := NewClickRecorder(sink, RecorderConfig{QueueSize: 4, Workers: 1}, nil)
	rec.Start()
	t.Cleanup(func() { _ = rec.Close(context.Background()) })

	longURL, err := newTestService(repo, nil, rec, nil).Resolve(context.Background(), "abcdefgh")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com", longURL)

	select {
	case <-failures:
	case <-time.After(time.Second):
		t.Fatal("expected the click to reach the failing sink")
	}
}

func TestURLService_Resolve_NotFoundRecordsNothing(t *testing.T) {
	rec := &spyRecorder{}
	_, err := newTestService(&mockURLRepository{}, nil, rec, nil).Resolve(context.Background(), "missing1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Empty(t, rec.recorded())
}

func TestURLService_Resolve_StoreError(t *testing.T) {
	repo := &mockURLRepository{
		findFn: func(ctx context.Context, code string) (*model.URLMapping, error) {
			return nil, errStoreDown
		},
	}
	rec := &spyRecorder{}
	_, err := newTestService(repo, nil, rec, nil).Resolve(context.Background(), "abcdefgh")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.Empty(t, rec.recorded())
}

func TestURLService_Remove(t *testing.T) {
	var deleted []string
	repo := &mockURLRepository{
		deleteFn: func(ctx context.Context, code string) error {
			deleted = append(deleted, code)
			return nil
		},
	}
	svc := newTestService(repo, nil, nil, nil)

	require.NoError(t, svc.Remove(context.Background(), "abcdefgh"))
	require.NoError(t, svc.Remove(context.Background(), "abcdefgh"))
	assert.Equal(t, []string{"abcdefgh", "abcdefgh"}, deleted)

	repo.deleteFn = func(ctx context.Context, code string) error { return errStoreDown }
	assert.ErrorIs(t, svc.Remove(context.Background(), "abcdefgh"), ErrStoreUnavailable)
}

func TestURLService_Stats(t *testing.T) {
	repo := &mockURLRepository{
		findFn: func(ctx context.Context, code string) (*model.URLMapping, error) {
			return &model.URLMapping{ID: 42, ShortCode: code, LongURL: "https://example.com"}, nil
		},
	}
	clicks := &mockClickRepository{
		countFn: func(ctx context.Context, ownerID, thresholdMillis int64) (int64, error) {
			return thresholdMillis, nil
		},
	}
	now := time.UnixMilli(1_700_000_000_000)

	stats, err := newTestService(repo, nil, nil, NewWindowAggregator(clicks, 2)).Stats(context.Background(), "abcdefgh", now)
	require.NoError(t, err)
	assert.Equal(t, []model.WindowCount{
		{Window: model.Day, Count: 1_699_913_600_000},
		{Window: model.Week, Count: 1_699_395_200_000},
		{Window: model.All, Count: 0},
	}, stats)
}

func TestURLService_Stats_Errors(t *testing.T) {
	agg := NewWindowAggregator(&mockClickRepository{
		countFn: func(ctx context.Context, ownerID, thresholdMillis int64) (int64, error) {
			return 0, errStoreDown
		},
	}, 2)
	now := time.Now()

	_, err := newTestService(&mockURLRepository{}, nil, nil, agg).Stats(context.Background(), "missing1", now)
	assert.ErrorIs(t, err, ErrNotFound)

	found := &mockURLRepository{
		findFn: func(ctx context.Context, code string) (*model.URLMapping, error) {
			return &model.URLMapping{ID: 1, ShortCode: code}, nil
		},
	}
	_, err = newTestService(found, nil, nil, agg).Stats(context.Background(), "abcdefgh", now)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, err, errStoreDown)
}
