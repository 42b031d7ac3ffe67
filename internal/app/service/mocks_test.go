package service

import (
	"context"
	"sync"

	"github.com/sifan077/tinyurl/internal/app/model"
	"github.com/sifan077/tinyurl/internal/app/repository"
)

type mockURLRepository struct {
	insertFn func(ctx context.Context, code, longURL string) (int64, error)
	findFn   func(ctx context.Context, code string) (*model.URLMapping, error)
	deleteFn func(ctx context.Context, code string) error

	mu      sync.Mutex
	inserts []string
}

func (m *mockURLRepository) Insert(ctx context.Context, code, longURL string) (int64, error) {
	m.mu.Lock()
	m.inserts = append(m.inserts, code)
	m.mu.Unlock()
	if m.insertFn != nil {
		return m.insertFn(ctx, code, longURL)
	}
	return 1, nil
}

func (m *mockURLRepository) FindByCode(ctx context.Context, code string) (*model.URLMapping, error) {
	if m.findFn != nil {
		return m.findFn(ctx, code)
	}
	return nil, repository.ErrURLNotFound
}

func (m *mockURLRepository) DeleteByCode(ctx context.Context, code string) error {
	if m.deleteFn != nil {
		return m.deleteFn(ctx, code)
	}
	return nil
}

func (m *mockURLRepository) insertCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.inserts...)
}

type mockClickRepository struct {
	recordFn func(ctx context.Context, ownerID, timestampMillis int64) error
	countFn  func(ctx context.Context, ownerID, thresholdMillis int64) (int64, error)
}

func (m *mockClickRepository) Record(ctx context.Context, ownerID, timestampMillis int64) error {
	if m.recordFn != nil {
		return m.recordFn(ctx, ownerID, timestampMillis)
	}
	return nil
}

func (m *mockClickRepository) CountSince(ctx context.Context, ownerID, thresholdMillis int64) (int64, error) {
	if m.countFn != nil {
		return m.countFn(ctx, ownerID, thresholdMillis)
	}
	return 0, nil
}

// sequenceGenerator hands out codes in order and counts calls.
type sequenceGenerator struct {
	codes []string
	calls int
}

func (g *sequenceGenerator) Generate() string {
	code := g.codes[g.calls%len(g.codes)]
	g.calls++
	return code
}

type recordedClick struct {
	ownerID         int64
	timestampMillis int64
}

type spyRecorder struct {
	mu     sync.Mutex
	clicks []recordedClick
}

func (r *spyRecorder) Record(ownerID, timestampMillis int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clicks = append(r.clicks, recordedClick{ownerID, timestampMillis})
}

func (r *spyRecorder) recorded() []recordedClick {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]recordedClick(nil), r.clicks...)
}
