package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sifan077/tinyurl/internal/app/model"
	"github.com/sifan077/tinyurl/internal/app/repository"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultStatsWorkers bounds concurrent count queries across all requests.
const DefaultStatsWorkers = 10

// WindowAggregator counts clicks for every model.Window. The per-window
// queries of one call run in parallel, and a semaphore shared by all calls
// caps how many count queries the process has in flight.
type WindowAggregator struct {
	clicks repository.ClickRepository
	slots  *semaphore.Weighted
}

// NewWindowAggregator creates an aggregator admitting at most workers
// concurrent queries. Build one per process and share it.
func NewWindowAggregator(clicks repository.ClickRepository, workers int) *WindowAggregator {
	if workers <= 0 {
		workers = DefaultStatsWorkers
	}
	return &WindowAggregator{
		clicks: clicks,
		slots:  semaphore.NewWeighted(int64(workers)),
	}
}

// Compute returns one count per window, in model.Windows order. The first
// failing query fails the whole computation.
func (a *WindowAggregator) Compute(ctx context.Context, ownerID, nowMillis int64) ([]model.WindowCount, error) {
	windows := model.Windows()
	counts := make([]model.WindowCount, len(windows))

	g, gctx := errgroup.WithContext(ctx)
	for i, w := range windows {
		g.Go(func() error {
			if err := a.slots.Acquire(gctx, 1); err != nil {
				return err
			}
			defer a.slots.Release(1)

			start := time.Now()
			n, err := a.clicks.CountSince(gctx, ownerID, w.Threshold(nowMillis))
			statsDuration.WithLabelValues(w.String()).Observe(time.Since(start).Seconds())
			if err != nil {
				return fmt.Errorf("count %s clicks: %w", w, err)
			}

			counts[i] = model.WindowCount{Window: w, Count: n}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return counts, nil
}
