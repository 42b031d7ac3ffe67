package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/sifan077/tinyurl/internal/app/model"
	"go.uber.org/zap"
)

// ClickSink persists or forwards a single click. The click repository and the
// NATS publisher both satisfy it.
type ClickSink interface {
	Record(ctx context.Context, ownerID, timestampMillis int64) error
}

// DropPolicy decides which event is lost when the recorder queue is full.
type DropPolicy int

const (
	// DropOldest evicts the oldest queued click to admit the new one.
	DropOldest DropPolicy = iota
	// RejectNew discards the incoming click.
	RejectNew
)

// ParseDropPolicy maps a config value to a DropPolicy.
func ParseDropPolicy(s string) (DropPolicy, error) {
	switch s {
	case "drop_oldest":
		return DropOldest, nil
	case "reject_new":
		return RejectNew, nil
	default:
		return 0, errors.New("unknown drop policy " + s)
	}
}

// RecorderConfig sizes the click recorder.
type RecorderConfig struct {
	QueueSize    int
	Workers      int
	Policy       DropPolicy
	WriteTimeout time.Duration
}

// ClickRecorder records clicks off the request path. Record never blocks: the
// event goes into a bounded queue drained by a fixed set of workers, and any
// failure is logged and counted, never returned.
type ClickRecorder struct {
	sink    ClickSink
	logger  *zap.Logger
	cfg     RecorderConfig
	queue   chan model.ClickEvent
	wg      sync.WaitGroup
	mu      sync.RWMutex
	closed  bool
	started sync.Once
}

// NewClickRecorder builds a recorder; call Start to launch its workers.
func NewClickRecorder(sink ClickSink, cfg RecorderConfig, logger *zap.Logger) *ClickRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}
	return &ClickRecorder{
		sink:   sink,
		logger: logger,
		cfg:    cfg,
		queue:  make(chan model.ClickEvent, cfg.QueueSize),
	}
}

// Start launches the workers. Extra calls are no-ops.
func (r *ClickRecorder) Start() {
	r.started.Do(func() {
		for i := 0; i < r.cfg.Workers; i++ {
			r.wg.Add(1)
			go r.work()
		}
	})
}

// Record enqueues a click for ownerID at timestampMillis.
func (r *ClickRecorder) Record(ownerID, timestampMillis int64) {
	event := model.ClickEvent{OwnerID: ownerID, TimestampMillis: timestampMillis}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		r.drop(event, "recorder closed")
		return
	}

	select {
	case r.queue <- event:
		clickQueueDepth.Inc()
		return
	default:
	}

	if r.cfg.Policy == RejectNew {
		r.drop(event, "queue full")
		return
	}

	// Make room by evicting the oldest event. Workers or other producers may
	// race us, so the second send can still fail.
	select {
	case evicted := <-r.queue:
		clickQueueDepth.Dec()
		r.drop(evicted, "evicted by newer click")
	default:
	}
	select {
	case r.queue <- event:
		clickQueueDepth.Inc()
	default:
		r.drop(event, "queue full")
	}
}

// Close stops accepting clicks, lets the workers drain the queue and waits
// for them until ctx expires.
func (r *ClickRecorder) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	close(r.queue)
	r.mu.Unlock()

	// Workers that were never started cannot drain; do it here.
	r.Start()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *ClickRecorder) work() {
	defer r.wg.Done()
	for event := range r.queue {
		clickQueueDepth.Dec()
		r.write(event)
	}
}

func (r *ClickRecorder) write(event model.ClickEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.WriteTimeout)
	defer cancel()

	if err := r.sink.Record(ctx, event.OwnerID, event.TimestampMillis); err != nil {
		clickEvents.WithLabelValues("failed").Inc()
		r.logger.Warn("failed to record click",
			zap.Int64("owner_id", event.OwnerID),
			zap.Int64("timestamp_millis", event.TimestampMillis),
			zap.Error(err),
		)
		return
	}
	clickEvents.WithLabelValues("recorded").Inc()
}

func (r *ClickRecorder) drop(event model.ClickEvent, reason string) {
	clickEvents.WithLabelValues("dropped").Inc()
	r.logger.Debug("click dropped",
		zap.String("reason", reason),
		zap.Int64("owner_id", event.OwnerID),
	)
}
