package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/sifan077/tinyurl/internal/app/model"
	"github.com/sifan077/tinyurl/internal/app/repository"
	"go.uber.org/zap"
)

const (
	consumerBatchSize = 10
	consumerMaxWait   = 5 * time.Second

	consumerErrorBackoff = time.Second

	// Clicks for a deleted URL fail their insert forever; stop redelivering them.
	consumerMaxDeliver = 5
)

// ClickConsumer drains the click stream into the click repository.
type ClickConsumer struct {
	js     nats.JetStreamContext
	logger *zap.Logger
	repo   repository.ClickRepository
	done   chan struct{}
}

// NewClickConsumer creates a new click event consumer
func NewClickConsumer(js nats.JetStreamContext, logger *zap.Logger, repo repository.ClickRepository) *ClickConsumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClickConsumer{js: js, logger: logger, repo: repo, done: make(chan struct{})}
}

// Start ensures the stream and durable consumer exist, then consumes in the
// background until ctx is cancelled.
func (c *ClickConsumer) Start(ctx context.Context) error {
	if _, err := c.js.StreamInfo(model.ClickStreamName); err != nil {
		_, err = c.js.AddStream(&nats.StreamConfig{
			Name:       model.ClickStreamName,
			Subjects:   []string{model.ClickStreamSubject},
			MaxBytes:   model.ClickStreamMaxBytes,
			Duplicates: 2 * time.Minute,
		})
		if err != nil {
			return fmt.Errorf("failed to create stream: %w", err)
		}
	}

	if _, err := c.js.ConsumerInfo(model.ClickStreamName, model.ClickConsumerName); err != nil {
		_, err = c.js.AddConsumer(model.ClickStreamName, &nats.ConsumerConfig{
			Durable:       model.ClickConsumerName,
			FilterSubject: model.ClickStreamSubject,
			AckPolicy:     nats.AckExplicitPolicy,
			MaxDeliver:    consumerMaxDeliver,
		})
		if err != nil {
			return fmt.Errorf("failed to create consumer: %w", err)
		}
	}

	sub, err := c.js.PullSubscribe(model.ClickStreamSubject, model.ClickConsumerName, nats.Bind(model.ClickStreamName, model.ClickConsumerName))
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}

	go c.consume(ctx, sub)
	return nil
}

// Done is closed once the consume loop has exited.
func (c *ClickConsumer) Done() <-chan struct{} {
	return c.done
}

func (c *ClickConsumer) consume(ctx context.Context, sub *nats.Subscription) {
	defer close(c.done)
	defer func() {
		if err := sub.Unsubscribe(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
			c.logger.Warn("failed to unsubscribe click consumer", zap.Error(err))
		}
	}()

	for ctx.Err() == nil {
		fetchCtx, cancel := context.WithTimeout(ctx, consumerMaxWait)
		msgs, err := sub.Fetch(consumerBatchSize, nats.Context(fetchCtx))
		cancel()
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			switch classifyFetchError(err) {
			case fetchIdle:
				continue
			case fetchFatal:
				c.logger.Error("click consumer cannot fetch, stopping", zap.Error(err))
				return
			}
			c.logger.Error("failed to fetch messages", zap.Error(err), zap.Duration("retry_in", consumerErrorBackoff))
			select {
			case <-ctx.Done():
			case <-time.After(consumerErrorBackoff):
			}
			continue
		}

		for _, msg := range msgs {
			c.handle(ctx, msg)
		}
	}
	c.logger.Info("click consumer stopped")
}

type fetchOutcome int

const (
	fetchIdle fetchOutcome = iota
	fetchRetry
	fetchFatal
)

// classifyFetchError separates an empty poll from a transient failure and
// from one that no retry can fix.
func classifyFetchError(err error) fetchOutcome {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, nats.ErrTimeout):
		return fetchIdle
	case errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrBadSubscription),
		errors.Is(err, nats.ErrConsumerDeleted),
		errors.Is(err, nats.ErrConsumerNotFound),
		errors.Is(err, nats.ErrStreamNotFound):
		return fetchFatal
	default:
		return fetchRetry
	}
}

func (c *ClickConsumer) handle(ctx context.Context, msg *nats.Msg) {
	var event model.ClickEvent
	if err := json.Unmarshal(msg.Data, &event); err != nil {
		c.logger.Error("failed to unmarshal click event", zap.Error(err))
		// A malformed payload never becomes valid; drop it.
		_ = msg.Term()
		return
	}

	if err := c.repo.Record(ctx, event.OwnerID, event.TimestampMillis); err != nil {
		c.logger.Error("failed to store click event",
			zap.String("id", event.ID),
			zap.Int64("owner_id", event.OwnerID),
			zap.Error(err))
		_ = msg.Nak()
		return
	}

	c.logger.Debug("click event stored",
		zap.String("id", event.ID),
		zap.Int64("owner_id", event.OwnerID),
		zap.Int64("timestamp_millis", event.TimestampMillis),
	)
	_ = msg.Ack()
}
