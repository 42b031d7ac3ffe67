package service

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/sifan077/tinyurl/internal/app/model"
)

// ClickPublisher forwards clicks to NATS JetStream; a ClickConsumer persists them.
type ClickPublisher struct {
	js nats.JetStreamContext
}

var _ ClickSink = (*ClickPublisher)(nil)

// NewClickPublisher creates a new click event publisher
func NewClickPublisher(js nats.JetStreamContext) *ClickPublisher {
	return &ClickPublisher{js: js}
}

// Record publishes one click. The generated event ID doubles as the
// JetStream message ID so a retried publish is de-duplicated by the server.
func (p *ClickPublisher) Record(ctx context.Context, ownerID, timestampMillis int64) error {
	event := model.ClickEvent{
		ID:              uuid.NewString(),
		OwnerID:         ownerID,
		TimestampMillis: timestampMillis,
	}

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}

	_, err = p.js.Publish(model.ClickStreamSubject, data, nats.MsgId(event.ID), nats.Context(ctx))
	return err
}
