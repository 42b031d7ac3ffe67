package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/nats-io/nats.go"
)

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want fetchOutcome
	}{
		{"deadline", context.DeadlineExceeded, fetchIdle},
		{"nats timeout", nats.ErrTimeout, fetchIdle},
		{"connection closed", nats.ErrConnectionClosed, fetchFatal},
		{"bad subscription", nats.ErrBadSubscription, fetchFatal},
		{"consumer deleted", nats.ErrConsumerDeleted, fetchFatal},
		{"wrapped consumer not found", fmt.Errorf("fetch: %w", nats.ErrConsumerNotFound), fetchFatal},
		{"stream not found", nats.ErrStreamNotFound, fetchFatal},
		{"transient", errors.New("nats: slow consumer"), fetchRetry},
		{"no responders", nats.ErrNoResponders, fetchRetry},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyFetchError(tt.err); got != tt.want {
				t.Fatalf("classifyFetchError(%v) = %d, want %d", tt.err, got, tt.want)
			}
		})
	}
}
