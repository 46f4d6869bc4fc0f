// Package pubsub provides a generic publish/subscribe event system used to
// fan out session snapshots and log entries to the presentation layer.
package pubsub

import (
	"context"
	"time"
)

// EventType represents the type of event being published.
type EventType string

const (
	// CreatedEvent marks the first publication for a new key: a fresh
	// session's first snapshot, or a newly written log entry.
	CreatedEvent EventType = "created"
	// UpdatedEvent marks a republished state after a mutation.
	UpdatedEvent EventType = "updated"
	// TerminalEvent marks the final publication for a key; no further
	// updates follow it.
	TerminalEvent EventType = "terminal"
)

// Event represents a published event with a typed payload.
type Event[T any] struct {
	Type      EventType
	Payload   T
	Timestamp time.Time
}

// Subscriber provides a subscription channel for events.
type Subscriber[T any] interface {
	Subscribe(ctx context.Context) <-chan Event[T]
}
