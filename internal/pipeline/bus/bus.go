// Package bus is the single ingress point for pipeline activity. It
// normalizes raw hook payloads into classified activity events and hands
// them to the dispatcher; callers never touch the store directly.
package bus

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/zjrosen/talaash/internal/log"
	"github.com/zjrosen/talaash/internal/pipeline/event"
)

// Sink consumes normalized events. Satisfied by dispatch.Dispatcher.
type Sink interface {
	Dispatch(ctx context.Context, ev event.ActivityEvent) error
}

// Bus validates and normalizes raw events before dispatch.
type Bus struct {
	sink Sink
	now  func() time.Time
}

// New creates a Bus feeding the given sink.
func New(sink Sink) *Bus {
	return &Bus{sink: sink, now: time.Now}
}

// Submit accepts one raw event. Unknown kinds and missing session ids are
// rejected before any state is touched, so a malformed submission leaves
// no trace in the session log.
func (b *Bus) Submit(ctx context.Context, raw event.RawEvent) error {
	ev, err := b.Normalize(raw)
	if err != nil {
		log.Warn(log.CatBus, "submission rejected", "session", raw.SessionID, "kind", raw.Kind, "reason", err)
		return err
	}
	return b.sink.Dispatch(ctx, ev)
}

// Normalize classifies a raw payload into an ActivityEvent. The sequence
// number is assigned later, under the session lock, so concurrent
// submitters cannot observe gaps.
func (b *Bus) Normalize(raw event.RawEvent) (event.ActivityEvent, error) {
	kind, ok := event.ParseKind(raw.Kind)
	if !ok {
		return event.ActivityEvent{}, fmt.Errorf("%w: %q", event.ErrInvalidEventKind, raw.Kind)
	}
	sessionID := strings.TrimSpace(raw.SessionID)
	if sessionID == "" {
		return event.ActivityEvent{}, fmt.Errorf("%w: missing session id", event.ErrMalformedEvent)
	}

	ev := event.ActivityEvent{
		SessionID: sessionID,
		Kind:      kind,
		Agent:     strings.TrimSpace(raw.Agent),
		Tool:      strings.TrimSpace(raw.Tool),
		Input:     raw.Input,
		Output:    raw.Output,
		Message:   raw.Message,
		Details:   raw.Details,
		Phase:     event.Phase(raw.Phase),
		Timestamp: b.now(),
	}
	if err := event.Validate(ev); err != nil {
		return event.ActivityEvent{}, err
	}
	return ev, nil
}
