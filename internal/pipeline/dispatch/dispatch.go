// Package dispatch serializes event application into the session store and
// fans out updated snapshots to subscribers.
//
// Serialization discipline: a per-session mutex, not a single global
// lock. Two concurrent writers to the same session queue on that
// session's mutex, so appends never interleave; writers to different
// sessions proceed in parallel. The critical section is O(1): one append
// plus one incremental progress step over just the new event.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/zjrosen/talaash/internal/log"
	"github.com/zjrosen/talaash/internal/pipeline/event"
	"github.com/zjrosen/talaash/internal/pipeline/progress"
	"github.com/zjrosen/talaash/internal/pipeline/store"
	"github.com/zjrosen/talaash/internal/pubsub"
	"github.com/zjrosen/talaash/internal/tracing"
)

// Dispatcher applies activity events to the session store in per-session
// total order and republishes snapshots after every successful mutation.
type Dispatcher struct {
	store  *store.Store
	agg    atomic.Pointer[progress.Aggregator]
	broker *pubsub.Broker[store.Snapshot]
	tracer trace.Tracer

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithTracer attaches an OpenTelemetry tracer to the dispatch path.
func WithTracer(tracer trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = tracer
	}
}

// WithBrokerBuffer sets the per-subscriber snapshot channel depth.
func WithBrokerBuffer(size int) Option {
	return func(d *Dispatcher) {
		d.broker = pubsub.NewBrokerWithBuffer[store.Snapshot](size)
	}
}

// New creates a Dispatcher over the given store and aggregator.
func New(st *store.Store, agg *progress.Aggregator, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		store:  st,
		broker: pubsub.NewBroker[store.Snapshot](),
		tracer: noop.NewTracerProvider().Tracer("noop"),
		locks:  make(map[string]*sync.Mutex),
	}
	d.agg.Store(agg)
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Reload swaps the phase definitions used from now on. Sessions created
// after the swap get boards shaped by the new definitions; boards of
// existing sessions keep the phase set they were created with, so a
// mid-run reload never rewrites history.
func (d *Dispatcher) Reload(agg *progress.Aggregator) {
	d.agg.Store(agg)
	log.Info(log.CatDispatch, "phase definitions reloaded")
}

// sessionLock returns the serialization point for one session, creating it
// on first use. Locks are never removed; they are two words each and the
// session count is bounded by the retention policy of the caller.
func (d *Dispatcher) sessionLock(sessionID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	l, ok := d.locks[sessionID]
	if !ok {
		l = &sync.Mutex{}
		d.locks[sessionID] = l
	}
	return l
}

// Dispatch applies one event. For a given session, events are applied in
// the order Dispatch acquires the session lock. Malformed events and
// events for terminal sessions are rejected without mutating state.
// An error-kind event records the terminal outcome and transitions the
// session to the error lifecycle.
func (d *Dispatcher) Dispatch(ctx context.Context, ev event.ActivityEvent) error {
	if err := event.Validate(ev); err != nil {
		log.Warn(log.CatDispatch, "event rejected", "session", ev.SessionID, "kind", ev.Kind, "reason", err)
		return err
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}

	lock := d.sessionLock(ev.SessionID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := tracing.StartDispatch(ctx, d.tracer, ev.SessionID, ev.Kind.String(), ev.Agent)
	snap, err := d.apply(ctx, ev)
	tracing.EndWithError(span, err)
	if err != nil {
		if errors.Is(err, event.ErrSessionTerminal) {
			log.Warn(log.CatDispatch, "event for terminal session dropped",
				"session", ev.SessionID, "kind", ev.Kind)
		}
		return err
	}

	d.publish(snap)
	return nil
}

func (d *Dispatcher) apply(ctx context.Context, ev event.ActivityEvent) (store.Snapshot, error) {
	agg := d.agg.Load()
	return d.store.Upsert(ctx, ev.SessionID, agg.NewBoard, func(sess *store.Session) error {
		if sess.State.IsTerminal() {
			return fmt.Errorf("%w: session %s is %s", event.ErrSessionTerminal, sess.ID, sess.State)
		}

		ev.Phase = agg.Attribute(sess.Board, ev)
		appended := sess.Append(ev)
		sess.Board = agg.Apply(sess.Board, appended)

		if ev.Kind == event.KindError {
			if err := sess.SetOutcome(event.ErrorOutcome(ev.Message, ev.Phase, ev.Details)); err != nil {
				return err
			}
		}
		return nil
	})
}

// Complete records the pipeline's successful result and transitions the
// session to the complete lifecycle. Completing an already-terminal
// session is a conflict.
func (d *Dispatcher) Complete(ctx context.Context, sessionID, content string) error {
	lock := d.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	snap, err := d.store.Upsert(ctx, sessionID, d.agg.Load().NewBoard, func(sess *store.Session) error {
		if sess.State.IsTerminal() {
			return fmt.Errorf("%w: session %s is %s", event.ErrSessionTerminal, sess.ID, sess.State)
		}
		return sess.SetOutcome(event.ResultOutcome(content))
	})
	if err != nil {
		return err
	}

	log.Info(log.CatDispatch, "session complete", "session", sessionID)
	d.publish(snap)
	return nil
}

// Terminalize records a pre-built terminal outcome (pipeline failure or
// cancellation) for the error channel. Idempotent against an existing
// terminal state: the stored outcome is never overwritten.
func (d *Dispatcher) Terminalize(ctx context.Context, sessionID string, outcome event.TerminalOutcome) error {
	lock := d.sessionLock(sessionID)
	lock.Lock()
	defer lock.Unlock()

	snap, err := d.store.Upsert(ctx, sessionID, d.agg.Load().NewBoard, func(sess *store.Session) error {
		if sess.State.IsTerminal() {
			return fmt.Errorf("%w: session %s is %s", event.ErrSessionTerminal, sess.ID, sess.State)
		}
		return sess.SetOutcome(outcome)
	})
	if err != nil {
		return err
	}

	d.publish(snap)
	return nil
}

// Cancel applies the advisory-terminal cancelled variant. Events racing
// with cancellation are dropped by the terminal check in Dispatch.
func (d *Dispatcher) Cancel(ctx context.Context, sessionID, reason string) error {
	err := d.Terminalize(ctx, sessionID, event.CancelledOutcome(reason))
	if err == nil {
		log.Info(log.CatDispatch, "session cancelled", "session", sessionID, "reason", reason)
	}
	return err
}

// Snapshot is the pull-side egress: the latest immutable view of a session.
func (d *Dispatcher) Snapshot(ctx context.Context, sessionID string) (store.Snapshot, bool) {
	return d.store.Get(ctx, sessionID)
}

// Subscribe delivers every republished snapshot (all sessions) until ctx
// is cancelled. Delivery is best-effort; slow subscribers miss updates
// but can always pull the latest state via Snapshot.
func (d *Dispatcher) Subscribe(ctx context.Context) <-chan pubsub.Event[store.Snapshot] {
	return d.broker.Subscribe(ctx)
}

// SubscribeSession delivers snapshots for one session only.
func (d *Dispatcher) SubscribeSession(ctx context.Context, sessionID string) <-chan pubsub.Event[store.Snapshot] {
	in := d.broker.Subscribe(ctx)
	out := make(chan pubsub.Event[store.Snapshot], cap(in))

	log.SafeGo(fmt.Sprintf("dispatch.filter[%s]", sessionID), func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-in:
				if !ok {
					return
				}
				if e.Payload.SessionID != sessionID {
					continue
				}
				select {
				case out <- e:
				default:
				}
			}
		}
	})
	return out
}

// Broker exposes the snapshot broker for Bubble Tea integration.
func (d *Dispatcher) Broker() *pubsub.Broker[store.Snapshot] {
	return d.broker
}

// Close shuts down the snapshot broker.
func (d *Dispatcher) Close() {
	d.broker.Close()
}

func (d *Dispatcher) publish(snap store.Snapshot) {
	eventType := pubsub.UpdatedEvent
	switch {
	case snap.State.IsTerminal():
		eventType = pubsub.TerminalEvent
	case snap.Seq == 1:
		// First mutation of a fresh session.
		eventType = pubsub.CreatedEvent
	}
	d.broker.Publish(eventType, snap)
}
