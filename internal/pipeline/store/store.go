// Package store holds the per-session research state: lifecycle, the
// append-only activity log, derived progress, and the terminal outcome.
// Readers get immutable snapshots; mutation is reserved for the dispatcher,
// which serializes writers per session.
package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/talaash/internal/cache"
	"github.com/zjrosen/talaash/internal/log"
	"github.com/zjrosen/talaash/internal/pipeline/event"
	"github.com/zjrosen/talaash/internal/pipeline/progress"
)

// Lifecycle is the session state. Transitions are monotonic:
// running → complete or running → error, never reversed.
type Lifecycle string

const (
	LifecycleRunning  Lifecycle = "running"
	LifecycleComplete Lifecycle = "complete"
	LifecycleError    Lifecycle = "error"
)

// IsTerminal returns true for complete and error.
func (l Lifecycle) IsTerminal() bool {
	return l == LifecycleComplete || l == LifecycleError
}

func (l Lifecycle) String() string {
	return string(l)
}

// NewSessionID generates an opaque session token for callers that did not
// supply one.
func NewSessionID() string {
	return uuid.NewString()
}

// Session is the mutable per-session record. It is owned by the Store and
// must only be touched inside an Upsert mutation.
type Session struct {
	ID        string
	CreatedAt time.Time
	State     Lifecycle
	// Log is append-only. Entries are never rewritten, which lets
	// snapshots share the backing array safely.
	Log     []event.ActivityEvent
	Board   progress.Board
	Outcome *event.TerminalOutcome
	// Seq counts applied mutations; snapshots expose it so consumers can
	// de-duplicate republished state.
	Seq uint64
}

// Append adds an event to the log, stamping its log position.
func (s *Session) Append(ev event.ActivityEvent) event.ActivityEvent {
	ev.Seq = s.Seq + 1
	s.Log = append(s.Log, ev)
	return ev
}

// SetOutcome writes the terminal outcome exactly once and moves the
// lifecycle to its terminal state.
func (s *Session) SetOutcome(o event.TerminalOutcome) error {
	if s.Outcome != nil {
		return fmt.Errorf("session %s already has a terminal outcome", s.ID)
	}
	s.Outcome = &o
	if o.Kind == event.OutcomeResult {
		s.State = LifecycleComplete
	} else {
		s.State = LifecycleError
	}
	return nil
}

// Snapshot is an immutable point-in-time copy of a session's observable
// fields. Safe to read without synchronization.
type Snapshot struct {
	SessionID string                  `json:"session_id"`
	CreatedAt time.Time               `json:"created_at"`
	State     Lifecycle               `json:"state"`
	Board     progress.Board          `json:"board"`
	Activity  []event.ActivityEvent   `json:"activity"`
	Outcome   *event.TerminalOutcome  `json:"outcome,omitempty"`
	Seq       uint64                  `json:"seq"`
}

// Store is the keyed session cache. The sessions map is guarded by mu;
// snapshot reads are served from a go-cache layer invalidated on mutation.
type Store struct {
	mu        sync.RWMutex
	sessions  map[string]*Session
	snapshots cache.Manager[Snapshot]
	tail      int
}

// New creates a Store. tail bounds the activity entries per snapshot;
// zero means the full log.
func New(tail int) *Store {
	return &Store{
		sessions:  make(map[string]*Session),
		snapshots: cache.NewMemory[Snapshot]("store.snapshots", cache.DefaultExpiration, cache.DefaultCleanupInterval),
		tail:      tail,
	}
}

// Get returns the latest snapshot for a session. Repeated calls without
// intervening mutations return identical snapshots.
func (s *Store) Get(ctx context.Context, sessionID string) (Snapshot, bool) {
	if snap, ok := s.snapshots.Get(ctx, sessionID); ok {
		return snap, true
	}

	s.mu.RLock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		s.mu.RUnlock()
		return Snapshot{}, false
	}
	snap := s.snapshot(sess)
	// The refill must happen under the read lock. Upsert refreshes the
	// cache inside the write lock, so a refill that escaped the read
	// section could land after a newer write and pin a stale snapshot
	// until the next mutation or expiry.
	s.snapshots.Set(ctx, sessionID, snap, 0)
	s.mu.RUnlock()

	return snap, true
}

// Sessions returns the known session ids.
func (s *Store) Sessions() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Upsert applies mutate to the session, creating it first when absent
// (newBoard seeds the progress view for a fresh session). On success the
// snapshot cache is refreshed and the new snapshot returned. A failed
// mutation leaves no trace: the record is restored to its prior value.
//
// Only the dispatcher calls Upsert; it guarantees a single writer per
// session. The store's own lock protects the map and snapshot build.
func (s *Store) Upsert(ctx context.Context, sessionID string, newBoard func() progress.Board, mutate func(*Session) error) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[sessionID]
	if !ok {
		sess = &Session{
			ID:        sessionID,
			CreatedAt: time.Now(),
			State:     LifecycleRunning,
			Board:     newBoard(),
		}
		s.sessions[sessionID] = sess
		log.Debug(log.CatStore, "session created", "session", sessionID)
	}

	before := *sess
	if err := mutate(sess); err != nil {
		*sess = before
		return Snapshot{}, err
	}
	sess.Seq++

	snap := s.snapshot(sess)
	s.snapshots.Set(ctx, sessionID, snap, 0)
	return snap, nil
}

// snapshot builds an immutable view. The activity slice shares the
// append-only log's backing array: entries below len are never rewritten,
// so the shared range stays stable after the lock is released.
func (s *Store) snapshot(sess *Session) Snapshot {
	activity := sess.Log
	if s.tail > 0 && len(activity) > s.tail {
		activity = activity[len(activity)-s.tail:]
	}
	activity = activity[:len(activity):len(activity)]

	var outcome *event.TerminalOutcome
	if sess.Outcome != nil {
		o := *sess.Outcome
		outcome = &o
	}

	return Snapshot{
		SessionID: sess.ID,
		CreatedAt: sess.CreatedAt,
		State:     sess.State,
		Board:     sess.Board,
		Activity:  activity,
		Outcome:   outcome,
		Seq:       sess.Seq,
	}
}
