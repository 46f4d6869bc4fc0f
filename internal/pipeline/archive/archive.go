package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zjrosen/talaash/internal/log"
	"github.com/zjrosen/talaash/internal/pipeline/event"
	"github.com/zjrosen/talaash/internal/pipeline/store"
	"github.com/zjrosen/talaash/internal/pubsub"
)

// ErrNotArchived reports a lookup for a session the archive has not seen.
var ErrNotArchived = errors.New("session not archived")

// Entry is one archived session row.
type Entry struct {
	SessionID  string
	State      store.Lifecycle
	EventCount int
	Outcome    event.TerminalOutcome
	Activity   []event.ActivityEvent
	CreatedAt  time.Time
	ArchivedAt time.Time
}

// Store writes terminal snapshots into the archive database.
type Store struct {
	db *sql.DB
}

// NewStore creates a Store over an opened archive database.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Save archives one terminal snapshot. Saving the same session twice
// keeps the first row; a terminal outcome never changes after the fact.
func (s *Store) Save(ctx context.Context, snap store.Snapshot) error {
	if !snap.State.IsTerminal() {
		return fmt.Errorf("session %s is not terminal", snap.SessionID)
	}
	if snap.Outcome == nil {
		return fmt.Errorf("session %s has no terminal outcome", snap.SessionID)
	}

	activity, err := json.Marshal(snap.Activity)
	if err != nil {
		return fmt.Errorf("marshal activity: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO sessions (
			id, state, event_count,
			outcome_kind, outcome_content, outcome_message, outcome_phase, outcome_details, cancelled,
			activity, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		snap.SessionID, snap.State.String(), len(snap.Activity),
		string(snap.Outcome.Kind), snap.Outcome.Content, snap.Outcome.Message,
		snap.Outcome.Phase.String(), snap.Outcome.Details, snap.Outcome.Cancelled,
		string(activity), snap.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert archived session: %w", err)
	}
	return nil
}

const entryColumns = `id, state, event_count,
	outcome_kind, outcome_content, outcome_message, outcome_phase, outcome_details, cancelled,
	activity, created_at, archived_at`

func scanEntry(scanner interface{ Scan(...any) error }) (Entry, error) {
	var (
		e        Entry
		activity string
	)
	err := scanner.Scan(
		&e.SessionID, &e.State, &e.EventCount,
		&e.Outcome.Kind, &e.Outcome.Content, &e.Outcome.Message,
		&e.Outcome.Phase, &e.Outcome.Details, &e.Outcome.Cancelled,
		&activity, &e.CreatedAt, &e.ArchivedAt,
	)
	if err != nil {
		return Entry{}, err
	}
	if err := json.Unmarshal([]byte(activity), &e.Activity); err != nil {
		return Entry{}, fmt.Errorf("unmarshal activity: %w", err)
	}
	return e, nil
}

// Get loads one archived session.
func (s *Store) Get(ctx context.Context, sessionID string) (Entry, error) {
	row := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT %s FROM sessions WHERE id = ?`, entryColumns), sessionID)
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Entry{}, fmt.Errorf("%w: %s", ErrNotArchived, sessionID)
	}
	if err != nil {
		return Entry{}, fmt.Errorf("load archived session: %w", err)
	}
	return e, nil
}

// List returns archived sessions, most recent first.
func (s *Store) List(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT %s FROM sessions ORDER BY archived_at DESC, id LIMIT ?`, entryColumns), limit)
	if err != nil {
		return nil, fmt.Errorf("list archived sessions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan archived session: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Attach archives terminal snapshots from a subscription until ctx is
// cancelled. Failures are logged; archiving never backpressures dispatch.
func (s *Store) Attach(ctx context.Context, sub pubsub.Subscriber[store.Snapshot]) {
	ch := sub.Subscribe(ctx)
	log.SafeGo("archive.attach", func() {
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				if e.Type != pubsub.TerminalEvent {
					continue
				}
				if err := s.Save(ctx, e.Payload); err != nil {
					log.ErrorErr(log.CatArchive, "archiving failed", err, "session", e.Payload.SessionID)
				}
			}
		}
	})
}
