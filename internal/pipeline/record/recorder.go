// Package record persists session activity to disk as JSON Lines, one
// file per session, plus a metadata document once the session terminates.
// Recording rides the snapshot fan-out and is best-effort: disk problems
// are counted and logged, never surfaced into the dispatch path.
package record

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/zjrosen/talaash/internal/log"
	"github.com/zjrosen/talaash/internal/pipeline/event"
	"github.com/zjrosen/talaash/internal/pipeline/store"
	"github.com/zjrosen/talaash/internal/pubsub"
)

// Metadata is the terminal summary written next to a session's activity log.
type Metadata struct {
	SessionID  string                 `json:"session_id"`
	CreatedAt  time.Time              `json:"created_at"`
	State      store.Lifecycle        `json:"state"`
	EventCount uint64                 `json:"event_count"`
	// Duration spans the first to the last activity entry.
	Duration   time.Duration          `json:"duration,omitempty"`
	Outcome    *event.TerminalOutcome `json:"outcome,omitempty"`
	RecordedAt time.Time              `json:"recorded_at"`
}

type sessionFile struct {
	writer  *lineWriter
	lastSeq uint64
}

// Recorder appends session activity to per-session JSONL files.
type Recorder struct {
	dir string

	mu    sync.Mutex
	files map[string]*sessionFile
}

// NewRecorder creates the recording directory and a Recorder over it.
func NewRecorder(dir string) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create record dir: %w", err)
	}
	return &Recorder{
		dir:   dir,
		files: make(map[string]*sessionFile),
	}, nil
}

// ActivityPath returns the JSONL path for a session.
func (r *Recorder) ActivityPath(sessionID string) string {
	return filepath.Join(r.dir, sessionID+".jsonl")
}

// MetadataPath returns the metadata path for a session.
func (r *Recorder) MetadataPath(sessionID string) string {
	return filepath.Join(r.dir, sessionID+".meta.json")
}

// Record appends the snapshot's unseen activity entries to the session's
// file. Republished snapshots are de-duplicated by log position, so
// recording the same snapshot twice writes nothing new. Terminal snapshots
// also write metadata and close the activity file.
//
// Complete recordings need snapshots carrying the full activity log
// (snapshot tail zero). With a bounded tail, entries that scroll out of
// the tail between deliveries never reach the file; such gaps are
// detected by sequence and logged.
func (r *Recorder) Record(snap store.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sf, err := r.sessionFileLocked(snap.SessionID)
	if err != nil {
		return err
	}

	for _, ev := range snap.Activity {
		if ev.Seq <= sf.lastSeq {
			continue
		}
		if ev.Seq > sf.lastSeq+1 {
			log.Warn(log.CatRecord, "activity gap in recording",
				"session", snap.SessionID, "after_seq", sf.lastSeq, "next_seq", ev.Seq)
		}
		line, err := json.Marshal(ev)
		if err != nil {
			return fmt.Errorf("marshal activity: %w", err)
		}
		if err := sf.writer.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write activity: %w", err)
		}
		sf.lastSeq = ev.Seq
	}

	if snap.State.IsTerminal() {
		return r.finalizeLocked(snap, sf)
	}
	return nil
}

func (r *Recorder) sessionFileLocked(sessionID string) (*sessionFile, error) {
	if sf, ok := r.files[sessionID]; ok {
		return sf, nil
	}
	f, err := os.OpenFile(r.ActivityPath(sessionID), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open activity file: %w", err)
	}
	sf := &sessionFile{writer: newLineWriter(f, DefaultBufferSize, DefaultFlushInterval)}
	r.files[sessionID] = sf
	return sf, nil
}

func (r *Recorder) finalizeLocked(snap store.Snapshot, sf *sessionFile) error {
	meta := Metadata{
		SessionID:  snap.SessionID,
		CreatedAt:  snap.CreatedAt,
		State:      snap.State,
		EventCount: uint64(len(snap.Activity)),
		Outcome:    snap.Outcome,
		RecordedAt: time.Now(),
	}
	if n := len(snap.Activity); n > 0 {
		meta.Duration = event.Duration(snap.Activity[0], snap.Activity[n-1])
	}
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := os.WriteFile(r.MetadataPath(snap.SessionID), data, 0o644); err != nil {
		return fmt.Errorf("write metadata: %w", err)
	}

	delete(r.files, snap.SessionID)
	if err := sf.writer.Close(); err != nil {
		return fmt.Errorf("close activity file: %w", err)
	}
	return nil
}

// Attach consumes a snapshot subscription until ctx is cancelled.
// Recording errors are logged; the fan-out keeps flowing.
func (r *Recorder) Attach(ctx context.Context, sub pubsub.Subscriber[store.Snapshot]) {
	ch := sub.Subscribe(ctx)
	log.SafeGo("record.attach", func() {
		for {
			select {
			case <-ctx.Done():
				return
			case e, ok := <-ch:
				if !ok {
					return
				}
				if err := r.Record(e.Payload); err != nil {
					log.ErrorErr(log.CatRecord, "recording failed", err, "session", e.Payload.SessionID)
				}
			}
		}
	})
}

// Close flushes and closes all open activity files.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for id, sf := range r.files {
		if err := sf.writer.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.files, id)
	}
	return firstErr
}
