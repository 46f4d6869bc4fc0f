package record

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/talaash/internal/pipeline/event"
	"github.com/zjrosen/talaash/internal/pipeline/store"
)

func openTemp(t *testing.T) *os.File {
	t.Helper()
	f, err := os.Create(filepath.Join(t.TempDir(), "out.jsonl"))
	require.NoError(t, err)
	return f
}

func TestLineWriter_BuffersUntilThreshold(t *testing.T) {
	f := openTemp(t)
	w := newLineWriter(f, 100, time.Hour)
	defer w.Close()

	require.NoError(t, w.Write([]byte("one\n")))
	require.Equal(t, 1, w.Len())

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	require.Empty(t, data, "below threshold nothing reaches disk")

	require.NoError(t, w.Flush())
	require.Zero(t, w.Len())
	data, err = os.ReadFile(f.Name())
	require.NoError(t, err)
	require.Equal(t, "one\n", string(data))
}

func TestLineWriter_ThresholdTriggersFlush(t *testing.T) {
	f := openTemp(t)
	w := newLineWriter(f, 4, time.Hour) // threshold at 3 lines
	defer w.Close()

	require.NoError(t, w.Write([]byte("a\n")))
	require.NoError(t, w.Write([]byte("b\n")))
	require.NoError(t, w.Write([]byte("c\n")))

	require.Zero(t, w.Len())
	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	require.Equal(t, "a\nb\nc\n", string(data))
}

func TestLineWriter_CloseDrainsAndRejectsWrites(t *testing.T) {
	f := openTemp(t)
	name := f.Name()
	w := newLineWriter(f, 100, time.Hour)

	require.NoError(t, w.Write([]byte("pending\n")))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	require.Equal(t, "pending\n", string(data))

	require.ErrorIs(t, w.Write([]byte("late\n")), os.ErrClosed)
	require.ErrorIs(t, w.Close(), os.ErrClosed)
}

func makeSnapshot(sessionID string, state store.Lifecycle, events ...event.ActivityEvent) store.Snapshot {
	return store.Snapshot{
		SessionID: sessionID,
		CreatedAt: time.Now(),
		State:     state,
		Activity:  events,
		Seq:       uint64(len(events)),
	}
}

func activityLines(t *testing.T, path string) []event.ActivityEvent {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var out []event.ActivityEvent
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var ev event.ActivityEvent
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &ev))
		out = append(out, ev)
	}
	require.NoError(t, scanner.Err())
	return out
}

func TestRecorder_AppendsAndDeduplicates(t *testing.T) {
	r, err := NewRecorder(t.TempDir())
	require.NoError(t, err)
	defer r.Close()

	ev1 := event.ActivityEvent{SessionID: "s1", Seq: 1, Kind: event.KindAgentStart, Agent: "Research Analyst"}
	ev2 := event.ActivityEvent{SessionID: "s1", Seq: 2, Kind: event.KindToolStart, Agent: "Research Analyst", Tool: "web_search"}

	require.NoError(t, r.Record(makeSnapshot("s1", store.LifecycleRunning, ev1)))
	// Republished snapshot carries the already-recorded entry.
	require.NoError(t, r.Record(makeSnapshot("s1", store.LifecycleRunning, ev1, ev2)))
	require.NoError(t, r.Close())

	lines := activityLines(t, r.ActivityPath("s1"))
	require.Len(t, lines, 2)
	require.Equal(t, uint64(1), lines[0].Seq)
	require.Equal(t, uint64(2), lines[1].Seq)
}

func TestRecorder_TerminalWritesMetadata(t *testing.T) {
	r, err := NewRecorder(t.TempDir())
	require.NoError(t, err)
	defer r.Close()

	started := time.Now()
	ev1 := event.ActivityEvent{SessionID: "s1", Seq: 1, Kind: event.KindAgentStart, Agent: "Research Analyst", Timestamp: started}
	ev2 := event.ActivityEvent{SessionID: "s1", Seq: 2, Kind: event.KindAgentEnd, Agent: "Research Analyst", Timestamp: started.Add(3 * time.Second)}
	snap := makeSnapshot("s1", store.LifecycleComplete, ev1, ev2)
	outcome := event.ResultOutcome("# Report")
	snap.Outcome = &outcome

	require.NoError(t, r.Record(snap))

	// Terminal finalization flushes without an explicit Close.
	lines := activityLines(t, r.ActivityPath("s1"))
	require.Len(t, lines, 2)

	data, err := os.ReadFile(r.MetadataPath("s1"))
	require.NoError(t, err)
	var meta Metadata
	require.NoError(t, json.Unmarshal(data, &meta))
	require.Equal(t, "s1", meta.SessionID)
	require.Equal(t, store.LifecycleComplete, meta.State)
	require.Equal(t, uint64(2), meta.EventCount)
	require.Equal(t, 3*time.Second, meta.Duration)
	require.NotNil(t, meta.Outcome)
	require.Equal(t, "# Report", meta.Outcome.Content)
}

// A bounded snapshot tail can scroll entries out between deliveries. The
// recorder keeps what it saw and never blocks on the hole.
func TestRecorder_TailGapKeepsRecording(t *testing.T) {
	r, err := NewRecorder(t.TempDir())
	require.NoError(t, err)
	defer r.Close()

	ev1 := event.ActivityEvent{SessionID: "s1", Seq: 1, Kind: event.KindAgentStart, Agent: "Research Analyst"}
	ev4 := event.ActivityEvent{SessionID: "s1", Seq: 4, Kind: event.KindToolEnd, Agent: "Research Analyst", Tool: "web_search"}
	ev5 := event.ActivityEvent{SessionID: "s1", Seq: 5, Kind: event.KindAgentEnd, Agent: "Research Analyst"}

	require.NoError(t, r.Record(makeSnapshot("s1", store.LifecycleRunning, ev1)))
	// Seq 2 and 3 scrolled out of the tail before this delivery.
	require.NoError(t, r.Record(makeSnapshot("s1", store.LifecycleRunning, ev4, ev5)))
	require.NoError(t, r.Close())

	lines := activityLines(t, r.ActivityPath("s1"))
	require.Len(t, lines, 3)
	require.Equal(t, []uint64{1, 4, 5}, []uint64{lines[0].Seq, lines[1].Seq, lines[2].Seq})
}

func TestRecorder_SessionsKeepSeparateFiles(t *testing.T) {
	r, err := NewRecorder(t.TempDir())
	require.NoError(t, err)

	a := event.ActivityEvent{SessionID: "a", Seq: 1, Kind: event.KindAgentStart, Agent: "Research Analyst"}
	b := event.ActivityEvent{SessionID: "b", Seq: 1, Kind: event.KindAgentStart, Agent: "Source Curator"}
	require.NoError(t, r.Record(makeSnapshot("a", store.LifecycleRunning, a)))
	require.NoError(t, r.Record(makeSnapshot("b", store.LifecycleRunning, b)))
	require.NoError(t, r.Close())

	require.Len(t, activityLines(t, r.ActivityPath("a")), 1)
	require.Len(t, activityLines(t, r.ActivityPath("b")), 1)
}
