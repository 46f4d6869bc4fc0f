package monitor

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/talaash/internal/config"
	"github.com/zjrosen/talaash/internal/pipeline/event"
	"github.com/zjrosen/talaash/internal/pipeline/progress"
	"github.com/zjrosen/talaash/internal/pipeline/store"
	"github.com/zjrosen/talaash/internal/pubsub"
)

func testModel(t *testing.T, sessionID string) (Model, *pubsub.Broker[store.Snapshot]) {
	t.Helper()
	cfg := config.Defaults()
	agg := progress.NewAggregator(cfg.AgentPhases(), cfg.ExpectedSteps(), cfg.PhaseOrder())

	broker := pubsub.NewBroker[store.Snapshot]()
	t.Cleanup(broker.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	listener := pubsub.NewContinuousListener(ctx, broker)

	return New(listener, nil, agg, sessionID), broker
}

func snapshotMsg(sessionID string, seq uint64, board progress.Board) pubsub.Event[store.Snapshot] {
	return pubsub.Event[store.Snapshot]{
		Type: pubsub.UpdatedEvent,
		Payload: store.Snapshot{
			SessionID: sessionID,
			State:     store.LifecycleRunning,
			Board:     board,
			Seq:       seq,
		},
	}
}

func boardWith(t *testing.T, agg *progress.Aggregator, events ...event.ActivityEvent) progress.Board {
	t.Helper()
	return agg.Recompute(events)
}

func TestView_WaitingBeforeFirstSnapshot(t *testing.T) {
	m, _ := testModel(t, "")
	out := ansi.Strip(m.View())
	require.Contains(t, out, "Waiting for session")
	require.Contains(t, out, "research")
	require.Contains(t, out, "policy")
	require.Contains(t, out, "sources")
}

func TestUpdate_AdoptsFirstSession(t *testing.T) {
	cfg := config.Defaults()
	agg := progress.NewAggregator(cfg.AgentPhases(), cfg.ExpectedSteps(), cfg.PhaseOrder())

	m, _ := testModel(t, "")
	next, _ := m.Update(snapshotMsg("s1", 1, agg.NewBoard()))
	model := next.(Model)
	require.Equal(t, "s1", model.sessionID)

	// A second session on the fan-out is ignored.
	next, _ = model.Update(snapshotMsg("s2", 5, agg.NewBoard()))
	model = next.(Model)
	require.Equal(t, uint64(1), model.snap.Seq)
}

func TestUpdate_IgnoresStaleSnapshots(t *testing.T) {
	cfg := config.Defaults()
	agg := progress.NewAggregator(cfg.AgentPhases(), cfg.ExpectedSteps(), cfg.PhaseOrder())

	m, _ := testModel(t, "s1")
	next, _ := m.Update(snapshotMsg("s1", 3, agg.NewBoard()))
	model := next.(Model)
	next, _ = model.Update(snapshotMsg("s1", 2, agg.NewBoard()))
	model = next.(Model)
	require.Equal(t, uint64(3), model.snap.Seq)
}

func TestView_ShowsPhaseProgress(t *testing.T) {
	cfg := config.Defaults()
	agg := progress.NewAggregator(cfg.AgentPhases(), cfg.ExpectedSteps(), cfg.PhaseOrder())

	board := boardWith(t, agg,
		event.ActivityEvent{SessionID: "s1", Kind: event.KindAgentStart, Agent: "Research Analyst", Timestamp: time.Now()},
		event.ActivityEvent{SessionID: "s1", Kind: event.KindToolStart, Agent: "Research Analyst", Tool: "web_search", Timestamp: time.Now()},
	)

	m, _ := testModel(t, "s1")
	msg := snapshotMsg("s1", 2, board)
	msg.Payload.Activity = []event.ActivityEvent{
		{Seq: 1, Kind: event.KindAgentStart, Agent: "Research Analyst"},
		{Seq: 2, Kind: event.KindToolStart, Agent: "Research Analyst", Tool: "web_search", Input: "solar"},
	}
	next, _ := m.Update(msg)

	out := ansi.Strip(next.(Model).View())
	require.Contains(t, out, "Session s1")
	require.Contains(t, out, "Running web_search")
	require.Contains(t, out, "web_search(solar)")
	require.Contains(t, out, "overall")
}

func TestUpdate_TerminalSnapshotQuits(t *testing.T) {
	cfg := config.Defaults()
	agg := progress.NewAggregator(cfg.AgentPhases(), cfg.ExpectedSteps(), cfg.PhaseOrder())

	m, _ := testModel(t, "s1")
	outcome := event.ResultOutcome("# Final Report\n\nDone.")
	msg := pubsub.Event[store.Snapshot]{
		Type: pubsub.TerminalEvent,
		Payload: store.Snapshot{
			SessionID: "s1",
			State:     store.LifecycleComplete,
			Board:     agg.NewBoard(),
			Outcome:   &outcome,
			Seq:       10,
		},
	}
	next, cmd := m.Update(msg)
	model := next.(Model)
	require.True(t, model.done)
	require.NotNil(t, cmd)
	require.Equal(t, tea.Quit(), cmd())

	out := ansi.Strip(model.View())
	require.Contains(t, out, "complete")
	require.Contains(t, out, "Final Report")
}

func TestView_ErrorBanner(t *testing.T) {
	cfg := config.Defaults()
	agg := progress.NewAggregator(cfg.AgentPhases(), cfg.ExpectedSteps(), cfg.PhaseOrder())

	m, _ := testModel(t, "s1")
	outcome := event.ErrorOutcome("search backend unreachable", event.PhaseResearch, "3 retries exhausted")
	msg := pubsub.Event[store.Snapshot]{
		Type: pubsub.TerminalEvent,
		Payload: store.Snapshot{
			SessionID: "s1",
			State:     store.LifecycleError,
			Board:     agg.NewBoard(),
			Outcome:   &outcome,
			Seq:       3,
		},
	}
	next, _ := m.Update(msg)

	out := ansi.Strip(next.(Model).View())
	require.Contains(t, out, "research failed: search backend unreachable")
	require.Contains(t, out, "3 retries exhausted")
}

func TestUpdate_LogTailToggles(t *testing.T) {
	cfg := config.Defaults()
	agg := progress.NewAggregator(cfg.AgentPhases(), cfg.ExpectedSteps(), cfg.PhaseOrder())

	broker := pubsub.NewBroker[store.Snapshot]()
	t.Cleanup(broker.Close)
	logBroker := pubsub.NewBroker[string]()
	t.Cleanup(logBroker.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m := New(
		pubsub.NewContinuousListener(ctx, broker),
		pubsub.NewContinuousListener(ctx, logBroker),
		agg, "s1",
	)

	next, cmd := m.Update(pubsub.Event[string]{Type: pubsub.CreatedEvent, Payload: "[dispatch] session created\n"})
	model := next.(Model)
	require.NotNil(t, cmd, "log tail keeps listening")

	// Hidden until toggled.
	require.NotContains(t, ansi.Strip(model.View()), "session created")

	next, _ = model.Update(keyMsg("l"))
	model = next.(Model)
	require.Contains(t, ansi.Strip(model.View()), "session created")

	// The tail is bounded to the newest entries.
	for i := 0; i < logTail+3; i++ {
		next, _ = model.Update(pubsub.Event[string]{Payload: "entry"})
		model = next.(Model)
	}
	require.Len(t, model.logLines, logTail)
}

func TestUpdate_QuitKeys(t *testing.T) {
	m, _ := testModel(t, "")
	for _, key := range []string{"q", "esc", "ctrl+c"} {
		t.Run(key, func(t *testing.T) {
			_, cmd := m.Update(keyMsg(key))
			require.NotNil(t, cmd)
			require.Equal(t, tea.Quit(), cmd())
		})
	}
}

func keyMsg(s string) tea.KeyMsg {
	switch s {
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}
