package hooks

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/talaash/internal/config"
	"github.com/zjrosen/talaash/internal/pipeline/bus"
	"github.com/zjrosen/talaash/internal/pipeline/dispatch"
	"github.com/zjrosen/talaash/internal/pipeline/event"
	"github.com/zjrosen/talaash/internal/pipeline/faults"
	"github.com/zjrosen/talaash/internal/pipeline/progress"
	"github.com/zjrosen/talaash/internal/pipeline/store"
)

func newStack(t *testing.T) (*dispatch.Dispatcher, *AgentCallbacks) {
	t.Helper()
	cfg := config.Defaults()
	agg := progress.NewAggregator(cfg.AgentPhases(), cfg.ExpectedSteps(), cfg.PhaseOrder())
	d := dispatch.New(store.New(0), agg)
	t.Cleanup(d.Close)
	cb := Bind("", bus.New(d), faults.New(d), d)
	return d, cb
}

func TestBind_GeneratesSessionID(t *testing.T) {
	_, cb := newStack(t)
	require.NotEmpty(t, cb.SessionID())

	bound := Bind("explicit", nil, nil, nil)
	require.Equal(t, "explicit", bound.SessionID())
}

// A full three-phase run through the callback surface: the activity log is
// ordered, each phase completes when its owning agent ends, and the final
// result terminalizes the session.
func TestCallbacks_FullRun(t *testing.T) {
	d, cb := newStack(t)
	ctx := context.Background()

	require.NoError(t, cb.OnAgentStart(ctx, "Research Analyst"))
	require.NoError(t, cb.OnToolStart(ctx, "Research Analyst", "web_search", "solar subsidies 2026"))
	require.NoError(t, cb.OnToolEnd(ctx, "Research Analyst", "web_search", "12 results"))
	require.NoError(t, cb.OnAgentEnd(ctx, "Research Analyst", "research summary"))

	snap, ok := d.Snapshot(ctx, cb.SessionID())
	require.True(t, ok)
	require.Equal(t, 1.0, snap.Board.Phases[event.PhaseResearch].Value)
	require.True(t, snap.Board.Phases[event.PhaseResearch].Complete)
	require.Less(t, snap.Board.Phases[event.PhasePolicy].Value, 1.0)

	require.NoError(t, cb.OnAgentStart(ctx, "Policy & Media Analyst"))
	require.NoError(t, cb.OnAgentEnd(ctx, "Policy & Media Analyst", "policy summary"))
	require.NoError(t, cb.OnAgentStart(ctx, "Source Curator"))
	require.NoError(t, cb.OnAgentEnd(ctx, "Source Curator", "curated sources"))
	require.NoError(t, cb.ReportResult(ctx, "# Report"))

	snap, _ = d.Snapshot(ctx, cb.SessionID())
	require.Equal(t, store.LifecycleComplete, snap.State)
	require.Equal(t, "# Report", snap.Outcome.Content)
	require.Len(t, snap.Activity, 8)
	for i := 1; i < len(snap.Activity); i++ {
		require.Greater(t, snap.Activity[i].Seq, snap.Activity[i-1].Seq)
	}
}

func TestCallbacks_ErrorPath(t *testing.T) {
	d, cb := newStack(t)
	ctx := context.Background()

	require.NoError(t, cb.OnAgentStart(ctx, "Research Analyst"))

	err := cb.ReportError(ctx, event.PhaseResearch, "search backend down", "timeout after 30s", nil)
	var perr *event.PhaseError
	require.ErrorAs(t, err, &perr)

	snap, _ := d.Snapshot(ctx, cb.SessionID())
	require.Equal(t, store.LifecycleError, snap.State)
	require.Equal(t, "search backend down", snap.Outcome.Message)

	// Callbacks after the failure are dropped, not re-recorded.
	require.ErrorIs(t, cb.OnToolStart(ctx, "Research Analyst", "web_search", "x"), event.ErrSessionTerminal)
}

func TestCallbacks_Cancel(t *testing.T) {
	d, cb := newStack(t)
	ctx := context.Background()

	require.NoError(t, cb.OnAgentStart(ctx, "Research Analyst"))
	require.NoError(t, cb.ReportCancelled(ctx, "user navigated away"))

	snap, _ := d.Snapshot(ctx, cb.SessionID())
	require.Equal(t, store.LifecycleError, snap.State)
	require.True(t, snap.Outcome.Cancelled)
}
