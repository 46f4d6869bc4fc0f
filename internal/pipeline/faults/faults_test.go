package faults

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zjrosen/talaash/internal/pipeline/event"
)

type fakeTerminalizer struct {
	outcomes map[string]event.TerminalOutcome
	err      error
}

func (f *fakeTerminalizer) Terminalize(_ context.Context, sessionID string, o event.TerminalOutcome) error {
	if f.err != nil {
		return f.err
	}
	if f.outcomes == nil {
		f.outcomes = make(map[string]event.TerminalOutcome)
	}
	f.outcomes[sessionID] = o
	return nil
}

func TestReport_RecordsAndReRaises(t *testing.T) {
	sink := &fakeTerminalizer{}
	c := New(sink)
	cause := errors.New("connection reset")

	err := c.Report(context.Background(), "s1", event.PhaseResearch, "search backend unreachable", "3 retries exhausted", cause)
	require.Error(t, err)

	var perr *event.PhaseError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "s1", perr.SessionID)
	require.Equal(t, event.PhaseResearch, perr.Phase)
	require.ErrorIs(t, err, cause)

	recorded, ok := sink.outcomes["s1"]
	require.True(t, ok)
	require.Equal(t, event.OutcomeError, recorded.Kind)
	require.Equal(t, "search backend unreachable", recorded.Message)
	require.Equal(t, event.PhaseResearch, recorded.Phase)
}

func TestReport_StoreFailureNeverMasksOriginal(t *testing.T) {
	tests := []struct {
		name    string
		sinkErr error
	}{
		{name: "session already terminal", sinkErr: event.ErrSessionTerminal},
		{name: "arbitrary store failure", sinkErr: errors.New("store unavailable")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(&fakeTerminalizer{err: tt.sinkErr})
			cause := errors.New("original failure")

			err := c.Report(context.Background(), "s1", event.PhaseNone, "boom", "", cause)

			var perr *event.PhaseError
			require.ErrorAs(t, err, &perr)
			require.ErrorIs(t, err, cause)
			require.NotErrorIs(t, err, tt.sinkErr)
		})
	}
}

func TestCancelled(t *testing.T) {
	sink := &fakeTerminalizer{}
	c := New(sink)

	require.NoError(t, c.Cancelled(context.Background(), "s1", "window closed"))
	recorded := sink.outcomes["s1"]
	require.True(t, recorded.Cancelled)
	require.Equal(t, event.OutcomeError, recorded.Kind)

	c2 := New(&fakeTerminalizer{err: event.ErrSessionTerminal})
	require.ErrorIs(t, c2.Cancelled(context.Background(), "s1", "again"), event.ErrSessionTerminal)
}
