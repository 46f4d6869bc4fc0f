// Package faults is the failure path of the tracker: it records pipeline
// failures into the session store for observers, then re-raises them so
// the owning process keeps control over retry and abort decisions.
package faults

import (
	"context"
	"errors"

	"github.com/zjrosen/talaash/internal/log"
	"github.com/zjrosen/talaash/internal/pipeline/event"
)

// Terminalizer records a terminal outcome for a session. Satisfied by
// dispatch.Dispatcher.
type Terminalizer interface {
	Terminalize(ctx context.Context, sessionID string, outcome event.TerminalOutcome) error
}

// Channel records failures and builds the error to re-raise.
type Channel struct {
	sink Terminalizer
}

// New creates a Channel over the given terminalizer.
func New(sink Terminalizer) *Channel {
	return &Channel{sink: sink}
}

// Report records a pipeline failure against the session and returns the
// error the caller must propagate. Recording is best-effort: a store
// conflict (the session already terminal) is logged and swallowed, never
// allowed to mask the original failure.
func (c *Channel) Report(ctx context.Context, sessionID string, phase event.Phase, message, details string, cause error) error {
	perr := &event.PhaseError{
		SessionID: sessionID,
		Phase:     phase,
		Message:   message,
		Details:   details,
		Err:       cause,
	}

	err := c.sink.Terminalize(ctx, sessionID, event.ErrorOutcome(message, phase, details))
	switch {
	case err == nil:
		log.ErrorErr(log.CatFaults, "pipeline failure recorded", perr, "session", sessionID, "phase", phase)
	case errors.Is(err, event.ErrSessionTerminal):
		log.Warn(log.CatFaults, "failure on terminal session not recorded",
			"session", sessionID, "phase", phase, "message", message)
	default:
		log.ErrorErr(log.CatFaults, "failed to record pipeline failure", err,
			"session", sessionID, "phase", phase, "message", message)
	}

	return perr
}

// Cancelled marks the session as cancelled by its owner. Unlike Report it
// surfaces recording conflicts, since cancellation has no original error
// to preserve.
func (c *Channel) Cancelled(ctx context.Context, sessionID, reason string) error {
	return c.sink.Terminalize(ctx, sessionID, event.CancelledOutcome(reason))
}
