package event

import (
	"errors"
	"fmt"
)

// Sentinel errors for caller/data problems. These are absorbed by the
// subsystem (rejected and logged) and never escape to the pipeline caller.
var (
	// ErrInvalidEventKind marks an event whose kind is not recognized.
	ErrInvalidEventKind = errors.New("invalid event kind")
	// ErrMalformedEvent marks an event missing a required payload field.
	ErrMalformedEvent = errors.New("malformed event")
	// ErrSessionTerminal marks a non-terminal event arriving after the
	// session reached a terminal state.
	ErrSessionTerminal = errors.New("session is terminal")
)

// PhaseError wraps a failure originating in the pipeline itself. It is
// recorded for observability and then re-raised unchanged so the owning
// process can decide on retry or abort.
type PhaseError struct {
	// SessionID is the session the failure belongs to.
	SessionID string
	// Phase is the pipeline stage that failed.
	Phase Phase
	// Message is the human-readable failure summary.
	Message string
	// Details carries free-form diagnostic detail.
	Details string
	// Err is the underlying cause, when one exists.
	Err error
}

func (e *PhaseError) Error() string {
	if e.Phase == PhaseNone {
		return fmt.Sprintf("pipeline failed: %s", e.Message)
	}
	return fmt.Sprintf("pipeline phase %q failed: %s", e.Phase, e.Message)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Validate checks that an ActivityEvent carries the payload fields its kind
// requires. It returns ErrMalformedEvent (wrapped with the missing field)
// for incomplete events.
func Validate(ev ActivityEvent) error {
	if ev.SessionID == "" {
		return fmt.Errorf("%w: missing session id", ErrMalformedEvent)
	}
	switch ev.Kind {
	case KindAgentStart, KindAgentEnd:
		if ev.Agent == "" {
			return fmt.Errorf("%w: %s requires agent", ErrMalformedEvent, ev.Kind)
		}
	case KindToolStart, KindToolEnd:
		if ev.Agent == "" {
			return fmt.Errorf("%w: %s requires agent", ErrMalformedEvent, ev.Kind)
		}
		if ev.Tool == "" {
			return fmt.Errorf("%w: %s requires tool", ErrMalformedEvent, ev.Kind)
		}
	case KindError:
		if ev.Message == "" {
			return fmt.Errorf("%w: error event requires message", ErrMalformedEvent)
		}
	default:
		return fmt.Errorf("%w: %q", ErrInvalidEventKind, ev.Kind)
	}
	return nil
}
