package event

import "time"

// OutcomeKind tags the two arms of a TerminalOutcome.
type OutcomeKind string

const (
	// OutcomeResult means the run finished and produced content.
	OutcomeResult OutcomeKind = "result"
	// OutcomeError means the run failed or was cancelled.
	OutcomeError OutcomeKind = "error"
)

// TerminalOutcome is set at most once per session. Setting it moves the
// session to a terminal lifecycle state; further non-terminal mutation is
// rejected.
type TerminalOutcome struct {
	Kind OutcomeKind `json:"kind"`

	// Content is the produced research output for result outcomes.
	Content string `json:"content,omitempty"`

	// Message, Phase and Details describe the failure for error outcomes.
	Message string `json:"message,omitempty"`
	Phase   Phase  `json:"phase,omitempty"`
	Details string `json:"details,omitempty"`

	// Cancelled distinguishes the advisory-terminal cancelled variant
	// from a genuine pipeline failure.
	Cancelled bool `json:"cancelled,omitempty"`

	// RecordedAt is when the outcome was written.
	RecordedAt time.Time `json:"recorded_at"`
}

// ResultOutcome builds the success arm.
func ResultOutcome(content string) TerminalOutcome {
	return TerminalOutcome{
		Kind:       OutcomeResult,
		Content:    content,
		RecordedAt: time.Now(),
	}
}

// ErrorOutcome builds the failure arm.
func ErrorOutcome(message string, phase Phase, details string) TerminalOutcome {
	return TerminalOutcome{
		Kind:       OutcomeError,
		Message:    message,
		Phase:      phase,
		Details:    details,
		RecordedAt: time.Now(),
	}
}

// CancelledOutcome builds the advisory cancellation variant.
func CancelledOutcome(reason string) TerminalOutcome {
	return TerminalOutcome{
		Kind:       OutcomeError,
		Message:    reason,
		Cancelled:  true,
		RecordedAt: time.Now(),
	}
}
