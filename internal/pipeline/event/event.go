// Package event defines the typed activity records flowing through the
// pipeline tracker. Raw notifications from agent/tool executions are
// normalized into ActivityEvents by the bus and applied to the session
// store by the dispatcher.
package event

import (
	"time"
)

// Kind identifies the lifecycle notification an agent or tool emitted.
type Kind string

const (
	// KindAgentStart is emitted when an agent begins its task.
	KindAgentStart Kind = "agent_start"
	// KindAgentEnd is emitted when an agent finishes its task.
	KindAgentEnd Kind = "agent_end"
	// KindToolStart is emitted when an agent invokes a tool.
	KindToolStart Kind = "tool_start"
	// KindToolEnd is emitted when a tool invocation returns.
	KindToolEnd Kind = "tool_end"
	// KindError is emitted when a phase fails. It is terminal for the session.
	KindError Kind = "error"
)

// ParseKind maps a wire string onto a Kind.
// Unrecognized strings return false; callers reject those events.
func ParseKind(s string) (Kind, bool) {
	switch Kind(s) {
	case KindAgentStart, KindAgentEnd, KindToolStart, KindToolEnd, KindError:
		return Kind(s), true
	default:
		return "", false
	}
}

// IsEnd returns true for kinds that close a previously opened step.
func (k Kind) IsEnd() bool {
	return k == KindAgentEnd || k == KindToolEnd
}

// IsStart returns true for kinds that open a step.
func (k Kind) IsStart() bool {
	return k == KindAgentStart || k == KindToolStart
}

// IsTerminal returns true if the kind ends the session's running state.
func (k Kind) IsTerminal() bool {
	return k == KindError
}

func (k Kind) String() string {
	return string(k)
}

// Phase names a stage of the research pipeline. The built-in stages mirror
// the three-agent research run; additional phases come from configuration.
type Phase string

const (
	PhaseResearch Phase = "research"
	PhasePolicy   Phase = "policy"
	PhaseSources  Phase = "sources"
	// PhaseNone marks events that cannot be attributed to any phase.
	// They stay in the activity log but are excluded from progress.
	PhaseNone Phase = ""
)

func (p Phase) String() string {
	return string(p)
}

// RawEvent is an unvalidated notification as received from the
// agent-execution collaborator. The bus validates and normalizes it.
type RawEvent struct {
	// SessionID identifies the research run. Required.
	SessionID string
	// Kind is the wire name of the lifecycle notification. Required.
	Kind string
	// Agent is the emitting agent's display name (e.g. "Research Analyst").
	Agent string
	// Tool is the tool name for tool_start/tool_end.
	Tool string
	// Input is the tool input for tool_start.
	Input string
	// Output is the tool output summary for tool_end.
	Output string
	// Message is the failure message for error events.
	Message string
	// Phase optionally pins the event to a phase. When empty the
	// aggregator infers the phase from the agent or the open step.
	Phase string
	// Details carries free-form failure detail for error events.
	Details string
}

// ActivityEvent is an immutable, normalized record appended to a session's
// activity log. The log is append-only; events are never mutated or removed.
type ActivityEvent struct {
	// SessionID identifies the owning session.
	SessionID string `json:"session_id"`
	// Seq is the position in the session's log, assigned by the dispatcher.
	Seq uint64 `json:"seq"`
	// Kind identifies the notification.
	Kind Kind `json:"kind"`
	// Agent is the emitting agent's name.
	Agent string `json:"agent,omitempty"`
	// Tool is set for tool_start/tool_end events.
	Tool string `json:"tool,omitempty"`
	// Input is the tool input for tool_start events.
	Input string `json:"input,omitempty"`
	// Output is the tool output summary for tool_end events.
	Output string `json:"output,omitempty"`
	// Message is the failure message for error events.
	Message string `json:"message,omitempty"`
	// Details is free-form failure detail for error events.
	Details string `json:"details,omitempty"`
	// Phase is the attributed phase, PhaseNone when not attributable.
	Phase Phase `json:"phase,omitempty"`
	// Timestamp is when the bus accepted the event.
	Timestamp time.Time `json:"timestamp"`
}

// Duration between two matched events, zero when either timestamp is unset.
func Duration(start, end ActivityEvent) time.Duration {
	if start.Timestamp.IsZero() || end.Timestamp.IsZero() {
		return 0
	}
	return end.Timestamp.Sub(start.Timestamp)
}
