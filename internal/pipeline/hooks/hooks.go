// Package hooks is the caller-facing surface of the tracker. A pipeline
// run binds an AgentCallbacks to its session and invokes the On* methods
// from agent/tool lifecycle points; the callbacks feed the event bus.
package hooks

import (
	"context"

	"github.com/zjrosen/talaash/internal/pipeline/bus"
	"github.com/zjrosen/talaash/internal/pipeline/event"
	"github.com/zjrosen/talaash/internal/pipeline/faults"
	"github.com/zjrosen/talaash/internal/pipeline/store"
)

// Completer finalizes a session. Satisfied by dispatch.Dispatcher.
type Completer interface {
	Complete(ctx context.Context, sessionID, content string) error
}

// AgentCallbacks is bound to one session. Methods are safe for concurrent
// use; ordering guarantees come from the dispatcher, not from here.
type AgentCallbacks struct {
	sessionID string
	bus       *bus.Bus
	faults    *faults.Channel
	completer Completer
}

// Bind creates callbacks for the given session. An empty session id gets
// a fresh opaque one.
func Bind(sessionID string, b *bus.Bus, fc *faults.Channel, completer Completer) *AgentCallbacks {
	if sessionID == "" {
		sessionID = store.NewSessionID()
	}
	return &AgentCallbacks{
		sessionID: sessionID,
		bus:       b,
		faults:    fc,
		completer: completer,
	}
}

// SessionID returns the bound session token, for callers that let Bind
// generate one.
func (c *AgentCallbacks) SessionID() string {
	return c.sessionID
}

// OnAgentStart reports that an agent began its task.
func (c *AgentCallbacks) OnAgentStart(ctx context.Context, agent string) error {
	return c.bus.Submit(ctx, event.RawEvent{
		SessionID: c.sessionID,
		Kind:      event.KindAgentStart.String(),
		Agent:     agent,
	})
}

// OnAgentEnd reports that an agent finished. For the agent that owns a
// phase this is the phase-completion signal.
func (c *AgentCallbacks) OnAgentEnd(ctx context.Context, agent, output string) error {
	return c.bus.Submit(ctx, event.RawEvent{
		SessionID: c.sessionID,
		Kind:      event.KindAgentEnd.String(),
		Agent:     agent,
		Output:    output,
	})
}

// OnToolStart reports a tool invocation.
func (c *AgentCallbacks) OnToolStart(ctx context.Context, agent, tool, input string) error {
	return c.bus.Submit(ctx, event.RawEvent{
		SessionID: c.sessionID,
		Kind:      event.KindToolStart.String(),
		Agent:     agent,
		Tool:      tool,
		Input:     input,
	})
}

// OnToolEnd reports a tool invocation returning.
func (c *AgentCallbacks) OnToolEnd(ctx context.Context, agent, tool, output string) error {
	return c.bus.Submit(ctx, event.RawEvent{
		SessionID: c.sessionID,
		Kind:      event.KindToolEnd.String(),
		Agent:     agent,
		Tool:      tool,
		Output:    output,
	})
}

// ReportResult records the run's final content and completes the session.
func (c *AgentCallbacks) ReportResult(ctx context.Context, content string) error {
	return c.completer.Complete(ctx, c.sessionID, content)
}

// ReportError records a pipeline failure and returns the error the caller
// must re-raise.
func (c *AgentCallbacks) ReportError(ctx context.Context, phase event.Phase, message, details string, cause error) error {
	return c.faults.Report(ctx, c.sessionID, phase, message, details, cause)
}

// ReportCancelled marks the run cancelled by its owner.
func (c *AgentCallbacks) ReportCancelled(ctx context.Context, reason string) error {
	return c.faults.Cancelled(ctx, c.sessionID, reason)
}
