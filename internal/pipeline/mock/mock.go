// Package mock drives a scripted three-agent research run through the
// callback surface. It exists for demos and for exercising the full
// tracker stack without a real agent backend.
package mock

import (
	"context"
	"fmt"
	"time"

	"github.com/zjrosen/talaash/internal/pipeline/event"
	"github.com/zjrosen/talaash/internal/pipeline/hooks"
)

type step struct {
	kind   event.Kind
	agent  string
	tool   string
	input  string
	output string
}

// script mirrors a full research run: each agent opens, works its tools,
// and closes before the next begins.
func script(topic string) []step {
	return []step{
		{kind: event.KindAgentStart, agent: "Research Analyst"},
		{kind: event.KindToolStart, agent: "Research Analyst", tool: "web_search", input: topic},
		{kind: event.KindToolEnd, agent: "Research Analyst", tool: "web_search", output: "12 results"},
		{kind: event.KindToolStart, agent: "Research Analyst", tool: "web_search", input: topic + " statistics"},
		{kind: event.KindToolEnd, agent: "Research Analyst", tool: "web_search", output: "8 results"},
		{kind: event.KindToolStart, agent: "Research Analyst", tool: "read_page", input: "top result"},
		{kind: event.KindToolEnd, agent: "Research Analyst", tool: "read_page", output: "page summary"},
		{kind: event.KindAgentEnd, agent: "Research Analyst", output: "research findings"},

		{kind: event.KindAgentStart, agent: "Policy & Media Analyst"},
		{kind: event.KindToolStart, agent: "Policy & Media Analyst", tool: "web_search", input: topic + " policy"},
		{kind: event.KindToolEnd, agent: "Policy & Media Analyst", tool: "web_search", output: "9 results"},
		{kind: event.KindToolStart, agent: "Policy & Media Analyst", tool: "news_search", input: topic + " coverage"},
		{kind: event.KindToolEnd, agent: "Policy & Media Analyst", tool: "news_search", output: "6 articles"},
		{kind: event.KindAgentEnd, agent: "Policy & Media Analyst", output: "policy analysis"},

		{kind: event.KindAgentStart, agent: "Source Curator"},
		{kind: event.KindToolStart, agent: "Source Curator", tool: "read_page", input: "candidate sources"},
		{kind: event.KindToolEnd, agent: "Source Curator", tool: "read_page", output: "source quality notes"},
		{kind: event.KindAgentEnd, agent: "Source Curator", output: "curated source list"},
	}
}

// Runner replays the scripted run against bound callbacks.
type Runner struct {
	callbacks *hooks.AgentCallbacks
	topic     string
	delay     time.Duration
}

// NewRunner builds a Runner. delay paces the steps for live viewing;
// zero runs the script as fast as dispatch allows.
func NewRunner(callbacks *hooks.AgentCallbacks, topic string, delay time.Duration) *Runner {
	return &Runner{callbacks: callbacks, topic: topic, delay: delay}
}

// Run replays the script and reports the final result. Cancelling ctx
// mid-run marks the session cancelled.
func (r *Runner) Run(ctx context.Context) error {
	for _, s := range script(r.topic) {
		if err := r.pause(ctx); err != nil {
			return err
		}
		if err := r.emit(ctx, s); err != nil {
			return err
		}
	}
	if err := r.pause(ctx); err != nil {
		return err
	}
	return r.callbacks.ReportResult(ctx, r.report())
}

func (r *Runner) emit(ctx context.Context, s step) error {
	switch s.kind {
	case event.KindAgentStart:
		return r.callbacks.OnAgentStart(ctx, s.agent)
	case event.KindAgentEnd:
		return r.callbacks.OnAgentEnd(ctx, s.agent, s.output)
	case event.KindToolStart:
		return r.callbacks.OnToolStart(ctx, s.agent, s.tool, s.input)
	case event.KindToolEnd:
		return r.callbacks.OnToolEnd(ctx, s.agent, s.tool, s.output)
	default:
		return fmt.Errorf("unscripted kind %q", s.kind)
	}
}

func (r *Runner) pause(ctx context.Context) error {
	if r.delay <= 0 {
		return ctx.Err()
	}
	select {
	case <-ctx.Done():
		_ = r.callbacks.ReportCancelled(context.WithoutCancel(ctx), "run cancelled")
		return ctx.Err()
	case <-time.After(r.delay):
		return nil
	}
}

func (r *Runner) report() string {
	return fmt.Sprintf(`# Research Report: %s

## Key Findings

The research phase surveyed current coverage of the topic and extracted
the dominant themes, supported by statistics from primary sources.

## Policy & Media Landscape

Policy positions and media framing were compared across outlets, with
notable divergence between institutional and editorial coverage.

## Curated Sources

1. Primary research summary
2. Policy briefing
3. Source quality notes
`, r.topic)
}
