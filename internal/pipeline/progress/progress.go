// Package progress derives per-phase completion from the activity stream.
// Recompute is a pure function of the log; Apply is the incremental
// single-event form the dispatcher uses inside its critical section so the
// cost per mutation stays O(1) instead of O(len(log)).
package progress

import (
	"fmt"
	"math"
	"time"

	"github.com/zjrosen/talaash/internal/pipeline/event"
)

// runningCap keeps inferred progress below 1.0 until the phase's owning
// agent signals completion with agent_end.
const runningCap = 0.99

// PhaseProgress is the derived view of one pipeline stage.
type PhaseProgress struct {
	// Value is in [0.0, 1.0]; exactly 1.0 only after the explicit
	// completion signal.
	Value float64 `json:"value"`
	// Message is the human-readable status line for the phase.
	Message string `json:"message"`
	// Complete is set by the phase's explicit completion signal.
	Complete bool `json:"complete"`
}

// openStep tracks a started agent/tool step without a matching end.
type openStep struct {
	agent string
	tool  string // empty for agent steps
	phase event.Phase
}

// Board is a point-in-time progress view plus the minimal working state
// needed to advance it one event at a time. Boards are value types: Apply
// returns a fresh copy, so a Board captured in a snapshot never changes.
type Board struct {
	// Phases maps phase id to its derived progress.
	Phases map[event.Phase]PhaseProgress `json:"phases"`
	// StartedAt is the timestamp of the first applied event.
	StartedAt time.Time `json:"started_at,omitzero"`
	// UpdatedAt is the timestamp of the last applied event.
	UpdatedAt time.Time `json:"updated_at,omitzero"`

	// ends counts *_end events attributed per phase.
	ends map[event.Phase]int
	// open is the stack of started steps without a matching end.
	open []openStep
}

// Aggregator attributes events to phases and folds them into Boards.
// It is stateless between calls; all working state rides on the Board.
type Aggregator struct {
	agents   map[string]event.Phase
	expected map[event.Phase]int
	order    []event.Phase
}

// NewAggregator builds an aggregator from the configured phase definitions.
func NewAggregator(agents map[string]event.Phase, expected map[event.Phase]int, order []event.Phase) *Aggregator {
	return &Aggregator{
		agents:   agents,
		expected: expected,
		order:    order,
	}
}

// NewBoard returns the zero progress view: every configured phase waiting.
func (a *Aggregator) NewBoard() Board {
	phases := make(map[event.Phase]PhaseProgress, len(a.order))
	for _, p := range a.order {
		phases[p] = PhaseProgress{Message: fmt.Sprintf("Waiting to start %s", p)}
	}
	return Board{
		Phases: phases,
		ends:   make(map[event.Phase]int, len(a.order)),
	}
}

// Order returns the configured phase order for rendering.
func (a *Aggregator) Order() []event.Phase {
	return a.order
}

// Recompute folds the full activity log into a Board. Pure function: the
// same log always yields the same Board.
func (a *Aggregator) Recompute(events []event.ActivityEvent) Board {
	board := a.NewBoard()
	for _, ev := range events {
		board = a.Apply(board, ev)
	}
	return board
}

// Apply advances the board by one event and returns the new board. The
// input board is not modified. Events that cannot be attributed to any
// phase leave progress untouched.
func (a *Aggregator) Apply(prev Board, ev event.ActivityEvent) Board {
	board := prev.clone()

	if board.StartedAt.IsZero() {
		board.StartedAt = ev.Timestamp
	}
	if ev.Timestamp.After(board.UpdatedAt) {
		board.UpdatedAt = ev.Timestamp
	}

	phase := a.Attribute(board, ev)

	switch ev.Kind {
	case event.KindAgentStart:
		board.open = append(board.open, openStep{agent: ev.Agent, phase: phase})
		board.setMessage(phase, fmt.Sprintf("Starting %s analysis", phase))

	case event.KindToolStart:
		board.open = append(board.open, openStep{agent: ev.Agent, tool: ev.Tool, phase: phase})
		board.setMessage(phase, fmt.Sprintf("Running %s", ev.Tool))

	case event.KindToolEnd:
		board.popOpen(ev.Agent, ev.Tool)
		a.countEnd(&board, phase)

	case event.KindAgentEnd:
		board.popOpen(ev.Agent, "")
		if owned, ok := a.agents[ev.Agent]; ok && owned != event.PhaseNone {
			// Explicit phase-completion signal.
			board.complete(owned)
		} else {
			a.countEnd(&board, phase)
		}

	case event.KindError:
		if phase != event.PhaseNone {
			board.setMessage(phase, fmt.Sprintf("%s failed: %s", phase, ev.Message))
		}
	}

	return board
}

// Attribute infers the phase for an event: explicit field first, then the
// agent→phase mapping, then the most recently opened step's phase. Events
// with no attribution return PhaseNone and are excluded from progress.
func (a *Aggregator) Attribute(board Board, ev event.ActivityEvent) event.Phase {
	if ev.Phase != event.PhaseNone {
		if _, known := board.Phases[ev.Phase]; known {
			return ev.Phase
		}
	}
	if p, ok := a.agents[ev.Agent]; ok {
		return p
	}
	for i := len(board.open) - 1; i >= 0; i-- {
		if board.open[i].phase != event.PhaseNone {
			return board.open[i].phase
		}
	}
	return event.PhaseNone
}

// countEnd advances a phase by one completed sub-step, clamped below 1.0
// until the explicit completion signal.
func (a *Aggregator) countEnd(board *Board, phase event.Phase) {
	if phase == event.PhaseNone {
		return
	}
	pp, ok := board.Phases[phase]
	if !ok || pp.Complete {
		return
	}

	board.ends[phase]++
	expected := a.expected[phase]
	if expected < 1 {
		expected = 1
	}

	value := math.Min(float64(board.ends[phase])/float64(expected), runningCap)
	// Progress never decreases within a running session.
	if value > pp.Value {
		pp.Value = value
	}
	board.Phases[phase] = pp
}

// Overall returns the mean progress across configured phases, in [0, 1].
func (a *Aggregator) Overall(board Board) float64 {
	if len(a.order) == 0 {
		return 0
	}
	var sum float64
	for _, p := range a.order {
		sum += board.Phases[p].Value
	}
	return sum / float64(len(a.order))
}

// EstimateRemaining projects time left from elapsed time and overall
// progress. Returns zero until progress is measurable.
func (a *Aggregator) EstimateRemaining(board Board, now time.Time) time.Duration {
	overall := a.Overall(board)
	if overall <= 0 || board.StartedAt.IsZero() {
		return 0
	}
	elapsed := now.Sub(board.StartedAt)
	if elapsed <= 0 {
		return 0
	}
	total := time.Duration(float64(elapsed) / overall)
	if total <= elapsed {
		return 0
	}
	return total - elapsed
}

func (b Board) clone() Board {
	phases := make(map[event.Phase]PhaseProgress, len(b.Phases))
	for k, v := range b.Phases {
		phases[k] = v
	}
	ends := make(map[event.Phase]int, len(b.ends))
	for k, v := range b.ends {
		ends[k] = v
	}
	open := make([]openStep, len(b.open))
	copy(open, b.open)

	return Board{
		Phases:    phases,
		StartedAt: b.StartedAt,
		UpdatedAt: b.UpdatedAt,
		ends:      ends,
		open:      open,
	}
}

func (b *Board) setMessage(phase event.Phase, msg string) {
	if phase == event.PhaseNone {
		return
	}
	pp, ok := b.Phases[phase]
	if !ok || pp.Complete {
		return
	}
	pp.Message = msg
	b.Phases[phase] = pp
}

func (b *Board) complete(phase event.Phase) {
	pp, ok := b.Phases[phase]
	if !ok {
		return
	}
	pp.Value = 1.0
	pp.Complete = true
	pp.Message = fmt.Sprintf("%s complete", phase)
	b.Phases[phase] = pp
}

// popOpen removes the most recent open step matching agent (and tool, when
// given). Unmatched ends are tolerated; the log is the source of truth.
func (b *Board) popOpen(agent, tool string) {
	for i := len(b.open) - 1; i >= 0; i-- {
		s := b.open[i]
		if s.agent != agent {
			continue
		}
		if tool != "" && s.tool != tool {
			continue
		}
		if tool == "" && s.tool != "" {
			continue
		}
		b.open = append(b.open[:i], b.open[i+1:]...)
		return
	}
}
