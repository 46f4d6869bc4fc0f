// Package monitor renders a live view of one research session: per-phase
// progress bars, the rolling activity feed, and the final report or
// failure once the session terminates. It consumes the dispatcher's
// snapshot fan-out; state lives in the tracker, never in the view.
package monitor

import (
	"fmt"
	"strings"
	"time"

	bprogress "github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/muesli/reflow/wordwrap"

	"github.com/zjrosen/talaash/internal/pipeline/event"
	"github.com/zjrosen/talaash/internal/pipeline/progress"
	"github.com/zjrosen/talaash/internal/pipeline/store"
	"github.com/zjrosen/talaash/internal/pubsub"
)

const (
	defaultWidth = 80
	activityTail = 5
	logTail      = 6
	barWidth     = 30
)

// Model is the Bubble Tea model for the session monitor.
type Model struct {
	listener *pubsub.ContinuousListener[store.Snapshot]
	logFeed  *pubsub.ContinuousListener[string]
	agg      *progress.Aggregator
	order    []event.Phase

	spinner spinner.Model
	bar     bprogress.Model

	// sessionID filters the fan-out; empty adopts the first session seen.
	sessionID string
	snap      store.Snapshot
	haveSnap  bool
	rendered  string
	done      bool

	logLines []string
	showLogs bool

	width int
	now   func() time.Time
}

// New creates a monitor over the dispatcher's snapshot broker. sessionID
// may be empty to follow the first session that publishes. logFeed is the
// logger's entry broker; nil disables the log tail pane.
func New(listener *pubsub.ContinuousListener[store.Snapshot], logFeed *pubsub.ContinuousListener[string], agg *progress.Aggregator, sessionID string) Model {
	s := spinner.New(
		spinner.WithSpinner(spinner.Dot),
		spinner.WithStyle(lipgloss.NewStyle().Foreground(spinnerColor)),
	)
	bar := bprogress.New(bprogress.WithDefaultGradient())
	bar.Width = barWidth

	return Model{
		listener:  listener,
		logFeed:   logFeed,
		agg:       agg,
		order:     agg.Order(),
		spinner:   s,
		bar:       bar,
		sessionID: sessionID,
		width:     defaultWidth,
		now:       time.Now,
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.spinner.Tick, m.listener.Listen()}
	if m.logFeed != nil {
		cmds = append(cmds, m.logFeed.Listen())
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		case "l":
			m.showLogs = !m.showLogs
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		if m.done && m.snap.Outcome != nil && m.snap.Outcome.Kind == event.OutcomeResult {
			m.rendered = renderMarkdown(m.snap.Outcome.Content, m.contentWidth())
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case pubsub.Event[store.Snapshot]:
		return m.applySnapshot(msg)

	case pubsub.Event[string]:
		m.logLines = append(m.logLines, strings.TrimRight(msg.Payload, "\n"))
		if len(m.logLines) > logTail {
			m.logLines = m.logLines[len(m.logLines)-logTail:]
		}
		if m.logFeed != nil {
			return m, m.logFeed.Listen()
		}
		return m, nil
	}

	return m, nil
}

func (m Model) applySnapshot(msg pubsub.Event[store.Snapshot]) (tea.Model, tea.Cmd) {
	snap := msg.Payload
	if m.sessionID == "" {
		m.sessionID = snap.SessionID
	}
	if snap.SessionID != m.sessionID {
		return m, m.listener.Listen()
	}
	// Republished snapshots carry a sequence number; stale fan-out order
	// must never roll the view backwards.
	if m.haveSnap && snap.Seq < m.snap.Seq {
		return m, m.listener.Listen()
	}

	m.snap = snap
	m.haveSnap = true

	if snap.State.IsTerminal() {
		m.done = true
		if snap.Outcome != nil && snap.Outcome.Kind == event.OutcomeResult {
			m.rendered = renderMarkdown(snap.Outcome.Content, m.contentWidth())
		}
		return m, tea.Quit
	}
	return m, m.listener.Listen()
}

func (m Model) contentWidth() int {
	w := m.width - 2
	if w < 20 {
		w = 20
	}
	return w
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(m.header())
	b.WriteString("\n\n")

	for _, phase := range m.order {
		b.WriteString(m.phaseLine(phase))
		b.WriteString("\n")
	}

	if m.haveSnap {
		b.WriteString("\n")
		b.WriteString(m.overallLine())
		b.WriteString("\n")

		if tail := m.activityLines(); tail != "" {
			b.WriteString("\n")
			b.WriteString(tail)
		}
	}

	if m.showLogs && len(m.logLines) > 0 {
		b.WriteString("\n")
		for _, line := range m.logLines {
			b.WriteString(logLineStyle.Render(runewidth.Truncate(line, m.contentWidth(), "…")))
			b.WriteString("\n")
		}
	}

	if m.done {
		b.WriteString(m.outcomeView())
	} else {
		b.WriteString("\n")
		b.WriteString(footerStyle.Render("q to quit, l to toggle logs"))
		b.WriteString("\n")
	}

	return b.String()
}

func (m Model) header() string {
	if !m.haveSnap {
		return fmt.Sprintf("%s %s", m.spinner.View(), titleStyle.Render("Waiting for session..."))
	}
	if m.done {
		return titleStyle.Render(fmt.Sprintf("Session %s %s", m.snap.SessionID, m.snap.State))
	}
	return fmt.Sprintf("%s %s", m.spinner.View(), titleStyle.Render("Session "+m.snap.SessionID))
}

func (m Model) phaseLine(phase event.Phase) string {
	pp := m.snap.Board.Phases[phase]

	name := phaseNameStyle.Render(phase.String())
	if pp.Complete {
		name = phaseDoneStyle.Render(phase.String())
	}

	msgWidth := m.width - runewidth.StringWidth(phase.String()) - barWidth - 10
	if msgWidth < 10 {
		msgWidth = 10
	}
	msg := messageStyle.Render(runewidth.Truncate(pp.Message, msgWidth, "…"))

	return fmt.Sprintf("%s %s %s", name, m.bar.ViewAs(pp.Value), msg)
}

func (m Model) overallLine() string {
	overall := m.agg.Overall(m.snap.Board)
	line := fmt.Sprintf("overall %3.0f%%", overall*100)
	if !m.done {
		if eta := m.agg.EstimateRemaining(m.snap.Board, m.now()); eta > 0 {
			line += fmt.Sprintf("  ~%s remaining", eta.Round(time.Second))
		}
	}
	return footerStyle.Render(line)
}

func (m Model) activityLines() string {
	activity := m.snap.Activity
	if len(activity) == 0 {
		return ""
	}
	start := len(activity) - activityTail
	if start < 0 {
		start = 0
	}

	var b strings.Builder
	for _, ev := range activity[start:] {
		line := describeEvent(ev)
		b.WriteString(activityStyle.Render(runewidth.Truncate(line, m.contentWidth(), "…")))
		b.WriteString("\n")
	}
	return b.String()
}

func describeEvent(ev event.ActivityEvent) string {
	switch ev.Kind {
	case event.KindAgentStart:
		return fmt.Sprintf("▸ %s started", ev.Agent)
	case event.KindAgentEnd:
		return fmt.Sprintf("✓ %s finished", ev.Agent)
	case event.KindToolStart:
		return fmt.Sprintf("  %s → %s(%s)", ev.Agent, ev.Tool, ev.Input)
	case event.KindToolEnd:
		return fmt.Sprintf("  %s ← %s: %s", ev.Agent, ev.Tool, ev.Output)
	case event.KindError:
		return fmt.Sprintf("✗ %s", ev.Message)
	default:
		return string(ev.Kind)
	}
}

func (m Model) outcomeView() string {
	if m.snap.Outcome == nil {
		return ""
	}
	o := m.snap.Outcome

	if o.Kind == event.OutcomeResult {
		return "\n" + m.rendered
	}

	msg := o.Message
	if o.Cancelled {
		msg = "Cancelled: " + msg
	} else if o.Phase != event.PhaseNone {
		msg = fmt.Sprintf("%s failed: %s", o.Phase, msg)
	}
	if o.Details != "" {
		msg += "\n" + o.Details
	}
	return "\n" + errorBannerStyle.Render(wordwrap.String(msg, m.contentWidth()-4)) + "\n"
}
