package progress

import (
	"testing"
	"time"

	"pgregory.net/rapid"

	"github.com/zjrosen/talaash/internal/pipeline/event"
)

// These properties back the subsystem's ordering and monotonicity
// guarantees: per-phase progress never decreases across any event sequence,
// values stay inside [0, 1], and completion is permanent.

func randomEvent(t *rapid.T) event.ActivityEvent {
	agents := []string{
		"Research Analyst",
		"Policy & Media Analyst",
		"Source Curator",
		"Fact Checker", // not mapped to a phase
	}
	kinds := []event.Kind{
		event.KindAgentStart,
		event.KindAgentEnd,
		event.KindToolStart,
		event.KindToolEnd,
	}
	return event.ActivityEvent{
		SessionID: "prop",
		Kind:      rapid.SampledFrom(kinds).Draw(t, "kind"),
		Agent:     rapid.SampledFrom(agents).Draw(t, "agent"),
		Tool:      rapid.SampledFrom([]string{"search", "scholar", "archive"}).Draw(t, "tool"),
		Timestamp: time.Now(),
	}
}

func TestProgress_MonotonicUnderAnySequence(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		agg := testAggregator()
		board := agg.NewBoard()

		n := rapid.IntRange(0, 200).Draw(t, "n")
		for i := 0; i < n; i++ {
			prev := board
			board = agg.Apply(board, randomEvent(t))

			for _, phase := range agg.Order() {
				before := prev.Phases[phase]
				after := board.Phases[phase]

				if after.Value < before.Value {
					t.Fatalf("phase %s decreased: %f -> %f", phase, before.Value, after.Value)
				}
				if after.Value < 0 || after.Value > 1 {
					t.Fatalf("phase %s out of range: %f", phase, after.Value)
				}
				if before.Complete && !after.Complete {
					t.Fatalf("phase %s lost completion", phase)
				}
				if after.Complete && after.Value != 1.0 {
					t.Fatalf("phase %s complete but value %f", phase, after.Value)
				}
				if !after.Complete && after.Value == 1.0 {
					t.Fatalf("phase %s reached 1.0 without completion signal", phase)
				}
			}
		}
	})
}

func TestProgress_RecomputeIsPure(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		agg := testAggregator()

		n := rapid.IntRange(0, 100).Draw(t, "n")
		events := make([]event.ActivityEvent, 0, n)
		for i := 0; i < n; i++ {
			events = append(events, randomEvent(t))
		}

		first := agg.Recompute(events)
		second := agg.Recompute(events)

		for _, phase := range agg.Order() {
			if first.Phases[phase] != second.Phases[phase] {
				t.Fatalf("recompute not deterministic for %s", phase)
			}
		}
	})
}
