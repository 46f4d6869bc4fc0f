// Package config provides configuration types, defaults, and persistence
// for talaash.
package config

import (
	"fmt"

	"github.com/zjrosen/talaash/internal/pipeline/event"
)

// PhaseConfig defines one tracked pipeline stage.
type PhaseConfig struct {
	// ID is the phase identifier (e.g. "research").
	ID string `mapstructure:"id" yaml:"id"`
	// Agent is the display name of the agent that owns the phase.
	// The agent's agent_end event is the explicit completion signal.
	Agent string `mapstructure:"agent" yaml:"agent"`
	// ExpectedSteps is how many *_end events a full run of this phase
	// produces. Progress is the ratio of observed ends to this count.
	ExpectedSteps int `mapstructure:"expected_steps" yaml:"expected_steps"`
}

// TrackerConfig tunes the progress/activity cache.
type TrackerConfig struct {
	// SnapshotTail is how many trailing activity entries a snapshot
	// carries. Zero means the full log.
	SnapshotTail int `mapstructure:"snapshot_tail" yaml:"snapshot_tail"`
	// BrokerBuffer is the per-subscriber snapshot channel depth.
	BrokerBuffer int `mapstructure:"broker_buffer" yaml:"broker_buffer"`
	// Phases lists the tracked stages in pipeline order.
	Phases []PhaseConfig `mapstructure:"phases" yaml:"phases"`
}

// RecordConfig controls on-disk session recording.
type RecordConfig struct {
	// Enabled turns JSONL activity recording on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Dir is the base directory for per-session folders.
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// ArchiveConfig controls the SQLite archive of terminal sessions.
type ArchiveConfig struct {
	// Enabled turns archiving on.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
	// Path is the SQLite database file.
	Path string `mapstructure:"path" yaml:"path"`
}

// TracingConfig configures the OpenTelemetry provider.
type TracingConfig struct {
	Enabled      bool    `mapstructure:"enabled" yaml:"enabled"`
	Exporter     string  `mapstructure:"exporter" yaml:"exporter"` // "none", "stdout", "otlp"
	OTLPEndpoint string  `mapstructure:"otlp_endpoint" yaml:"otlp_endpoint"`
	SampleRate   float64 `mapstructure:"sample_rate" yaml:"sample_rate"`
	ServiceName  string  `mapstructure:"service_name" yaml:"service_name"`
}

// Config holds all configuration options for talaash.
type Config struct {
	Tracker TrackerConfig `mapstructure:"tracker" yaml:"tracker"`
	Record  RecordConfig  `mapstructure:"record" yaml:"record"`
	Archive ArchiveConfig `mapstructure:"archive" yaml:"archive"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// Defaults returns a Config mirroring the three-agent research pipeline.
func Defaults() Config {
	return Config{
		Tracker: TrackerConfig{
			SnapshotTail: 0, // full log
			BrokerBuffer: 64,
			Phases: []PhaseConfig{
				{ID: string(event.PhaseResearch), Agent: "Research Analyst", ExpectedSteps: 4},
				{ID: string(event.PhasePolicy), Agent: "Policy & Media Analyst", ExpectedSteps: 4},
				{ID: string(event.PhaseSources), Agent: "Source Curator", ExpectedSteps: 3},
			},
		},
		Record: RecordConfig{
			Enabled: false,
			Dir:     ".talaash/sessions",
		},
		Archive: ArchiveConfig{
			Enabled: false,
			Path:    ".talaash/archive.db",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Exporter:    "stdout",
			SampleRate:  1.0,
			ServiceName: "talaash-tracker",
		},
	}
}

// ValidateTracker checks the tracker section for errors.
func ValidateTracker(tracker TrackerConfig) error {
	if tracker.SnapshotTail < 0 {
		return fmt.Errorf("tracker.snapshot_tail must be >= 0, got %d", tracker.SnapshotTail)
	}
	if tracker.BrokerBuffer < 0 {
		return fmt.Errorf("tracker.broker_buffer must be >= 0, got %d", tracker.BrokerBuffer)
	}
	seen := make(map[string]bool, len(tracker.Phases))
	for _, p := range tracker.Phases {
		if p.ID == "" {
			return fmt.Errorf("tracker.phases entries require an id")
		}
		if seen[p.ID] {
			return fmt.Errorf("tracker.phases has duplicate id %q", p.ID)
		}
		seen[p.ID] = true
		if p.ExpectedSteps < 1 {
			return fmt.Errorf("tracker.phases[%s].expected_steps must be >= 1, got %d", p.ID, p.ExpectedSteps)
		}
	}
	return nil
}

// ValidateTracing checks tracing configuration for errors.
// Empty values fall back to defaults.
func ValidateTracing(tracing TracingConfig) error {
	if tracing.SampleRate < 0.0 || tracing.SampleRate > 1.0 {
		return fmt.Errorf("tracing.sample_rate must be between 0.0 and 1.0, got %v", tracing.SampleRate)
	}
	if tracing.Exporter != "" {
		switch tracing.Exporter {
		case "none", "stdout", "otlp":
		default:
			return fmt.Errorf("tracing.exporter must be \"none\", \"stdout\", or \"otlp\", got %q", tracing.Exporter)
		}
	}
	if tracing.Enabled && tracing.Exporter == "otlp" && tracing.OTLPEndpoint == "" {
		return fmt.Errorf("tracing.otlp_endpoint is required when exporter is \"otlp\"")
	}
	return nil
}

// Validate checks the whole configuration.
func (c Config) Validate() error {
	if err := ValidateTracker(c.Tracker); err != nil {
		return err
	}
	if err := ValidateTracing(c.Tracing); err != nil {
		return err
	}
	if c.Record.Enabled && c.Record.Dir == "" {
		return fmt.Errorf("record.dir is required when record.enabled is true")
	}
	if c.Archive.Enabled && c.Archive.Path == "" {
		return fmt.Errorf("archive.path is required when archive.enabled is true")
	}
	return nil
}

// AgentPhases builds the agent→phase attribution map used by the
// progress aggregator.
func (c Config) AgentPhases() map[string]event.Phase {
	m := make(map[string]event.Phase, len(c.Tracker.Phases))
	for _, p := range c.Tracker.Phases {
		if p.Agent != "" {
			m[p.Agent] = event.Phase(p.ID)
		}
	}
	return m
}

// ExpectedSteps builds the per-phase expected step counts.
func (c Config) ExpectedSteps() map[event.Phase]int {
	m := make(map[event.Phase]int, len(c.Tracker.Phases))
	for _, p := range c.Tracker.Phases {
		m[event.Phase(p.ID)] = p.ExpectedSteps
	}
	return m
}

// PhaseOrder returns phase ids in configured pipeline order.
func (c Config) PhaseOrder() []event.Phase {
	order := make([]event.Phase, 0, len(c.Tracker.Phases))
	for _, p := range c.Tracker.Phases {
		order = append(order, event.Phase(p.ID))
	}
	return order
}
