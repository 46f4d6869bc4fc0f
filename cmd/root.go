package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/zjrosen/talaash/internal/config"
	"github.com/zjrosen/talaash/internal/log"
	"github.com/zjrosen/talaash/internal/pipeline/archive"
	"github.com/zjrosen/talaash/internal/pipeline/bus"
	"github.com/zjrosen/talaash/internal/pipeline/dispatch"
	"github.com/zjrosen/talaash/internal/pipeline/faults"
	"github.com/zjrosen/talaash/internal/pipeline/hooks"
	"github.com/zjrosen/talaash/internal/pipeline/mock"
	"github.com/zjrosen/talaash/internal/pipeline/progress"
	"github.com/zjrosen/talaash/internal/pipeline/record"
	"github.com/zjrosen/talaash/internal/pipeline/store"
	"github.com/zjrosen/talaash/internal/pubsub"
	"github.com/zjrosen/talaash/internal/tracing"
	"github.com/zjrosen/talaash/internal/ui/monitor"
	"github.com/zjrosen/talaash/internal/watcher"
)

func init() {
	// Force lipgloss/termenv to query terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in input fields.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version = "dev"
	cfgFile string
	cfg     config.Config
)

var rootCmd = &cobra.Command{
	Use:     "talaash",
	Short:   "Live progress tracking for multi-agent research runs",
	Long: `Talaash tracks multi-agent research pipelines: it ingests agent and
tool lifecycle events, derives per-phase progress, and renders a live
session monitor in the terminal.

The root command replays a scripted research run through the full
tracker stack so the monitor can be watched without a real agent
backend.`,
	Version: version,
	RunE:    runDemo,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/talaash/config.yaml)")
	rootCmd.Flags().StringP("topic", "t", "renewable energy policy",
		"research topic for the scripted run")
	rootCmd.Flags().DurationP("delay", "d", 400*time.Millisecond,
		"pacing between scripted events")
	rootCmd.Flags().Bool("record", false,
		"record session activity to JSONL files")
	rootCmd.Flags().Bool("archive", false,
		"archive terminal sessions to SQLite")
	rootCmd.Flags().Bool("debug", false,
		"log at debug level")

	_ = viper.BindPFlag("record.enabled", rootCmd.Flags().Lookup("record"))
	_ = viper.BindPFlag("archive.enabled", rootCmd.Flags().Lookup("archive"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("tracker.snapshot_tail", defaults.Tracker.SnapshotTail)
	viper.SetDefault("tracker.broker_buffer", defaults.Tracker.BrokerBuffer)
	viper.SetDefault("tracker.phases", defaults.Tracker.Phases)
	viper.SetDefault("record.dir", defaults.Record.Dir)
	viper.SetDefault("archive.path", defaults.Archive.Path)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	viper.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		// Config lookup order:
		// 1. .talaash/config.yaml (current directory)
		// 2. ~/.config/talaash/config.yaml (user config)
		if _, err := os.Stat(".talaash/config.yaml"); err == nil {
			viper.SetConfigFile(".talaash/config.yaml")
		} else {
			home, _ := os.UserHomeDir()
			viper.AddConfigPath(filepath.Join(home, ".config", "talaash"))
			viper.SetConfigName("config")
			viper.SetConfigType("yaml")
		}
	}

	if err := viper.ReadInConfig(); err != nil {
		// No config file found anywhere - create default at .talaash/config.yaml
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			defaultPath := ".talaash/config.yaml"
			if writeErr := config.WriteDefaultConfig(defaultPath); writeErr == nil {
				viper.SetConfigFile(defaultPath)
				_ = viper.ReadInConfig()
			}
			// If write fails, just continue with defaults (no config file)
		}
	}

	_ = viper.Unmarshal(&cfg)
}

func runDemo(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	cleanup, err := log.Init(".talaash/talaash.log")
	if err == nil {
		defer cleanup()
	}
	if debug, _ := cmd.Flags().GetBool("debug"); debug || os.Getenv("TALAASH_DEBUG") != "" {
		log.SetMinLevel(log.LevelDebug)
	} else {
		log.SetMinLevel(log.LevelInfo)
	}

	tp, err := tracing.NewProvider(cfg.Tracing)
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	agg := progress.NewAggregator(cfg.AgentPhases(), cfg.ExpectedSteps(), cfg.PhaseOrder())
	d := dispatch.New(
		store.New(cfg.Tracker.SnapshotTail),
		agg,
		dispatch.WithBrokerBuffer(cfg.Tracker.BrokerBuffer),
		dispatch.WithTracer(tp.Tracer()),
	)
	defer d.Close()

	if cfg.Record.Enabled {
		if cfg.Tracker.SnapshotTail > 0 {
			log.Warn(log.CatRecord, "recording with a bounded snapshot tail can miss entries when deliveries are dropped",
				"snapshot_tail", cfg.Tracker.SnapshotTail)
		}
		recorder, err := record.NewRecorder(cfg.Record.Dir)
		if err != nil {
			return fmt.Errorf("initializing recorder: %w", err)
		}
		defer func() { _ = recorder.Close() }()
		recorder.Attach(ctx, d.Broker())
	}

	if cfg.Archive.Enabled {
		db, err := archive.NewDB(cfg.Archive.Path)
		if err != nil {
			return fmt.Errorf("opening archive: %w", err)
		}
		defer func() { _ = db.Close() }()
		archive.NewStore(db).Attach(ctx, d.Broker())
	}

	if configPath := viper.ConfigFileUsed(); configPath != "" {
		w, werr := watcher.New(watcher.DefaultConfig(configPath))
		if werr == nil {
			if onChange, serr := w.Start(); serr == nil {
				defer func() { _ = w.Stop() }()
				log.SafeGo("config.watch", func() {
					for range onChange {
						next, lerr := config.Load(configPath)
						if lerr != nil {
							log.ErrorErr(log.CatConfig, "config changed on disk but did not load; keeping previous phase definitions", lerr, "path", configPath)
							continue
						}
						d.Reload(progress.NewAggregator(next.AgentPhases(), next.ExpectedSteps(), next.PhaseOrder()))
						log.Info(log.CatConfig, "config reloaded; new sessions use the updated phase definitions", "path", configPath)
					}
				})
			}
		}
	}

	topic, _ := cmd.Flags().GetString("topic")
	delay, _ := cmd.Flags().GetDuration("delay")

	callbacks := hooks.Bind("", bus.New(d), faults.New(d), d)
	runner := mock.NewRunner(callbacks, topic, delay)
	log.SafeGo("demo.runner", func() {
		if err := runner.Run(ctx); err != nil {
			log.ErrorErr(log.CatDispatch, "demo run aborted", err, "session", callbacks.SessionID())
		}
	})

	listener := pubsub.NewContinuousListener(ctx, d.Broker())
	model := monitor.New(listener, log.NewListener(ctx), agg, callbacks.SessionID())
	p := tea.NewProgram(model, tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags)
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
