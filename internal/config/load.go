package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Load reads and validates the config file at path. Missing keys fall
// back to defaults. Uses an isolated viper instance so reloads never
// disturb the process-wide configuration state.
func Load(path string) (Config, error) {
	defaults := Defaults()

	v := viper.New()
	v.SetDefault("tracker.snapshot_tail", defaults.Tracker.SnapshotTail)
	v.SetDefault("tracker.broker_buffer", defaults.Tracker.BrokerBuffer)
	v.SetDefault("tracker.phases", defaults.Tracker.Phases)
	v.SetDefault("record.dir", defaults.Record.Dir)
	v.SetDefault("archive.path", defaults.Archive.Path)
	v.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	v.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)
	v.SetDefault("tracing.service_name", defaults.Tracing.ServiceName)

	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}
