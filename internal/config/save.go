package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// WriteDefaultConfig creates a config file at the given path with default
// settings. Parent directories are created as needed.
func WriteDefaultConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(Defaults())
	if err != nil {
		return fmt.Errorf("marshaling defaults: %w", err)
	}

	header := []byte("# talaash configuration\n# Phases list the tracked pipeline stages in order.\n")
	if err := os.WriteFile(configPath, append(header, data...), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
