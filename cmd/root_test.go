package cmd

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/require"

	"github.com/zjrosen/talaash/internal/config"
)

// TestDefaultConfig_RoundTripsThroughViper verifies that the file written
// by WriteDefaultConfig unmarshals back into the same phase definitions
// the tracker boots with.
func TestDefaultConfig_RoundTripsThroughViper(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.WriteDefaultConfig(path))

	v := viper.New()
	v.SetConfigFile(path)
	require.NoError(t, v.ReadInConfig())

	var got config.Config
	require.NoError(t, v.Unmarshal(&got))
	require.Equal(t, config.Defaults().Tracker.Phases, got.Tracker.Phases)
	require.NoError(t, got.Validate())
}

func TestRootCommand_Flags(t *testing.T) {
	require.NotNil(t, rootCmd.Flags().Lookup("topic"))
	require.NotNil(t, rootCmd.Flags().Lookup("delay"))
	require.NotNil(t, rootCmd.Flags().Lookup("debug"))
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
}
