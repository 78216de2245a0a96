package app

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/hangwatch/internal/config"
)

var (
	cfgFile string

	// RootCmd is the root command for hangwatch
	RootCmd = &cobra.Command{
		Use:   "hangwatch",
		Short: "Main-loop hang watchdog with durable hang evidence",
		Long: `hangwatch watches a main loop for hangs. When the loop stops responding
for longer than the threshold, the stack of the loop goroutine is captured
and written to durable storage before anything else happens.

A hang that resolves is reported as non-fatal. A hang the process never
recovers from is reported as fatal on the next run, from the evidence left
behind.

Quick Start:
  1. hangwatch run --block 3s --block-every 10s
  2. hangwatch inspect

Examples:
  # Watch with a 500ms threshold and simulate a 2s hang every 5s
  hangwatch run --threshold 500ms --block 2s --block-every 5s

  # Show pending evidence and the event history
  hangwatch inspect

  # Drive the lifecycle from a state file
  hangwatch run --lifecycle file --state-file /tmp/hw.state
  hangwatch state background --state-file /tmp/hw.state

  # Forget everything
  hangwatch clear`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	// Global flags
	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $XDG_CONFIG_HOME/hangwatch/config.yaml)")
	RootCmd.PersistentFlags().String("db", "", "database path (default: ~/.hangwatch/hangwatch.db)")
	RootCmd.PersistentFlags().String("store", "", "evidence store: sqlite or file (default: sqlite)")
	RootCmd.PersistentFlags().String("store-dir", "", "directory for the file store (default: ~/.hangwatch/kv)")
	RootCmd.PersistentFlags().String("log-level", "", "log level: debug, info, warn, error (default: info)")

	// Enable cobra's built-in suggestion feature for unknown subcommands
	RootCmd.SuggestionsMinimumDistance = 2

	// Register subcommands
	RootCmd.AddCommand(runCmd)
	RootCmd.AddCommand(inspectCmd)
	RootCmd.AddCommand(clearCmd)
	RootCmd.AddCommand(stateCmd)
}

// Execute runs the root command
func Execute() error {
	return RootCmd.Execute()
}

// loadConfig resolves the configuration for cmd, applying its flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cfgFile, cmd.Flags())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger returns a text logger on stderr at the configured level.
func newLogger(cfg *config.Config) *slog.Logger {
	level, err := config.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
