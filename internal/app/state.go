package app

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/hangwatch/internal/lifecycle"
)

var stateCmd = &cobra.Command{
	Use:   "state <active|inactive|background>",
	Short: "Set the lifecycle state read by 'run --lifecycle file'",
	Long: `Write the lifecycle state file watched by 'hangwatch run --lifecycle file'.

A backgrounded or inactive loop is not watched for hangs. Returning to
active restarts the hang clock.`,
	Example: `  hangwatch state background
  hangwatch state active --state-file /tmp/hw.state`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"active", "inactive", "background"},
	RunE:      runState,
}

func init() {
	stateCmd.Flags().String("state-file", "", "state file path (default: ~/.hangwatch/state)")
}

func runState(cmd *cobra.Command, args []string) error {
	s, err := lifecycle.ParseState(args[0])
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.StateFile), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := lifecycle.WriteStateFile(cfg.StateFile, s); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ State set to %s (%s)\n", s, cfg.StateFile)
	return nil
}
