package app

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/hangwatch/internal/crashmark"
	"github.com/blackwell-systems/hangwatch/internal/hang"
)

var (
	clearKeepHistory bool

	clearCmd = &cobra.Command{
		Use:   "clear",
		Short: "Discard pending hang evidence and the event history",
		Long: `Discard pending hang evidence, the crash marker and the event history.

After clearing, the next run reports no fatal hang.`,
		Example: `  # Forget everything
  hangwatch clear

  # Only drop pending evidence
  hangwatch clear --keep-history`,
		RunE: runClear,
	}
)

func init() {
	clearCmd.Flags().BoolVar(&clearKeepHistory, "keep-history", false, "keep the event history")
}

func runClear(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return clearAll(cmd.OutOrStdout(), st, clearKeepHistory)
}

func clearAll(w io.Writer, st *stores, keepHistory bool) error {
	_, pending, err := st.kv.Read(hang.StoreDomain, hang.StoreKey)
	if err != nil {
		return fmt.Errorf("failed to read pending evidence: %w", err)
	}
	if err := st.kv.Write(hang.StoreDomain, hang.StoreKey, nil); err != nil {
		return fmt.Errorf("failed to clear pending evidence: %w", err)
	}
	if pending {
		fmt.Fprintln(w, "✓ Pending hang evidence discarded")
	}

	marker, err := crashmark.Consume(st.kv)
	if err != nil {
		return err
	}
	if marker != nil {
		fmt.Fprintln(w, "✓ Crash marker discarded")
	}

	if st.db != nil && !keepHistory {
		n, err := st.db.DeleteHangEvents()
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "✓ %d hang events deleted\n", n)
	}
	return nil
}
