package app

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/hangwatch/internal/hang"
	"github.com/blackwell-systems/hangwatch/internal/output"
	"github.com/blackwell-systems/hangwatch/internal/store"
)

var (
	inspectLimit int

	inspectCmd = &cobra.Command{
		Use:   "inspect",
		Short: "Show pending hang evidence and the event history",
		Long: `Show the hang evidence currently on disk and the recorded hang events.

Pending evidence is what the next 'hangwatch run' will report as a fatal
hang. Inspecting does not consume it.

The event history is only kept by the sqlite store.`,
		Example: `  # Show pending evidence and the last 20 events
  hangwatch inspect

  # Show the full history
  hangwatch inspect --limit 0`,
		RunE: runInspect,
	}
)

func init() {
	inspectCmd.Flags().IntVar(&inspectLimit, "limit", 20, "maximum number of events to show (0 for all)")
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	st, err := openStores(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	return inspect(cmd.OutOrStdout(), st, inspectLimit)
}

func inspect(w io.Writer, st *stores, limit int) error {
	raw, ok, err := st.kv.Read(hang.StoreDomain, hang.StoreKey)
	if err != nil {
		return fmt.Errorf("failed to read pending evidence: %w", err)
	}

	fmt.Fprintln(w, "Pending evidence")
	fmt.Fprintln(w)
	switch {
	case !ok:
		fmt.Fprintln(w, "No pending hang evidence.")
	default:
		e, err := hang.DecodeEvidence(raw)
		if err != nil {
			fmt.Fprintf(w, "Pending evidence is unreadable and will be discarded: %v\n", err)
			break
		}
		fmt.Fprint(w, output.RenderEvidence(e))
	}

	if st.db == nil {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "The file store keeps no event history.")
		return nil
	}

	events, err := st.db.ListHangEvents(limit)
	if err != nil {
		if errors.Is(err, store.ErrNotInitialized) {
			return err
		}
		return fmt.Errorf("failed to list hang events: %w", err)
	}
	counts, err := st.db.CountHangEvents()
	if err != nil {
		return fmt.Errorf("failed to count hang events: %w", err)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "History")
	fmt.Fprintln(w)
	fmt.Fprint(w, output.RenderHangSummary(counts))
	fmt.Fprintln(w)
	fmt.Fprint(w, output.RenderHangTable(events))
	return nil
}
