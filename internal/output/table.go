// Package output provides terminal output utilities for hangwatch.
//
// This package includes:
//   - Table rendering for the hang event history
//   - A detail view for a single evidence record
//   - A spinner for long-running watch sessions
//
// All rendering functions use ASCII characters and ANSI color codes for terminal output.
package output

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/blackwell-systems/hangwatch/internal/hang"
	"github.com/blackwell-systems/hangwatch/internal/store"
)

// ANSI color codes for event kinds
const (
	colorReset  = "\033[0m"
	colorYellow = "\033[33m"
	colorRed    = "\033[31m"
	colorGray   = "\033[90m"
)

// IsColorEnabled returns true if ANSI color codes should be emitted.
// It checks that os.Stdout is a TTY and that the NO_COLOR env var is not set.
func IsColorEnabled() bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(os.Stdout.Fd())
}

// colorize wraps text in the given ANSI color code if color is enabled,
// otherwise returns the plain text.
func colorize(color, text string) string {
	if IsColorEnabled() {
		return color + text + colorReset
	}
	return text
}

// RenderHangTable renders the hang event history, newest first.
func RenderHangTable(events []*store.HangEvent) string {
	if len(events) == 0 {
		return "No hangs recorded.\n"
	}

	sorted := make([]*store.HangEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OccurredAt.After(sorted[j].OccurredAt)
	})

	var sb strings.Builder

	// Header
	sb.WriteString(fmt.Sprintf("%-5s %-10s %-15s %-10s %-8s\n",
		"ID", "Kind", "When", "Duration", "Startup"))
	sb.WriteString(strings.Repeat("─", 52))
	sb.WriteString("\n")

	// Rows
	for _, ev := range sorted {
		startup := "no"
		if ev.DuringStartup {
			startup = "yes"
		}
		kind := fmt.Sprintf("%-10s", formatKind(ev.Kind))
		sb.WriteString(fmt.Sprintf("%-5d %s %-15s %-10s %-8s\n",
			ev.ID,
			colorize(getKindColor(ev.Kind), kind),
			formatRelativeTime(ev.OccurredAt),
			formatDuration(time.Duration(ev.DurationMillis)*time.Millisecond),
			startup))
	}

	return sb.String()
}

// RenderHangSummary renders a one-line count per event kind.
// Format: "fatal: 1 · non-fatal: 4 · started: 5"
func RenderHangSummary(counts map[string]int) string {
	return fmt.Sprintf("%s · %s · %s\n",
		colorize(colorRed, fmt.Sprintf("fatal: %d", counts[store.KindFatal])),
		colorize(colorYellow, fmt.Sprintf("non-fatal: %d", counts[store.KindNonFatal])),
		colorize(colorGray, fmt.Sprintf("started: %d", counts[store.KindStarted])))
}

// RenderEvidence renders one evidence record with its call stack.
func RenderEvidence(e *hang.Evidence) string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("%-16s %s\n", "Duration:", formatDuration(e.Duration())))
	sb.WriteString(fmt.Sprintf("%-16s %t\n", "During startup:", e.DuringStartup))
	sb.WriteString(fmt.Sprintf("%-16s %s\n", "Architecture:", e.Architecture))
	sb.WriteString(fmt.Sprintf("%-16s %s\n", "OS version:", e.OSVersion))
	sb.WriteString(fmt.Sprintf("%-16s %t\n", "Prewarmed:", e.AppStart.StartedWithPrewarming))
	if screens := e.Runtime.OpenedScreens; len(screens) > 0 {
		sb.WriteString(fmt.Sprintf("%-16s %s\n", "Screens:", truncate(strings.Join(screens, " > "), 60)))
	}

	sb.WriteString("\nCall stack:\n")
	if e.CallStack == "" {
		sb.WriteString(colorize(colorGray, "  (not captured)"))
		sb.WriteString("\n")
		return sb.String()
	}
	for _, line := range strings.Split(strings.TrimRight(e.CallStack, "\n"), "\n") {
		sb.WriteString("  ")
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

// formatKind returns a display label for an event kind.
func formatKind(kind string) string {
	switch kind {
	case store.KindFatal:
		return "FATAL"
	case store.KindNonFatal:
		return "NON-FATAL"
	case store.KindStarted:
		return "STARTED"
	default:
		return strings.ToUpper(kind)
	}
}

// getKindColor returns the ANSI color code for an event kind.
func getKindColor(kind string) string {
	switch kind {
	case store.KindFatal:
		return colorRed
	case store.KindNonFatal:
		return colorYellow
	default:
		return colorGray
	}
}

// formatDuration renders a hang duration at a useful precision.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%d ms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1f s", d.Seconds())
	default:
		return d.Truncate(time.Second).String()
	}
}

// formatRelativeTime converts a timestamp to relative time (e.g., "2 days ago").
func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "never"
	}

	diff := time.Since(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		mins := int(diff.Minutes())
		if mins == 1 {
			return "1 minute ago"
		}
		return fmt.Sprintf("%d minutes ago", mins)
	case diff < 24*time.Hour:
		hours := int(diff.Hours())
		if hours == 1 {
			return "1 hour ago"
		}
		return fmt.Sprintf("%d hours ago", hours)
	case diff < 7*24*time.Hour:
		days := int(diff.Hours() / 24)
		if days == 1 {
			return "1 day ago"
		}
		return fmt.Sprintf("%d days ago", days)
	default:
		weeks := int(diff.Hours() / 24 / 7)
		if weeks == 1 {
			return "1 week ago"
		}
		return fmt.Sprintf("%d weeks ago", weeks)
	}
}

// truncate truncates a string to maxLen, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
