package app

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"syscall"
)

// acquirePIDFile claims pidFile for this process. Only one run may own the
// evidence slot at a time; a stale PID file left by a dead process is
// taken over.
func acquirePIDFile(pidFile string) (release func(), err error) {
	running, pid, err := isRunning(pidFile)
	if err != nil {
		return nil, fmt.Errorf("failed to check PID file: %w", err)
	}
	if running && pid != os.Getpid() {
		return nil, fmt.Errorf("hangwatch already running with PID %d (PID file: %s)", pid, pidFile)
	}

	if err := os.WriteFile(pidFile, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644); err != nil {
		return nil, fmt.Errorf("failed to write PID file: %w", err)
	}
	return func() {
		if err := os.Remove(pidFile); err != nil && !os.IsNotExist(err) {
			fmt.Fprintf(os.Stderr, "warning: failed to remove PID file: %v\n", err)
		}
	}, nil
}

// isRunning checks if the process named in pidFile is alive.
func isRunning(pidFile string) (bool, int, error) {
	pidData, err := os.ReadFile(pidFile)
	if err != nil {
		if os.IsNotExist(err) {
			return false, 0, nil
		}
		return false, 0, fmt.Errorf("failed to read PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(pidData)))
	if err != nil {
		// Invalid PID file, consider it stale
		return false, 0, nil
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		return false, 0, nil
	}

	// Send signal 0 to check if process exists
	if err := process.Signal(syscall.Signal(0)); err != nil {
		// Process doesn't exist, remove stale PID file
		os.Remove(pidFile)
		return false, 0, nil
	}

	return true, pid, nil
}
