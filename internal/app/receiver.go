package app

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/blackwell-systems/hangwatch/internal/hang"
	"github.com/blackwell-systems/hangwatch/internal/store"
)

// eventRecorder logs hang events and appends them to the history.
type eventRecorder struct {
	db     *store.Store // nil: log only
	logger *slog.Logger
	now    func() time.Time

	started  atomic.Int64
	nonFatal atomic.Int64
	fatal    atomic.Int64
}

func newEventRecorder(db *store.Store, logger *slog.Logger) *eventRecorder {
	return &eventRecorder{db: db, logger: logger, now: time.Now}
}

func (r *eventRecorder) HangStarted(e *hang.Evidence) {
	r.started.Add(1)
	r.logger.Warn("main loop hang started",
		"duration", e.Duration(),
		"during_startup", e.DuringStartup)
	r.record(store.KindStarted, e)
}

func (r *eventRecorder) NonFatalHangReceived(e *hang.Evidence) {
	r.nonFatal.Add(1)
	r.logger.Warn("main loop hang resolved",
		"duration", e.Duration(),
		"during_startup", e.DuringStartup)
	r.record(store.KindNonFatal, e)
}

func (r *eventRecorder) FatalHangReceived(e *hang.Evidence) {
	r.fatal.Add(1)
	r.logger.Error("previous run was terminated during a hang",
		"duration", e.Duration(),
		"during_startup", e.DuringStartup,
		"os_version", e.OSVersion)
	r.record(store.KindFatal, e)
}

func (r *eventRecorder) record(kind string, e *hang.Evidence) {
	if r.db == nil {
		return
	}
	raw, err := e.Encode()
	if err != nil {
		r.logger.Warn("failed to encode hang event", "error", err)
		return
	}
	_, err = r.db.RecordHangEvent(&store.HangEvent{
		Kind:           kind,
		OccurredAt:     r.now(),
		DurationMillis: e.DurationMillis,
		DuringStartup:  e.DuringStartup,
		Evidence:       raw,
	})
	if err != nil {
		r.logger.Warn("failed to record hang event", "kind", kind, "error", err)
	}
}

// counts returns how many events of each kind were received.
func (r *eventRecorder) counts() map[string]int {
	return map[string]int{
		store.KindStarted:  int(r.started.Load()),
		store.KindNonFatal: int(r.nonFatal.Load()),
		store.KindFatal:    int(r.fatal.Load()),
	}
}

// status summarizes the session for the run spinner.
func (r *eventRecorder) status() string {
	switch n := r.started.Load(); n {
	case 0:
		return ""
	case 1:
		return "1 hang"
	default:
		return fmt.Sprintf("%d hangs", n)
	}
}
