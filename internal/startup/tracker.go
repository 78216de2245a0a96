// Package startup tracks the startup window of the host: from process
// launch until the first screen is shown.
package startup

import (
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blackwell-systems/hangwatch/internal/appinfo"
)

// Times measures how long startup took.
type Times struct {
	// FromMain is measured from appinfo.RecordMainStarted.
	FromMain time.Duration
	// FromProcess is measured from process creation, including runtime
	// init. Zero if the platform does not report it.
	FromProcess time.Duration
}

// Tracker answers whether startup is still in progress and runs callbacks
// when it ends.
type Tracker struct {
	holder *appinfo.Holder
	logger *slog.Logger

	mu       sync.Mutex
	starting bool
	actions  []func()
	times    Times
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithHolder sets the holder used to read the main-started time.
func WithHolder(h *appinfo.Holder) Option {
	return func(t *Tracker) {
		t.holder = h
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(t *Tracker) {
		t.logger = l
	}
}

// NewTracker returns a Tracker in the starting state.
func NewTracker(opts ...Option) *Tracker {
	t := &Tracker{
		holder:   appinfo.Default(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		starting: true,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// IsStillStarting reports whether Finish has not been called yet.
func (t *Tracker) IsStillStarting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.starting
}

// OnStartupFinished runs fn once startup ends. If it already ended, fn runs
// immediately on the calling goroutine; otherwise it runs on the goroutine
// that calls Finish.
func (t *Tracker) OnStartupFinished(fn func()) {
	t.mu.Lock()
	if t.starting {
		t.actions = append(t.actions, fn)
		t.mu.Unlock()
		return
	}
	t.mu.Unlock()
	fn()
}

// Finish closes the startup window and runs queued callbacks in
// registration order. Calls after the first are no-ops.
func (t *Tracker) Finish() Times {
	now := time.Now()

	t.mu.Lock()
	if !t.starting {
		times := t.times
		t.mu.Unlock()
		return times
	}
	t.starting = false
	if started, ok := t.holder.MainStarted(); ok {
		t.times.FromMain = now.Sub(started)
	}
	if created, err := appinfo.ProcessCreated(); err == nil && created.Before(now) {
		t.times.FromProcess = now.Sub(created)
	}
	actions := t.actions
	t.actions = nil
	times := t.times
	t.mu.Unlock()

	t.logger.Info("startup finished",
		"from_main", times.FromMain,
		"from_process", times.FromProcess)

	for _, fn := range actions {
		fn()
	}
	return times
}

// Times returns the measured startup times, zero until Finish.
func (t *Tracker) Times() Times {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.times
}
