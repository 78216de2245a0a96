// Package mainloop implements the foreground execution context: a serial
// task queue drained by one goroutine locked to its OS thread.
//
// The hang watchdog proves the loop is alive by posting a no-op task and
// waiting for it to run. The loop goroutine records itself with
// stackcapture so its stack can be read while it is stuck.
package mainloop

import (
	"runtime"
	"sync/atomic"

	"github.com/blackwell-systems/hangwatch/internal/queue"
	"github.com/blackwell-systems/hangwatch/internal/stackcapture"
)

// Option configures a Loop.
type Option func(*Loop)

// WithRecorder sets the Recorder the loop goroutine registers with.
// Defaults to stackcapture.Default().
func WithRecorder(r *stackcapture.Recorder) Option {
	return func(l *Loop) {
		l.recorder = r
	}
}

// WithPanicHandler sets a function called with the recovered value when a
// task panics, before the panic continues.
func WithPanicHandler(fn func(any)) Option {
	return func(l *Loop) {
		l.onPanic = fn
	}
}

// Loop is the foreground execution context.
type Loop struct {
	q        *queue.Queue
	recorder *stackcapture.Recorder
	onPanic  func(any)
	id       atomic.Int64
}

// New creates a Loop. Nothing runs until Run is called.
func New(opts ...Option) *Loop {
	l := &Loop{
		q:        queue.NewDetached("mainloop"),
		recorder: stackcapture.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run drains the loop on the calling goroutine until Stop. Call it from
// main so the loop owns the process main thread.
func (l *Loop) Run() error {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	l.id.Store(stackcapture.GoroutineID())
	if l.recorder != nil {
		l.recorder.RecordForeground()
	}
	defer l.id.Store(0)

	return l.q.Run()
}

// Post schedules fn on the loop. Tasks posted after Stop are dropped.
func (l *Loop) Post(fn func()) {
	l.q.Async(l.wrap(fn)) //nolint:errcheck
}

// Sync runs fn on the loop and waits for it. Calling Sync from the loop
// itself runs fn inline.
func (l *Loop) Sync(fn func()) error {
	if l.IsCurrent() {
		fn()
		return nil
	}
	return l.q.Sync(l.wrap(fn))
}

// IsCurrent reports whether the caller is the loop goroutine.
func (l *Loop) IsCurrent() bool {
	id := l.id.Load()
	return id != 0 && id == stackcapture.GoroutineID()
}

// Stop makes Run return once the tasks already posted have run. From the
// loop itself it returns immediately; from elsewhere it waits.
func (l *Loop) Stop() {
	if l.IsCurrent() {
		l.q.CloseAsync()
		return
	}
	l.q.Close()
}

func (l *Loop) wrap(fn func()) func() {
	if l.onPanic == nil {
		return fn
	}
	return func() {
		defer func() {
			if r := recover(); r != nil {
				l.onPanic(r)
				panic(r)
			}
		}()
		fn()
	}
}
