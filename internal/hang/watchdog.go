// Package hang detects hangs of the foreground execution context.
//
// A Watchdog posts a light task to the foreground every probe interval. If
// that task has not run for longer than the threshold, the foreground is
// hung: its stack is captured, the evidence is written to durable storage
// and the receiver is told a hang started. When the task finally runs, the
// hang resolved: the stored evidence is deleted and a non-fatal hang is
// reported. Evidence still stored at the next start means the process died
// during the hang, and it is reported as fatal.
package hang

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/blackwell-systems/hangwatch/internal/appinfo"
	"github.com/blackwell-systems/hangwatch/internal/clock"
	"github.com/blackwell-systems/hangwatch/internal/lifecycle"
	"github.com/blackwell-systems/hangwatch/internal/queue"
	"github.com/blackwell-systems/hangwatch/internal/stackcapture"
)

const (
	// StoreDomain and StoreKey name the single pending-evidence slot.
	StoreDomain = "hang"
	StoreKey    = "evidence"

	// DefaultThreshold is used by hosts that do not pick one.
	DefaultThreshold = 2 * time.Second
)

// newProbeTimer is replaced in tests that drive probes by hand.
var newProbeTimer = newTimer

var (
	// ErrInvalidThreshold is returned for a threshold or probe interval
	// that is not positive.
	ErrInvalidThreshold = errors.New("hang threshold must be positive")
	// ErrMissingDependency is returned when a required Config field is nil.
	ErrMissingDependency = errors.New("missing watchdog dependency")
)

// Config configures a Watchdog. Receiver, Store, Startup, Lifecycle and
// Foreground are required.
type Config struct {
	// Threshold is how long the foreground must be unresponsive before a
	// hang is reported.
	Threshold time.Duration
	// ProbeInterval is the liveness probe period. Zero means Threshold/2.
	// The probe posted at the last sign of life is only due one interval
	// later, so that interval is not counted. A block is reported once it
	// outlasts Threshold+ProbeInterval if it starts just before a probe,
	// Threshold+2*ProbeInterval if it starts just after one. Its reported
	// duration lies in [block-ProbeInterval, block).
	ProbeInterval time.Duration

	Receiver   Receiver
	Store      Store
	Startup    StartupSignal
	Lifecycle  LifecycleSignal
	Foreground Foreground

	// DidCrashPreviously suppresses the fatal report for evidence left by
	// a process that crashed; the crash is reported elsewhere.
	DidCrashPreviously bool
	// ReportInDebug delivers events in builds tagged hangwatch_debug.
	ReportInDebug bool

	// Optional.
	Clock   clock.Clock
	Stack   StackReader
	AppInfo *appinfo.Holder
	Logger  *slog.Logger
}

func (c *Config) validate() error {
	if c.Threshold <= 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidThreshold, c.Threshold)
	}
	if c.ProbeInterval < 0 {
		return fmt.Errorf("%w: probe interval %s", ErrInvalidThreshold, c.ProbeInterval)
	}
	missing := func(name string) error {
		return fmt.Errorf("%w: %s", ErrMissingDependency, name)
	}
	switch {
	case c.Receiver == nil:
		return missing("Receiver")
	case c.Store == nil:
		return missing("Store")
	case c.Startup == nil:
		return missing("Startup")
	case c.Lifecycle == nil:
		return missing("Lifecycle")
	case c.Foreground == nil:
		return missing("Foreground")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.ProbeInterval == 0 {
		c.ProbeInterval = c.Threshold / 2
		if c.ProbeInterval == 0 {
			c.ProbeInterval = c.Threshold
		}
	}
	if c.Clock == nil {
		c.Clock = clock.System{}
	}
	if c.Stack == nil {
		c.Stack = StackReaderFunc(stackcapture.ReadStack)
	}
	if c.AppInfo == nil {
		c.AppInfo = appinfo.Default()
	}
	if c.Logger == nil {
		c.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
}

// Watchdog watches one foreground context. Create it with Start.
type Watchdog struct {
	cfg    Config
	logger *slog.Logger

	work     *queue.Queue // owns the session state below
	delivery *queue.Queue // calls the receiver
	timer    *timer

	started           bool // unset when Start failed; lifecycle handlers do nothing
	lastAlive         time.Time
	suspended         bool
	startupWindowOpen bool
	inMemory          *Evidence
	unsubscribe       func()

	didHangMu sync.Mutex
	didHang   *bool

	closeOnce sync.Once
}

// Start validates cfg, reads the initial lifecycle state on the foreground
// context and starts watching. When Start is not called from the
// foreground context it waits for the foreground to run the read; ctx
// bounds that wait.
func Start(ctx context.Context, cfg Config) (*Watchdog, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	w := &Watchdog{
		cfg:               cfg,
		logger:            cfg.Logger.With("component", "hang"),
		work:              queue.New("hang.work"),
		delivery:          queue.New("hang.delivery"),
		lastAlive:         cfg.Clock.Now(),
		startupWindowOpen: true,
	}

	// The first task waits for the initial state. Lifecycle handlers are
	// registered before that state is read, so a transition either shows
	// in the read or is queued behind the first task.
	initial := make(chan bool, 1)
	_ = w.work.Async(func() {
		inBackground, ok := <-initial
		if !ok {
			return
		}
		w.notifyAboutFatalHang()

		cfg.Startup.OnStartupFinished(func() {
			_ = w.work.Async(w.startupFinished)
		})

		w.start(inBackground)
	})
	w.unsubscribe = cfg.Lifecycle.Subscribe(
		func() { _ = w.work.Async(w.willBackground) },
		func() { _ = w.work.Async(w.becameActive) },
	)

	inBackground, err := readInitialState(ctx, cfg)
	if err != nil {
		w.unsubscribe()
		close(initial)
		w.work.Close()
		w.delivery.Close()
		return nil, err
	}

	w.timer = newProbeTimer(cfg.ProbeInterval, func() {
		_ = w.work.Async(w.probe)
	})

	w.logger.Debug("starting watchdog",
		"threshold", cfg.Threshold,
		"probe_interval", cfg.ProbeInterval,
		"in_background", inBackground,
	)
	initial <- inBackground
	return w, nil
}

// readInitialState reports whether the watchdog should start suspended.
// A prewarmed launch reports an active state while no user is present.
func readInitialState(ctx context.Context, cfg Config) (bool, error) {
	resolve := func() bool {
		return cfg.Lifecycle.CurrentState() == lifecycle.Background ||
			cfg.AppInfo.StartInfo().StartedWithPrewarming
	}
	if cfg.Foreground.IsCurrent() {
		return resolve(), nil
	}

	result := make(chan bool, 1)
	cfg.Foreground.Post(func() {
		result <- resolve()
	})
	select {
	case v := <-result:
		return v, nil
	case <-ctx.Done():
		return false, fmt.Errorf("failed to read initial lifecycle state: %w", ctx.Err())
	}
}

func (w *Watchdog) start(inBackground bool) {
	w.started = true
	w.lastAlive = w.cfg.Clock.Now()
	if inBackground {
		w.suspended = true
	} else {
		w.timer.Resume()
	}
}

func (w *Watchdog) startupFinished() {
	w.startupWindowOpen = false
	// A hang that began during startup and ends after it is not reported.
	w.lastAlive = w.cfg.Clock.Now()
}

func (w *Watchdog) willBackground() {
	if !w.started {
		return
	}
	if !w.suspended {
		w.timer.Suspend()
		w.suspended = true
		w.logger.Debug("watchdog suspended")
	}
}

func (w *Watchdog) becameActive() {
	if !w.started {
		return
	}
	if w.suspended {
		w.timer.Resume()
		w.suspended = false
		w.logger.Debug("watchdog resumed")
	}
	w.lastAlive = w.cfg.Clock.Now()
}

// hangInterval is how long the foreground has been unresponsive. The probe
// posted at lastAlive is only due one interval later, so that interval is
// not counted.
func (w *Watchdog) hangInterval() time.Duration {
	return w.cfg.Clock.Now().Sub(w.lastAlive.Add(w.cfg.ProbeInterval))
}

// probe runs on the work queue every probe interval.
func (w *Watchdog) probe() {
	if w.suspended {
		return
	}

	elapsed := w.hangInterval()
	if w.inMemory != nil {
		w.inMemory.SetDuration(elapsed)
		w.persist(w.inMemory)
	} else if elapsed > w.cfg.Threshold {
		stack, err := w.cfg.Stack.ReadStack()
		if err != nil {
			w.logger.Debug("failed to read foreground stack", "error", err)
			stack = ""
		}
		e := NewEvidence(stack, w.startupWindowOpen, elapsed, w.cfg.AppInfo)
		w.inMemory = e
		w.persist(e)
		w.logger.Info("hang detected", "duration", elapsed, "during_startup", e.DuringStartup)
		// inMemory keeps changing while the hang lasts.
		delivered := e.Clone()
		w.deliver(func(r Receiver) { r.HangStarted(delivered) })
	}

	w.cfg.Foreground.Post(func() {
		_ = w.work.Async(w.foregroundAlive)
	})
}

// foregroundAlive runs on the work queue after a probe reached the
// foreground.
func (w *Watchdog) foregroundAlive() {
	if e := w.inMemory; e != nil {
		w.clear()
		e.SetDuration(w.hangInterval())
		w.logger.Info("hang resolved", "duration", e.Duration())
		w.deliver(func(r Receiver) { r.NonFatalHangReceived(e) })
	}
	w.lastAlive = w.cfg.Clock.Now()
}

func (w *Watchdog) notifyAboutFatalHang() {
	e := w.readAndClear()
	if e == nil {
		return
	}
	if w.cfg.DidCrashPreviously {
		w.logger.Info("previous process crashed during a hang, not reporting it as fatal")
		return
	}
	w.logger.Info("previous process was terminated during a hang", "duration", e.Duration())
	w.deliver(func(r Receiver) { r.FatalHangReceived(e) })
}

// deliver hands an event to the receiver on the delivery queue. A paused
// debugger looks like a hang, so debug builds drop events unless asked.
func (w *Watchdog) deliver(fn func(Receiver)) {
	if debugBuild && !w.cfg.ReportInDebug {
		return
	}
	_ = w.delivery.Async(func() { fn(w.cfg.Receiver) })
}

func (w *Watchdog) readStored() *Evidence {
	raw, ok, err := w.cfg.Store.Read(StoreDomain, StoreKey)
	if err != nil {
		w.logger.Warn("failed to read stored evidence", "error", err)
		return nil
	}
	if !ok {
		return nil
	}
	e, err := DecodeEvidence(raw)
	if err != nil {
		w.logger.Warn("discarding malformed stored evidence", "error", err)
		return nil
	}
	return e
}

func (w *Watchdog) readAndClear() *Evidence {
	e := w.readStored()
	w.setDidHang(e != nil)
	w.clear()
	return e
}

func (w *Watchdog) persist(e *Evidence) {
	raw, err := e.Encode()
	if err != nil {
		w.logger.Warn("failed to encode evidence", "error", err)
		return
	}
	if err := w.cfg.Store.Write(StoreDomain, StoreKey, &raw); err != nil {
		w.logger.Warn("failed to persist evidence", "error", err)
	}
}

func (w *Watchdog) clear() {
	w.inMemory = nil
	if err := w.cfg.Store.Write(StoreDomain, StoreKey, nil); err != nil {
		w.logger.Warn("failed to clear stored evidence", "error", err)
	}
}

func (w *Watchdog) setDidHang(v bool) {
	w.didHangMu.Lock()
	defer w.didHangMu.Unlock()
	if w.didHang == nil {
		w.didHang = &v
	}
}

// DidHangPreviously reports whether the previous process left hang
// evidence behind, i.e. whether it was terminated during a hang. The
// answer is computed once and does not change when the evidence is
// consumed.
func (w *Watchdog) DidHangPreviously() bool {
	w.didHangMu.Lock()
	defer w.didHangMu.Unlock()
	if w.didHang == nil {
		v := w.readStored() != nil
		w.didHang = &v
	}
	return *w.didHang
}

// Close stops watching and waits for pending events to be delivered. A
// hang in progress stays stored and is reported as fatal by the next
// Start. Close must not be called from a Receiver method.
func (w *Watchdog) Close() {
	w.closeOnce.Do(func() {
		_ = w.work.Sync(func() {
			if w.timer.Suspended() {
				w.timer.Resume()
			}
			w.timer.Cancel()
			if w.unsubscribe != nil {
				w.unsubscribe()
			}
			w.suspended = true
		})
		w.work.Close()
		w.delivery.Close()
		w.logger.Debug("watchdog stopped")
	})
}
