package hang

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/blackwell-systems/hangwatch/internal/appinfo"
	"github.com/blackwell-systems/hangwatch/internal/clock"
	"github.com/blackwell-systems/hangwatch/internal/lifecycle"
	"github.com/blackwell-systems/hangwatch/internal/startup"
)

// fataler is the part of testing.TB that *rapid.T also provides.
type fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

type memStore struct {
	mu       sync.Mutex
	data     map[string]string
	writes   int
	failRead bool
}

func newMemStore() *memStore {
	return &memStore{data: make(map[string]string)}
}

func (m *memStore) Read(domain, key string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failRead {
		return "", false, errors.New("disk on fire")
	}
	v, ok := m.data[domain+"."+key]
	return v, ok, nil
}

func (m *memStore) Write(domain, key string, value *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.writes++
	if value == nil {
		delete(m.data, domain+"."+key)
		return nil
	}
	m.data[domain+"."+key] = *value
	return nil
}

func (m *memStore) pending() (*Evidence, bool) {
	m.mu.Lock()
	raw, ok := m.data[StoreDomain+"."+StoreKey]
	m.mu.Unlock()
	if !ok {
		return nil, false
	}
	e, err := DecodeEvidence(raw)
	if err != nil {
		return nil, false
	}
	return e, true
}

func (m *memStore) put(t *testing.T, e *Evidence) {
	t.Helper()
	raw, err := e.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	if err := m.Write(StoreDomain, StoreKey, &raw); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
}

// gatedStore holds every Read until gate is closed.
type gatedStore struct {
	*memStore
	gate chan struct{}
}

func newGatedStore() *gatedStore {
	return &gatedStore{memStore: newMemStore(), gate: make(chan struct{})}
}

func (s *gatedStore) Read(domain, key string) (string, bool, error) {
	<-s.gate
	return s.memStore.Read(domain, key)
}

type eventKind string

const (
	started  eventKind = "started"
	nonFatal eventKind = "non_fatal"
	fatal    eventKind = "fatal"
)

type event struct {
	kind     eventKind
	evidence *Evidence
}

type recorder struct {
	mu     sync.Mutex
	events []event
}

func (r *recorder) add(kind eventKind, e *Evidence) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: kind, evidence: e})
}

func (r *recorder) HangStarted(e *Evidence)          { r.add(started, e) }
func (r *recorder) NonFatalHangReceived(e *Evidence) { r.add(nonFatal, e) }
func (r *recorder) FatalHangReceived(e *Evidence)    { r.add(fatal, e) }

func (r *recorder) snapshot() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

func (r *recorder) count(kind eventKind) int {
	n := 0
	for _, ev := range r.snapshot() {
		if ev.kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) kinds() []eventKind {
	var kinds []eventKind
	for _, ev := range r.snapshot() {
		kinds = append(kinds, ev.kind)
	}
	return kinds
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, cond func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(5 * time.Millisecond)
	}
	return cond()
}

// manualForeground queues posted tasks until flush runs them. It always
// claims to be current so Start reads the initial state inline.
type manualForeground struct {
	mu      sync.Mutex
	pending []func()
}

func (f *manualForeground) Post(fn func()) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending = append(f.pending, fn)
}

func (f *manualForeground) IsCurrent() bool { return true }

func (f *manualForeground) flush() int {
	f.mu.Lock()
	tasks := f.pending
	f.pending = nil
	f.mu.Unlock()
	for _, fn := range tasks {
		fn()
	}
	return len(tasks)
}

func (f *manualForeground) len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// harness drives a Watchdog by hand: the probe timer never fires, time
// only moves when the test advances the clock and the foreground only
// runs when the test flushes it.
type harness struct {
	w         *Watchdog
	clock     *clock.Manual
	store     *memStore
	recv      *recorder
	fg        *manualForeground
	lifecycle *lifecycle.Manual
	startup   *startup.Tracker
}

type harnessOption func(*Config)

func withStore(s *memStore) harnessOption {
	return func(c *Config) { c.Store = s }
}

// withKV swaps in a store the harness does not inspect.
func withKV(s Store) harnessOption {
	return func(c *Config) { c.Store = s }
}

func withCrashedBefore() harnessOption {
	return func(c *Config) { c.DidCrashPreviously = true }
}

func withLifecycle(m *lifecycle.Manual) harnessOption {
	return func(c *Config) { c.Lifecycle = m }
}

func withAppInfo(h *appinfo.Holder) harnessOption {
	return func(c *Config) { c.AppInfo = h }
}

func withStack(s string, err error) harnessOption {
	return func(c *Config) {
		c.Stack = StackReaderFunc(func() (string, error) { return s, err })
	}
}

var harnessStart = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func newHarness(t fataler, opts ...harnessOption) *harness {
	t.Helper()
	h := startHarness(t, opts...)
	h.sync()
	return h
}

// startHarness returns as soon as Start does, before the first watchdog
// task has necessarily run.
func startHarness(t fataler, opts ...harnessOption) *harness {
	t.Helper()
	orig := newProbeTimer
	newProbeTimer = func(_ time.Duration, fire func()) *timer {
		return newTimer(24*time.Hour, fire)
	}
	defer func() { newProbeTimer = orig }()

	h := &harness{
		clock:     clock.NewManual(harnessStart),
		store:     newMemStore(),
		recv:      &recorder{},
		fg:        &manualForeground{},
		lifecycle: lifecycle.NewManual(lifecycle.Active),
		startup:   startup.NewTracker(startup.WithHolder(appinfo.NewHolder())),
	}
	cfg := Config{
		Threshold:     2 * time.Second,
		ProbeInterval: time.Second,
		Receiver:      h.recv,
		Store:         h.store,
		Startup:       h.startup,
		Lifecycle:     h.lifecycle,
		Foreground:    h.fg,
		Clock:         h.clock,
		AppInfo:       appinfo.NewHolder(),
		Stack:         StackReaderFunc(func() (string, error) { return "main.work()", nil }),
		ReportInDebug: true,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if s, ok := cfg.Store.(*memStore); ok {
		h.store = s
	}
	if m, ok := cfg.Lifecycle.(*lifecycle.Manual); ok {
		h.lifecycle = m
	}

	w, err := Start(context.Background(), cfg)
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	h.w = w
	return h
}

// sync waits for all queued watchdog work and deliveries.
func (h *harness) sync() {
	_ = h.w.work.Barrier()
	_ = h.w.delivery.Barrier()
}

func (h *harness) tick() {
	_ = h.w.work.Sync(h.w.probe)
	h.sync()
}

// alive runs every posted liveness probe on the foreground.
func (h *harness) alive() {
	h.fg.flush()
	h.sync()
}

func (h *harness) advance(d time.Duration) {
	h.clock.Advance(d)
}

func (h *harness) close() {
	h.w.Close()
}
