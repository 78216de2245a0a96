package hang

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/hangwatch/internal/appinfo"
	"github.com/blackwell-systems/hangwatch/internal/lifecycle"
	"github.com/blackwell-systems/hangwatch/internal/mainloop"
	"github.com/blackwell-systems/hangwatch/internal/stackcapture"
	"github.com/blackwell-systems/hangwatch/internal/startup"
)

// These tests run a real main loop and real timers with durations scaled
// down from seconds to tens of milliseconds.
const (
	testThreshold = 40 * time.Millisecond
	testInterval  = 20 * time.Millisecond
)

type liveHarness struct {
	w         *Watchdog
	loop      *mainloop.Loop
	store     *memStore
	recv      *recorder
	lifecycle *lifecycle.Manual
}

func startLive(t *testing.T) *liveHarness {
	t.Helper()

	rec := &stackcapture.Recorder{}
	loop := mainloop.New(mainloop.WithRecorder(rec))
	errCh := make(chan error, 1)
	go func() { errCh <- loop.Run() }()
	if err := loop.Sync(func() {}); err != nil {
		t.Fatalf("loop.Sync() error = %v", err)
	}

	h := &liveHarness{
		loop:      loop,
		store:     newMemStore(),
		recv:      &recorder{},
		lifecycle: lifecycle.NewManual(lifecycle.Active),
	}
	tracker := startup.NewTracker(startup.WithHolder(appinfo.NewHolder()))
	tracker.Finish()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	w, err := Start(ctx, Config{
		Threshold:     testThreshold,
		ProbeInterval: testInterval,
		Receiver:      h.recv,
		Store:         h.store,
		Startup:       tracker,
		Lifecycle:     h.lifecycle,
		Foreground:    loop,
		Stack:         rec,
		AppInfo:       appinfo.NewHolder(),
		ReportInDebug: true,
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	h.w = w

	t.Cleanup(func() {
		w.Close()
		loop.Stop()
		if err := <-errCh; err != nil {
			t.Errorf("loop.Run() error = %v", err)
		}
	})
	return h
}

// blockForeground occupies the main loop for d.
func (h *liveHarness) blockForeground(d time.Duration) {
	done := make(chan struct{})
	h.loop.Post(func() {
		defer close(done)
		stuckInRender(d)
	})
	<-done
}

func stuckInRender(d time.Duration) {
	time.Sleep(d)
}

func TestLive_NonFatalHang(t *testing.T) {
	h := startLive(t)

	block := 3 * testThreshold
	h.blockForeground(block)

	ok := waitFor(t, time.Second, func() bool { return h.recv.count(nonFatal) == 1 })
	if !ok {
		t.Fatalf("events = %v, want started then non_fatal", h.recv.kinds())
	}

	evs := h.recv.snapshot()
	if len(evs) != 2 || evs[0].kind != started || evs[1].kind != nonFatal {
		t.Fatalf("events = %v, want [started non_fatal]", h.recv.kinds())
	}
	resolved := evs[1].evidence
	if resolved.Duration() <= testThreshold {
		t.Errorf("duration = %v, want > %v", resolved.Duration(), testThreshold)
	}
	// The probe posted just before the block is not counted.
	if min := block - testInterval; resolved.Duration() < min {
		t.Errorf("duration = %v, want >= %v", resolved.Duration(), min)
	}
	if resolved.DuringStartup {
		t.Error("DuringStartup = true after startup finished")
	}
	if !strings.Contains(evs[0].evidence.CallStack, "stuckInRender") {
		t.Errorf("captured stack does not show the blocking function:\n%s", evs[0].evidence.CallStack)
	}
	if _, ok := h.store.pending(); ok {
		t.Error("evidence still stored after resolution")
	}
}

func TestLive_HangPersistedWhileOngoing(t *testing.T) {
	h := startLive(t)

	release := make(chan struct{})
	h.loop.Post(func() { <-release })
	defer close(release)

	if !waitFor(t, time.Second, func() bool { return h.recv.count(started) == 1 }) {
		t.Fatal("hang was not detected")
	}
	stored, ok := h.store.pending()
	if !ok {
		t.Fatal("evidence not persisted during hang")
	}
	// Durations round up, so anything past the threshold reads above it.
	if stored.Duration() <= testThreshold {
		t.Errorf("stored duration = %v, want > %v", stored.Duration(), testThreshold)
	}

	// Duration keeps growing on disk while the hang lasts.
	first := stored.DurationMillis
	grown := waitFor(t, time.Second, func() bool {
		e, ok := h.store.pending()
		return ok && e.DurationMillis > first
	})
	if !grown {
		t.Error("stored duration did not grow during the hang")
	}
}

func TestLive_BackgroundedHangNotReported(t *testing.T) {
	h := startLive(t)

	// No wait for the watchdog's first task: the transition must not be
	// lost in between.
	h.lifecycle.EnterBackground()

	h.blockForeground(5 * testThreshold)

	h.lifecycle.BecomeActive()
	time.Sleep(3 * testThreshold)

	if n := len(h.recv.snapshot()); n != 0 {
		t.Errorf("events = %v, want none", h.recv.kinds())
	}
}

func TestLive_BackToBackHangs(t *testing.T) {
	h := startLive(t)

	first, second := 3*testThreshold, 5*testThreshold

	h.blockForeground(first)
	if !waitFor(t, time.Second, func() bool { return h.recv.count(nonFatal) == 1 }) {
		t.Fatalf("first hang not resolved, events = %v", h.recv.kinds())
	}
	// Let a few probes prove the loop is alive again.
	time.Sleep(3 * testInterval)

	h.blockForeground(second)
	if !waitFor(t, time.Second, func() bool { return h.recv.count(nonFatal) == 2 }) {
		t.Fatalf("second hang not resolved, events = %v", h.recv.kinds())
	}

	want := []eventKind{started, nonFatal, started, nonFatal}
	got := h.recv.kinds()
	if len(got) != len(want) {
		t.Fatalf("events = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("events = %v, want %v", got, want)
		}
	}

	evs := h.recv.snapshot()
	d1, d2 := evs[1].evidence.Duration(), evs[3].evidence.Duration()
	if d1 < first-testInterval || d2 < second-testInterval {
		t.Errorf("durations = %v, %v; want about %v, %v", d1, d2, first, second)
	}
	if d2 <= d1 {
		t.Errorf("second hang (%v) should be longer than the first (%v)", d2, d1)
	}
}
