package hang

import (
	"sync/atomic"
	"testing"
	"time"
)

func TestTimer_StartsSuspended(t *testing.T) {
	var fired atomic.Int32
	tm := newTimer(5*time.Millisecond, func() { fired.Add(1) })

	time.Sleep(30 * time.Millisecond)
	if n := fired.Load(); n != 0 {
		t.Errorf("fired %d times while suspended, want 0", n)
	}
	if !tm.Suspended() {
		t.Error("Suspended() = false for a new timer")
	}

	tm.Resume()
	tm.Cancel()
}

func TestTimer_FiresWhileResumed(t *testing.T) {
	var fired atomic.Int32
	tm := newTimer(5*time.Millisecond, func() { fired.Add(1) })
	tm.Resume()
	defer tm.Cancel()

	deadline := time.Now().Add(time.Second)
	for fired.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if n := fired.Load(); n < 3 {
		t.Errorf("fired %d times, want at least 3", n)
	}

	tm.Suspend()
	// A tick already in flight may still land.
	time.Sleep(10 * time.Millisecond)
	before := fired.Load()
	time.Sleep(30 * time.Millisecond)
	if after := fired.Load(); after != before {
		t.Errorf("fired %d times after Suspend, want 0", after-before)
	}
	tm.Resume()
}

func TestTimer_CancelWhileSuspendedPanics(t *testing.T) {
	tm := newTimer(time.Hour, func() {})
	defer func() {
		if recover() == nil {
			t.Error("Cancel() of a suspended timer did not panic")
		}
		tm.Resume()
		tm.Cancel()
	}()
	tm.Cancel()
}

func TestTimer_UnbalancedCallsPanic(t *testing.T) {
	tests := []struct {
		name string
		call func(*timer)
	}{
		{"resume running", func(tm *timer) { tm.Resume(); tm.Resume() }},
		{"suspend suspended", func(tm *timer) { tm.Suspend() }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := newTimer(time.Hour, func() {})
			defer func() {
				if recover() == nil {
					t.Error("expected panic")
				}
			}()
			tt.call(tm)
		})
	}
}

func TestTimer_CancelIsIdempotent(t *testing.T) {
	tm := newTimer(time.Hour, func() {})
	tm.Resume()
	tm.Cancel()
	tm.Cancel()
	// Calls after cancel are ignored.
	tm.Suspend()
	tm.Resume()
}
