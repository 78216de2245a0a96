package hang

import (
	"sync"
	"time"
)

// timer fires a callback every interval while resumed. It starts
// suspended. Suspend, Resume and Cancel must be balanced: resuming a
// running timer, suspending a suspended one or cancelling a suspended one
// panics.
type timer struct {
	interval time.Duration
	fire     func()
	ticker   *time.Ticker
	done     chan struct{}

	mu        sync.Mutex
	suspended bool
	cancelled bool
}

func newTimer(interval time.Duration, fire func()) *timer {
	t := &timer{
		interval:  interval,
		fire:      fire,
		ticker:    time.NewTicker(interval),
		done:      make(chan struct{}),
		suspended: true,
	}
	t.ticker.Stop()
	go t.loop()
	return t
}

func (t *timer) loop() {
	for {
		select {
		case <-t.ticker.C:
			t.mu.Lock()
			active := !t.suspended && !t.cancelled
			t.mu.Unlock()
			if active {
				t.fire()
			}
		case <-t.done:
			return
		}
	}
}

func (t *timer) Resume() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	if !t.suspended {
		panic("hang: resume of a running timer")
	}
	t.suspended = false
	t.ticker.Reset(t.interval)
}

func (t *timer) Suspend() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	if t.suspended {
		panic("hang: suspend of a suspended timer")
	}
	t.suspended = true
	t.ticker.Stop()
}

func (t *timer) Suspended() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.suspended
}

func (t *timer) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.cancelled {
		return
	}
	if t.suspended {
		panic("hang: cancel of a suspended timer")
	}
	t.cancelled = true
	t.ticker.Stop()
	close(t.done)
}
