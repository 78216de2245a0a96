// Package appinfo holds process-wide facts about the current launch: how it
// started, when main began and which screens have been opened since.
//
// The holder is written once from the foreground goroutine at startup
// (RecordMainStarted) and appended to as screens open; every other access
// is a read under the holder's lock.
package appinfo

import (
	"os"
	"sync"
	"time"
)

const (
	// PrewarmEnv is set by the platform when it launches the process ahead
	// of the user without showing any UI.
	PrewarmEnv      = "ActivePrewarm"
	prewarmEnvValue = "1"

	maxOpenedScreens = 50
)

// StartInfo describes how the current process launch began.
type StartInfo struct {
	StartedWithPrewarming bool `json:"appStartedWithPrewarming"`
}

// RuntimeInfo carries the screens opened during this launch, oldest first.
type RuntimeInfo struct {
	OpenedScreens []string `json:"openedScreens"`
}

// Holder stores StartInfo and RuntimeInfo for one process.
type Holder struct {
	mu          sync.RWMutex
	start       StartInfo
	runtime     RuntimeInfo
	mainStarted time.Time
	lookupEnv   func(string) (string, bool)
}

var (
	defaultHolder     *Holder
	defaultHolderOnce sync.Once
)

// Default returns the process-wide Holder.
func Default() *Holder {
	defaultHolderOnce.Do(func() {
		defaultHolder = NewHolder()
	})
	return defaultHolder
}

// NewHolder returns an empty Holder reading the process environment.
func NewHolder() *Holder {
	return &Holder{lookupEnv: os.LookupEnv}
}

// RecordMainStarted captures the launch context. Call it once, as early in
// main as possible: the prewarm flag is only present at that point.
func (h *Holder) RecordMainStarted() {
	value, _ := h.lookupEnv(PrewarmEnv)
	now := time.Now()

	h.mu.Lock()
	defer h.mu.Unlock()
	h.start = StartInfo{StartedWithPrewarming: value == prewarmEnvValue}
	h.mainStarted = now
}

// MainStarted returns when RecordMainStarted ran.
func (h *Holder) MainStarted() (time.Time, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.mainStarted, !h.mainStarted.IsZero()
}

// StartInfo returns the launch context.
func (h *Holder) StartInfo() StartInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.start
}

// ScreenOpened appends a screen identifier to the runtime context. Only
// the most recent screens are kept.
func (h *Holder) ScreenOpened(screen string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.runtime.OpenedScreens = append(h.runtime.OpenedScreens, screen)
	if n := len(h.runtime.OpenedScreens); n > maxOpenedScreens {
		h.runtime.OpenedScreens = append([]string(nil), h.runtime.OpenedScreens[n-maxOpenedScreens:]...)
	}
}

// RuntimeInfo returns a copy of the runtime context.
func (h *Holder) RuntimeInfo() RuntimeInfo {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return RuntimeInfo{OpenedScreens: append([]string{}, h.runtime.OpenedScreens...)}
}

