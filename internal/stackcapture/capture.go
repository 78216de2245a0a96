// Package stackcapture reads the call stack of the foreground goroutine
// from any other goroutine.
//
// Capture happens in two phases. The raw phase copies every goroutine's
// stack into a reused buffer with runtime.Stack, which stops the world for
// the duration of the copy and does no locking or formatting of ours while
// the target is paused. The resolve phase runs after the world has
// restarted: it locates the target goroutine in the snapshot and formats
// its frames.
package stackcapture

import (
	"errors"
	"runtime"
	"sync"
)

const (
	minSnapshotSize = 64 << 10
	maxSnapshotSize = 64 << 20
)

var (
	// ErrNoForeground means RecordForeground was never called.
	ErrNoForeground = errors.New("stackcapture: no foreground goroutine recorded")
	// ErrCalledFromForeground means ReadStack ran on the goroutine it was
	// asked to capture.
	ErrCalledFromForeground = errors.New("stackcapture: ReadStack called from the foreground goroutine")
	// ErrForegroundGone means the recorded goroutine was not found in the
	// snapshot, so it could not be paused and read.
	ErrForegroundGone = errors.New("stackcapture: foreground goroutine not found")
	// ErrUnreadableStack means the goroutine was found but none of its
	// frames could be parsed.
	ErrUnreadableStack = errors.New("stackcapture: foreground stack unreadable")
)

// Recorder holds the foreground goroutine handle. It is written once, from
// the foreground goroutine, early in process life and read from background
// goroutines afterwards. The foreground goroutine only holds mu for the
// duration of RecordForeground.
type Recorder struct {
	mu       sync.Mutex
	id       int64
	recorded bool
	buf      []byte
}

var (
	defaultRecorder     *Recorder
	defaultRecorderOnce sync.Once
)

// Default returns the process-wide Recorder.
func Default() *Recorder {
	defaultRecorderOnce.Do(func() {
		defaultRecorder = &Recorder{}
	})
	return defaultRecorder
}

// RecordForeground records the calling goroutine on the default Recorder.
func RecordForeground() {
	Default().RecordForeground()
}

// ReadStack reads the foreground stack through the default Recorder.
func ReadStack() (string, error) {
	return Default().ReadStack()
}

// RecordForeground records the calling goroutine as the one ReadStack
// captures.
func (r *Recorder) RecordForeground() {
	id := GoroutineID()
	r.mu.Lock()
	r.id = id
	r.recorded = true
	r.mu.Unlock()
}

// ReadStack returns the formatted stack of the recorded goroutine, one
// frame per line. It must not be called from the recorded goroutine.
func (r *Recorder) ReadStack() (string, error) {
	frames, err := r.ReadFrames()
	if err != nil {
		return "", err
	}
	return FormatFrames(frames), nil
}

// ReadFrames is ReadStack without the final formatting step.
func (r *Recorder) ReadFrames() ([]Frame, error) {
	caller := GoroutineID()

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recorded {
		return nil, ErrNoForeground
	}
	if caller == r.id {
		return nil, ErrCalledFromForeground
	}

	snapshot := r.snapshot()
	return parseGoroutine(snapshot, r.id)
}

// snapshot copies all goroutine stacks into r.buf, growing it until the
// dump fits. Callers hold r.mu.
func (r *Recorder) snapshot() []byte {
	if len(r.buf) < minSnapshotSize {
		r.buf = make([]byte, minSnapshotSize)
	}
	for {
		n := runtime.Stack(r.buf, true)
		if n < len(r.buf) || len(r.buf) >= maxSnapshotSize {
			return r.buf[:n]
		}
		r.buf = make([]byte, 2*len(r.buf))
	}
}

// Architecture returns the CPU architecture the stack addresses belong to.
func Architecture() string {
	return runtime.GOARCH
}
