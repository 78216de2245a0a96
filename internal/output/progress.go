package output

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
)

// writerIsTTY returns true if the given writer exposes an Fd() method
// (e.g. *os.File) and that fd is a terminal.
func writerIsTTY(w io.Writer) bool {
	type fder interface {
		Fd() uintptr
	}
	if f, ok := w.(fder); ok {
		return isatty.IsTerminal(f.Fd())
	}
	return false
}

var spinnerFrames = []string{"|", "/", "-", "\\"}

// Spinner shows a live status line for a bounded watch session:
//
//	|  Watching main loop (42s remaining, 2 hangs)
//
// On a writer that is not a terminal it prints the message once instead.
type Spinner struct {
	w        io.Writer
	message  string
	deadline time.Time
	status   func() string

	mu      sync.Mutex
	running bool
	width   int
	stop    chan struct{}
	done    chan struct{}
}

// NewSpinner returns a spinner that counts down to timeout. status, when
// not nil, is called on every frame and appended to the countdown.
func NewSpinner(w io.Writer, message string, timeout time.Duration, status func() string) *Spinner {
	return &Spinner{
		w:        w,
		message:  message,
		deadline: time.Now().Add(timeout),
		status:   status,
	}
}

// Start begins animating. Calling it on a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true

	if !writerIsTTY(s.w) {
		fmt.Fprintf(s.w, "%s...\n", s.message)
		return
	}

	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.animate()
}

func (s *Spinner) animate() {
	defer close(s.done)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-ticker.C:
			line := s.line(time.Now())
			s.mu.Lock()
			s.width = len(line) + 3
			fmt.Fprintf(s.w, "\r%s  %s", spinnerFrames[frame%len(spinnerFrames)], line)
			s.mu.Unlock()
		case <-s.stop:
			return
		}
	}
}

// line renders the message with the remaining time and status.
func (s *Spinner) line(now time.Time) string {
	remaining := s.deadline.Sub(now)
	if remaining < 0 {
		remaining = 0
	}
	parts := []string{fmt.Sprintf("%ds remaining", int(remaining.Round(time.Second).Seconds()))}
	if s.status != nil {
		if st := s.status(); st != "" {
			parts = append(parts, st)
		}
	}
	return fmt.Sprintf("%s (%s)", s.message, strings.Join(parts, ", "))
}

// Stop ends the animation, clears the line and prints final if it is not
// empty. Only the first call has an effect.
func (s *Spinner) Stop(final string) {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	stop, done := s.stop, s.done
	s.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
		fmt.Fprintf(s.w, "\r%s\r", strings.Repeat(" ", s.width))
	}
	if final != "" {
		fmt.Fprintln(s.w, final)
	}
}
