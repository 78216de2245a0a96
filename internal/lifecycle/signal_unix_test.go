//go:build unix

package lifecycle

import (
	"testing"

	"golang.org/x/sys/unix"
)

func TestSignalSource_Handle(t *testing.T) {
	s := NewSignalSource()
	defer s.Stop()

	suspended := 0
	s.suspendFn = func() { suspended++ }

	var c counter
	c.subscribe(s)

	s.handle(unix.SIGTSTP)
	if s.CurrentState() != Background {
		t.Errorf("state after SIGTSTP = %v, want background", s.CurrentState())
	}
	if suspended != 1 {
		t.Errorf("suspend called %d times, want 1", suspended)
	}

	s.handle(unix.SIGCONT)
	if s.CurrentState() != Active {
		t.Errorf("state after SIGCONT = %v, want active", s.CurrentState())
	}

	bg, act := c.counts()
	if bg != 1 || act != 1 {
		t.Errorf("callbacks = (%d, %d), want (1, 1)", bg, act)
	}
}
