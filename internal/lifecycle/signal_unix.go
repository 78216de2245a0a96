//go:build unix

package lifecycle

import (
	"os"
	"os/signal"
	"sync"

	"golang.org/x/sys/unix"
)

// SignalSource maps job-control signals to lifecycle transitions: SIGTSTP
// (Ctrl-Z) backgrounds the app and SIGCONT brings it back. Because
// catching SIGTSTP stops the default suspend, the source re-raises SIGSTOP
// after notifying subscribers.
type SignalSource struct {
	*Manual

	sigCh     chan os.Signal
	stopCh    chan struct{}
	wg        sync.WaitGroup
	stopOnce  sync.Once
	suspendFn func()
}

// NewSignalSource starts listening for SIGTSTP and SIGCONT.
func NewSignalSource() *SignalSource {
	s := &SignalSource{
		Manual: NewManual(Active),
		sigCh:  make(chan os.Signal, 4),
		stopCh: make(chan struct{}),
		suspendFn: func() {
			unix.Kill(unix.Getpid(), unix.SIGSTOP) //nolint:errcheck
		},
	}
	signal.Notify(s.sigCh, unix.SIGTSTP, unix.SIGCONT)

	s.wg.Add(1)
	go s.loop()
	return s
}

func (s *SignalSource) loop() {
	defer s.wg.Done()
	for {
		select {
		case sig := <-s.sigCh:
			s.handle(sig)
		case <-s.stopCh:
			return
		}
	}
}

func (s *SignalSource) handle(sig os.Signal) {
	switch sig {
	case unix.SIGTSTP:
		s.EnterBackground()
		s.suspendFn()
	case unix.SIGCONT:
		s.BecomeActive()
	}
}

// Stop stops listening for signals.
func (s *SignalSource) Stop() {
	s.stopOnce.Do(func() {
		signal.Stop(s.sigCh)
		close(s.stopCh)
		s.wg.Wait()
	})
}
