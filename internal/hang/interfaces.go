package hang

import "github.com/blackwell-systems/hangwatch/internal/lifecycle"

// Receiver consumes hang events. Methods are called one at a time, in
// detection order, on a goroutine owned by the watchdog.
type Receiver interface {
	// HangStarted is called when the foreground context is first seen
	// unresponsive for longer than the threshold. Whether the hang will
	// resolve is not known yet.
	HangStarted(e *Evidence)
	// NonFatalHangReceived is called once a detected hang resolves.
	NonFatalHangReceived(e *Evidence)
	// FatalHangReceived is called at start for a hang the previous process
	// never recovered from.
	FatalHangReceived(e *Evidence)
}

// Store is the durable key-value storage for pending evidence. A write
// must be durable when it returns; a nil value deletes the entry.
type Store interface {
	Read(domain, key string) (string, bool, error)
	Write(domain, key string, value *string) error
}

// StartupSignal reports the end of the host's startup window.
type StartupSignal interface {
	IsStillStarting() bool
	// OnStartupFinished runs fn once startup ends, or right away if it
	// already has.
	OnStartupFinished(fn func())
}

// LifecycleSignal reports whether the host is in the foreground.
type LifecycleSignal interface {
	CurrentState() lifecycle.State
	Subscribe(onWillBackground, onBecameActive func()) (cancel func())
}

// Foreground is the execution context being watched.
type Foreground interface {
	// Post schedules fn on the foreground context.
	Post(fn func())
	// IsCurrent reports whether the caller runs on the foreground context.
	IsCurrent() bool
}

// StackReader reads the foreground context's stack from another goroutine.
type StackReader interface {
	ReadStack() (string, error)
}

// StackReaderFunc adapts a function to StackReader.
type StackReaderFunc func() (string, error)

// ReadStack calls f.
func (f StackReaderFunc) ReadStack() (string, error) { return f() }
