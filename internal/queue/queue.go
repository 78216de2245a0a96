// Package queue provides a serial task queue: tasks run one at a time, in
// submission order, on a single goroutine.
//
// The watchdog owns all of its state through one Queue, so no field it
// touches needs a lock. A second Queue delivers events to slow consumers
// without stalling detection.
package queue

import (
	"errors"
	"fmt"
	"sync"

	equeue "github.com/eapache/queue"
)

var (
	// ErrClosed is returned when submitting to a queue that was closed.
	ErrClosed = errors.New("queue closed")
	// ErrAlreadyRunning is returned when Run is called on a queue that
	// already has a goroutine draining it.
	ErrAlreadyRunning = errors.New("queue already running")
)

// Queue is a FIFO of func() drained by exactly one goroutine.
type Queue struct {
	label string

	mu      sync.Mutex
	cond    *sync.Cond
	tasks   *equeue.Queue
	closed  bool
	running bool
	done    chan struct{}
}

// New creates a queue and starts its worker goroutine.
func New(label string) *Queue {
	q := NewDetached(label)
	q.running = true
	go q.serve()
	return q
}

// NewDetached creates a queue without a worker. The caller must call Run
// on the goroutine that should execute the tasks.
func NewDetached(label string) *Queue {
	q := &Queue{
		label: label,
		tasks: equeue.New(),
		done:  make(chan struct{}),
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Async schedules fn and returns immediately.
func (q *Queue) Async(fn func()) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return fmt.Errorf("%s: %w", q.label, ErrClosed)
	}
	q.tasks.Add(fn)
	q.cond.Signal()
	return nil
}

// Sync schedules fn and waits for it to finish. Calling Sync from a task
// running on the same queue deadlocks.
func (q *Queue) Sync(fn func()) error {
	finished := make(chan struct{})
	err := q.Async(func() {
		defer close(finished)
		fn()
	})
	if err != nil {
		return err
	}
	<-finished
	return nil
}

// Barrier waits until every task submitted before the call has run.
func (q *Queue) Barrier() error {
	return q.Sync(func() {})
}

// Run drains the queue on the calling goroutine until Close is called and
// every pending task has run.
func (q *Queue) Run() error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return ErrAlreadyRunning
	}
	q.running = true
	q.mu.Unlock()

	q.serve()
	return nil
}

func (q *Queue) serve() {
	q.mu.Lock()
	for {
		for q.tasks.Length() == 0 && !q.closed {
			q.cond.Wait()
		}
		if q.tasks.Length() == 0 {
			q.mu.Unlock()
			close(q.done)
			return
		}
		task := q.tasks.Remove().(func())
		q.mu.Unlock()

		task()

		q.mu.Lock()
	}
}

// Close stops accepting tasks. Tasks already queued still run. If a
// goroutine is draining the queue, Close waits for it to finish; calling
// Close from a task on the same queue therefore deadlocks.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		running := q.running
		q.mu.Unlock()
		if running {
			<-q.done
		}
		return
	}
	q.closed = true
	running := q.running
	q.cond.Broadcast()
	q.mu.Unlock()

	if running {
		<-q.done
	}
}

// CloseAsync stops accepting tasks without waiting for the worker. It is
// safe to call from a task running on the queue.
func (q *Queue) CloseAsync() {
	q.mu.Lock()
	q.closed = true
	q.cond.Broadcast()
	q.mu.Unlock()
}

// Done is closed once the worker has drained the queue after Close.
func (q *Queue) Done() <-chan struct{} {
	return q.done
}
