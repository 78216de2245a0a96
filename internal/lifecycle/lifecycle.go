// Package lifecycle reports foreground/background transitions of the host.
//
// Three sources are provided: Manual for hosts that drive transitions
// themselves, SignalSource for terminal programs (SIGTSTP/SIGCONT) and
// FileSource for hosts supervised by another process that writes the
// current state to a file.
package lifecycle

import (
	"fmt"
	"strings"
	"sync"
)

// State is the application state.
type State int

const (
	Active State = iota
	Inactive
	Background
)

func (s State) String() string {
	switch s {
	case Active:
		return "active"
	case Inactive:
		return "inactive"
	case Background:
		return "background"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// ParseState parses "active", "inactive" or "background".
func ParseState(s string) (State, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active":
		return Active, nil
	case "inactive":
		return Inactive, nil
	case "background":
		return Background, nil
	default:
		return Active, fmt.Errorf("unknown application state %q", s)
	}
}

type subscription struct {
	onWillBackground func()
	onBecameActive   func()
}

// Manual is a lifecycle source driven by explicit calls. The other sources
// embed it.
type Manual struct {
	mu     sync.Mutex
	state  State
	nextID int
	subs   map[int]subscription
}

// NewManual returns a Manual source in the given state.
func NewManual(initial State) *Manual {
	return &Manual{state: initial, subs: make(map[int]subscription)}
}

// CurrentState returns the current state.
func (m *Manual) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Subscribe registers transition callbacks and returns a function that
// removes them. Callbacks run on the goroutine that reports the transition.
func (m *Manual) Subscribe(onWillBackground, onBecameActive func()) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.subs[id] = subscription{onWillBackground: onWillBackground, onBecameActive: onBecameActive}

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.subs, id)
			m.mu.Unlock()
		})
	}
}

// WillResignActive reports that the app is about to leave the foreground.
func (m *Manual) WillResignActive() {
	m.transition(Inactive)
}

// EnterBackground reports that the app went to the background.
func (m *Manual) EnterBackground() {
	m.transition(Background)
}

// BecomeActive reports that the app is in the foreground again.
func (m *Manual) BecomeActive() {
	m.transition(Active)
}

// SetState reports a transition to s.
func (m *Manual) SetState(s State) {
	m.transition(s)
}

func (m *Manual) transition(to State) {
	m.mu.Lock()
	from := m.state
	m.state = to
	subs := make([]subscription, 0, len(m.subs))
	for _, s := range m.subs {
		subs = append(subs, s)
	}
	m.mu.Unlock()

	if from == to {
		return
	}
	for _, s := range subs {
		switch {
		case to == Active:
			if s.onBecameActive != nil {
				s.onBecameActive()
			}
		case from == Active:
			// Leaving the foreground for either inactive or background.
			if s.onWillBackground != nil {
				s.onWillBackground()
			}
		}
	}
}
