package lifecycle

import (
	"path/filepath"
	"sync"
	"testing"
	"time"
)

type counter struct {
	mu         sync.Mutex
	background int
	active     int
}

func (c *counter) subscribe(src interface {
	Subscribe(func(), func()) func()
}) func() {
	return src.Subscribe(
		func() { c.mu.Lock(); c.background++; c.mu.Unlock() },
		func() { c.mu.Lock(); c.active++; c.mu.Unlock() },
	)
}

func (c *counter) counts() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.background, c.active
}

func TestManual_Transitions(t *testing.T) {
	m := NewManual(Active)
	var c counter
	c.subscribe(m)

	m.WillResignActive()
	m.EnterBackground()
	m.BecomeActive()
	m.BecomeActive()

	bg, act := c.counts()
	if bg != 1 {
		t.Errorf("background callbacks = %d, want 1 (inactive->background is not a new transition)", bg)
	}
	if act != 1 {
		t.Errorf("active callbacks = %d, want 1", act)
	}
	if m.CurrentState() != Active {
		t.Errorf("CurrentState() = %v, want active", m.CurrentState())
	}
}

func TestManual_Cancel(t *testing.T) {
	m := NewManual(Active)
	var c counter
	cancel := c.subscribe(m)
	cancel()
	cancel()

	m.EnterBackground()
	if bg, _ := c.counts(); bg != 0 {
		t.Errorf("cancelled subscription still called %d times", bg)
	}
}

func TestParseState(t *testing.T) {
	tests := []struct {
		in      string
		want    State
		wantErr bool
	}{
		{"active", Active, false},
		{" Background\n", Background, false},
		{"inactive", Inactive, false},
		{"asleep", Active, true},
	}
	for _, tt := range tests {
		got, err := ParseState(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseState(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseState(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestFileSource_FollowsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state")
	if err := WriteStateFile(path, Background); err != nil {
		t.Fatalf("WriteStateFile() error = %v", err)
	}

	src, err := NewFileSource(path)
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}
	defer src.Stop()

	if src.CurrentState() != Background {
		t.Fatalf("initial state = %v, want background", src.CurrentState())
	}

	var c counter
	c.subscribe(src)
	if err := WriteStateFile(path, Active); err != nil {
		t.Fatalf("WriteStateFile() error = %v", err)
	}

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if _, act := c.counts(); act > 0 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("became-active callback not called; state = %v", src.CurrentState())
}

func TestFileSource_MissingFileIsActive(t *testing.T) {
	src, err := NewFileSource(filepath.Join(t.TempDir(), "missing"))
	if err != nil {
		t.Fatalf("NewFileSource() error = %v", err)
	}
	defer src.Stop()
	if src.CurrentState() != Active {
		t.Errorf("CurrentState() = %v, want active", src.CurrentState())
	}
}
