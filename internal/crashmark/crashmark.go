// Package crashmark remembers that the previous process died from a panic.
//
// Hosts without a crash reporter use it to answer "did the previous launch
// crash?", so a hang that ended in a crash is reported once, as a crash.
package crashmark

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/goccy/go-json"
)

const (
	storeDomain = "crash"
	storeKey    = "marker"
)

// Store is the durable key-value storage the marker lives in.
type Store interface {
	Read(domain, key string) (string, bool, error)
	Write(domain, key string, value *string) error
}

// Marker describes a crash of a previous process.
type Marker struct {
	Reason string    `json:"reason"`
	At     time.Time `json:"at"`
	PID    int       `json:"pid"`
}

// Record stores a marker. It is called on the way down, so it does as
// little as possible.
func Record(s Store, m Marker) error {
	data, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode crash marker: %w", err)
	}
	value := string(data)
	if err := s.Write(storeDomain, storeKey, &value); err != nil {
		return fmt.Errorf("failed to write crash marker: %w", err)
	}
	return nil
}

// Consume returns the marker left by the previous process, if any, and
// clears it. A malformed marker still counts as a crash.
func Consume(s Store) (*Marker, error) {
	raw, ok, err := s.Read(storeDomain, storeKey)
	if err != nil {
		return nil, fmt.Errorf("failed to read crash marker: %w", err)
	}
	if !ok {
		return nil, nil
	}
	if err := s.Write(storeDomain, storeKey, nil); err != nil {
		return nil, fmt.Errorf("failed to clear crash marker: %w", err)
	}

	var m Marker
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return &Marker{Reason: "unreadable crash marker"}, nil
	}
	return &m, nil
}

// PanicHandler returns a function that records a marker for a recovered
// panic value. It fits mainloop.WithPanicHandler; the caller re-panics.
func PanicHandler(s Store, pid int, logger *slog.Logger) func(any) {
	return func(r any) {
		m := Marker{Reason: fmt.Sprint(r), At: time.Now().UTC(), PID: pid}
		if err := Record(s, m); err != nil {
			logger.Error("failed to record crash", "error", err)
			return
		}
		logger.Error("crash recorded", "reason", m.Reason)
	}
}
