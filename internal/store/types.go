package store

import "time"

// HangEvent kinds, matching the three receiver callbacks.
const (
	KindStarted  = "started"
	KindNonFatal = "non_fatal"
	KindFatal    = "fatal"
)

// HangEvent records one delivered hang event.
type HangEvent struct {
	ID             int64
	Kind           string
	OccurredAt     time.Time
	DurationMillis int64
	DuringStartup  bool
	Evidence       string // serialized evidence record
}
