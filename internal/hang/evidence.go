package hang

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"

	"github.com/blackwell-systems/hangwatch/internal/appinfo"
	"github.com/blackwell-systems/hangwatch/internal/stackcapture"
)

// Evidence is what is known about one hang: the foreground stack at
// detection time plus the context needed to symbolicate and triage it.
type Evidence struct {
	CallStack      string              `json:"callStack"`
	Architecture   string              `json:"architecture"`
	OSVersion      string              `json:"osVersion"`
	AppStart       appinfo.StartInfo   `json:"appStartInfo"`
	Runtime        appinfo.RuntimeInfo `json:"appRuntimeInfo"`
	DuringStartup  bool                `json:"duringStartup"`
	DurationMillis int64               `json:"durationInMilliseconds"`
}

// NewEvidence builds an Evidence from the current process context.
func NewEvidence(callStack string, duringStartup bool, duration time.Duration, holder *appinfo.Holder) *Evidence {
	e := &Evidence{
		CallStack:     callStack,
		Architecture:  stackcapture.Architecture(),
		OSVersion:     appinfo.OSVersion(),
		AppStart:      holder.StartInfo(),
		Runtime:       holder.RuntimeInfo(),
		DuringStartup: duringStartup,
	}
	e.SetDuration(duration)
	return e
}

// Duration returns the approximate hang duration.
func (e *Evidence) Duration() time.Duration {
	return time.Duration(e.DurationMillis) * time.Millisecond
}

// SetDuration stores d rounded up to the next millisecond, so a hang just
// past the threshold never reads as equal to it. Negative values become 0.
func (e *Evidence) SetDuration(d time.Duration) {
	if d < 0 {
		d = 0
	}
	e.DurationMillis = int64((d + time.Millisecond - 1) / time.Millisecond)
}

// Clone returns a copy that shares nothing mutable with e.
func (e *Evidence) Clone() *Evidence {
	c := *e
	c.Runtime.OpenedScreens = append([]string(nil), e.Runtime.OpenedScreens...)
	return &c
}

// Encode serializes the evidence for the store.
func (e *Evidence) Encode() (string, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return "", fmt.Errorf("failed to encode evidence: %w", err)
	}
	return string(data), nil
}

// DecodeEvidence parses a stored evidence record.
func DecodeEvidence(s string) (*Evidence, error) {
	var e Evidence
	if err := json.Unmarshal([]byte(s), &e); err != nil {
		return nil, fmt.Errorf("failed to decode evidence: %w", err)
	}
	if e.DurationMillis < 0 {
		return nil, fmt.Errorf("failed to decode evidence: negative duration %d", e.DurationMillis)
	}
	return &e, nil
}
