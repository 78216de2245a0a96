package hang

import (
	"strings"
	"testing"
	"time"

	"github.com/blackwell-systems/hangwatch/internal/appinfo"
	"github.com/blackwell-systems/hangwatch/internal/stackcapture"
)

func TestEvidence_JSONFieldNames(t *testing.T) {
	e := &Evidence{
		CallStack:      "0   main.go   main.main + 0x1d",
		Architecture:   "arm64",
		OSVersion:      "14.4.1",
		AppStart:       appinfo.StartInfo{StartedWithPrewarming: true},
		Runtime:        appinfo.RuntimeInfo{OpenedScreens: []string{"Home", "Settings"}},
		DuringStartup:  true,
		DurationMillis: 3435,
	}
	raw, err := e.Encode()
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}

	for _, field := range []string{
		`"callStack":`,
		`"architecture":"arm64"`,
		`"osVersion":"14.4.1"`,
		`"appStartInfo":{"appStartedWithPrewarming":true}`,
		`"appRuntimeInfo":{"openedScreens":["Home","Settings"]}`,
		`"duringStartup":true`,
		`"durationInMilliseconds":3435`,
	} {
		if !strings.Contains(raw, field) {
			t.Errorf("encoded evidence %s missing %s", raw, field)
		}
	}

	back, err := DecodeEvidence(raw)
	if err != nil {
		t.Fatalf("DecodeEvidence() error = %v", err)
	}
	if back.DurationMillis != 3435 || !back.DuringStartup || back.Runtime.OpenedScreens[1] != "Settings" {
		t.Errorf("DecodeEvidence() = %+v", back)
	}
}

func TestDecodeEvidence_Malformed(t *testing.T) {
	tests := []string{
		"",
		"{",
		`{"durationInMilliseconds":"long"}`,
		`{"durationInMilliseconds":-5}`,
	}
	for _, raw := range tests {
		if _, err := DecodeEvidence(raw); err == nil {
			t.Errorf("DecodeEvidence(%q) should fail", raw)
		}
	}
}

func TestEvidence_SetDuration(t *testing.T) {
	e := &Evidence{}
	e.SetDuration(1500*time.Millisecond + 700*time.Microsecond)
	if e.DurationMillis != 1501 {
		t.Errorf("DurationMillis = %d, want 1501", e.DurationMillis)
	}
	e.SetDuration(2 * time.Second)
	if e.DurationMillis != 2000 {
		t.Errorf("DurationMillis = %d, want 2000 for a whole millisecond value", e.DurationMillis)
	}
	e.SetDuration(2*time.Second + time.Nanosecond)
	if e.DurationMillis != 2001 {
		t.Errorf("DurationMillis = %d, want 2001 just past 2s", e.DurationMillis)
	}
	e.SetDuration(-time.Second)
	if e.DurationMillis != 0 {
		t.Errorf("DurationMillis = %d, want 0 for negative duration", e.DurationMillis)
	}
	e.DurationMillis = 3000
	if e.Duration() != 3*time.Second {
		t.Errorf("Duration() = %v, want 3s", e.Duration())
	}
}

func TestNewEvidence_FillsContext(t *testing.T) {
	holder := appinfo.NewHolder()
	holder.ScreenOpened("Checkout")

	e := NewEvidence("stack", true, 2*time.Second, holder)
	if e.Architecture != stackcapture.Architecture() {
		t.Errorf("Architecture = %q, want %q", e.Architecture, stackcapture.Architecture())
	}
	if e.OSVersion == "" {
		t.Error("OSVersion is empty")
	}
	if len(e.Runtime.OpenedScreens) != 1 || e.Runtime.OpenedScreens[0] != "Checkout" {
		t.Errorf("OpenedScreens = %v, want [Checkout]", e.Runtime.OpenedScreens)
	}
	if e.DurationMillis != 2000 || !e.DuringStartup || e.CallStack != "stack" {
		t.Errorf("NewEvidence() = %+v", e)
	}
}

func TestEvidence_CloneIsIndependent(t *testing.T) {
	e := &Evidence{Runtime: appinfo.RuntimeInfo{OpenedScreens: []string{"A"}}, DurationMillis: 1}
	c := e.Clone()
	e.Runtime.OpenedScreens[0] = "B"
	e.DurationMillis = 2
	if c.Runtime.OpenedScreens[0] != "A" || c.DurationMillis != 1 {
		t.Errorf("Clone() shares state: %+v", c)
	}
}
