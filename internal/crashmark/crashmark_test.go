package crashmark

import (
	"io"
	"log/slog"
	"testing"

	"github.com/blackwell-systems/hangwatch/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(":memory:")
	if err != nil {
		t.Fatalf("store.New() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.CreateSchema(); err != nil {
		t.Fatalf("CreateSchema() failed: %v", err)
	}
	return s
}

func TestConsume_NoMarker(t *testing.T) {
	s := newTestStore(t)
	m, err := Consume(s)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if m != nil {
		t.Errorf("Consume() = %+v, want nil", m)
	}
}

func TestPanicHandler_RecordsOnce(t *testing.T) {
	s := newTestStore(t)
	handler := PanicHandler(s, 4242, slog.New(slog.NewTextHandler(io.Discard, nil)))

	handler("index out of range")

	m, err := Consume(s)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if m == nil {
		t.Fatal("Consume() = nil after a recorded panic")
	}
	if m.Reason != "index out of range" || m.PID != 4242 || m.At.IsZero() {
		t.Errorf("Consume() = %+v", m)
	}

	// Consumed markers are gone.
	if m, _ := Consume(s); m != nil {
		t.Errorf("second Consume() = %+v, want nil", m)
	}
}

func TestConsume_MalformedCountsAsCrash(t *testing.T) {
	s := newTestStore(t)
	garbage := "%%%"
	if err := s.Write(storeDomain, storeKey, &garbage); err != nil {
		t.Fatal(err)
	}

	m, err := Consume(s)
	if err != nil {
		t.Fatalf("Consume() error = %v", err)
	}
	if m == nil {
		t.Fatal("malformed marker should still count as a crash")
	}
	if _, ok, _ := s.Read(storeDomain, storeKey); ok {
		t.Error("malformed marker not cleared")
	}
}
