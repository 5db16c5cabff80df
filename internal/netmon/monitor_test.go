package netmon

import (
	"testing"

	"github.com/rs/zerolog"
)

func TestMonitorStartsOffline(t *testing.T) {
	m := NewMonitor(zerolog.Nop())
	if m.Online() {
		t.Fatal("monitor should start offline")
	}
	if m.Status() != StatusOffline {
		t.Fatalf("expected offline, got %s", m.Status())
	}
}

func TestMonitorDeliversEveryEvent(t *testing.T) {
	m := NewMonitor(zerolog.Nop())

	var seen []Status
	m.Subscribe(func(s Status) { seen = append(seen, s) })

	// Duplicate events are delivered, not collapsed.
	m.SetStatus(StatusOnline)
	m.SetStatus(StatusOnline)
	m.SetStatus(StatusOffline)
	m.SetStatus(StatusOnline)

	want := []Status{StatusOnline, StatusOnline, StatusOffline, StatusOnline}
	if len(seen) != len(want) {
		t.Fatalf("expected %d events, got %d: %v", len(want), len(seen), seen)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("event %d: expected %s, got %s", i, want[i], seen[i])
		}
	}
	if !m.Online() {
		t.Fatal("monitor should be online")
	}
}

func TestMonitorUnsubscribe(t *testing.T) {
	m := NewMonitor(zerolog.Nop())

	calls := 0
	unsub := m.Subscribe(func(Status) { calls++ })
	m.SetStatus(StatusOnline)
	unsub()
	m.SetStatus(StatusOffline)

	if calls != 1 {
		t.Fatalf("expected one delivery before unsubscribe, got %d", calls)
	}
}

func TestMonitorMultipleSubscribers(t *testing.T) {
	m := NewMonitor(zerolog.Nop())

	a, b := 0, 0
	m.Subscribe(func(Status) { a++ })
	m.Subscribe(func(Status) { b++ })
	m.SetStatus(StatusOnline)

	if a != 1 || b != 1 {
		t.Fatalf("expected both subscribers notified, got a=%d b=%d", a, b)
	}
}
