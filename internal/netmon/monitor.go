// Package netmon tracks online/offline connectivity transitions.
package netmon

import (
	"sync"

	"github.com/rs/zerolog"
)

// Status is the current connectivity state.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Monitor is a two-state machine driven by environment-delivered
// connectivity events. It never polls. Subscribers are notified
// synchronously on every delivered event, including duplicates; consumers
// must be idempotent.
type Monitor struct {
	mu     sync.RWMutex
	online bool
	subs   map[int]func(Status)
	nextID int
	log    zerolog.Logger
}

// NewMonitor creates a Monitor. The initial state is offline until the
// first event arrives.
func NewMonitor(log zerolog.Logger) *Monitor {
	return &Monitor{
		subs: make(map[int]func(Status)),
		log:  log,
	}
}

// Status returns the current connectivity status.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.online {
		return StatusOnline
	}
	return StatusOffline
}

// Online reports whether the monitor currently considers itself connected.
func (m *Monitor) Online() bool {
	return m.Status() == StatusOnline
}

// Subscribe registers a callback invoked on every delivered connectivity
// event. It returns an unsubscribe function.
func (m *Monitor) Subscribe(fn func(Status)) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = fn
	m.mu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
}

// SetStatus delivers a connectivity event. Every subscriber is invoked
// synchronously, even when the event repeats the current state; the sync
// engine's own single-flight guard absorbs redundant wake-ups.
func (m *Monitor) SetStatus(s Status) {
	m.mu.Lock()
	was := m.online
	m.online = s == StatusOnline
	fns := make([]func(Status), 0, len(m.subs))
	for _, fn := range m.subs {
		fns = append(fns, fn)
	}
	m.mu.Unlock()

	if was != (s == StatusOnline) {
		m.log.Info().Str("status", string(s)).Msg("connectivity changed")
	}
	for _, fn := range fns {
		fn(s)
	}
}
