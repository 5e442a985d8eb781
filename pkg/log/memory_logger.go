package log

import "sync"

// MemoryLogger keeps the most recent events in a ring buffer.
// It is safe for concurrent use.
type MemoryLogger struct {
	mu     sync.Mutex
	events []Event
	next   int
	full   bool
}

// NewMemoryLogger creates a MemoryLogger holding up to capacity events.
func NewMemoryLogger(capacity int) *MemoryLogger {
	if capacity < 1 {
		capacity = 1
	}
	return &MemoryLogger{events: make([]Event, capacity)}
}

// Log stores the event, overwriting the oldest one when full.
func (m *MemoryLogger) Log(event Event) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.events[m.next] = event
	m.next++
	if m.next == len(m.events) {
		m.next = 0
		m.full = true
	}
}

// Events returns the stored events, oldest first.
func (m *MemoryLogger) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.full {
		return append([]Event(nil), m.events[:m.next]...)
	}
	out := make([]Event, 0, len(m.events))
	out = append(out, m.events[m.next:]...)
	return append(out, m.events[:m.next]...)
}

// Compile-time interface satisfaction check.
var _ Logger = (*MemoryLogger)(nil)
