package telemetry

import (
	"context"
	"sync"
)

// MemorySink keeps exported events in memory for assertions.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink returns an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{events: make([]Event, 0, 64)}
}

// Export appends an event in memory.
func (s *MemorySink) Export(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of all exported events.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// LogNames returns the names of exported log events in export order.
func (s *MemorySink) LogNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, e := range s.events {
		if e.Log != nil {
			out = append(out, e.Log.Name)
		}
	}
	return out
}

// Logs returns exported log events with the given name.
func (s *MemorySink) Logs(name string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, e := range s.events {
		if e.Log != nil && e.Log.Name == name {
			out = append(out, e)
		}
	}
	return out
}
