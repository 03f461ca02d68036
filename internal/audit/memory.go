package audit

import (
	"context"
	"sync"
)

// MemorySink buffers events in memory. Used by tests and by tools that
// inspect a stream without durable storage.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

// NewMemorySink returns an empty buffer.
func NewMemorySink() *MemorySink { return &MemorySink{} }

// Append implements Sink.
func (s *MemorySink) Append(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// ReadSince implements Reader.
func (s *MemorySink) ReadSince(_ context.Context, after uint64) ([]Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Seq > after {
			out = append(out, ev)
		}
	}
	return out, nil
}

// Events returns a copy of everything recorded.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// OfType returns recorded events matching the type.
func (s *MemorySink) OfType(t EventType) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, ev := range s.events {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// Close implements Sink.
func (s *MemorySink) Close() error { return nil }
