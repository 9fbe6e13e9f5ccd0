package sinks

import (
	"context"
	"sync"

	"partyhall/server/logging"
)

// MemorySink records events for assertions in tests.
type MemorySink struct {
	mu     sync.Mutex
	events []logging.Event
}

// NewMemorySink builds an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) Write(event logging.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *MemorySink) Close(context.Context) error {
	return nil
}

// Events returns a copy of everything recorded so far.
func (s *MemorySink) Events() []logging.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]logging.Event, len(s.events))
	copy(out, s.events)
	return out
}
