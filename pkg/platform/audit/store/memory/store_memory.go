package memory

import (
	"context"
	"sync"

	audit "appshell/pkg/platform/audit"
)

// InMemoryStore keeps ops events in insertion order. With a capacity set,
// the oldest events are evicted first.
type InMemoryStore struct {
	mu       sync.RWMutex
	events   []audit.OpsEvent
	capacity int
}

type Option func(*InMemoryStore)

// WithCapacity bounds how many events are retained.
func WithCapacity(n int) Option {
	return func(s *InMemoryStore) {
		if n > 0 {
			s.capacity = n
		}
	}
}

func NewInMemoryStore(opts ...Option) *InMemoryStore {
	s := &InMemoryStore{}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *InMemoryStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = nil
}

func (s *InMemoryStore) Append(_ context.Context, event audit.OpsEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	if s.capacity > 0 && len(s.events) > s.capacity {
		s.events = append([]audit.OpsEvent(nil), s.events[len(s.events)-s.capacity:]...)
	}
	return nil
}

// ListAll returns every stored event.
func (s *InMemoryStore) ListAll(_ context.Context) ([]audit.OpsEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]audit.OpsEvent{}, s.events...), nil
}

// ListByAction returns the stored events whose Action equals action.
func (s *InMemoryStore) ListByAction(_ context.Context, action audit.AuditEvent) ([]audit.OpsEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []audit.OpsEvent{}
	for _, e := range s.events {
		if e.Action == string(action) {
			out = append(out, e)
		}
	}
	return out, nil
}
