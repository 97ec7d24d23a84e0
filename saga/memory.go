package saga

import (
	"context"
	"sync"
)

// DefaultMemoryCapacity bounds the in-memory store.
const DefaultMemoryCapacity = 1000

// MemoryStore keeps the most recent events in process. It stands in for
// PostgresStore when no database is configured.
type MemoryStore struct {
	mu     sync.RWMutex
	cap    int
	events []Event
}

func NewMemoryStore(capacity int) *MemoryStore {
	if capacity <= 0 {
		capacity = DefaultMemoryCapacity
	}
	return &MemoryStore{cap: capacity}
}

func (s *MemoryStore) Append(ctx context.Context, evt *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, *evt)
	if over := len(s.events) - s.cap; over > 0 {
		s.events = append(s.events[:0:0], s.events[over:]...)
	}
	return nil
}

func (s *MemoryStore) ListBySaga(ctx context.Context, sagaID string) ([]Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for _, e := range s.events {
		if e.SagaID == sagaID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListByJob(ctx context.Context, job string, limit int) ([]Event, error) {
	return s.newest(limit, func(e *Event) bool { return e.Job == job }), nil
}

func (s *MemoryStore) ListRecent(ctx context.Context, limit int) ([]Event, error) {
	return s.newest(limit, func(*Event) bool { return true }), nil
}

func (s *MemoryStore) newest(limit int, keep func(*Event) bool) []Event {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	for i := len(s.events) - 1; i >= 0 && len(out) < limit; i-- {
		if keep(&s.events[i]) {
			out = append(out, s.events[i])
		}
	}
	return out
}
