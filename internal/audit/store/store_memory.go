package store

import (
	"context"
	"sync"

	"windseat/internal/audit"
)

type InMemoryStore struct {
	mu     sync.Mutex
	events []*audit.Event
}

var _ audit.EventStore = (*InMemoryStore)(nil)

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{}
}

// Snapshot captures the log so a failed in-memory transaction can be undone.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	events := append([]*audit.Event(nil), s.events...)
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.events = events
	}
}

func (s *InMemoryStore) Append(ctx context.Context, e *audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c := *e
	s.events = append(s.events, &c)
	return nil
}

func (s *InMemoryStore) ListByOrder(ctx context.Context, orderID int64) ([]*audit.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var events []*audit.Event
	for _, e := range s.events {
		if e.OrderID == orderID {
			c := *e
			events = append(events, &c)
		}
	}
	return events, nil
}
