package session

import (
	"context"
	"sync"
	"time"
)

type entry struct {
	state   State
	expires time.Time
}

// InMemoryStore backs tests and single-process development runs. Expired
// entries are dropped lazily on read.
type InMemoryStore struct {
	mu       sync.Mutex
	sessions map[int64]entry
	now      func() time.Time
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		sessions: make(map[int64]entry),
		now:      time.Now,
	}
}

func (s *InMemoryStore) Put(ctx context.Context, actorID int64, state *State, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[actorID] = entry{state: *state, expires: s.now().Add(ttl)}
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, actorID int64) (*State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.sessions[actorID]
	if !ok {
		return nil, nil
	}
	if s.now().After(e.expires) {
		delete(s.sessions, actorID)
		return nil, nil
	}
	state := e.state
	return &state, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, actorID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.sessions, actorID)
	return nil
}
