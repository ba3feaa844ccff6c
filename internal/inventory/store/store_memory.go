package store

import (
	"context"
	"sync"

	"windseat/internal/domain"
)

// InMemoryStore keeps the seat pool behind a mutex. It backs unit tests and
// single-process dev runs; the mutex stands in for the row lock the Postgres
// store takes.
type InMemoryStore struct {
	mu     sync.Mutex
	nextID int64
	seats  map[int64]*domain.Seat
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{nextID: 1, seats: make(map[int64]*domain.Seat)}
}

// Snapshot captures the pool so a failed in-memory transaction can be undone.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextID := s.nextID
	seats := make(map[int64]*domain.Seat, len(s.seats))
	for id, seat := range s.seats {
		seats[id] = copySeat(seat)
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextID = nextID
		s.seats = seats
	}
}

func (s *InMemoryStore) AllocateOne(ctx context.Context) (*domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pick *domain.Seat
	for _, seat := range s.seats {
		if !seat.HasCapacity() {
			continue
		}
		// Pack tightly: prefer the fullest eligible seat, lowest id on ties.
		if pick == nil || seat.Sold > pick.Sold || (seat.Sold == pick.Sold && seat.ID < pick.ID) {
			pick = seat
		}
	}
	if pick == nil {
		return nil, ErrNoCapacity
	}
	pick.Sold++
	return copySeat(pick), nil
}

func (s *InMemoryStore) Insert(_ context.Context, seat *domain.Seat) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat.ID = s.nextID
	s.nextID++
	s.seats[seat.ID] = copySeat(seat)
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, id int64) (*domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[id]
	if !ok {
		return nil, nil
	}
	return copySeat(seat), nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*domain.Seat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seats := make([]*domain.Seat, 0, len(s.seats))
	for id := s.nextID - 1; id >= 1; id-- {
		if seat, ok := s.seats[id]; ok {
			seats = append(seats, copySeat(seat))
		}
	}
	return seats, nil
}

func (s *InMemoryStore) Disable(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seat, ok := s.seats[id]
	if !ok || seat.Status == domain.SeatDisabled {
		return false, nil
	}
	seat.Status = domain.SeatDisabled
	return true, nil
}

func copySeat(seat *domain.Seat) *domain.Seat {
	c := *seat
	c.UsernameEnc = append([]byte(nil), seat.UsernameEnc...)
	c.PassEnc = append([]byte(nil), seat.PassEnc...)
	c.SecretEnc = append([]byte(nil), seat.SecretEnc...)
	return &c
}
