package store

import (
	"context"
	"sync"
	"time"

	"windseat/internal/domain"
)

type InMemoryStore struct {
	mu     sync.Mutex
	nextID int64
	orders map[int64]*domain.Order
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		nextID: 1,
		orders: make(map[int64]*domain.Order),
	}
}

// Snapshot captures the order book so a failed in-memory transaction can be
// undone.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextID := s.nextID
	orders := make(map[int64]*domain.Order, len(s.orders))
	for id, o := range s.orders {
		orders[id] = copyOrder(o)
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextID = nextID
		s.orders = orders
	}
}

func (s *InMemoryStore) Insert(ctx context.Context, o *domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	o.ID = s.nextID
	s.nextID++
	o.CreatedAt = o.CreatedAt.UTC()
	s.orders[o.ID] = copyOrder(o)
	return nil
}

func (s *InMemoryStore) Get(ctx context.Context, id int64) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok {
		return nil, nil
	}
	return copyOrder(o), nil
}

func (s *InMemoryStore) MarkReceipt(ctx context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok || !o.Decidable() {
		return false, nil
	}
	o.Status = domain.OrderStatusReceipt
	return true, nil
}

func (s *InMemoryStore) MarkDecided(ctx context.Context, id int64, status domain.OrderStatus, seatID *int64, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok || !o.Decidable() {
		return false, nil
	}
	o.Status = status
	o.SeatID = copyInt64(seatID)
	if status == domain.OrderStatusApproved {
		t := at.UTC()
		o.ApprovedAt = &t
	}
	return true, nil
}

func (s *InMemoryStore) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var orders []*domain.Order
	for id := s.nextID - 1; id >= 1; id-- {
		if o, ok := s.orders[id]; ok && o.UserID == userID {
			orders = append(orders, copyOrder(o))
		}
	}
	return orders, nil
}

func (s *InMemoryStore) AdvanceTwofa(ctx context.Context, id int64, prevCount int, at time.Time, disable bool) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[id]
	if !ok || o.TwofaDisabled || o.TwofaCount != prevCount {
		return false, nil
	}
	o.TwofaCount++
	t := at.UTC()
	o.TwofaLast = &t
	o.TwofaDisabled = disable
	return true, nil
}

func (s *InMemoryStore) DisableTwofa(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o, ok := s.orders[id]; ok {
		o.TwofaDisabled = true
	}
	return nil
}

func copyOrder(o *domain.Order) *domain.Order {
	c := *o
	c.SeatID = copyInt64(o.SeatID)
	if o.ApprovedAt != nil {
		t := *o.ApprovedAt
		c.ApprovedAt = &t
	}
	if o.TwofaLast != nil {
		t := *o.TwofaLast
		c.TwofaLast = &t
	}
	return &c
}

func copyInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}
