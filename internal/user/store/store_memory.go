package store

import (
	"context"
	"fmt"
	"sync"

	"windseat/internal/domain"
)

// InMemoryStore keeps users and wallets behind a mutex for tests and dev.
type InMemoryStore struct {
	mu      sync.Mutex
	nextID  int64
	users   map[int64]*domain.User
	byTg    map[int64]int64
	wallets map[int64]*domain.Wallet
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		nextID:  1,
		users:   make(map[int64]*domain.User),
		byTg:    make(map[int64]int64),
		wallets: make(map[int64]*domain.Wallet),
	}
}

// Snapshot captures users and wallets so a failed in-memory transaction can
// be undone.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	nextID := s.nextID
	users := make(map[int64]*domain.User, len(s.users))
	for id, u := range s.users {
		users[id] = copyUser(u)
	}
	byTg := make(map[int64]int64, len(s.byTg))
	for tgID, id := range s.byTg {
		byTg[tgID] = id
	}
	wallets := make(map[int64]*domain.Wallet, len(s.wallets))
	for id, w := range s.wallets {
		c := *w
		wallets[id] = &c
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.nextID = nextID
		s.users = users
		s.byTg = byTg
		s.wallets = wallets
	}
}

func (s *InMemoryStore) Get(_ context.Context, id int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyUser(s.users[id]), nil
}

func (s *InMemoryStore) GetByTelegram(_ context.Context, tgID int64) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byTg[tgID]; ok {
		return copyUser(s.users[id]), nil
	}
	return nil, nil
}

func (s *InMemoryStore) Ensure(_ context.Context, tgID int64, username string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.byTg[tgID]; ok {
		u := s.users[id]
		u.Username = username
		return copyUser(u), nil
	}
	u := &domain.User{ID: s.nextID, TgID: tgID, Username: username}
	s.nextID++
	s.users[u.ID] = u
	s.byTg[tgID] = u.ID
	s.wallets[u.ID] = &domain.Wallet{UserID: u.ID}
	return copyUser(u), nil
}

func (s *InMemoryStore) SetReferrer(_ context.Context, userID, referrerID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok || u.Referrer != nil {
		return false, nil
	}
	ref := referrerID
	u.Referrer = &ref
	return true, nil
}

func (s *InMemoryStore) GetWallet(_ context.Context, userID int64) (*domain.Wallet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return nil, nil
	}
	c := *w
	return &c, nil
}

func (s *InMemoryStore) CreditReferral(_ context.Context, userID, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.wallets[userID]
	if !ok {
		return fmt.Errorf("credit referral: wallet for user %d not found", userID)
	}
	w.Balance += amount
	w.ReferralEarned += amount
	return nil
}

func (s *InMemoryStore) CountReferrals(_ context.Context, userID int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	for _, u := range s.users {
		if u.Referrer != nil && *u.Referrer == userID {
			count++
		}
	}
	return count, nil
}

func copyUser(u *domain.User) *domain.User {
	if u == nil {
		return nil
	}
	c := *u
	if u.Referrer != nil {
		ref := *u.Referrer
		c.Referrer = &ref
	}
	return &c
}
