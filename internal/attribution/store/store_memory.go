package store

import (
	"context"
	"sort"
	"sync"

	"windseat/internal/domain"
)

// InMemoryStore keeps UTM stats behind a mutex for tests and dev.
type InMemoryStore struct {
	mu    sync.Mutex
	stats map[string]*domain.UtmStat
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{stats: make(map[string]*domain.UtmStat)}
}

// Snapshot captures the counters so a failed in-memory transaction can be
// undone.
func (s *InMemoryStore) Snapshot() func() {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := make(map[string]*domain.UtmStat, len(s.stats))
	for keyword, stat := range s.stats {
		c := *stat
		stats[keyword] = &c
	}
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		s.stats = stats
	}
}

func (s *InMemoryStore) IncStarts(_ context.Context, keyword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(keyword).Starts++
	return nil
}

func (s *InMemoryStore) IncBuys(_ context.Context, keyword string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(keyword).Buys++
	return nil
}

func (s *InMemoryStore) AddAmount(_ context.Context, keyword string, amount int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getOrCreate(keyword).Amount += amount
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, keyword string) (*domain.UtmStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stat, ok := s.stats[keyword]
	if !ok {
		return nil, nil
	}
	c := *stat
	return &c, nil
}

func (s *InMemoryStore) List(_ context.Context) ([]*domain.UtmStat, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	stats := make([]*domain.UtmStat, 0, len(s.stats))
	for _, stat := range s.stats {
		c := *stat
		stats = append(stats, &c)
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Keyword < stats[j].Keyword })
	return stats, nil
}

// getOrCreate must be called while holding s.mu.
func (s *InMemoryStore) getOrCreate(keyword string) *domain.UtmStat {
	if stat, ok := s.stats[keyword]; ok {
		return stat
	}
	stat := &domain.UtmStat{Keyword: keyword}
	s.stats[keyword] = stat
	return stat
}
