// Package attribution counts campaign starts, conversions, and revenue per
// UTM keyword.
package attribution

import (
	"context"

	"windseat/internal/attribution/store"
	"windseat/internal/domain"
	dErrors "windseat/pkg/domain-errors"
)

// Service wraps the upsert store. Empty keywords are silent no-ops so callers
// don't have to branch on whether an order carried a campaign tag.
type Service struct {
	store store.UtmStore
}

func New(utm store.UtmStore) *Service {
	return &Service{store: utm}
}

// IncrementStarts records one campaign start.
func (s *Service) IncrementStarts(ctx context.Context, keyword string) error {
	if keyword == "" {
		return nil
	}
	if err := s.store.IncStarts(ctx, keyword); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "increment starts")
	}
	return nil
}

// IncrementBuys records one conversion.
func (s *Service) IncrementBuys(ctx context.Context, keyword string) error {
	if keyword == "" {
		return nil
	}
	if err := s.store.IncBuys(ctx, keyword); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "increment buys")
	}
	return nil
}

// AddAmount accumulates an approved order's amount under the keyword.
func (s *Service) AddAmount(ctx context.Context, keyword string, amount int64) error {
	if keyword == "" {
		return nil
	}
	if err := s.store.AddAmount(ctx, keyword, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "add amount")
	}
	return nil
}

// Stat returns one keyword's counters, CodeNotFound when never referenced.
func (s *Service) Stat(ctx context.Context, keyword string) (*domain.UtmStat, error) {
	stat, err := s.store.Get(ctx, keyword)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get utm stat")
	}
	if stat == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "utm keyword %q not found", keyword)
	}
	return stat, nil
}

// Report lists every campaign's counters for the operator dashboard.
func (s *Service) Report(ctx context.Context) ([]*domain.UtmStat, error) {
	stats, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list utm stats")
	}
	return stats, nil
}
