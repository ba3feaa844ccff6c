// Package store persists per-campaign counters. Every mutation is an upsert:
// the row appears on first reference with zeroed counters and only ever grows.
package store

import (
	"context"

	"windseat/internal/domain"
)

// UtmStore is implemented by the Postgres store and the in-memory store.
type UtmStore interface {
	IncStarts(ctx context.Context, keyword string) error
	IncBuys(ctx context.Context, keyword string) error
	AddAmount(ctx context.Context, keyword string, amount int64) error

	// Get returns the stats for one keyword, nil when the keyword was never
	// referenced.
	Get(ctx context.Context, keyword string) (*domain.UtmStat, error)

	// List returns all stats ordered by keyword.
	List(ctx context.Context) ([]*domain.UtmStat, error)
}
