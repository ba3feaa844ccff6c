// Package store persists the seat pool. Stores are pure I/O; the packing
// preference and the sold counter guard live in the one atomic allocate
// statement, everything else belongs to the service layer.
package store

import (
	"context"
	"errors"

	"windseat/internal/domain"
)

// ErrNoCapacity is returned by AllocateOne when no seat satisfies
// status=active AND sold < max_slots. The service maps it onto the
// capacity-exhausted error code.
var ErrNoCapacity = errors.New("no seat with free capacity")

// SeatStore is implemented by the Postgres store and the in-memory store.
type SeatStore interface {
	// AllocateOne atomically picks the eligible seat with the highest sold
	// count, increments its sold counter, and returns the post-increment row.
	// The pick and the increment are one indivisible operation; concurrent
	// callers can never push sold past max_slots or receive the same unit
	// twice.
	AllocateOne(ctx context.Context) (*domain.Seat, error)

	// Insert stores a newly provisioned seat and fills in its ID.
	Insert(ctx context.Context, seat *domain.Seat) error

	// Get returns a seat by id.
	Get(ctx context.Context, id int64) (*domain.Seat, error)

	// List returns all seats, newest first.
	List(ctx context.Context) ([]*domain.Seat, error)

	// Disable soft-disables a seat. Returns false without error when the seat
	// is absent or already disabled; existing assignments are untouched.
	Disable(ctx context.Context, id int64) (bool, error)
}
