package store

import (
	"context"
	"time"

	"windseat/internal/domain"
)

// OrderStore persists orders and their lifecycle transitions. Conditional
// updates return false when the guard did not match so services can turn a
// lost race into a state-conflict error instead of a double transition.
type OrderStore interface {
	// Insert stores a new pending order and fills ID and CreatedAt.
	Insert(ctx context.Context, o *domain.Order) error

	// Get returns the order or nil when it does not exist.
	Get(ctx context.Context, id int64) (*domain.Order, error)

	// MarkReceipt moves a pending order to receipt. Reports whether the
	// order was still awaiting a decision.
	MarkReceipt(ctx context.Context, id int64) (bool, error)

	// MarkDecided finalizes an order as approved or rejected, recording
	// the allocated seat when there is one. Reports whether the order was
	// still decidable.
	MarkDecided(ctx context.Context, id int64, status domain.OrderStatus, seatID *int64, at time.Time) (bool, error)

	// ListByUser returns the user's orders, newest first.
	ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error)

	// AdvanceTwofa bumps the code counter from prevCount and stamps the
	// issue time, optionally disabling further codes in the same step.
	// Reports false when another issuer advanced the counter first or the
	// limiter is already disabled.
	AdvanceTwofa(ctx context.Context, id int64, prevCount int, at time.Time, disable bool) (bool, error)

	// DisableTwofa permanently shuts the code limiter for the order.
	DisableTwofa(ctx context.Context, id int64) error
}
