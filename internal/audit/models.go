// Package audit records the append-only order event log and optionally
// mirrors it to a message broker for downstream consumers.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Well-known event names written to the order log.
const (
	EventCreated      = "created"
	EventReceipt      = "receipt_attached"
	EventApproved     = "approved"
	EventRejected     = "rejected"
	EventCodeIssued   = "code_issued"
	EventCodeRefused  = "code_refused"
	EventSeatAssigned = "seat_assigned"
)

type Event struct {
	ID      uuid.UUID `json:"id"`
	OrderID int64     `json:"order_id"`
	Event   string    `json:"event"`
	At      time.Time `json:"at"`
}

// EventStore is the append-only order event log. Implementations live in the
// store subpackage.
type EventStore interface {
	Append(ctx context.Context, e *Event) error
	ListByOrder(ctx context.Context, orderID int64) ([]*Event, error)
}
