package domain

import "time"

// OrderStatus is the order lifecycle. pending → receipt → {approved|rejected},
// with the receipt step optional. Terminal states are never left.
type OrderStatus string

const (
	OrderStatusPending  OrderStatus = "pending"
	OrderStatusReceipt  OrderStatus = "receipt"
	OrderStatusApproved OrderStatus = "approved"
	OrderStatusRejected OrderStatus = "rejected"
)

// Order is one buyer's purchase request. SeatID is set exactly once, on
// approval; it is non-nil if and only if Status is OrderApproved. The twofa
// fields belong to the one-time-code limiter and are mutated only through the
// store's compare-and-swap update.
type Order struct {
	ID         int64
	UserID     int64
	Amount     int64 // currency minor units
	UtmKeyword string
	Status     OrderStatus
	SeatID     *int64
	CreatedAt  time.Time
	ApprovedAt *time.Time

	TwofaCount    int
	TwofaLast     *time.Time
	TwofaDisabled bool
}

// Decidable reports whether an operator decision (approve/reject) is still
// allowed from the current status.
func (o Order) Decidable() bool {
	return o.Status == OrderStatusPending || o.Status == OrderStatusReceipt
}

// Terminal reports whether the order reached a final state.
func (o Order) Terminal() bool {
	return o.Status == OrderStatusApproved || o.Status == OrderStatusRejected
}
