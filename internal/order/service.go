// Package order drives the purchase lifecycle: pending, optional receipt,
// then a single operator decision that allocates a seat, pays the referral
// commission, and books the attribution counters, all in one transaction.
package order

import (
	"context"
	"log/slog"

	"windseat/internal/attribution"
	"windseat/internal/audit"
	"windseat/internal/domain"
	"windseat/internal/inventory"
	"windseat/internal/order/store"
	"windseat/internal/platform/metrics"
	"windseat/internal/referral"
	userstore "windseat/internal/user/store"
	dErrors "windseat/pkg/domain-errors"
	"windseat/pkg/platform/tx"
	"windseat/pkg/requestcontext"
)

// Approval is the payload handed back after a successful approve: the seat's
// decrypted access credentials plus the decided order.
type Approval struct {
	Order       *domain.Order
	Credentials domain.Credentials
}

type Service struct {
	orders      store.OrderStore
	users       userstore.UserStore
	inventory   *inventory.Service
	referrals   *referral.Service
	attribution *attribution.Service
	audit       *audit.Publisher
	runner      tx.Runner
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(
	orders store.OrderStore,
	users userstore.UserStore,
	inv *inventory.Service,
	refs *referral.Service,
	attr *attribution.Service,
	aud *audit.Publisher,
	runner tx.Runner,
	opts ...Option,
) *Service {
	s := &Service{
		orders:      orders,
		users:       users,
		inventory:   inv,
		referrals:   refs,
		attribution: attr,
		audit:       aud,
		runner:      runner,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create opens a pending order for the user and books the campaign start.
func (s *Service) Create(ctx context.Context, userID, amount int64, utmKeyword string) (*domain.Order, error) {
	if amount <= 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "amount must be positive")
	}

	user, err := s.users.Get(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "look up user")
	}
	if user == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "user %d not found", userID)
	}

	now := requestcontext.Now(ctx)
	o := &domain.Order{
		UserID:     userID,
		Amount:     amount,
		UtmKeyword: utmKeyword,
		Status:     domain.OrderStatusPending,
		CreatedAt:  now,
	}

	err = s.runner.RunInTx(ctx, func(ctx context.Context) error {
		if err := s.orders.Insert(ctx, o); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "insert order")
		}
		if err := s.attribution.IncrementStarts(ctx, utmKeyword); err != nil {
			return err
		}
		return s.audit.Emit(ctx, o.ID, audit.EventCreated, now)
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}
	s.logger.InfoContext(ctx, "order created",
		"order_id", o.ID,
		"user_id", userID,
		"amount", amount,
		"utm", utmKeyword,
	)
	return o, nil
}

// AttachReceipt moves a pending order to receipt. Attaching again while still
// undecided is accepted; a decided order conflicts.
func (s *Service) AttachReceipt(ctx context.Context, orderID int64) error {
	now := requestcontext.Now(ctx)

	return s.runner.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.getOrder(ctx, orderID)
		if err != nil {
			return err
		}
		ok, err := s.orders.MarkReceipt(ctx, o.ID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "mark receipt")
		}
		if !ok {
			return dErrors.Newf(dErrors.CodeStateConflict, "order %d is already %s", o.ID, o.Status)
		}
		return s.audit.Emit(ctx, o.ID, audit.EventReceipt, now)
	})
}

// Approve decides a pending or receipt order: allocates one seat slot, books
// the conversion, pays the referral commission exactly once, and returns the
// seat credentials. All of it commits or none of it does; a full pool leaves
// the order undecided for a later retry.
func (s *Service) Approve(ctx context.Context, orderID int64) (*Approval, error) {
	now := requestcontext.Now(ctx)

	var approval *Approval
	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.getOrder(ctx, orderID)
		if err != nil {
			return err
		}
		if !o.Decidable() {
			return dErrors.Newf(dErrors.CodeStateConflict, "order %d is already %s", o.ID, o.Status)
		}

		seat, err := s.inventory.Allocate(ctx)
		if err != nil {
			return err
		}
		// Decrypt up front: a bad ciphertext aborts the decision before the
		// order, counters, or wallets are touched.
		creds, err := s.inventory.Credentials(seat)
		if err != nil {
			return err
		}

		decided, err := s.orders.MarkDecided(ctx, o.ID, domain.OrderStatusApproved, &seat.ID, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "mark approved")
		}
		if !decided {
			return dErrors.Newf(dErrors.CodeStateConflict, "order %d is already decided", o.ID)
		}

		if err := s.attribution.IncrementBuys(ctx, o.UtmKeyword); err != nil {
			return err
		}
		if err := s.attribution.AddAmount(ctx, o.UtmKeyword, o.Amount); err != nil {
			return err
		}

		if err := s.payCommission(ctx, o); err != nil {
			return err
		}

		if err := s.audit.Emit(ctx, o.ID, audit.EventSeatAssigned, now); err != nil {
			return err
		}
		if err := s.audit.Emit(ctx, o.ID, audit.EventApproved, now); err != nil {
			return err
		}

		o.Status = domain.OrderStatusApproved
		o.SeatID = &seat.ID
		o.ApprovedAt = &now
		approval = &Approval{Order: o, Credentials: creds}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.OrdersApproved.Inc()
	}
	s.logger.InfoContext(ctx, "order approved",
		"order_id", approval.Order.ID,
		"seat_id", *approval.Order.SeatID,
		"decided_by", decidedBy(ctx),
	)
	return approval, nil
}

// Reject finalizes an undecided order without touching the pool or wallets.
func (s *Service) Reject(ctx context.Context, orderID int64) error {
	now := requestcontext.Now(ctx)

	err := s.runner.RunInTx(ctx, func(ctx context.Context) error {
		o, err := s.getOrder(ctx, orderID)
		if err != nil {
			return err
		}
		decided, err := s.orders.MarkDecided(ctx, o.ID, domain.OrderStatusRejected, nil, now)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "mark rejected")
		}
		if !decided {
			return dErrors.Newf(dErrors.CodeStateConflict, "order %d is already %s", o.ID, o.Status)
		}
		return s.audit.Emit(ctx, o.ID, audit.EventRejected, now)
	})
	if err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.OrdersRejected.Inc()
	}
	s.logger.InfoContext(ctx, "order rejected", "order_id", orderID, "decided_by", decidedBy(ctx))
	return nil
}

func decidedBy(ctx context.Context) int64 {
	if actor, ok := requestcontext.ActorFrom(ctx); ok {
		return actor.ID
	}
	return 0
}

// Get returns one order, CodeNotFound when absent.
func (s *Service) Get(ctx context.Context, orderID int64) (*domain.Order, error) {
	return s.getOrder(ctx, orderID)
}

// ListByUser returns the user's order history, newest first.
func (s *Service) ListByUser(ctx context.Context, userID int64) ([]*domain.Order, error) {
	orders, err := s.orders.ListByUser(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list orders")
	}
	return orders, nil
}

// Trail exposes the order's audit history.
func (s *Service) Trail(ctx context.Context, orderID int64) ([]*audit.Event, error) {
	if _, err := s.getOrder(ctx, orderID); err != nil {
		return nil, err
	}
	events, err := s.audit.Trail(ctx, orderID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load order trail")
	}
	return events, nil
}

func (s *Service) payCommission(ctx context.Context, o *domain.Order) error {
	buyer, err := s.users.Get(ctx, o.UserID)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "look up buyer")
	}
	if buyer == nil || buyer.Referrer == nil {
		return nil
	}
	commission := referral.Commission(o.Amount)
	if commission == 0 {
		return nil
	}
	return s.referrals.Credit(ctx, *buyer.Referrer, commission)
}

// getOrder is a plain read. State transitions are guarded by the stores'
// conditional updates, not by this lookup.
func (s *Service) getOrder(ctx context.Context, orderID int64) (*domain.Order, error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get order")
	}
	if o == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "order %d not found", orderID)
	}
	return o, nil
}
