// Package twofa issues time-based one-time codes for approved orders, capped
// at two codes inside a 120 second window. Once the budget or the window is
// gone the order's limiter shuts for good.
package twofa

import (
	"context"
	"log/slog"
	"time"

	"github.com/pquerna/otp/totp"

	"windseat/internal/audit"
	"windseat/internal/domain"
	"windseat/internal/platform/metrics"
	"windseat/internal/vault"
	dErrors "windseat/pkg/domain-errors"
	"windseat/pkg/requestcontext"
)

const (
	// MaxCodes is the lifetime code budget per order.
	MaxCodes = 2

	// Window bounds the time between the first issued code and any later
	// one. A request after the window closes the limiter.
	Window = 120 * time.Second

	totpPeriod = 30 * time.Second
)

// Code is one issued one-time code with its remaining usable lifetime. The
// lifetime includes one full extra period so a code caught at a period edge
// still verifies.
type Code struct {
	Value        string
	ValidSeconds int
	IssuesLeft   int
}

// OrderStore is the slice of the order store the limiter needs.
type OrderStore interface {
	Get(ctx context.Context, id int64) (*domain.Order, error)
	AdvanceTwofa(ctx context.Context, id int64, prevCount int, at time.Time, disable bool) (bool, error)
	DisableTwofa(ctx context.Context, id int64) error
}

// SeatStore resolves the allocated seat holding the shared TOTP secret.
type SeatStore interface {
	Get(ctx context.Context, id int64) (*domain.Seat, error)
}

type Service struct {
	orders  OrderStore
	seats   SeatStore
	vault   *vault.Vault
	audit   *audit.Publisher
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(orders OrderStore, seats SeatStore, v *vault.Vault, aud *audit.Publisher, opts ...Option) *Service {
	s := &Service{
		orders: orders,
		seats:  seats,
		vault:  v,
		audit:  aud,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestCode issues the next one-time code for an approved order, or refuses
// with CodeRateLimited once the limiter is shut. Refusals are terminal: a
// request outside the window or beyond the budget disables the limiter before
// refusing.
func (s *Service) RequestCode(ctx context.Context, orderID int64) (*Code, error) {
	now := requestcontext.Now(ctx)

	// Losing the counter race to a simultaneous request just means re-reading
	// the order and re-applying the policy. With a budget of two there can be
	// at most two winners, so two retries always reach a terminal answer.
	for attempt := 0; attempt < MaxCodes+1; attempt++ {
		code, lost, err := s.tryIssue(ctx, orderID, now)
		if err != nil {
			return nil, err
		}
		if !lost {
			return code, nil
		}
	}
	return nil, dErrors.Newf(dErrors.CodeRateLimited, "no more codes for order %d: counter contention", orderID)
}

// tryIssue runs one pass of the limiter policy. lost reports that another
// request advanced the counter first and the pass should be repeated.
func (s *Service) tryIssue(ctx context.Context, orderID int64, now time.Time) (code *Code, lost bool, err error) {
	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "get order")
	}
	if o == nil {
		return nil, false, dErrors.Newf(dErrors.CodeNotFound, "order %d not found", orderID)
	}
	if o.Status != domain.OrderStatusApproved || o.SeatID == nil {
		return nil, false, dErrors.Newf(dErrors.CodeStateConflict, "order %d has no delivered seat", orderID)
	}

	if o.TwofaDisabled {
		return nil, false, s.refuse(ctx, o, now, "limiter closed")
	}
	if o.TwofaCount > 0 && o.TwofaLast != nil && now.Sub(*o.TwofaLast) >= Window {
		if err := s.orders.DisableTwofa(ctx, o.ID); err != nil {
			return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "disable twofa")
		}
		return nil, false, s.refuse(ctx, o, now, "window expired")
	}
	if o.TwofaCount >= MaxCodes {
		if err := s.orders.DisableTwofa(ctx, o.ID); err != nil {
			return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "disable twofa")
		}
		return nil, false, s.refuse(ctx, o, now, "budget exhausted")
	}

	seat, err := s.seats.Get(ctx, *o.SeatID)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "get seat")
	}
	if seat == nil {
		return nil, false, dErrors.Newf(dErrors.CodeNotFound, "seat %d not found", *o.SeatID)
	}
	secret, err := s.vault.Decrypt(seat.SecretEnc)
	if err != nil {
		return nil, false, err
	}

	value, err := totp.GenerateCode(secret, now)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "generate code")
	}

	// The counter is the concurrency guard: two simultaneous requests both
	// read the same count, only one advance lands.
	disable := o.TwofaCount+1 >= MaxCodes
	advanced, err := s.orders.AdvanceTwofa(ctx, o.ID, o.TwofaCount, now, disable)
	if err != nil {
		return nil, false, dErrors.Wrap(err, dErrors.CodeInternal, "advance twofa")
	}
	if !advanced {
		return nil, true, nil
	}

	if err := s.audit.Emit(ctx, o.ID, audit.EventCodeIssued, now); err != nil {
		return nil, false, err
	}
	if s.metrics != nil {
		s.metrics.CodesIssued.Inc()
	}
	s.logger.InfoContext(ctx, "code issued",
		"order_id", o.ID,
		"issue", o.TwofaCount+1,
	)

	period := int(totpPeriod / time.Second)
	return &Code{
		Value:        value,
		ValidSeconds: period - int(now.Unix()%int64(period)) + period,
		IssuesLeft:   MaxCodes - o.TwofaCount - 1,
	}, false, nil
}

func (s *Service) refuse(ctx context.Context, o *domain.Order, now time.Time, reason string) error {
	if err := s.audit.Emit(ctx, o.ID, audit.EventCodeRefused, now); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.CodesRefused.Inc()
	}
	s.logger.InfoContext(ctx, "code refused",
		"order_id", o.ID,
		"reason", reason,
	)
	return dErrors.Newf(dErrors.CodeRateLimited, "no more codes for order %d: %s", o.ID, reason)
}
