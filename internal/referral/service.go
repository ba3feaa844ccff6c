// Package referral credits commissions into referrer wallets and maintains
// the referral links themselves.
package referral

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"windseat/internal/domain"
	"windseat/internal/platform/metrics"
	userstore "windseat/internal/user/store"
	dErrors "windseat/pkg/domain-errors"
)

// CommissionPercent is the fixed share of an approved order's amount paid to
// the referrer.
const CommissionPercent = 10

// Summary is the buyer-facing referral overview.
type Summary struct {
	Referrals int64
	Earned    int64
}

// Service is the referral ledger. Credit is only ever invoked from within the
// approval transaction, so exactly-once follows from the order lifecycle's
// state guard rather than from idempotency keys here.
type Service struct {
	users   userstore.UserStore
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

func New(users userstore.UserStore, opts ...Option) *Service {
	s := &Service{users: users, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Commission computes the referrer's cut of an order amount in minor units,
// rounded half-up to a whole unit. Decimal arithmetic keeps money exact.
func Commission(amount int64) int64 {
	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(CommissionPercent)).
		Div(decimal.NewFromInt(100)).
		Round(0).
		IntPart()
}

// Credit adds amount to the referrer's balance and lifetime referral
// earnings in one atomic update.
func (s *Service) Credit(ctx context.Context, userID, amount int64) error {
	if amount < 0 {
		return dErrors.New(dErrors.CodeValidation, "commission amount must not be negative")
	}
	if err := s.users.CreditReferral(ctx, userID, amount); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "credit commission")
	}
	if s.metrics != nil {
		s.metrics.CommissionsCredited.Inc()
	}
	s.logger.InfoContext(ctx, "commission credited", "user_id", userID, "amount", amount)
	return nil
}

// Link records userID's referrer once. Self-referrals and repeat links are
// ignored; the first referrer wins for good.
func (s *Service) Link(ctx context.Context, userID, referrerID int64) (bool, error) {
	if userID == referrerID {
		return false, nil
	}
	referrer, err := s.users.Get(ctx, referrerID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "look up referrer")
	}
	if referrer == nil {
		return false, nil
	}
	linked, err := s.users.SetReferrer(ctx, userID, referrerID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "set referrer")
	}
	return linked, nil
}

// SummaryFor reports how many users the given user referred and what the
// referrals earned so far.
func (s *Service) SummaryFor(ctx context.Context, userID int64) (Summary, error) {
	wallet, err := s.users.GetWallet(ctx, userID)
	if err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "get wallet")
	}
	if wallet == nil {
		return Summary{}, dErrors.Newf(dErrors.CodeNotFound, "user %d not found", userID)
	}
	count, err := s.users.CountReferrals(ctx, userID)
	if err != nil {
		return Summary{}, dErrors.Wrap(err, dErrors.CodeInternal, "count referrals")
	}
	return Summary{Referrals: count, Earned: wallet.ReferralEarned}, nil
}

// Wallet returns the user's wallet for display.
func (s *Service) Wallet(ctx context.Context, userID int64) (*domain.Wallet, error) {
	wallet, err := s.users.GetWallet(ctx, userID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get wallet")
	}
	if wallet == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "user %d not found", userID)
	}
	return wallet, nil
}
