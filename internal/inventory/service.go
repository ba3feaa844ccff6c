// Package inventory owns the shared seat pool: atomic allocation of one unit
// of capacity, operator provisioning, and soft-disable.
package inventory

import (
	"context"
	"log/slog"

	"windseat/internal/domain"
	"windseat/internal/inventory/store"
	"windseat/internal/platform/metrics"
	"windseat/internal/vault"
	dErrors "windseat/pkg/domain-errors"
)

// Service wraps the seat store with validation, credential encryption, and
// error mapping. Allocation atomicity lives in the store; when the caller
// runs inside a transaction the allocate joins it via the context.
type Service struct {
	store   store.SeatStore
	vault   *vault.Vault
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

func New(seats store.SeatStore, v *vault.Vault, opts ...Option) *Service {
	s := &Service{store: seats, vault: v, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Allocate reserves one unit of capacity on the fullest eligible seat and
// returns the post-increment seat. No eligible seat maps to
// CodeCapacityExhausted so operators can retry after replenishing the pool.
func (s *Service) Allocate(ctx context.Context) (*domain.Seat, error) {
	seat, err := s.store.AllocateOne(ctx)
	if err != nil {
		if err == store.ErrNoCapacity {
			if s.metrics != nil {
				s.metrics.CapacityExhausted.Inc()
			}
			return nil, dErrors.New(dErrors.CodeCapacityExhausted, "no seat with free capacity")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "allocate seat")
	}
	if s.metrics != nil {
		s.metrics.SeatsAllocated.Inc()
	}
	s.logger.InfoContext(ctx, "seat allocated",
		"seat_id", seat.ID,
		"sold", seat.Sold,
		"max_slots", seat.MaxSlots,
	)
	return seat, nil
}

// Disable soft-disables a seat. Idempotent: false means the seat was absent
// or already disabled; callers that need confirmation check the flag.
func (s *Service) Disable(ctx context.Context, seatID int64) (bool, error) {
	disabled, err := s.store.Disable(ctx, seatID)
	if err != nil {
		return false, dErrors.Wrap(err, dErrors.CodeInternal, "disable seat")
	}
	if disabled {
		s.logger.InfoContext(ctx, "seat disabled", "seat_id", seatID)
	}
	return disabled, nil
}

// Add provisions one seat, encrypting its credentials before they touch the
// store.
func (s *Service) Add(ctx context.Context, username, password, secret string, maxSlots int) (*domain.Seat, error) {
	if username == "" || password == "" || secret == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "username, password and secret are required")
	}
	if maxSlots < 1 {
		return nil, dErrors.New(dErrors.CodeValidation, "max_slots must be at least 1")
	}

	usernameEnc, err := s.vault.Encrypt(username)
	if err != nil {
		return nil, err
	}
	passEnc, err := s.vault.Encrypt(password)
	if err != nil {
		return nil, err
	}
	secretEnc, err := s.vault.Encrypt(secret)
	if err != nil {
		return nil, err
	}

	seat := &domain.Seat{
		UsernameEnc: usernameEnc,
		PassEnc:     passEnc,
		SecretEnc:   secretEnc,
		MaxSlots:    maxSlots,
		Status:      domain.SeatActive,
	}
	if err := s.store.Insert(ctx, seat); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "insert seat")
	}
	s.logger.InfoContext(ctx, "seat provisioned", "seat_id", seat.ID, "max_slots", maxSlots)
	return seat, nil
}

// List returns the pool for operator inspection.
func (s *Service) List(ctx context.Context) ([]*domain.Seat, error) {
	seats, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list seats")
	}
	return seats, nil
}

// Get returns one seat, CodeNotFound when absent.
func (s *Service) Get(ctx context.Context, seatID int64) (*domain.Seat, error) {
	seat, err := s.store.Get(ctx, seatID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "get seat")
	}
	if seat == nil {
		return nil, dErrors.Newf(dErrors.CodeNotFound, "seat %d not found", seatID)
	}
	return seat, nil
}

// Credentials decrypts the delivery payload for an allocated seat. The TOTP
// secret stays encrypted; only the limiter decrypts it, per request.
func (s *Service) Credentials(seat *domain.Seat) (domain.Credentials, error) {
	username, err := s.vault.Decrypt(seat.UsernameEnc)
	if err != nil {
		return domain.Credentials{}, err
	}
	password, err := s.vault.Decrypt(seat.PassEnc)
	if err != nil {
		return domain.Credentials{}, err
	}
	return domain.Credentials{
		SeatID:    seat.ID,
		Username:  username,
		Password:  password,
		SlotsLeft: seat.SlotsLeft(),
	}, nil
}
