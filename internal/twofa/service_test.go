package twofa_test

import (
	"context"
	"testing"
	"time"

	"github.com/fernet/fernet-go"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/suite"
	"golang.org/x/sync/errgroup"

	"windseat/internal/audit"
	auditstore "windseat/internal/audit/store"
	"windseat/internal/domain"
	invstore "windseat/internal/inventory/store"
	orderstore "windseat/internal/order/store"
	"windseat/internal/twofa"
	"windseat/internal/vault"
	dErrors "windseat/pkg/domain-errors"
	"windseat/pkg/requestcontext"
)

const testSecret = "JBSWY3DPEHPK3PXP"

type TwofaServiceSuite struct {
	suite.Suite
	now    time.Time
	orders *orderstore.InMemoryStore
	audits *audit.Publisher
	svc    *twofa.Service

	orderID int64
}

func TestTwofaServiceSuite(t *testing.T) {
	suite.Run(t, new(TwofaServiceSuite))
}

func (s *TwofaServiceSuite) SetupTest() {
	s.now = time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)

	var key fernet.Key
	s.Require().NoError(key.Generate())
	v, err := vault.New(key.Encode())
	s.Require().NoError(err)

	secretEnc, err := v.Encrypt(testSecret)
	s.Require().NoError(err)
	userEnc, err := v.Encrypt("vpn-user")
	s.Require().NoError(err)
	passEnc, err := v.Encrypt("vpn-pass")
	s.Require().NoError(err)

	seats := invstore.NewInMemory()
	seat := &domain.Seat{
		UsernameEnc: userEnc,
		PassEnc:     passEnc,
		SecretEnc:   secretEnc,
		MaxSlots:    2,
		Sold:        1,
		Status:      domain.SeatActive,
	}
	s.Require().NoError(seats.Insert(s.ctx(), seat))

	s.orders = orderstore.NewInMemory()
	o := &domain.Order{
		UserID:    1,
		Amount:    70000,
		Status:    domain.OrderStatusApproved,
		SeatID:    &seat.ID,
		CreatedAt: s.now.Add(-time.Hour),
	}
	s.Require().NoError(s.orders.Insert(s.ctx(), o))
	s.orderID = o.ID

	s.audits = audit.NewPublisher(auditstore.NewInMemory())
	s.svc = twofa.New(s.orders, seats, v, s.audits)
}

func (s *TwofaServiceSuite) ctx() context.Context {
	return requestcontext.WithTime(context.Background(), s.now)
}

func (s *TwofaServiceSuite) at(t time.Time) context.Context {
	return requestcontext.WithTime(context.Background(), t)
}

func (s *TwofaServiceSuite) TestIssuesMatchingCodes() {
	code, err := s.svc.RequestCode(s.ctx(), s.orderID)
	s.Require().NoError(err)

	want, err := totp.GenerateCode(testSecret, s.now)
	s.Require().NoError(err)
	s.Equal(want, code.Value)
	s.Equal(1, code.IssuesLeft)

	// 12:00:10 sits 10s into the 30s period: 20s left plus one grace period.
	s.Equal(50, code.ValidSeconds)

	trail, err := s.audits.Trail(s.ctx(), s.orderID)
	s.Require().NoError(err)
	s.Require().Len(trail, 1)
	s.Equal(audit.EventCodeIssued, trail[0].Event)
}

func (s *TwofaServiceSuite) TestBudgetIsTwoCodes() {
	_, err := s.svc.RequestCode(s.ctx(), s.orderID)
	s.Require().NoError(err)

	second, err := s.svc.RequestCode(s.at(s.now.Add(30*time.Second)), s.orderID)
	s.Require().NoError(err)
	s.Equal(0, second.IssuesLeft)

	_, err = s.svc.RequestCode(s.at(s.now.Add(60*time.Second)), s.orderID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeRateLimited))

	o, err := s.orders.Get(s.ctx(), s.orderID)
	s.Require().NoError(err)
	s.True(o.TwofaDisabled)
	s.Equal(2, o.TwofaCount)
}

func (s *TwofaServiceSuite) TestWindowExpiryClosesLimiter() {
	_, err := s.svc.RequestCode(s.ctx(), s.orderID)
	s.Require().NoError(err)

	s.Run("a second code inside the window is fine", func() {
		_, err := s.svc.RequestCode(s.at(s.now.Add(119*time.Second)), s.orderID)
		s.Require().NoError(err)
	})
}

func (s *TwofaServiceSuite) TestWindowExpired() {
	_, err := s.svc.RequestCode(s.ctx(), s.orderID)
	s.Require().NoError(err)

	_, err = s.svc.RequestCode(s.at(s.now.Add(121*time.Second)), s.orderID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeRateLimited))

	s.Run("the limiter stays shut afterwards", func() {
		_, err := s.svc.RequestCode(s.ctx(), s.orderID)
		s.Require().Error(err)
		s.True(dErrors.Is(err, dErrors.CodeRateLimited))

		o, err := s.orders.Get(s.ctx(), s.orderID)
		s.Require().NoError(err)
		s.True(o.TwofaDisabled)
	})
}

func (s *TwofaServiceSuite) TestRefusalsAreAudited() {
	s.Require().NoError(s.orders.DisableTwofa(s.ctx(), s.orderID))

	_, err := s.svc.RequestCode(s.ctx(), s.orderID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeRateLimited))

	trail, err := s.audits.Trail(s.ctx(), s.orderID)
	s.Require().NoError(err)
	s.Require().Len(trail, 1)
	s.Equal(audit.EventCodeRefused, trail[0].Event)
}

func (s *TwofaServiceSuite) TestUndeliveredOrderConflicts() {
	pending := &domain.Order{
		UserID:    1,
		Amount:    100,
		Status:    domain.OrderStatusPending,
		CreatedAt: s.now,
	}
	s.Require().NoError(s.orders.Insert(s.ctx(), pending))

	_, err := s.svc.RequestCode(s.ctx(), pending.ID)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeStateConflict))
}

func (s *TwofaServiceSuite) TestUnknownOrder() {
	_, err := s.svc.RequestCode(s.ctx(), 99999)
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *TwofaServiceSuite) TestSimultaneousRequestsShareTheBudget() {
	results := make(chan error, 2)
	var g errgroup.Group
	for i := 0; i < 2; i++ {
		g.Go(func() error {
			_, err := s.svc.RequestCode(s.ctx(), s.orderID)
			results <- err
			return nil
		})
	}
	s.Require().NoError(g.Wait())
	close(results)

	// Whoever loses the counter race re-reads and takes the second issue, so
	// a double-click consumes the budget instead of refusing.
	for err := range results {
		s.NoError(err)
	}

	o, err := s.orders.Get(s.ctx(), s.orderID)
	s.Require().NoError(err)
	s.Equal(2, o.TwofaCount)
	s.True(o.TwofaDisabled)

	trail, err := s.audits.Trail(s.ctx(), s.orderID)
	s.Require().NoError(err)
	s.Require().Len(trail, 2)
	for _, e := range trail {
		s.Equal(audit.EventCodeIssued, e.Event)
	}
}

func (s *TwofaServiceSuite) TestStaleCounterAdvanceFails() {
	// Simulate a concurrent issuer landing between read and advance by
	// bumping the counter out from under a stale snapshot.
	o, err := s.orders.Get(s.ctx(), s.orderID)
	s.Require().NoError(err)
	advanced, err := s.orders.AdvanceTwofa(s.ctx(), s.orderID, o.TwofaCount, s.now, false)
	s.Require().NoError(err)
	s.Require().True(advanced)

	stale, err := s.orders.AdvanceTwofa(s.ctx(), s.orderID, o.TwofaCount, s.now, false)
	s.Require().NoError(err)
	s.False(stale)
}
