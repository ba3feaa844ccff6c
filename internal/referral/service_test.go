package referral

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	userstore "windseat/internal/user/store"
	dErrors "windseat/pkg/domain-errors"
)

type ReferralServiceSuite struct {
	suite.Suite
	users   *userstore.InMemoryStore
	service *Service
}

func TestReferralServiceSuite(t *testing.T) {
	suite.Run(t, new(ReferralServiceSuite))
}

func (s *ReferralServiceSuite) SetupTest() {
	s.users = userstore.NewInMemory()
	s.service = New(s.users)
}

func TestCommission(t *testing.T) {
	cases := []struct {
		amount int64
		want   int64
	}{
		{70000, 7000},
		{0, 0},
		{1, 0},   // 0.1 rounds down
		{5, 1},   // 0.5 rounds half-up
		{99, 10}, // 9.9 rounds up
		{123456789, 12345679},
	}
	for _, tc := range cases {
		if got := Commission(tc.amount); got != tc.want {
			t.Errorf("Commission(%d) = %d, want %d", tc.amount, got, tc.want)
		}
	}
}

func (s *ReferralServiceSuite) TestCredit() {
	ctx := context.Background()
	referrer, err := s.users.Ensure(ctx, 100, "ref")
	s.Require().NoError(err)

	s.Run("negative amounts are rejected", func() {
		err := s.service.Credit(ctx, referrer.ID, -1)
		s.True(dErrors.Is(err, dErrors.CodeValidation))
	})

	s.Run("credits balance and lifetime earnings together", func() {
		s.Require().NoError(s.service.Credit(ctx, referrer.ID, 7000))

		wallet, err := s.service.Wallet(ctx, referrer.ID)
		s.Require().NoError(err)
		s.Equal(int64(7000), wallet.Balance)
		s.Equal(int64(7000), wallet.ReferralEarned)
	})
}

func (s *ReferralServiceSuite) TestLink() {
	ctx := context.Background()
	referrer, err := s.users.Ensure(ctx, 100, "ref")
	s.Require().NoError(err)
	buyer, err := s.users.Ensure(ctx, 200, "buyer")
	s.Require().NoError(err)

	s.Run("self referral is ignored", func() {
		linked, err := s.service.Link(ctx, buyer.ID, buyer.ID)
		s.NoError(err)
		s.False(linked)
	})

	s.Run("unknown referrer is ignored", func() {
		linked, err := s.service.Link(ctx, buyer.ID, 9999)
		s.NoError(err)
		s.False(linked)
	})

	s.Run("first link wins and later links are no-ops", func() {
		linked, err := s.service.Link(ctx, buyer.ID, referrer.ID)
		s.NoError(err)
		s.True(linked)

		other, err := s.users.Ensure(ctx, 300, "other")
		s.Require().NoError(err)
		linked, err = s.service.Link(ctx, buyer.ID, other.ID)
		s.NoError(err)
		s.False(linked)

		got, err := s.users.Get(ctx, buyer.ID)
		s.Require().NoError(err)
		s.Require().NotNil(got.Referrer)
		s.Equal(referrer.ID, *got.Referrer)
	})
}

func (s *ReferralServiceSuite) TestSummaryFor() {
	ctx := context.Background()
	referrer, err := s.users.Ensure(ctx, 100, "ref")
	s.Require().NoError(err)

	for tg := int64(201); tg <= 203; tg++ {
		u, err := s.users.Ensure(ctx, tg, "sub")
		s.Require().NoError(err)
		_, err = s.service.Link(ctx, u.ID, referrer.ID)
		s.Require().NoError(err)
	}
	s.Require().NoError(s.service.Credit(ctx, referrer.ID, 2100))

	summary, err := s.service.SummaryFor(ctx, referrer.ID)
	s.Require().NoError(err)
	s.Equal(int64(3), summary.Referrals)
	s.Equal(int64(2100), summary.Earned)

	_, err = s.service.SummaryFor(ctx, 9999)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}
