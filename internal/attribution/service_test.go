package attribution_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"windseat/internal/attribution"
	"windseat/internal/attribution/store"
	dErrors "windseat/pkg/domain-errors"
)

type AttributionServiceSuite struct {
	suite.Suite
	ctx context.Context
	svc *attribution.Service
}

func TestAttributionServiceSuite(t *testing.T) {
	suite.Run(t, new(AttributionServiceSuite))
}

func (s *AttributionServiceSuite) SetupTest() {
	s.ctx = context.Background()
	s.svc = attribution.New(store.NewInMemory())
}

func (s *AttributionServiceSuite) TestAccumulation() {
	s.Run("starts, buys and amount accumulate independently", func() {
		for i := 0; i < 3; i++ {
			s.Require().NoError(s.svc.IncrementStarts(s.ctx, "summer"))
		}
		s.Require().NoError(s.svc.IncrementBuys(s.ctx, "summer"))
		s.Require().NoError(s.svc.AddAmount(s.ctx, "summer", 70000))
		s.Require().NoError(s.svc.AddAmount(s.ctx, "summer", 30000))

		stat, err := s.svc.Stat(s.ctx, "summer")
		s.Require().NoError(err)
		s.Equal(int64(3), stat.Starts)
		s.Equal(int64(1), stat.Buys)
		s.Equal(int64(100000), stat.Amount)
	})

	s.Run("buys on a fresh keyword creates the row", func() {
		s.Require().NoError(s.svc.IncrementBuys(s.ctx, "winter"))

		stat, err := s.svc.Stat(s.ctx, "winter")
		s.Require().NoError(err)
		s.Equal(int64(0), stat.Starts)
		s.Equal(int64(1), stat.Buys)
	})
}

func (s *AttributionServiceSuite) TestEmptyKeywordIsNoOp() {
	s.Require().NoError(s.svc.IncrementStarts(s.ctx, ""))
	s.Require().NoError(s.svc.IncrementBuys(s.ctx, ""))
	s.Require().NoError(s.svc.AddAmount(s.ctx, "", 500))

	stats, err := s.svc.Report(s.ctx)
	s.Require().NoError(err)
	s.Empty(stats)
}

func (s *AttributionServiceSuite) TestStatNotFound() {
	_, err := s.svc.Stat(s.ctx, "never-seen")
	s.Require().Error(err)
	s.True(dErrors.Is(err, dErrors.CodeNotFound))
}

func (s *AttributionServiceSuite) TestReportSorted() {
	s.Require().NoError(s.svc.IncrementStarts(s.ctx, "bravo"))
	s.Require().NoError(s.svc.IncrementStarts(s.ctx, "alpha"))

	stats, err := s.svc.Report(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(stats, 2)
	s.Equal("alpha", stats[0].Keyword)
	s.Equal("bravo", stats[1].Keyword)
}
