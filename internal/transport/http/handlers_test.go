package httptransport_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fernet/fernet-go"
	"github.com/stretchr/testify/suite"

	"windseat/internal/attribution"
	attrstore "windseat/internal/attribution/store"
	"windseat/internal/audit"
	auditstore "windseat/internal/audit/store"
	"windseat/internal/inventory"
	invstore "windseat/internal/inventory/store"
	"windseat/internal/order"
	orderstore "windseat/internal/order/store"
	"windseat/internal/referral"
	httptransport "windseat/internal/transport/http"
	"windseat/internal/twofa"
	userstore "windseat/internal/user/store"
	"windseat/internal/vault"
	"windseat/pkg/platform/tx"
)

type HandlerSuite struct {
	suite.Suite
	router http.Handler
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	var key fernet.Key
	s.Require().NoError(key.Generate())
	v, err := vault.New(key.Encode())
	s.Require().NoError(err)

	users := userstore.NewInMemory()
	seatStore := invstore.NewInMemory()
	seats := inventory.New(seatStore, v)
	utmStore := attrstore.NewInMemory()
	attr := attribution.New(utmStore)
	eventStore := auditstore.NewInMemory()
	audits := audit.NewPublisher(eventStore)
	refs := referral.New(users)
	orderStore := orderstore.NewInMemory()
	runner := tx.NewMutexRunner(users, seatStore, orderStore, utmStore, eventStore)

	orders := order.New(orderStore, users, seats, refs, attr, audits, runner)
	codes := twofa.New(orderStore, seatStore, v, audits)

	logger := slog.New(slog.NewTextHandler(testWriter{s.T()}, nil))
	handler := httptransport.NewHandler(logger, orders, seats, refs, attr, codes, users, nil)
	s.router = httptransport.NewRouter(handler, logger)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}

func (s *HandlerSuite) do(method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		s.Require().NoError(json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) decode(rec *httptest.ResponseRecorder, out any) {
	s.Require().NoError(json.NewDecoder(rec.Body).Decode(out))
}

func (s *HandlerSuite) addSeat() {
	rec := s.do(http.MethodPost, "/seats", map[string]any{
		"username":  "vpn-user",
		"password":  "vpn-pass",
		"secret":    "JBSWY3DPEHPK3PXP",
		"max_slots": 3,
	})
	s.Require().Equal(http.StatusCreated, rec.Code)
}

func (s *HandlerSuite) createOrder() int64 {
	rec := s.do(http.MethodPost, "/orders", map[string]any{
		"tg_id":       1001,
		"username":    "buyer",
		"amount":      70000,
		"utm_keyword": "summer",
	})
	s.Require().Equal(http.StatusCreated, rec.Code)

	var resp struct {
		ID int64 `json:"id"`
	}
	s.decode(rec, &resp)
	s.Require().NotZero(resp.ID)
	return resp.ID
}

func (s *HandlerSuite) TestPurchaseFlow() {
	s.addSeat()
	orderID := s.createOrder()

	rec := s.do(http.MethodPost, fmt.Sprintf("/orders/%d/receipt", orderID), nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	rec = s.do(http.MethodPost, fmt.Sprintf("/orders/%d/approve", orderID), nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var approve struct {
		Order struct {
			Status string `json:"status"`
			SeatID *int64 `json:"seat_id"`
		} `json:"order"`
		Credentials struct {
			Username  string `json:"username"`
			Password  string `json:"password"`
			SlotsLeft int    `json:"slots_left"`
		} `json:"credentials"`
	}
	s.decode(rec, &approve)
	s.Equal("approved", approve.Order.Status)
	s.Require().NotNil(approve.Order.SeatID)
	s.Equal("vpn-user", approve.Credentials.Username)
	s.Equal(2, approve.Credentials.SlotsLeft)

	s.Run("code issue works twice then refuses", func() {
		for i := 0; i < 2; i++ {
			rec := s.do(http.MethodPost, fmt.Sprintf("/orders/%d/code", orderID), nil)
			s.Require().Equal(http.StatusOK, rec.Code)

			var code struct {
				Code         string `json:"code"`
				ValidSeconds int    `json:"valid_seconds"`
			}
			s.decode(rec, &code)
			s.Len(code.Code, 6)
			s.Greater(code.ValidSeconds, 30)
		}

		rec := s.do(http.MethodPost, fmt.Sprintf("/orders/%d/code", orderID), nil)
		s.Equal(http.StatusTooManyRequests, rec.Code)
	})

	s.Run("order log lists the lifecycle", func() {
		rec := s.do(http.MethodGet, fmt.Sprintf("/orders/%d/log", orderID), nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var log struct {
			Events []struct {
				Event string `json:"event"`
			} `json:"events"`
		}
		s.decode(rec, &log)
		s.GreaterOrEqual(len(log.Events), 4)
		s.Equal("created", log.Events[0].Event)
	})

	s.Run("utm report reflects the conversion", func() {
		rec := s.do(http.MethodGet, "/utm", nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		var stats []struct {
			Keyword string `json:"keyword"`
			Starts  int64  `json:"starts"`
			Buys    int64  `json:"buys"`
			Amount  int64  `json:"amount"`
		}
		s.decode(rec, &stats)
		s.Require().Len(stats, 1)
		s.Equal("summer", stats[0].Keyword)
		s.Equal(int64(1), stats[0].Starts)
		s.Equal(int64(1), stats[0].Buys)
		s.Equal(int64(70000), stats[0].Amount)
	})
}

func (s *HandlerSuite) TestErrorMapping() {
	s.Run("unknown order is 404", func() {
		rec := s.do(http.MethodGet, "/orders/999", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})

	s.Run("bad id is 400", func() {
		rec := s.do(http.MethodGet, "/orders/abc", nil)
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("approve with empty pool is 409", func() {
		orderID := s.createOrder()
		rec := s.do(http.MethodPost, fmt.Sprintf("/orders/%d/approve", orderID), nil)
		s.Equal(http.StatusConflict, rec.Code)

		var resp struct {
			Error string `json:"error"`
		}
		s.decode(rec, &resp)
		s.Equal("capacity_exhausted", resp.Error)
	})

	s.Run("second decision is 409", func() {
		s.addSeat()
		orderID := s.createOrder()

		rec := s.do(http.MethodPost, fmt.Sprintf("/orders/%d/reject", orderID), nil)
		s.Require().Equal(http.StatusOK, rec.Code)

		rec = s.do(http.MethodPost, fmt.Sprintf("/orders/%d/approve", orderID), nil)
		s.Equal(http.StatusConflict, rec.Code)
	})

	s.Run("missing tg_id is 400", func() {
		rec := s.do(http.MethodPost, "/orders", map[string]any{"amount": 100})
		s.Equal(http.StatusBadRequest, rec.Code)
	})

	s.Run("invalid seat payload is 400", func() {
		rec := s.do(http.MethodPost, "/seats", map[string]any{"username": "x"})
		s.Equal(http.StatusBadRequest, rec.Code)
	})
}

func (s *HandlerSuite) TestReferralSummary() {
	rec := s.do(http.MethodPost, "/orders", map[string]any{
		"tg_id": 42, "username": "ref", "amount": 100,
	})
	s.Require().Equal(http.StatusCreated, rec.Code)
	var created struct {
		UserID int64 `json:"user_id"`
	}
	s.decode(rec, &created)

	rec = s.do(http.MethodGet, fmt.Sprintf("/referrals/%d", created.UserID), nil)
	s.Require().Equal(http.StatusOK, rec.Code)

	var summary struct {
		Referrals int64 `json:"referrals"`
		Earned    int64 `json:"earned"`
	}
	s.decode(rec, &summary)
	s.Zero(summary.Referrals)
	s.Zero(summary.Earned)

	s.Run("unknown user is 404", func() {
		rec := s.do(http.MethodGet, "/referrals/9999", nil)
		s.Equal(http.StatusNotFound, rec.Code)
	})
}

func (s *HandlerSuite) TestHealth() {
	rec := s.do(http.MethodGet, "/healthz", nil)
	s.Equal(http.StatusOK, rec.Code)
}
