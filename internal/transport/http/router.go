// Package httptransport is the thin HTTP layer over the domain services. It
// decodes requests, delegates, and encodes results; business rules stay in
// the services.
package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"windseat/pkg/requestcontext"
)

// NewRouter wires all endpoints behind the standard middleware stack.
func NewRouter(h *Handler, logger *slog.Logger) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(30 * time.Second))
	r.Use(requestTime)

	r.Get("/healthz", h.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.handleCreateOrder)
		r.Get("/{orderID}", h.handleGetOrder)
		r.Get("/{orderID}/log", h.handleOrderLog)
		r.Post("/{orderID}/receipt", h.handleAttachReceipt)
		r.Post("/{orderID}/approve", h.handleApproveOrder)
		r.Post("/{orderID}/reject", h.handleRejectOrder)
		r.Post("/{orderID}/code", h.handleRequestCode)
	})

	r.Route("/seats", func(r chi.Router) {
		r.Get("/", h.handleListSeats)
		r.Post("/", h.handleAddSeat)
		r.Post("/{seatID}/disable", h.handleDisableSeat)
	})

	r.Get("/referrals/{userID}", h.handleReferralSummary)
	r.Get("/utm", h.handleUtmReport)

	return r
}

// requestTime pins a single observation of "now" per request so every store
// write inside one handler shares the same timestamp. It also copies chi's
// request id into the request context the services log from.
func requestTime(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := requestcontext.WithTime(r.Context(), time.Now().UTC())
		if reqID := chimiddleware.GetReqID(ctx); reqID != "" {
			ctx = requestcontext.WithRequestID(ctx, reqID)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
