package httptransport

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"windseat/internal/domain"
	"windseat/internal/inventory"
	"windseat/internal/order"
	"windseat/internal/referral"
	"windseat/internal/twofa"
	userstore "windseat/internal/user/store"
	dErrors "windseat/pkg/domain-errors"
)

type AttributionService interface {
	Report(ctx context.Context) ([]*domain.UtmStat, error)
}

type Handler struct {
	logger      *slog.Logger
	orders      *order.Service
	seats       *inventory.Service
	referrals   *referral.Service
	attribution AttributionService
	twofa       *twofa.Service
	users       userstore.UserStore
	db          *sql.DB
}

func NewHandler(
	logger *slog.Logger,
	orders *order.Service,
	seats *inventory.Service,
	referrals *referral.Service,
	attribution AttributionService,
	codes *twofa.Service,
	users userstore.UserStore,
	db *sql.DB,
) *Handler {
	return &Handler{
		logger:      logger,
		orders:      orders,
		seats:       seats,
		referrals:   referrals,
		attribution: attribution,
		twofa:       codes,
		users:       users,
		db:          db,
	}
}

type createOrderRequest struct {
	TgID       int64  `json:"tg_id"`
	Username   string `json:"username"`
	Amount     int64  `json:"amount"`
	UtmKeyword string `json:"utm_keyword"`
	ReferrerID int64  `json:"referrer_id,omitempty"`
}

type orderResponse struct {
	ID         int64      `json:"id"`
	UserID     int64      `json:"user_id"`
	Amount     int64      `json:"amount"`
	UtmKeyword string     `json:"utm_keyword,omitempty"`
	Status     string     `json:"status"`
	SeatID     *int64     `json:"seat_id,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	ApprovedAt *time.Time `json:"approved_at,omitempty"`
}

func toOrderResponse(o *domain.Order) orderResponse {
	return orderResponse{
		ID:         o.ID,
		UserID:     o.UserID,
		Amount:     o.Amount,
		UtmKeyword: o.UtmKeyword,
		Status:     string(o.Status),
		SeatID:     o.SeatID,
		CreatedAt:  o.CreatedAt,
		ApprovedAt: o.ApprovedAt,
	}
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	if req.TgID == 0 {
		writeError(w, dErrors.New(dErrors.CodeValidation, "tg_id is required"))
		return
	}

	user, err := h.users.Ensure(ctx, req.TgID, req.Username)
	if err != nil {
		writeError(w, dErrors.Wrap(err, dErrors.CodeInternal, "ensure user"))
		return
	}
	if req.ReferrerID != 0 {
		if _, err := h.referrals.Link(ctx, user.ID, req.ReferrerID); err != nil {
			writeError(w, err)
			return
		}
	}

	o, err := h.orders.Create(ctx, user.ID, req.Amount, req.UtmKeyword)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	o, err := h.orders.Get(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(o))
}

func (h *Handler) handleOrderLog(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	trail, err := h.orders.Trail(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	type logEntry struct {
		Event string    `json:"event"`
		At    time.Time `json:"at"`
	}
	entries := make([]logEntry, 0, len(trail))
	for _, e := range trail {
		entries = append(entries, logEntry{Event: e.Event, At: e.At})
	}
	writeJSON(w, http.StatusOK, map[string]any{"order_id": orderID, "events": entries})
}

func (h *Handler) handleAttachReceipt(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	if err := h.orders.AttachReceipt(r.Context(), orderID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.OrderStatusReceipt)})
}

func (h *Handler) handleApproveOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	approval, err := h.orders.Approve(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"order": toOrderResponse(approval.Order),
		"credentials": map[string]any{
			"seat_id":    approval.Credentials.SeatID,
			"username":   approval.Credentials.Username,
			"password":   approval.Credentials.Password,
			"slots_left": approval.Credentials.SlotsLeft,
		},
	})
}

func (h *Handler) handleRejectOrder(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	if err := h.orders.Reject(r.Context(), orderID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(domain.OrderStatusRejected)})
}

func (h *Handler) handleRequestCode(w http.ResponseWriter, r *http.Request) {
	orderID, ok := pathID(w, r, "orderID")
	if !ok {
		return
	}
	code, err := h.twofa.RequestCode(r.Context(), orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"code":          code.Value,
		"valid_seconds": code.ValidSeconds,
		"issues_left":   code.IssuesLeft,
	})
}

type addSeatRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Secret   string `json:"secret"`
	MaxSlots int    `json:"max_slots"`
}

type seatResponse struct {
	ID        int64  `json:"id"`
	MaxSlots  int    `json:"max_slots"`
	Sold      int    `json:"sold"`
	SlotsLeft int    `json:"slots_left"`
	Status    string `json:"status"`
}

func toSeatResponse(seat *domain.Seat) seatResponse {
	return seatResponse{
		ID:        seat.ID,
		MaxSlots:  seat.MaxSlots,
		Sold:      seat.Sold,
		SlotsLeft: seat.SlotsLeft(),
		Status:    string(seat.Status),
	}
}

func (h *Handler) handleAddSeat(w http.ResponseWriter, r *http.Request) {
	var req addSeatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, dErrors.New(dErrors.CodeValidation, "invalid request body"))
		return
	}
	seat, err := h.seats.Add(r.Context(), req.Username, req.Password, req.Secret, req.MaxSlots)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSeatResponse(seat))
}

func (h *Handler) handleListSeats(w http.ResponseWriter, r *http.Request) {
	seats, err := h.seats.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	out := make([]seatResponse, 0, len(seats))
	for _, seat := range seats {
		out = append(out, toSeatResponse(seat))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleDisableSeat(w http.ResponseWriter, r *http.Request) {
	seatID, ok := pathID(w, r, "seatID")
	if !ok {
		return
	}
	disabled, err := h.seats.Disable(r.Context(), seatID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"disabled": disabled})
}

func (h *Handler) handleReferralSummary(w http.ResponseWriter, r *http.Request) {
	userID, ok := pathID(w, r, "userID")
	if !ok {
		return
	}
	summary, err := h.referrals.SummaryFor(r.Context(), userID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{
		"referrals": summary.Referrals,
		"earned":    summary.Earned,
	})
}

func (h *Handler) handleUtmReport(w http.ResponseWriter, r *http.Request) {
	stats, err := h.attribution.Report(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	type utmEntry struct {
		Keyword string `json:"keyword"`
		Starts  int64  `json:"starts"`
		Buys    int64  `json:"buys"`
		Amount  int64  `json:"amount"`
	}
	out := make([]utmEntry, 0, len(stats))
	for _, s := range stats {
		out = append(out, utmEntry{Keyword: s.Keyword, Starts: s.Starts, Buys: s.Buys, Amount: s.Amount})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if h.db != nil {
		if err := h.db.PingContext(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func pathID(w http.ResponseWriter, r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id < 1 {
		writeError(w, dErrors.Newf(dErrors.CodeValidation, "invalid %s", param))
		return 0, false
	}
	return id, true
}
