// Package telegram is the chat transport: it maps messages and inline
// keyboard callbacks onto the domain services and renders their results back
// into the chat.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"windseat/internal/attribution"
	"windseat/internal/domain"
	"windseat/internal/inventory"
	"windseat/internal/order"
	"windseat/internal/referral"
	"windseat/internal/session"
	"windseat/internal/twofa"
	userstore "windseat/internal/user/store"
	dErrors "windseat/pkg/domain-errors"
	"windseat/pkg/requestcontext"
)

const addSeatFlow = "add_seat"

type Bot struct {
	api         *tgbotapi.BotAPI
	orders      *order.Service
	seats       *inventory.Service
	referrals   *referral.Service
	attribution *attribution.Service
	twofa       *twofa.Service
	users       userstore.UserStore
	sessions    session.Store
	sessionTTL  time.Duration
	adminIDs    map[int64]bool
	logger      *slog.Logger
}

func NewBot(
	api *tgbotapi.BotAPI,
	orders *order.Service,
	seats *inventory.Service,
	referrals *referral.Service,
	attr *attribution.Service,
	codes *twofa.Service,
	users userstore.UserStore,
	sessions session.Store,
	sessionTTL time.Duration,
	adminIDs []int64,
	logger *slog.Logger,
) *Bot {
	admins := make(map[int64]bool, len(adminIDs))
	for _, id := range adminIDs {
		admins[id] = true
	}
	return &Bot{
		api:         api,
		orders:      orders,
		seats:       seats,
		referrals:   referrals,
		attribution: attr,
		twofa:       codes,
		users:       users,
		sessions:    sessions,
		sessionTTL:  sessionTTL,
		adminIDs:    admins,
		logger:      logger,
	}
}

// Run consumes updates until ctx is canceled.
func (b *Bot) Run(ctx context.Context) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	b.logger.InfoContext(ctx, "bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return
		case update := <-updates:
			uctx := requestcontext.WithTime(ctx, time.Now().UTC())
			b.handleUpdate(uctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		ctx = b.withActor(ctx, update.CallbackQuery.From.ID)
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil:
		ctx = b.withActor(ctx, update.Message.From.ID)
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) withActor(ctx context.Context, tgID int64) context.Context {
	role := requestcontext.RoleBuyer
	if b.adminIDs[tgID] {
		role = requestcontext.RoleOperator
	}
	return requestcontext.WithActor(ctx, requestcontext.Actor{ID: tgID, Role: role})
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	user, err := b.users.Ensure(ctx, msg.From.ID, msg.From.UserName)
	if err != nil {
		b.logger.ErrorContext(ctx, "ensure user", "tg_id", msg.From.ID, "error", err)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg, user)
		return
	}
	if len(msg.Photo) > 0 || msg.Document != nil {
		b.handleReceipt(ctx, msg, user)
		return
	}
	b.continueFlow(ctx, msg, user)
}

// handleReceipt attaches a payment proof to the buyer's newest undecided
// order and forwards the proof to the operators for review.
func (b *Bot) handleReceipt(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	orders, err := b.orders.ListByUser(ctx, user.ID)
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	o := latestDecidable(orders)
	if o == nil {
		b.reply(msg.Chat.ID, "No order is waiting for a receipt. Use /buy first.")
		return
	}

	if err := b.orders.AttachReceipt(ctx, o.ID); err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf("Receipt received for order #%d. An operator will review it shortly.", o.ID))

	for adminID := range b.adminIDs {
		if _, err := b.api.Send(tgbotapi.NewForward(adminID, msg.Chat.ID, msg.MessageID)); err != nil {
			b.logger.ErrorContext(ctx, "forward receipt", "order_id", o.ID, "admin_id", adminID, "error", err)
		}
	}
	b.notifyAdmins(fmt.Sprintf("Receipt for order #%d from @%s", o.ID, user.Username), o.ID)
}

// latestDecidable picks the order a fresh receipt belongs to: the newest one
// still awaiting a decision. The slice is expected newest first.
func latestDecidable(orders []*domain.Order) *domain.Order {
	for _, o := range orders {
		if o.Decidable() {
			return o
		}
	}
	return nil
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	switch msg.Command() {
	case "start":
		b.handleStart(ctx, msg, user)
	case "buy":
		b.handleBuy(ctx, msg, user)
	case "orders":
		b.handleOrders(ctx, msg, user)
	case "ref":
		b.handleRef(ctx, msg, user)
	case "addseat":
		b.handleAddSeat(ctx, msg)
	case "seats":
		b.handleSeats(ctx, msg)
	case "utm":
		b.handleUtm(ctx, msg)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Try /buy, /orders or /ref.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	start := ParseStart(msg.CommandArguments())

	if start.ReferrerID != 0 {
		linked, err := b.referrals.Link(ctx, user.ID, start.ReferrerID)
		if err != nil {
			b.logger.ErrorContext(ctx, "link referrer", "user_id", user.ID, "error", err)
		} else if linked {
			b.logger.InfoContext(ctx, "referrer linked", "user_id", user.ID, "referrer_id", start.ReferrerID)
		}
	}

	// The keyword only rides along in the session here; the start itself is
	// counted when the order is created.
	if start.UtmKeyword != "" {
		state := &session.State{
			Flow:   "shopping",
			Values: map[string]string{"utm": start.UtmKeyword},
		}
		if err := b.sessions.Put(ctx, user.ID, state, b.sessionTTL); err != nil {
			b.logger.ErrorContext(ctx, "save session", "user_id", user.ID, "error", err)
		}
	}

	b.reply(msg.Chat.ID, "Welcome. Use /buy <amount> to order access, /orders to see your orders, /ref for your referral link.")
}

func (b *Bot) handleBuy(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	amount, err := strconv.ParseInt(strings.TrimSpace(msg.CommandArguments()), 10, 64)
	if err != nil {
		b.reply(msg.Chat.ID, "Usage: /buy <amount>")
		return
	}

	utm := ""
	if state, err := b.sessions.Get(ctx, user.ID); err == nil && state != nil && state.Flow == "shopping" {
		utm = state.Values["utm"]
	}

	o, err := b.orders.Create(ctx, user.ID, amount, utm)
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	_ = b.sessions.Delete(ctx, user.ID)

	b.reply(msg.Chat.ID, fmt.Sprintf("Order #%d created. Send your payment receipt and wait for approval.", o.ID))
	b.notifyAdmins(fmt.Sprintf("New order #%d from @%s for %d", o.ID, user.Username, amount), o.ID)
}

func (b *Bot) handleOrders(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	orders, err := b.orders.ListByUser(ctx, user.ID)
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	if len(orders) == 0 {
		b.reply(msg.Chat.ID, "You have no orders yet.")
		return
	}

	var sb strings.Builder
	for _, o := range orders {
		fmt.Fprintf(&sb, "#%d  %d  %s\n", o.ID, o.Amount, o.Status)
	}

	reply := tgbotapi.NewMessage(msg.Chat.ID, sb.String())
	if latest := orders[0]; latest.Status == domain.OrderStatusApproved {
		reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData("Get login code", CallbackData("code", latest.ID)),
			),
		)
	}
	b.send(reply)
}

func (b *Bot) handleRef(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	summary, err := b.referrals.SummaryFor(ctx, user.ID)
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	b.reply(msg.Chat.ID, fmt.Sprintf(
		"Your link: https://t.me/%s?start=ref%d\nReferred: %d\nEarned: %d",
		b.api.Self.UserName, user.ID, summary.Referrals, summary.Earned,
	))
}

// handleAddSeat starts the multi-step provisioning flow. The remaining steps
// arrive as plain messages handled by continueFlow.
func (b *Bot) handleAddSeat(ctx context.Context, msg *tgbotapi.Message) {
	if !b.adminIDs[msg.From.ID] {
		return
	}
	state := &session.State{Flow: addSeatFlow, Step: "username", Values: map[string]string{}}
	if err := b.sessions.Put(ctx, msg.From.ID, state, b.sessionTTL); err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	b.reply(msg.Chat.ID, "Account username?")
}

func (b *Bot) handleSeats(ctx context.Context, msg *tgbotapi.Message) {
	if !b.adminIDs[msg.From.ID] {
		return
	}
	seats, err := b.seats.List(ctx)
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	if len(seats) == 0 {
		b.reply(msg.Chat.ID, "The pool is empty.")
		return
	}
	var sb strings.Builder
	for _, seat := range seats {
		fmt.Fprintf(&sb, "#%d  %d/%d  %s\n", seat.ID, seat.Sold, seat.MaxSlots, seat.Status)
	}
	b.reply(msg.Chat.ID, sb.String())
}

func (b *Bot) handleUtm(ctx context.Context, msg *tgbotapi.Message) {
	if !b.adminIDs[msg.From.ID] {
		return
	}
	stats, err := b.attribution.Report(ctx)
	if err != nil {
		b.replyError(msg.Chat.ID, err)
		return
	}
	if len(stats) == 0 {
		b.reply(msg.Chat.ID, "No campaign data yet.")
		return
	}
	var sb strings.Builder
	sb.WriteString("keyword  starts  buys  amount\n")
	for _, stat := range stats {
		fmt.Fprintf(&sb, "%s  %d  %d  %d\n", stat.Keyword, stat.Starts, stat.Buys, stat.Amount)
	}
	b.reply(msg.Chat.ID, sb.String())
}

func (b *Bot) continueFlow(ctx context.Context, msg *tgbotapi.Message, user *domain.User) {
	state, err := b.sessions.Get(ctx, user.ID)
	if err != nil || state == nil || state.Flow != addSeatFlow || !b.adminIDs[msg.From.ID] {
		return
	}

	input := strings.TrimSpace(msg.Text)
	switch state.Step {
	case "username":
		state.Values["username"] = input
		state.Step = "password"
		b.reply(msg.Chat.ID, "Password?")
	case "password":
		state.Values["password"] = input
		state.Step = "secret"
		b.reply(msg.Chat.ID, "TOTP secret?")
	case "secret":
		state.Values["secret"] = input
		state.Step = "max_slots"
		b.reply(msg.Chat.ID, "How many slots?")
	case "max_slots":
		maxSlots, err := strconv.Atoi(input)
		if err != nil {
			b.reply(msg.Chat.ID, "Send a number of slots.")
			return
		}
		seat, err := b.seats.Add(ctx, state.Values["username"], state.Values["password"], state.Values["secret"], maxSlots)
		_ = b.sessions.Delete(ctx, user.ID)
		if err != nil {
			b.replyError(msg.Chat.ID, err)
			return
		}
		b.reply(msg.Chat.ID, fmt.Sprintf("Seat #%d added with %d slots.", seat.ID, maxSlots))
		return
	}

	if err := b.sessions.Put(ctx, user.ID, state, b.sessionTTL); err != nil {
		b.logger.ErrorContext(ctx, "save session", "user_id", user.ID, "error", err)
	}
}

func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	cmd, err := ParseCallback(cq.Data)
	if err != nil {
		b.answerCallback(cq.ID, "Unknown action")
		return
	}

	switch c := cmd.(type) {
	case Approve:
		if !b.adminIDs[cq.From.ID] {
			b.answerCallback(cq.ID, "Operators only")
			return
		}
		b.approveOrder(ctx, cq, c.OrderID)
	case Reject:
		if !b.adminIDs[cq.From.ID] {
			b.answerCallback(cq.ID, "Operators only")
			return
		}
		b.rejectOrder(ctx, cq, c.OrderID)
	case Code:
		b.issueCode(ctx, cq, c.OrderID)
	}
}

// approveOrder decides the order and, only after the decision committed,
// delivers the credentials to the buyer's chat.
func (b *Bot) approveOrder(ctx context.Context, cq *tgbotapi.CallbackQuery, orderID int64) {
	approval, err := b.orders.Approve(ctx, orderID)
	if err != nil {
		b.answerCallback(cq.ID, shortError(err))
		return
	}
	b.answerCallback(cq.ID, fmt.Sprintf("Order #%d approved", orderID))

	buyer, err := b.users.Get(ctx, approval.Order.UserID)
	if err != nil || buyer == nil {
		b.logger.ErrorContext(ctx, "look up buyer for delivery", "order_id", orderID, "error", err)
		return
	}

	text := fmt.Sprintf(
		"Order #%d approved.\nLogin: %s\nPassword: %s\n\nUse the button below when asked for a 2FA code. You get %d codes.",
		orderID, approval.Credentials.Username, approval.Credentials.Password, twofa.MaxCodes,
	)
	delivery := tgbotapi.NewMessage(buyer.TgID, text)
	delivery.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Get login code", CallbackData("code", orderID)),
		),
	)
	b.send(delivery)
}

func (b *Bot) rejectOrder(ctx context.Context, cq *tgbotapi.CallbackQuery, orderID int64) {
	if err := b.orders.Reject(ctx, orderID); err != nil {
		b.answerCallback(cq.ID, shortError(err))
		return
	}
	b.answerCallback(cq.ID, fmt.Sprintf("Order #%d rejected", orderID))

	if o, err := b.orders.Get(ctx, orderID); err == nil {
		if buyer, err := b.users.Get(ctx, o.UserID); err == nil && buyer != nil {
			b.reply(buyer.TgID, fmt.Sprintf("Order #%d was rejected. Contact support if you paid.", orderID))
		}
	}
}

func (b *Bot) issueCode(ctx context.Context, cq *tgbotapi.CallbackQuery, orderID int64) {
	o, err := b.orders.Get(ctx, orderID)
	if err != nil {
		b.answerCallback(cq.ID, shortError(err))
		return
	}
	buyer, err := b.users.Get(ctx, o.UserID)
	if err != nil || buyer == nil || buyer.TgID != cq.From.ID {
		b.answerCallback(cq.ID, "This order is not yours")
		return
	}

	code, err := b.twofa.RequestCode(ctx, orderID)
	if err != nil {
		b.answerCallback(cq.ID, shortError(err))
		return
	}
	b.answerCallback(cq.ID, "Code sent")
	b.reply(cq.From.ID, fmt.Sprintf("Code: %s\nValid for %d seconds. Codes left: %d.", code.Value, code.ValidSeconds, code.IssuesLeft))
}

func (b *Bot) notifyAdmins(text string, orderID int64) {
	markup := tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Approve", CallbackData("approve", orderID)),
			tgbotapi.NewInlineKeyboardButtonData("Reject", CallbackData("reject", orderID)),
		),
	)
	for adminID := range b.adminIDs {
		msg := tgbotapi.NewMessage(adminID, text)
		msg.ReplyMarkup = markup
		b.send(msg)
	}
}

func (b *Bot) reply(chatID int64, text string) {
	b.send(tgbotapi.NewMessage(chatID, text))
}

func (b *Bot) replyError(chatID int64, err error) {
	b.reply(chatID, shortError(err))
}

func (b *Bot) send(msg tgbotapi.MessageConfig) {
	if _, err := b.api.Send(msg); err != nil {
		b.logger.Error("send message", "chat_id", msg.ChatID, "error", err)
	}
}

func (b *Bot) answerCallback(id, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, text)); err != nil {
		b.logger.Error("answer callback", "error", err)
	}
}

// shortError renders a coded error as a one-line chat reply.
func shortError(err error) string {
	switch dErrors.CodeOf(err) {
	case dErrors.CodeCapacityExhausted:
		return "No free seats right now, try again later"
	case dErrors.CodeStateConflict:
		return "This order was already decided"
	case dErrors.CodeRateLimited:
		return "No more codes available for this order"
	case dErrors.CodeNotFound:
		return "Not found"
	case dErrors.CodeValidation:
		return err.Error()
	default:
		return "Something went wrong, try again"
	}
}
