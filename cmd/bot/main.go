// Binary bot runs the chat frontend: buyers order and receive credentials,
// operators decide orders and manage the seat pool.
package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"windseat/internal/attribution"
	attrstore "windseat/internal/attribution/store"
	"windseat/internal/audit"
	auditstore "windseat/internal/audit/store"
	"windseat/internal/inventory"
	invstore "windseat/internal/inventory/store"
	"windseat/internal/order"
	orderstore "windseat/internal/order/store"
	"windseat/internal/platform/config"
	"windseat/internal/platform/database"
	"windseat/internal/platform/logger"
	"windseat/internal/platform/metrics"
	platformredis "windseat/internal/platform/redis"
	"windseat/internal/referral"
	"windseat/internal/session"
	"windseat/internal/transport/telegram"
	"windseat/internal/twofa"
	userstore "windseat/internal/user/store"
	"windseat/internal/vault"
	"windseat/pkg/platform/tx"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.Env)

	if cfg.BotToken == "" {
		log.Error("BOT_TOKEN is required")
		os.Exit(1)
	}
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		log.Error("bot api init", "error", err)
		os.Exit(1)
	}

	v, err := vault.New(cfg.FernetKey)
	if err != nil {
		log.Error("vault init", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		pool      *sql.DB
		users     userstore.UserStore
		seatStore invstore.SeatStore
		orders    orderstore.OrderStore
		utm       attrstore.UtmStore
		events    audit.EventStore
		runner    tx.Runner
	)
	if cfg.DatabaseURL != "" {
		pool, err = database.Open(cfg.DatabaseURL)
		if err != nil {
			log.Error("open database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		if err := database.Migrate(pool); err != nil {
			log.Error("migrate database", "error", err)
			os.Exit(1)
		}
		users = userstore.NewPostgres(pool)
		seatStore = invstore.NewPostgres(pool)
		orders = orderstore.NewPostgres(pool)
		utm = attrstore.NewPostgres(pool)
		events = auditstore.NewPostgres(pool)
		runner = tx.NewSQLRunner(pool)
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
		memUsers := userstore.NewInMemory()
		memSeats := invstore.NewInMemory()
		memOrders := orderstore.NewInMemory()
		memUtm := attrstore.NewInMemory()
		memEvents := auditstore.NewInMemory()
		users, seatStore, orders, utm, events = memUsers, memSeats, memOrders, memUtm, memEvents
		runner = tx.NewMutexRunner(memUsers, memSeats, memOrders, memUtm, memEvents)
	}

	var sessions session.Store = session.NewInMemory()
	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		log.Error("redis init", "error", err)
		os.Exit(1)
	}
	if redisClient != nil {
		defer redisClient.Close()
		sessions = session.NewRedis(redisClient.Client)
	} else {
		log.Warn("REDIS_URL not set, using in-memory sessions")
	}

	publisher := audit.NewPublisher(events, audit.WithLogger(log))

	m := metrics.New()
	seats := inventory.New(seatStore, v, inventory.WithLogger(log), inventory.WithMetrics(m))
	refs := referral.New(users, referral.WithLogger(log), referral.WithMetrics(m))
	attr := attribution.New(utm)
	orderSvc := order.New(orders, users, seats, refs, attr, publisher, runner,
		order.WithLogger(log), order.WithMetrics(m))
	codes := twofa.New(orders, seatStore, v, publisher, twofa.WithLogger(log), twofa.WithMetrics(m))

	bot := telegram.NewBot(api, orderSvc, seats, refs, attr, codes, users,
		sessions, cfg.SessionTTL, cfg.AdminIDs, log)

	bot.Run(ctx)
}
