// Binary server exposes the order, seat, referral, and attribution operations
// over HTTP for the operator dashboard and internal tooling.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

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
	"windseat/internal/platform/httpserver"
	"windseat/internal/platform/logger"
	"windseat/internal/platform/metrics"
	"windseat/internal/referral"
	httptransport "windseat/internal/transport/http"
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

	v, err := vault.New(cfg.FernetKey)
	if err != nil {
		log.Error("vault init", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Without a database URL everything runs in memory, which is enough for
	// local development.
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

	publisherOpts := []audit.PublisherOption{audit.WithLogger(log)}
	if len(cfg.KafkaBrokers) > 0 {
		publisherOpts = append(publisherOpts, audit.WithMirror(1024))
	}
	publisher := audit.NewPublisher(events, publisherOpts...)

	if len(cfg.KafkaBrokers) > 0 {
		sink, err := audit.NewKafkaSink(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			log.Error("kafka sink", "error", err)
			os.Exit(1)
		}
		defer sink.Close()
		go audit.NewWorker(publisher.Mirror(), sink, log).Run(ctx)
	}

	m := metrics.New()
	seats := inventory.New(seatStore, v, inventory.WithLogger(log), inventory.WithMetrics(m))
	refs := referral.New(users, referral.WithLogger(log), referral.WithMetrics(m))
	attr := attribution.New(utm)
	orderSvc := order.New(orders, users, seats, refs, attr, publisher, runner,
		order.WithLogger(log), order.WithMetrics(m))
	codes := twofa.New(orders, seatStore, v, publisher, twofa.WithLogger(log), twofa.WithMetrics(m))

	handler := httptransport.NewHandler(log, orderSvc, seats, refs, attr, codes, users, pool)
	router := httptransport.NewRouter(handler, log)
	srv := httpserver.New(cfg.Addr, router)

	go func() {
		log.Info("server listening", "addr", cfg.Addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
