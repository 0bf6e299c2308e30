package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/clothy-store/checkout-service/internal/catalog"
	"github.com/clothy-store/checkout-service/internal/checkout"
	"github.com/clothy-store/checkout-service/internal/config"
	"github.com/clothy-store/checkout-service/internal/httpx"
	kafkax "github.com/clothy-store/checkout-service/internal/kafka"
	"github.com/clothy-store/checkout-service/internal/logger"
	"github.com/clothy-store/checkout-service/internal/payment"
	"github.com/clothy-store/checkout-service/internal/postgres"
	"github.com/clothy-store/checkout-service/internal/rating"
	"github.com/clothy-store/checkout-service/internal/redisx"
	"github.com/clothy-store/checkout-service/internal/userdir"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() { _ = log.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.Connect(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatal("db connect", zap.Error(err))
	}
	defer db.Close()

	rdb := redisx.New(cfg.RedisAddr)
	defer rdb.Close()

	confirmed := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicCheckoutConfirmed, 1024, log)
	confirmed.Start(ctx)
	decrementFailed := kafkax.NewProducer(cfg.KafkaBrokers, checkout.TopicDecrementFailed, 1024, log)
	decrementFailed.Start(ctx)

	gateway := payment.NewStripeClient(cfg.StripeBaseURL, cfg.StripeAPIKey)
	ledger := &checkout.Ledger{DB: db}
	products := &catalog.Repo{DB: db}
	users := &userdir.Repo{DB: db}

	checkoutSvc := checkout.NewService(checkout.Dependencies{
		Users:                 users,
		Ledger:                ledger,
		Stock:                 products,
		Gateway:               gateway,
		Customers:             &payment.CustomerDirectory{Redis: rdb, Gateway: gateway},
		Idempotency:           &checkout.ConfirmIdempotency{Redis: rdb},
		ConfirmedEvents:       confirmed,
		DecrementFailedEvents: decrementFailed,
		ProducerName:          cfg.ServiceName,
		Logger:                log,
	})
	ratingSvc := rating.NewService(rating.Dependencies{
		Lines:    ledger,
		Products: products,
		Users:    users,
		Logger:   log,
	})

	router := httpx.NewRouter()
	ph := &httpx.PaymentHandler{
		Checkout: checkoutSvc,
		Guard:    &catalog.StockGuard{Finder: products, Redis: rdb},
		Log:      log,
	}
	ph.Register(router)
	oh := &httpx.OrderedHandler{Ledger: ledger, Rating: ratingSvc, Log: log}
	oh.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router}

	go func() {
		log.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("listen", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = srv.Shutdown(shutdownCtx)

	confirmed.Close()
	decrementFailed.Close()
	cancel()
	confirmed.WaitClosed()
	decrementFailed.WaitClosed()
}
