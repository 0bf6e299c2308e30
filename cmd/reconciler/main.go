package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/clothy-store/checkout-service/internal/checkout"
	"github.com/clothy-store/checkout-service/internal/config"
	kafkax "github.com/clothy-store/checkout-service/internal/kafka"
	"github.com/clothy-store/checkout-service/internal/logger"
	"github.com/clothy-store/checkout-service/internal/postgres"
	"github.com/clothy-store/checkout-service/internal/reconcile"
	"github.com/clothy-store/checkout-service/internal/redisx"
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

	svc := &reconcile.Service{
		Store: &reconcile.Repo{DB: db},
		Redis: rdb,
		Log:   log,
	}

	group := getenv("RECONCILER_GROUP", "stock-reconciler")
	workers := mustAtoi(os.Getenv("RECONCILER_WORKERS"), 4)
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, group, checkout.TopicDecrementFailed, workers, log)

	go func() {
		log.Info("reconciler consumer started",
			zap.String("group", group),
			zap.String("topic", checkout.TopicDecrementFailed),
			zap.Int("workers", workers))
		if err := cons.Start(ctx, svc.HandleDecrementFailed); err != nil {
			log.Error("consumer exit", zap.Error(err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Info("shutting down reconciler")
	cancel()
	time.Sleep(500 * time.Millisecond)
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func mustAtoi(s string, def int) int {
	if s == "" {
		return def
	}
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}
