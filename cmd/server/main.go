package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/sheikh-saqib/account-ledger-service/internal/api"
	"github.com/sheikh-saqib/account-ledger-service/internal/config"
	"github.com/sheikh-saqib/account-ledger-service/internal/events/kafka"
	"github.com/sheikh-saqib/account-ledger-service/internal/interfaces"
	"github.com/sheikh-saqib/account-ledger-service/internal/ledger"
	"github.com/sheikh-saqib/account-ledger-service/internal/storage/memory"
	"github.com/sheikh-saqib/account-ledger-service/internal/storage/postgres"
	"github.com/sheikh-saqib/account-ledger-service/pkg/metrics"
)

func main() {
	cfg := config.Load()

	logger := newLogger(cfg.Environment)
	defer func() { _ = logger.Sync() }()

	store, cleanup, err := newStore(cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize store", zap.Error(err))
	}
	defer cleanup()

	var publisher interfaces.EventPublisher
	if len(cfg.KafkaBrokers) > 0 {
		kafkaPublisher := kafka.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer func() { _ = kafkaPublisher.Close() }()
		publisher = kafkaPublisher
		logger.Info("kafka publisher enabled", zap.Strings("brokers", cfg.KafkaBrokers))
	}

	collector := metrics.NewCollector()
	service := ledger.NewLedger(store, publisher, collector, logger)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	api.NewHandler(service, logger).Register(app, collector.Handler())

	go func() {
		logger.Info("server listening", zap.String("addr", cfg.HTTPAddr))
		if err := app.Listen(cfg.HTTPAddr); err != nil {
			logger.Fatal("server stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
	}
}

func newStore(cfg config.Config, logger *zap.Logger) (interfaces.LedgerStore, func(), error) {
	if cfg.Store == "memory" {
		logger.Info("using in-memory store")
		store := memory.NewMemoryLedgerStore()
		store.SetLockTimeout(cfg.LockTimeout)
		return store, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, nil, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	logger.Info("connected to postgres")
	return postgres.NewPostgresLedgerStore(db, cfg.LockTimeout), func() { _ = db.Close() }, nil
}

func newLogger(environment string) *zap.Logger {
	var logger *zap.Logger
	var err error
	if environment == "development" || environment == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	return logger
}
