package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trustledger/internal/antigaming"
	credhandler "trustledger/internal/credential/handler"
	credmetrics "trustledger/internal/credential/metrics"
	credservice "trustledger/internal/credential/service"
	credstore "trustledger/internal/credential/store"
	"trustledger/internal/escrow"
	"trustledger/internal/events"
	"trustledger/internal/platform/config"
	"trustledger/internal/platform/httpserver"
	"trustledger/internal/platform/logger"
	"trustledger/internal/platform/metrics"
	"trustledger/internal/platform/postgres"
	platformredis "trustledger/internal/platform/redis"
	receipthandler "trustledger/internal/receipt/handler"
	receiptmetrics "trustledger/internal/receipt/metrics"
	receiptservice "trustledger/internal/receipt/service"
	receiptstore "trustledger/internal/receipt/store"
	"trustledger/internal/signature"
	"trustledger/internal/token"
	httptransport "trustledger/internal/transport/http"
	"trustledger/internal/trust"
	trusthandler "trustledger/internal/trust/handler"
)

// main wires dependencies and owns the server lifecycle. Business logic lives
// in the internal service packages.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	signer, err := signature.New(signature.StaticSecret(cfg.SigningSecret))
	if err != nil {
		return err
	}

	// Stores: PostgreSQL when configured, in-memory otherwise.
	var ledger receiptstore.Ledger = receiptstore.NewMemory()
	var credStore credstore.Store = credstore.NewMemory()
	if cfg.DatabaseURL != "" {
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		pgLedger := receiptstore.NewPostgres(db)
		if err := pgLedger.EnsureSchema(context.Background()); err != nil {
			return err
		}
		ledger = pgLedger

		credDB, err := credstore.Open(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer credDB.Close()
		pgCreds := credstore.NewPostgres(credDB)
		if err := pgCreds.EnsureSchema(context.Background()); err != nil {
			return err
		}
		credStore = pgCreds
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer redisClient.Close()
	}

	httpMetrics := metrics.New()

	analyzer, err := antigaming.New(ledger, log)
	if err != nil {
		return err
	}

	engineOpts := []trust.Option{}
	if redisClient != nil {
		engineOpts = append(engineOpts, trust.WithCache(trust.NewRedisVectorCache(redisClient.Client)))
	}
	engine, err := trust.New(ledger, analyzer, log, engineOpts...)
	if err != nil {
		return err
	}

	receiptOpts := []receiptservice.Option{
		receiptservice.WithMinAmount(cfg.MinReceiptAmount),
		receiptservice.WithMetrics(receiptmetrics.New()),
	}
	if cfg.EscrowURL != "" {
		receiptOpts = append(receiptOpts, receiptservice.WithResolver(escrow.NewHTTPResolver(cfg.EscrowURL)))
	}
	var publisher *events.KafkaPublisher
	if len(cfg.Kafka.Brokers) > 0 {
		publisher, err = events.NewKafka(cfg.Kafka, log)
		if err != nil {
			return err
		}
		defer publisher.Close()
		receiptOpts = append(receiptOpts, receiptservice.WithPublisher(publisher))
	}
	receipts, err := receiptservice.New(ledger, signer, log, receiptOpts...)
	if err != nil {
		return err
	}

	credentials, err := credservice.New(ledger, credStore, analyzer, signer, log,
		credservice.WithTTL(cfg.CredentialTTL),
		credservice.WithMetrics(credmetrics.New()),
	)
	if err != nil {
		return err
	}

	validator := token.NewValidator(token.NewService(cfg.JWTSigningKey, "trustledger"))

	health := map[string]httptransport.HealthChecker{}
	if redisClient != nil {
		health["redis"] = redisClient.Health
	}

	router := httptransport.NewRouter(httpMetrics, health,
		receipthandler.New(receipts, log, validator),
		trusthandler.New(engine, analyzer, log),
		credhandler.New(credentials, log, validator),
	)

	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("trustledger listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return err
	case sig := <-quit:
		log.Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(ctx)
}
