package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/upstream-billing-gateway/internal/billing"
	"github.com/upstream-billing-gateway/internal/config"
	"github.com/upstream-billing-gateway/internal/data/mongo"
	"github.com/upstream-billing-gateway/internal/data/postgres"
	"github.com/upstream-billing-gateway/internal/domain/provider"
	"github.com/upstream-billing-gateway/internal/gateway"
	"github.com/upstream-billing-gateway/internal/gateway/service"
	"github.com/upstream-billing-gateway/internal/logger"
	"github.com/upstream-billing-gateway/internal/platform/messaging/producers"
	"github.com/upstream-billing-gateway/internal/platform/persistence"
	"github.com/upstream-billing-gateway/internal/upstream"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("gateway")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	// Initialize databases with app context
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	mongoDB, err := persistence.NewMongoDB(appCtx, log, &cfg.MongoDB)
	if err != nil {
		log.Error("Failed to initialize MongoDB", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for reconciliation events
	reconciliationProducer, err := producers.NewReconciliationProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize reconciliation Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	credentialRepo := postgres.NewCredentialRepository(log, postgresDB)
	transactionRepo := mongo.NewTransactionRepository(log, mongoDB.Database())

	// Initialize the billing core
	ledger := billing.NewLedger(log, credentialRepo, transactionRepo, reconciliationProducer)
	limiter := billing.NewRateLimiter(cfg.RateLimit.PerMinute, cfg.RateLimit.Burst)
	idempotencyCache := billing.NewIdempotencyCache(cfg.Billing.IdempotencyTTL)
	invoker := upstream.NewClient(log, cfg.Upstream.RequestTimeout)

	coordinator, err := billing.NewPurchaseCoordinator(log, ledger, invoker, cfg.Billing.WorkerPoolSize, cfg.Billing.ResolutionWindow)
	if err != nil {
		log.Error("Failed to initialize purchase coordinator", "error", err)
		os.Exit(1)
	}

	// Initialize the provider registry, optionally preloading declarations
	registry := provider.NewRegistry(log)
	if cfg.Providers.File != "" {
		if err := registry.LoadFile(cfg.Providers.File); err != nil {
			log.Error("Failed to load provider declarations", "file", cfg.Providers.File, "error", err)
			os.Exit(1)
		}
	}

	biller := billing.NewBiller(log, registry, ledger, limiter, idempotencyCache, coordinator, invoker, cfg.Billing.ResolutionWindow)

	// Initialize services
	credentialService := service.NewCredentialService(credentialRepo, ledger)
	transactionService := service.NewTransactionService(log, transactionRepo)

	// Initialize REST server
	server := gateway.NewServer(log, cfg, credentialService, transactionService, biller, registry)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Stop accepting new requests first
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	// Let in-flight purchase resolutions finish
	coordinator.Shutdown()

	if err = reconciliationProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	postgresDB.Close()

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	}
	if err != nil {
		log.Error("Server shutdown completed with errors")
	} else {
		log.Info("Server shutdown completed successfully")
	}
}
