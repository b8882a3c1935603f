package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/orderhub-payment-ledger/internal/api_gateway"
	"github.com/orderhub-payment-ledger/internal/api_gateway/service"
	"github.com/orderhub-payment-ledger/internal/config"
	"github.com/orderhub-payment-ledger/internal/data/mongo"
	"github.com/orderhub-payment-ledger/internal/data/postgres"
	"github.com/orderhub-payment-ledger/internal/logger"
	"github.com/orderhub-payment-ledger/internal/platform/messaging/producers"
	"github.com/orderhub-payment-ledger/internal/platform/persistence"
	"github.com/orderhub-payment-ledger/internal/reconcile"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api_gateway")
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

	// Initialize Kafka producer for the webhook retry topic
	retryProducer, err := producers.NewWebhookRetryProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize webhook retry Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	refundRepo := postgres.NewRefundRepository(log, postgresDB)
	orderRepo := postgres.NewOrderRepository(log, postgresDB)
	sessionRepo := postgres.NewGuestSessionRepository(log, postgresDB)
	rateRepo := postgres.NewRateRepository(log, postgresDB)
	deliveryRepo := mongo.NewDeliveryRepository(log, mongoDB.Database())

	// Initialize the reconciliation engine
	normalizer := reconcile.NewNormalizer(rateRepo, &cfg.Ledger, log)
	projector := reconcile.NewProjector(ledgerRepo, orderRepo, log)
	recorder := reconcile.NewRefundRecorder(transactionRepo, refundRepo, ledgerRepo, normalizer, projector, log)
	engine := reconcile.NewEngine(postgresDB, transactionRepo, ledgerRepo, orderRepo, sessionRepo,
		recorder, normalizer, projector, reconcile.NewFeeExtractor(log), log)

	// Initialize services
	webhookService := service.NewWebhookService(log, engine, deliveryRepo, retryProducer)
	ledgerService := service.NewLedgerService(log, engine, ledgerRepo, orderRepo, transactionRepo)
	refundService := service.NewRefundService(log, engine, refundRepo)
	deliveryService := service.NewDeliveryService(log, deliveryRepo)

	// Initialize REST server
	server := api_gateway.NewServer(log, cfg, webhookService, ledgerService, refundService, deliveryService)
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

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = retryProducer.Close(); err != nil {
		log.Error("Error closing Kafka producer", "error", err)
	}

	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

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
