package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/orderhub-payment-ledger/internal/config"
	"github.com/orderhub-payment-ledger/internal/data/mongo"
	"github.com/orderhub-payment-ledger/internal/data/postgres"
	"github.com/orderhub-payment-ledger/internal/logger"
	"github.com/orderhub-payment-ledger/internal/platform/messaging/consumers"
	"github.com/orderhub-payment-ledger/internal/platform/messaging/producers"
	"github.com/orderhub-payment-ledger/internal/platform/persistence"
	"github.com/orderhub-payment-ledger/internal/reconcile"
	"github.com/orderhub-payment-ledger/internal/webhook_processor/consumer"
	"github.com/orderhub-payment-ledger/internal/webhook_processor/service"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("webhook_processor")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting Webhook Processor",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

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

	// Initialize repositories
	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	ledgerRepo := postgres.NewLedgerRepository(log, postgresDB)
	refundRepo := postgres.NewRefundRepository(log, postgresDB)
	orderRepo := postgres.NewOrderRepository(log, postgresDB)
	sessionRepo := postgres.NewGuestSessionRepository(log, postgresDB)
	rateRepo := postgres.NewRateRepository(log, postgresDB)
	deliveryRepo := mongo.NewDeliveryRepository(log, mongoDB.Database())

	// Initialize Kafka consumer
	kafkaConsumer := consumers.NewKafkaConsumer(appCtx, log, &cfg.Kafka)

	// Initialize Kafka producers for the retry and dead-letter topics
	retryProducer, err := producers.NewWebhookRetryProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize webhook retry Kafka producer", "error", err)
		os.Exit(1)
	}

	dlqProducer, err := producers.NewDLQProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize DLQ Kafka producer", "error", err)
		os.Exit(1)
	}
	// dlqProducer might be nil if DLQTopic is not configured. Handler should be nil-safe.

	// Initialize the reconciliation engine
	normalizer := reconcile.NewNormalizer(rateRepo, &cfg.Ledger, log)
	projector := reconcile.NewProjector(ledgerRepo, orderRepo, log)
	recorder := reconcile.NewRefundRecorder(transactionRepo, refundRepo, ledgerRepo, normalizer, projector, log)
	engine := reconcile.NewEngine(postgresDB, transactionRepo, ledgerRepo, orderRepo, sessionRepo,
		recorder, normalizer, projector, reconcile.NewFeeExtractor(log), log)

	// Initialize processing service backed by a worker pool
	baseService := service.NewProcessingService(log, engine, deliveryRepo)
	processingService, err := service.NewWorkerPoolProcessingService(
		baseService,
		service.WorkerPoolConfig{Size: cfg.WorkerPool.Size},
		log,
	)
	if err != nil {
		log.Error("Failed to initialize worker pool", "error", err)
		os.Exit(1)
	}

	// Initialize webhook event handler
	webhookEventHandler := consumer.NewWebhookEventHandler(
		log,
		processingService,
		retryProducer,
		dlqProducer,
		cfg.Kafka.MaxRetryAttempts,
	)

	// Create error channel for service errors
	errChan := make(chan error, 1)

	// Create wait group for graceful shutdown
	var wg sync.WaitGroup

	// Start Kafka consumer in a goroutine
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("Starting Kafka consumer",
			"topic", cfg.Kafka.RetryTopic,
			"group", cfg.Kafka.ConsumerGroup,
		)
		if err := kafkaConsumer.Subscribe(appCtx, cfg.Kafka.RetryTopic, cfg.Kafka.ConsumerGroup, webhookEventHandler.HandleMessage); err != nil {
			errChan <- fmt.Errorf("kafka consumer error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serviceErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Service error occurred", "error", err)
		serviceErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Drain the worker pool before closing the pipeline
	log.Info("Shutting down worker pool", "running_workers", processingService.Running())
	processingService.Shutdown()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Wait for all goroutines to finish
	log.Info("Waiting for services to stop...")
	wgChan := make(chan struct{})
	go func() {
		wg.Wait()
		close(wgChan)
	}()

	select {
	case <-wgChan:
		log.Info("All services stopped successfully")
	case <-shutdownCtx.Done():
		log.Warn("Shutdown timeout reached, forcing exit")
	}

	// Close Kafka producers
	if err = retryProducer.Close(); err != nil {
		log.Error("Error closing retry Kafka producer", "error", err)
	}
	if dlqProducer != nil { // dlqProducer can be nil if DLQTopic was not configured
		if err = dlqProducer.Close(); err != nil {
			log.Error("Error closing DLQ Kafka producer", "error", err)
		}
	}

	// Close Kafka consumer
	if err = kafkaConsumer.Close(); err != nil {
		log.Error("Error closing Kafka consumer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Close MongoDB connection
	if err = mongoDB.Close(shutdownCtx); err != nil {
		log.Error("Error closing MongoDB connection", "error", err)
	}

	// Final status
	if serviceErr != nil {
		log.Error("Webhook processor shutdown with errors", "error", serviceErr)
	} else {
		log.Info("Webhook processor shutdown completed successfully")
	}
}
