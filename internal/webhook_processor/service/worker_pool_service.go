package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/panjf2000/ants/v2"

	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

// WorkerPoolProcessingService fans retried events out over a bounded worker
// pool. Events for different orders process in parallel; the order-row lock
// inside the engine serializes events for the same order.
type WorkerPoolProcessingService struct {
	baseService ProcessingService
	pool        *ants.Pool
	logger      *slog.Logger
	// Protects access to the results map
	mu      sync.Mutex
	results map[string]chan error
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolProcessingService(
	baseService ProcessingService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolProcessingService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolProcessingService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
		results:     make(map[string]chan error),
	}, nil
}

// ProcessEvent submits an event to the worker pool and waits for the result
func (s *WorkerPoolProcessingService) ProcessEvent(ctx context.Context, event *shared.WebhookEvent) error {
	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Submitting webhook event to worker pool",
		"event_id", event.EventID.String(),
		"gateway_transaction_id", event.Payment.GatewayTransactionID,
	)

	resultChan := make(chan error, 1)

	eventID := event.EventID.String()
	s.mu.Lock()
	s.results[eventID] = resultChan
	s.mu.Unlock()

	// Copy the event to avoid data races with the caller
	eventCopy := *event

	err := s.pool.Submit(func() {
		err := s.baseService.ProcessEvent(ctx, &eventCopy)

		resultChan <- err

		s.mu.Lock()
		delete(s.results, eventID)
		close(resultChan)
		s.mu.Unlock()
	})

	if err != nil {
		s.mu.Lock()
		delete(s.results, eventID)
		close(resultChan)
		s.mu.Unlock()

		logger.Error("Failed to submit webhook event to worker pool",
			"event_id", event.EventID.String(),
			"error", err,
		)
		return err
	}

	return <-resultChan
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolProcessingService) Shutdown() {
	s.logger.Info("Shutting down worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolProcessingService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolProcessingService) Capacity() int {
	return s.pool.Cap()
}
