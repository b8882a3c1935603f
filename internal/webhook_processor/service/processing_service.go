package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

// ProcessingService reprocesses webhook events redelivered from the retry
// topic
type ProcessingService interface {
	// ProcessEvent runs one event through the reconciliation engine. A nil
	// return means the event reached a terminal state (reconciled or
	// rejected); an error means storage is still unavailable.
	ProcessEvent(ctx context.Context, event *shared.WebhookEvent) error
}

// Reconciler is the slice of the reconciliation engine the processor uses
type Reconciler interface {
	Reconcile(ctx context.Context, event *shared.WebhookEvent) (*shared.ReconcileResult, error)
}

// DeliveryArchive marks archived deliveries once a retried event settles
type DeliveryArchive interface {
	MarkProcessed(ctx context.Context, eventID uuid.UUID, success bool, processingError string) error
}

// ProcessingServiceImpl implements the ProcessingService interface
type ProcessingServiceImpl struct {
	engine     Reconciler
	deliveries DeliveryArchive
	logger     *slog.Logger
}

// NewProcessingService creates a new retry processing service
func NewProcessingService(logger *slog.Logger, engine Reconciler, deliveries DeliveryArchive) ProcessingService {
	return &ProcessingServiceImpl{
		engine:     engine,
		deliveries: deliveries,
		logger:     logger,
	}
}

// ProcessEvent reconciles a redelivered event and updates its audit record
func (s *ProcessingServiceImpl) ProcessEvent(ctx context.Context, event *shared.WebhookEvent) error {
	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	logger.Info("Reprocessing webhook event",
		"event_id", event.EventID,
		"gateway_transaction_id", event.Payment.GatewayTransactionID,
		"attempt", event.Attempt,
	)

	result, err := s.engine.Reconcile(ctx, event)
	if err != nil {
		logger.Error("Reconciliation still failing",
			"event_id", event.EventID,
			"attempt", event.Attempt,
			"error", err,
		)
		return err
	}

	errorMessage := ""
	if !result.Success {
		errorMessage = result.ErrorMessage
	}
	if markErr := s.deliveries.MarkProcessed(ctx, event.EventID, result.Success, errorMessage); markErr != nil {
		logger.Error("Failed to mark webhook delivery as processed",
			"event_id", event.EventID,
			"error", markErr,
		)
	}

	logger.Info("Webhook event settled",
		"event_id", event.EventID,
		"success", result.Success,
		"attempt", event.Attempt,
	)
	return nil
}
