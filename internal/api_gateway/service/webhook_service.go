package service

import (
	"context"
	"log/slog"

	mongodata "github.com/orderhub-payment-ledger/internal/data/mongo"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
	"github.com/orderhub-payment-ledger/internal/platform/messaging/producers"
)

// WebhookServiceImpl implements the WebhookService interface
type WebhookServiceImpl struct {
	engine     Reconciler
	deliveries DeliveryArchive
	retryQueue producers.MessagePublisher
	logger     *slog.Logger
}

// NewWebhookService creates a new webhook processing service
func NewWebhookService(logger *slog.Logger, engine Reconciler, deliveries DeliveryArchive, retryQueue producers.MessagePublisher) WebhookService {
	return &WebhookServiceImpl{
		engine:     engine,
		deliveries: deliveries,
		retryQueue: retryQueue,
		logger:     logger,
	}
}

// Process archives the raw delivery, runs the reconciliation engine, and on
// a storage-level failure publishes the event to the retry topic so the
// processor redelivers it. Archive failures never block reconciliation: the
// archive is audit data, the ledger is the source of truth.
func (s *WebhookServiceImpl) Process(ctx context.Context, event *shared.WebhookEvent, rawPayload []byte) (*shared.ReconcileResult, bool, error) {
	logger := s.logger
	if event.CorrelationID != "" {
		logger = s.logger.With("correlation_id", event.CorrelationID)
	}

	if err := s.deliveries.Record(ctx, &mongodata.Delivery{
		EventID:       event.EventID,
		Gateway:       event.Payment.PaymentMethod,
		EventType:     string(event.Type),
		Outcome:       string(event.Outcome),
		RawPayload:    rawPayload,
		CorrelationID: event.CorrelationID,
		ReceivedAt:    event.ReceivedAt,
	}); err != nil {
		logger.Error("Failed to archive webhook delivery",
			"event_id", event.EventID,
			"error", err)
	}

	result, err := s.engine.Reconcile(ctx, event)
	if err != nil {
		logger.Warn("Reconciliation hit a storage failure, queueing for retry",
			"event_id", event.EventID,
			"gateway_transaction_id", event.Payment.GatewayTransactionID,
			"attempt", event.Attempt,
			"error", err)

		event.Attempt++
		if pubErr := s.retryQueue.Publish(ctx, event.Payment.GatewayTransactionID, event); pubErr != nil {
			logger.Error("Failed to queue webhook event for retry",
				"event_id", event.EventID,
				"error", pubErr)
			return nil, false, pubErr
		}

		s.markProcessed(ctx, event, false, err.Error())
		return nil, true, nil
	}

	errorMessage := ""
	if !result.Success {
		errorMessage = result.ErrorMessage
	}
	s.markProcessed(ctx, event, result.Success, errorMessage)

	return result, false, nil
}

func (s *WebhookServiceImpl) markProcessed(ctx context.Context, event *shared.WebhookEvent, success bool, processingError string) {
	if err := s.deliveries.MarkProcessed(ctx, event.EventID, success, processingError); err != nil {
		s.logger.Error("Failed to mark webhook delivery as processed",
			"event_id", event.EventID,
			"error", err)
	}
}
