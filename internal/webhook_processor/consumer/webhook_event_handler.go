package consumer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/orderhub-payment-ledger/internal/domain/shared"
	"github.com/orderhub-payment-ledger/internal/platform/messaging/producers"
	"github.com/orderhub-payment-ledger/internal/webhook_processor/service"
)

// WebhookEventHandler handles webhook events redelivered from the retry topic
type WebhookEventHandler struct {
	processingService service.ProcessingService
	retryQueue        producers.MessagePublisher
	dlq               producers.DeadLetterPublisher
	maxRetryAttempts  int
	logger            *slog.Logger
}

// NewWebhookEventHandler creates a new handler
func NewWebhookEventHandler(
	logger *slog.Logger,
	processingService service.ProcessingService,
	retryQueue producers.MessagePublisher,
	dlq producers.DeadLetterPublisher,
	maxRetryAttempts int,
) *WebhookEventHandler {
	return &WebhookEventHandler{
		processingService: processingService,
		retryQueue:        retryQueue,
		dlq:               dlq,
		maxRetryAttempts:  maxRetryAttempts,
		logger:            logger,
	}
}

// HandleMessage processes one Kafka message. An event that still fails on
// storage goes back onto the retry topic with an incremented attempt count,
// until the attempts are exhausted and it is dead-lettered.
func (h *WebhookEventHandler) HandleMessage(ctx context.Context, key []byte, value []byte) error {
	var event shared.WebhookEvent
	if err := json.Unmarshal(value, &event); err != nil {
		unmarshalErrorMsg := "Failed to unmarshal webhook event from Kafka message"
		h.logger.Error(unmarshalErrorMsg,
			"error", err,
			"message_key", string(key),
		)

		if h.dlq != nil {
			dlqReason := fmt.Sprintf("%s: %s", unmarshalErrorMsg, err.Error())
			if dlqErr := h.dlq.PublishToDLQ(ctx, string(key), value, dlqReason); dlqErr != nil {
				h.logger.Error("Failed to publish message to DLQ after unmarshal error",
					"dlq_error", dlqErr,
					"original_error", err,
					"message_key", string(key),
				)
			} else {
				h.logger.Info("Published unprocessable message to DLQ", "message_key", string(key), "reason", dlqReason)
				return nil // Message handled, commit offset
			}
		}
		return fmt.Errorf("failed to unmarshal message value: %w", err)
	}

	logger := h.logger
	if event.CorrelationID != "" {
		logger = h.logger.With("correlation_id", event.CorrelationID)
	}

	if event.Attempt > h.maxRetryAttempts {
		reason := fmt.Sprintf("retry attempts exhausted after %d tries", event.Attempt)
		logger.Error("Dead-lettering webhook event",
			"event_id", event.EventID.String(),
			"gateway_transaction_id", event.Payment.GatewayTransactionID,
			"reason", reason,
		)
		if h.dlq != nil {
			if dlqErr := h.dlq.PublishToDLQ(ctx, string(key), value, reason); dlqErr != nil {
				logger.Error("Failed to publish exhausted event to DLQ",
					"event_id", event.EventID.String(),
					"error", dlqErr,
				)
				return dlqErr
			}
		}
		return nil // Dead-lettered, commit offset
	}

	if err := h.processingService.ProcessEvent(ctx, &event); err != nil {
		logger.Error("Failed to process webhook event, requeueing",
			"event_id", event.EventID.String(),
			"attempt", event.Attempt,
			"error", err,
		)

		event.Attempt++
		if pubErr := h.retryQueue.Publish(ctx, event.Payment.GatewayTransactionID, &event); pubErr != nil {
			logger.Error("Failed to requeue webhook event",
				"event_id", event.EventID.String(),
				"error", pubErr,
			)
			return fmt.Errorf("requeueing event %s failed: %w", event.EventID.String(), pubErr)
		}
		return nil // Requeued with a higher attempt count, commit offset
	}

	logger.Info("Successfully reprocessed webhook event", "event_id", event.EventID.String())
	return nil // Success, commit offset
}
