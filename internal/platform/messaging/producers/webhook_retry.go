package producers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/segmentio/kafka-go"

	"github.com/orderhub-payment-ledger/internal/config"
)

// WebhookRetryProducer publishes webhook events that hit transient failures
// to the retry topic, where the webhook processor replays them through the
// same reconciliation engine.
type WebhookRetryProducer struct {
	logger *slog.Logger
	writer KafkaWriter // Interface for testability
	topic  string
}

// NewWebhookRetryProducer creates the retry producer and ensures the topic exists
func NewWebhookRetryProducer(ctx context.Context, logger *slog.Logger, cfg *config.KafkaConfig) (*WebhookRetryProducer, error) {
	if cfg.RetryTopic == "" {
		return nil, fmt.Errorf("kafka retry topic is not configured")
	}

	conn, err := kafka.Dial("tcp", cfg.Brokers)
	if err != nil {
		return nil, fmt.Errorf("failed to dial kafka for webhook retry producer: %w", err)
	}
	defer conn.Close()

	err = createKafkaTopicIfNotExists(conn, cfg.RetryTopic, cfg.NumPartitions, cfg.ReplicationFactor, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to ensure retry topic %s exists for webhook retry producer: %w", cfg.RetryTopic, err)
	}

	writer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.RetryTopic,
		Balancer: &kafka.LeastBytes{},
		// Retried events must not be lost between the ack to the gateway
		// and the replay, so writes are synchronous and fully acknowledged
		RequiredAcks: kafka.RequireAll,
		Async:        false,
		WriteTimeout: cfg.MaxWait,
	}

	return &WebhookRetryProducer{
		logger: logger,
		writer: writer,
		topic:  cfg.RetryTopic,
	}, nil
}

// Publish enqueues a webhook event for replay. The key is the gateway
// transaction id so redeliveries of one attempt land on one partition and
// replay in order.
func (p *WebhookRetryProducer) Publish(ctx context.Context, key string, value interface{}) error {
	jsonValue, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal message value for webhook retry producer: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(key),
		Value: jsonValue,
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		p.logger.Error("Failed to publish webhook event for retry",
			"topic", p.topic,
			"key", key,
			"error", err,
		)
		return fmt.Errorf("failed to publish message to %s via webhook retry producer: %w", p.topic, err)
	}

	p.logger.Debug("Published webhook event for retry",
		"topic", p.topic,
		"key", key,
	)
	return nil
}

func (p *WebhookRetryProducer) Close() error {
	p.logger.Info("Closing webhook retry Kafka message producer", "topic", p.topic)
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close webhook retry kafka writer for topic %s: %w", p.topic, err)
	}
	return nil
}
