package producers

import (
	"context"

	"github.com/segmentio/kafka-go"
)

// MessagePublisher publishes webhook events to the retry topic, keyed by the
// gateway transaction id so redeliveries for one payment stay ordered.
type MessagePublisher interface {
	Publish(ctx context.Context, key string, value interface{}) error
	Close() error
}

// DeadLetterPublisher parks deliveries that exhausted their retry budget or
// could not be decoded at all.
type DeadLetterPublisher interface {
	PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error
	Close() error
}

// KafkaWriter wraps kafka.Writer methods for testing
type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}
