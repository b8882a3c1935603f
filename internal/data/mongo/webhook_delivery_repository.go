// Package mongo provides the MongoDB-backed webhook-delivery audit archive.
// Every inbound gateway notification is archived here with its raw payload
// and processing outcome, outside the atomic reconciliation unit.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

const (
	// DeliveryCollectionName is the name of the webhook delivery collection
	DeliveryCollectionName = "webhook_deliveries"
)

// Delivery is one archived webhook delivery. RawPayload is stored verbatim
// for audit and is never parsed downstream.
type Delivery struct {
	EventID         uuid.UUID      `json:"event_id" bson:"event_id"`
	Gateway         shared.Gateway `json:"gateway" bson:"gateway"`
	EventType       string         `json:"event_type" bson:"event_type"`
	Outcome         string         `json:"outcome" bson:"outcome"`
	RawPayload      []byte         `json:"raw_payload" bson:"raw_payload"`
	CorrelationID   string         `json:"correlation_id,omitempty" bson:"correlation_id,omitempty"`
	Success         bool           `json:"success" bson:"success"`
	ProcessingError string         `json:"processing_error,omitempty" bson:"processing_error,omitempty"`
	ReceivedAt      time.Time      `json:"received_at" bson:"received_at"`
	ProcessedAt     *time.Time     `json:"processed_at,omitempty" bson:"processed_at,omitempty"`
}

// ErrDeliveryNotFound indicates a missing archived delivery
type ErrDeliveryNotFound struct {
	EventID uuid.UUID
}

func (e ErrDeliveryNotFound) Error() string {
	return "webhook delivery not found: " + e.EventID.String()
}

// DeliveryRepository archives webhook deliveries in MongoDB
type DeliveryRepository struct {
	db     *mongo.Database
	logger *slog.Logger
}

// NewDeliveryRepository creates a new MongoDB webhook delivery repository
func NewDeliveryRepository(logger *slog.Logger, db *mongo.Database) *DeliveryRepository {
	return &DeliveryRepository{
		db:     db,
		logger: logger,
	}
}

// Record archives a delivery when it arrives at the HTTP edge
func (r *DeliveryRepository) Record(ctx context.Context, delivery *Delivery) error {
	collection := r.db.Collection(DeliveryCollectionName)

	_, err := collection.InsertOne(ctx, delivery)
	if err != nil {
		r.logger.Error("Failed to archive webhook delivery",
			"event_id", delivery.EventID.String(),
			"gateway", string(delivery.Gateway),
			"error", err)
		return fmt.Errorf("failed to archive webhook delivery: %w", err)
	}

	return nil
}

// MarkProcessed records the processing outcome on the archived delivery
func (r *DeliveryRepository) MarkProcessed(ctx context.Context, eventID uuid.UUID, success bool, processingError string) error {
	collection := r.db.Collection(DeliveryCollectionName)

	filter := bson.M{"event_id": eventID}
	update := bson.M{
		"$set": bson.M{
			"success":          success,
			"processing_error": processingError,
			"processed_at":     time.Now(),
		},
	}

	result, err := collection.UpdateOne(ctx, filter, update)
	if err != nil {
		r.logger.Error("Failed to mark webhook delivery processed",
			"event_id", eventID.String(),
			"error", err)
		return fmt.Errorf("failed to mark webhook delivery processed: %w", err)
	}

	if result.MatchedCount == 0 {
		return ErrDeliveryNotFound{EventID: eventID}
	}

	return nil
}

// GetByEventID retrieves an archived delivery
func (r *DeliveryRepository) GetByEventID(ctx context.Context, eventID uuid.UUID) (*Delivery, error) {
	collection := r.db.Collection(DeliveryCollectionName)

	filter := bson.M{"event_id": eventID}
	var delivery Delivery
	err := collection.FindOne(ctx, filter).Decode(&delivery)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrDeliveryNotFound{EventID: eventID}
		}
		r.logger.Error("Failed to get webhook delivery",
			"event_id", eventID.String(),
			"error", err)
		return nil, fmt.Errorf("failed to get webhook delivery: %w", err)
	}

	return &delivery, nil
}

// ListByGateway retrieves paginated archived deliveries for a gateway.
// Results are sorted by receipt time in descending order (newest first).
func (r *DeliveryRepository) ListByGateway(ctx context.Context, gateway shared.Gateway, limit, offset int) ([]*Delivery, error) {
	collection := r.db.Collection(DeliveryCollectionName)

	filter := bson.M{"gateway": gateway}
	opts := options.Find().
		SetSort(bson.M{"received_at": -1}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		r.logger.Error("Failed to list webhook deliveries",
			"gateway", string(gateway),
			"error", err)
		return nil, fmt.Errorf("failed to list webhook deliveries: %w", err)
	}
	defer cursor.Close(ctx)

	var deliveries []*Delivery
	if err := cursor.All(ctx, &deliveries); err != nil {
		r.logger.Error("Failed to decode webhook deliveries",
			"gateway", string(gateway),
			"error", err)
		return nil, fmt.Errorf("failed to decode webhook deliveries: %w", err)
	}

	return deliveries, nil
}

// CountByGateway counts archived deliveries for a gateway
func (r *DeliveryRepository) CountByGateway(ctx context.Context, gateway shared.Gateway) (int64, error) {
	collection := r.db.Collection(DeliveryCollectionName)

	count, err := collection.CountDocuments(ctx, bson.M{"gateway": gateway})
	if err != nil {
		r.logger.Error("Failed to count webhook deliveries",
			"gateway", string(gateway),
			"error", err)
		return 0, fmt.Errorf("failed to count webhook deliveries: %w", err)
	}

	return count, nil
}
