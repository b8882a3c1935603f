package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"

	mongodata "github.com/orderhub-payment-ledger/internal/data/mongo"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

// DeliveryServiceImpl implements the DeliveryService interface
type DeliveryServiceImpl struct {
	deliveries DeliveryArchive
	logger     *slog.Logger
}

// NewDeliveryService creates a new webhook delivery query service
func NewDeliveryService(logger *slog.Logger, deliveries DeliveryArchive) DeliveryService {
	return &DeliveryServiceImpl{
		deliveries: deliveries,
		logger:     logger,
	}
}

// GetByEventID retrieves an archived delivery. Returns nil if not found.
func (s *DeliveryServiceImpl) GetByEventID(ctx context.Context, eventID uuid.UUID) (*mongodata.Delivery, error) {
	delivery, err := s.deliveries.GetByEventID(ctx, eventID)
	if err != nil {
		var notFound mongodata.ErrDeliveryNotFound
		if errors.As(err, &notFound) {
			s.logger.Info("Webhook delivery not found", "event_id", eventID.String())
			return nil, nil
		}
		return nil, err
	}
	return delivery, nil
}

// ListByGateway returns archived deliveries newest first plus the total count
func (s *DeliveryServiceImpl) ListByGateway(ctx context.Context, gateway shared.Gateway, page, perPage int) ([]*mongodata.Delivery, int64, error) {
	offset := (page - 1) * perPage

	deliveries, err := s.deliveries.ListByGateway(ctx, gateway, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.deliveries.CountByGateway(ctx, gateway)
	if err != nil {
		return nil, 0, err
	}

	return deliveries, total, nil
}
