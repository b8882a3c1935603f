package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/orderhub-payment-ledger/internal/domain/refund"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
	"github.com/orderhub-payment-ledger/internal/reconcile"
)

// RefundServiceImpl implements the RefundService interface
type RefundServiceImpl struct {
	engine  Reconciler
	refunds refund.Repository
	logger  *slog.Logger
}

// NewRefundService creates a new refund service
func NewRefundService(logger *slog.Logger, engine Reconciler, refunds refund.Repository) RefundService {
	return &RefundServiceImpl{
		engine:  engine,
		refunds: refunds,
		logger:  logger,
	}
}

// CreateManualRefund records an administrator-initiated refund through the
// engine so the ceiling check and ledger write are the same as for webhooks
func (s *RefundServiceImpl) CreateManualRefund(ctx context.Context, actor shared.Actor, p reconcile.ManualRefundParams) (*refund.Refund, error) {
	return s.engine.RecordManualRefund(ctx, actor, p)
}

// ListByTransactionID returns all refunds recorded against a transaction
func (s *RefundServiceImpl) ListByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*refund.Refund, error) {
	return s.refunds.ListByTransactionID(ctx, transactionID)
}
