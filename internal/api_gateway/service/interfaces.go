package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	mongodata "github.com/orderhub-payment-ledger/internal/data/mongo"
	"github.com/orderhub-payment-ledger/internal/domain/ledger"
	"github.com/orderhub-payment-ledger/internal/domain/order"
	"github.com/orderhub-payment-ledger/internal/domain/payment"
	"github.com/orderhub-payment-ledger/internal/domain/refund"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
	"github.com/orderhub-payment-ledger/internal/reconcile"
)

// Reconciler is the slice of the reconciliation engine the gateway services
// depend on
type Reconciler interface {
	Reconcile(ctx context.Context, event *shared.WebhookEvent) (*shared.ReconcileResult, error)
	AppendManualEntry(ctx context.Context, actor shared.Actor, p reconcile.ManualEntryParams) (*ledger.Entry, error)
	RecordManualRefund(ctx context.Context, actor shared.Actor, p reconcile.ManualRefundParams) (*refund.Refund, error)
}

// DeliveryArchive records and queries archived webhook deliveries
type DeliveryArchive interface {
	Record(ctx context.Context, delivery *mongodata.Delivery) error
	MarkProcessed(ctx context.Context, eventID uuid.UUID, success bool, processingError string) error
	GetByEventID(ctx context.Context, eventID uuid.UUID) (*mongodata.Delivery, error)
	ListByGateway(ctx context.Context, gateway shared.Gateway, limit, offset int) ([]*mongodata.Delivery, error)
	CountByGateway(ctx context.Context, gateway shared.Gateway) (int64, error)
}

// WebhookService processes inbound gateway webhook events
type WebhookService interface {
	// Process archives the delivery, reconciles it, and on a storage-level
	// failure hands the event to the retry topic. The bool reports whether
	// the event was queued for retry instead of completing.
	Process(ctx context.Context, event *shared.WebhookEvent, rawPayload []byte) (*shared.ReconcileResult, bool, error)
}

// LedgerService defines ledger and order payment-state queries plus the
// privileged manual mutation
type LedgerService interface {
	// AppendManualEntry appends a privileged entry; the actor must hold
	// ledger write permission
	AppendManualEntry(ctx context.Context, actor shared.Actor, p reconcile.ManualEntryParams) (*ledger.Entry, error)

	// GetEntriesByOrderID returns entries in append order plus the total count
	GetEntriesByOrderID(ctx context.Context, orderID uuid.UUID, page, perPage int) ([]*ledger.Entry, int64, error)

	// GetBalance returns the order's running base-currency balance
	GetBalance(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)

	// GetPaymentStatus returns the order with its derived payment fields
	GetPaymentStatus(ctx context.Context, orderID uuid.UUID) (*order.Order, error)

	// GetTransactionByID retrieves a payment transaction. Returns nil if not found.
	GetTransactionByID(ctx context.Context, id uuid.UUID) (*payment.Transaction, error)
}

// RefundService defines refund operations
type RefundService interface {
	// CreateManualRefund records an administrator-initiated refund; the
	// actor must hold refund write permission
	CreateManualRefund(ctx context.Context, actor shared.Actor, p reconcile.ManualRefundParams) (*refund.Refund, error)

	// ListByTransactionID returns all refunds recorded against a transaction
	ListByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*refund.Refund, error)
}

// DeliveryService queries the webhook delivery audit archive
type DeliveryService interface {
	// GetByEventID retrieves an archived delivery. Returns nil if not found.
	GetByEventID(ctx context.Context, eventID uuid.UUID) (*mongodata.Delivery, error)

	// ListByGateway returns archived deliveries newest first plus the total count
	ListByGateway(ctx context.Context, gateway shared.Gateway, page, perPage int) ([]*mongodata.Delivery, int64, error)
}
