package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

// Repository defines transaction persistence operations
type Repository interface {
	// Upsert inserts a transaction or, when (gateway_transaction_id,
	// payment_method) already exists, updates status/fee/payload in place.
	// Returns the resolved row either way; concurrent replays serialize on
	// the unique index so exactly one row results.
	Upsert(ctx context.Context, txn *Transaction) (*Transaction, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)
	GetByGatewayID(ctx context.Context, gatewayTxID string, method shared.Gateway) (*Transaction, error)

	// LockForUpdate acquires a pessimistic lock for refund processing
	LockForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// UpdateRefundAggregates overwrites the refund aggregate fields from a
	// fresh aggregate query, never by incrementing
	UpdateRefundAggregates(ctx context.Context, id uuid.UUID, totalRefunded decimal.Decimal, refundCount int, fullyRefunded bool, lastRefundAt *time.Time) error

	WithTx(tx pgx.Tx) Repository
}

// ErrTransactionNotFound indicates a refund or fee update referenced an
// unknown gateway transaction
type ErrTransactionNotFound struct {
	GatewayTransactionID string
	PaymentMethod        shared.Gateway
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.GatewayTransactionID + " (" + string(e.PaymentMethod) + ")"
}

// Is implements the errors.Is interface for ErrTransactionNotFound
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	if t.GatewayTransactionID == "" {
		return true
	}
	return e.GatewayTransactionID == t.GatewayTransactionID && e.PaymentMethod == t.PaymentMethod
}
