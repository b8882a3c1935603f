package refund

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Aggregates is the result of re-running the completed-refund aggregate
// query for a transaction. It is recomputed whole, never patched, so it
// stays correct under webhook replay.
type Aggregates struct {
	TotalRefunded decimal.Decimal
	RefundCount   int
	LastRefundAt  *time.Time
}

// Repository defines refund persistence operations
type Repository interface {
	Create(ctx context.Context, r *Refund) error
	GetByID(ctx context.Context, id uuid.UUID) (*Refund, error)
	GetByGatewayRefundID(ctx context.Context, gatewayRefundID string) (*Refund, error)
	ListByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*Refund, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error

	// AggregatesForTransaction recomputes totals over completed refunds only
	AggregatesForTransaction(ctx context.Context, transactionID uuid.UUID) (*Aggregates, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrRefundNotFound indicates a missing refund
type ErrRefundNotFound struct {
	GatewayRefundID string
}

func (e ErrRefundNotFound) Error() string {
	return "refund not found: " + e.GatewayRefundID
}

// Is implements the errors.Is interface for ErrRefundNotFound
func (e ErrRefundNotFound) Is(target error) bool {
	t, ok := target.(ErrRefundNotFound)
	if !ok {
		return false
	}
	if t.GatewayRefundID == "" {
		return true
	}
	return e.GatewayRefundID == t.GatewayRefundID
}
