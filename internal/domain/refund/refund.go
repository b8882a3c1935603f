package refund

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

// Status defines refund processing states
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Refund is one gateway-reported reversal against a transaction. The
// gateway-assigned refund id is unique, which makes replayed refund webhooks
// collapse to a single row.
type Refund struct {
	ID              uuid.UUID         `json:"id"`
	TransactionID   uuid.UUID         `json:"transaction_id"`
	OrderID         uuid.UUID         `json:"order_id"`
	GatewayRefundID string            `json:"gateway_refund_id"`
	Amount          decimal.Decimal   `json:"amount"`
	Currency        string            `json:"currency"`
	Type            shared.RefundType `json:"type"`
	ReasonCode      string            `json:"reason_code,omitempty"`
	Status          Status            `json:"status"`
	GatewayPayload  json.RawMessage   `json:"gateway_payload,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// LedgerKind returns the ledger entry kind a completed refund produces
func (r *Refund) LedgerKind() string {
	if r.Type == shared.RefundTypeFull {
		return "refund"
	}
	return "partial_refund"
}

// ErrRefundExceedsCaptured indicates the requested refund would push the
// completed refund total past the transaction's gross amount
type ErrRefundExceedsCaptured struct {
	TransactionID uuid.UUID
	Requested     decimal.Decimal
	Available     decimal.Decimal
}

func (e ErrRefundExceedsCaptured) Error() string {
	return "refund of " + e.Requested.String() + " exceeds refundable amount " +
		e.Available.String() + " for transaction " + e.TransactionID.String()
}

// Is implements the errors.Is interface for ErrRefundExceedsCaptured
func (e ErrRefundExceedsCaptured) Is(target error) bool {
	t, ok := target.(ErrRefundExceedsCaptured)
	if !ok {
		return false
	}
	if t.TransactionID == uuid.Nil {
		return true
	}
	return e.TransactionID == t.TransactionID
}
