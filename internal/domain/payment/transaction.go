package payment

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

// Status defines transaction processing states
type Status string

const (
	StatusPending   Status = "pending"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// StatusFromOutcome maps a gateway-reported outcome onto a transaction status
func StatusFromOutcome(outcome shared.Outcome) Status {
	switch outcome {
	case shared.OutcomeSuccess:
		return StatusCompleted
	case shared.OutcomeFailed:
		return StatusFailed
	default:
		return StatusPending
	}
}

// Transaction is one gateway-level payment attempt. The pair
// (GatewayTransactionID, PaymentMethod) is unique, so a replayed webhook for
// the same attempt always resolves to the same row.
type Transaction struct {
	ID uuid.UUID `json:"id"`
	// OrderID is nil for attempts registered before any order exists, such
	// as a failed capture that requested order creation.
	OrderID              *uuid.UUID      `json:"order_id,omitempty"`
	GrossAmount          decimal.Decimal `json:"gross_amount"`
	Currency             string          `json:"currency"`
	Status               Status          `json:"status"`
	PaymentMethod        shared.Gateway  `json:"payment_method"`
	GatewayTransactionID string          `json:"gateway_transaction_id"`
	FeeAmount            decimal.Decimal `json:"fee_amount"`
	FeeCurrency          string          `json:"fee_currency,omitempty"`
	NetAmount            decimal.Decimal `json:"net_amount"`
	TotalRefunded        decimal.Decimal `json:"total_refunded"`
	RefundCount          int             `json:"refund_count"`
	IsFullyRefunded      bool            `json:"is_fully_refunded"`
	LastRefundAt         *time.Time      `json:"last_refund_at,omitempty"`
	GatewayPayload       json.RawMessage `json:"gateway_payload,omitempty"`
	CreatedAt            time.Time       `json:"created_at"`
	UpdatedAt            time.Time       `json:"updated_at"`
}

// NewTransaction builds a transaction for a first webhook delivery. Net amount
// is gross minus fee when the gateway reports the fee in the capture currency;
// cross-currency fees are left to the ledger's base-currency split.
func NewTransaction(orderID *uuid.UUID, gatewayTxID string, method shared.Gateway, gross decimal.Decimal, currency string, status Status, fee decimal.Decimal, feeCurrency string, payload json.RawMessage) *Transaction {
	now := time.Now()
	net := gross
	if fee.IsPositive() && (feeCurrency == "" || feeCurrency == currency) {
		net = gross.Sub(fee)
	}
	return &Transaction{
		ID:                   uuid.New(),
		OrderID:              orderID,
		GrossAmount:          gross,
		Currency:             currency,
		Status:               status,
		PaymentMethod:        method,
		GatewayTransactionID: gatewayTxID,
		FeeAmount:            fee,
		FeeCurrency:          feeCurrency,
		NetAmount:            net,
		TotalRefunded:        decimal.Zero,
		GatewayPayload:       payload,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// RemainingRefundable returns how much of the gross amount is still refundable
func (t *Transaction) RemainingRefundable() decimal.Decimal {
	return t.GrossAmount.Sub(t.TotalRefunded)
}
