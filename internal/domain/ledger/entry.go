package ledger

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrInvalidKind   = errors.New("invalid ledger entry kind")
	ErrInvalidAmount = errors.New("amount must be positive")
)

// Kind defines the discrete money-movement categories
type Kind string

const (
	KindCustomerPayment Kind = "customer_payment"
	KindGatewayFee      Kind = "gateway_fee"
	KindRefund          Kind = "refund"
	KindPartialRefund   Kind = "partial_refund"
	KindCreditApplied   Kind = "credit_applied"
	KindAdjustment      Kind = "adjustment"
)

// Sign returns the balance direction of the kind: +1 for money in, -1 for
// money out, 0 for adjustments, which carry their own sign.
func (k Kind) Sign() (int, error) {
	switch k {
	case KindCustomerPayment, KindCreditApplied:
		return 1, nil
	case KindRefund, KindPartialRefund, KindGatewayFee:
		return -1, nil
	case KindAdjustment:
		return 0, nil
	}
	return 0, ErrInvalidKind
}

// CountsTowardPaid reports whether the kind participates in the derived
// payment status. Gateway fees are a processing cost, not customer money,
// and adjustments are bookkeeping corrections.
func (k Kind) CountsTowardPaid() bool {
	switch k {
	case KindCustomerPayment, KindCreditApplied, KindRefund, KindPartialRefund:
		return true
	}
	return false
}

// Status defines ledger entry states
type Status string

const (
	StatusCompleted Status = "completed"
	StatusPending   Status = "pending"
)

// Entry is one immutable money movement against an order. BaseAmount is
// signed in the base currency; Amount is the unsigned native amount as the
// gateway reported it (adjustments carry their sign on both).
type Entry struct {
	ID             uuid.UUID       `json:"id"`
	Seq            int64           `json:"seq"`
	OrderID        uuid.UUID       `json:"order_id"`
	TransactionID  *uuid.UUID      `json:"transaction_id,omitempty"`
	Kind           Kind            `json:"kind"`
	Amount         decimal.Decimal `json:"amount"`
	Currency       string          `json:"currency"`
	BaseAmount     decimal.Decimal `json:"base_amount"`
	ExchangeRate   decimal.Decimal `json:"exchange_rate"`
	RateFallback   bool            `json:"rate_fallback,omitempty"`
	BalanceBefore  decimal.Decimal `json:"balance_before"`
	BalanceAfter   decimal.Decimal `json:"balance_after"`
	Reference      string          `json:"reference,omitempty"`
	Status         Status          `json:"status"`
	Notes          string          `json:"notes,omitempty"`
	CreatedBy      string          `json:"created_by"`
	GatewayPayload json.RawMessage `json:"gateway_payload,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
}

// SignedBase applies the kind's direction to an unsigned base amount.
// Adjustment amounts pass through with the sign the caller gave them.
func SignedBase(kind Kind, base decimal.Decimal) (decimal.Decimal, error) {
	sign, err := kind.Sign()
	if err != nil {
		return decimal.Zero, err
	}
	if sign == 0 {
		return base, nil
	}
	if base.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	if sign < 0 {
		return base.Neg(), nil
	}
	return base, nil
}
