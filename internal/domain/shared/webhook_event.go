package shared

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentData carries the gateway-reported details of a payment attempt.
// GatewayResponse is the raw provider payload, kept opaque for audit; only
// the gateway-specific fee parsers ever look inside it.
type PaymentData struct {
	GatewayTransactionID string          `json:"gateway_transaction_id"`
	Amount               decimal.Decimal `json:"amount"`
	Currency             string          `json:"currency"`
	PaymentMethod        Gateway         `json:"payment_method"`
	CustomerEmail        string          `json:"customer_email,omitempty"`
	CustomerName         string          `json:"customer_name,omitempty"`
	CustomerPhone        string          `json:"customer_phone,omitempty"`
	GatewayResponse      json.RawMessage `json:"gateway_response,omitempty"`
}

// RefundType distinguishes full from partial refunds
type RefundType string

const (
	RefundTypeFull    RefundType = "FULL"
	RefundTypePartial RefundType = "PARTIAL"
)

// RefundData carries the gateway-reported details of a refund event
type RefundData struct {
	GatewayRefundID string          `json:"gateway_refund_id"`
	Amount          decimal.Decimal `json:"amount"`
	Currency        string          `json:"currency"`
	Type            RefundType      `json:"type"`
	ReasonCode      string          `json:"reason_code,omitempty"`
}

// WebhookEvent is one inbound gateway notification, normalized at the HTTP
// edge. It is both the synchronous engine input and the Kafka retry message.
type WebhookEvent struct {
	EventID           uuid.UUID       `json:"event_id"`
	Type              EventType       `json:"type"`
	OrderIDs          []uuid.UUID     `json:"order_ids"`
	Outcome           Outcome         `json:"outcome"`
	Payment           PaymentData     `json:"payment"`
	Refund            *RefundData     `json:"refund,omitempty"`
	GuestSessionToken string          `json:"guest_session_token,omitempty"`
	GuestSessionData  json.RawMessage `json:"guest_session_data,omitempty"`
	CreateOrder       bool            `json:"create_order,omitempty"`
	CorrelationID     string          `json:"correlation_id,omitempty"`
	Attempt           int             `json:"attempt,omitempty"`
	ReceivedAt        time.Time       `json:"received_at"`
}

// Validate checks required fields before any mutation begins. A failed
// validation means the event is never partially processed.
func (e *WebhookEvent) Validate() error {
	if e.Type != EventTypePayment && e.Type != EventTypeRefund {
		return ErrInvalidPaymentData{Field: "type"}
	}
	if !e.Outcome.Valid() {
		return ErrInvalidPaymentData{Field: "outcome"}
	}
	if !e.Payment.PaymentMethod.Valid() {
		return ErrInvalidPaymentData{Field: "payment_method"}
	}
	if e.Payment.GatewayTransactionID == "" {
		return ErrInvalidPaymentData{Field: "gateway_transaction_id"}
	}
	if e.Payment.Amount.IsZero() || e.Payment.Amount.IsNegative() {
		return ErrInvalidPaymentData{Field: "amount"}
	}
	if len(e.Payment.Currency) != 3 {
		return ErrInvalidPaymentData{Field: "currency"}
	}
	if e.Type == EventTypeRefund {
		if e.Refund == nil {
			return ErrInvalidPaymentData{Field: "refund"}
		}
		if e.Refund.GatewayRefundID == "" {
			return ErrInvalidPaymentData{Field: "gateway_refund_id"}
		}
		if e.Refund.Amount.IsZero() || e.Refund.Amount.IsNegative() {
			return ErrInvalidPaymentData{Field: "refund_amount"}
		}
		if e.Refund.Type != RefundTypeFull && e.Refund.Type != RefundTypePartial {
			return ErrInvalidPaymentData{Field: "refund_type"}
		}
	}
	if e.Type == EventTypePayment && len(e.OrderIDs) == 0 && !e.CreateOrder {
		return ErrInvalidPaymentData{Field: "order_ids"}
	}
	return nil
}

// ReconcileResult describes every entity touched by one reconciliation
type ReconcileResult struct {
	Success             bool       `json:"success"`
	TransactionID       *uuid.UUID `json:"transaction_id,omitempty"`
	LedgerEntryID       *uuid.UUID `json:"ledger_entry_id,omitempty"`
	FeeLedgerEntryID    *uuid.UUID `json:"fee_ledger_entry_id,omitempty"`
	RefundID            *uuid.UUID `json:"refund_id,omitempty"`
	OrderUpdated        bool       `json:"order_updated"`
	GuestSessionUpdated bool       `json:"guest_session_updated"`
	CreatedOrderID      *uuid.UUID `json:"created_order_id,omitempty"`
	ErrorMessage        string     `json:"error_message,omitempty"`
}

// ErrInvalidPaymentData indicates a missing or malformed required field
type ErrInvalidPaymentData struct {
	Field string
}

func (e ErrInvalidPaymentData) Error() string {
	return "invalid payment data: missing or malformed field " + e.Field
}

// Is implements the errors.Is interface for ErrInvalidPaymentData
func (e ErrInvalidPaymentData) Is(target error) bool {
	t, ok := target.(ErrInvalidPaymentData)
	if !ok {
		return false
	}
	if t.Field == "" {
		return true
	}
	return e.Field == t.Field
}
