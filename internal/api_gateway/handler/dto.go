package handler

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// WebhookPaymentData is the payment block of an inbound webhook request
type WebhookPaymentData struct {
	GatewayTransactionID string          `json:"gateway_transaction_id" binding:"required"`
	Amount               decimal.Decimal `json:"amount" binding:"required"`
	Currency             string          `json:"currency" binding:"required,len=3"`
	CustomerEmail        string          `json:"customer_email,omitempty"`
	CustomerName         string          `json:"customer_name,omitempty"`
	CustomerPhone        string          `json:"customer_phone,omitempty"`
	GatewayResponse      json.RawMessage `json:"gateway_response,omitempty"`
}

// WebhookRefundData is the refund block of an inbound webhook request
type WebhookRefundData struct {
	GatewayRefundID string          `json:"gateway_refund_id" binding:"required"`
	Amount          decimal.Decimal `json:"amount" binding:"required"`
	Currency        string          `json:"currency" binding:"required,len=3"`
	Type            string          `json:"type" binding:"required,oneof=FULL PARTIAL"`
	ReasonCode      string          `json:"reason_code,omitempty"`
}

// WebhookRequest represents one gateway notification, already verified and
// normalized by the gateway-specific edge
type WebhookRequest struct {
	EventType         string             `json:"event_type" binding:"omitempty,oneof=payment refund"`
	OrderIDs          []string           `json:"order_ids" binding:"omitempty,dive,uuid"`
	Outcome           string             `json:"outcome" binding:"required,oneof=success failed pending"`
	PaymentData       WebhookPaymentData `json:"payment_data" binding:"required"`
	RefundData        *WebhookRefundData `json:"refund_data,omitempty"`
	GuestSessionToken string             `json:"guest_session_token,omitempty"`
	GuestSessionData  json.RawMessage    `json:"guest_session_data,omitempty"`
	CreateOrder       bool               `json:"create_order,omitempty"`
}

// WebhookResponse mirrors the reconciliation result for the gateway caller
type WebhookResponse struct {
	Success             bool   `json:"success"`
	TransactionID       string `json:"transaction_id,omitempty"`
	LedgerEntryID       string `json:"ledger_entry_id,omitempty"`
	FeeLedgerEntryID    string `json:"fee_ledger_entry_id,omitempty"`
	RefundID            string `json:"refund_id,omitempty"`
	OrderUpdated        bool   `json:"order_updated"`
	GuestSessionUpdated bool   `json:"guest_session_updated"`
	CreatedOrderID      string `json:"created_order_id,omitempty"`
	Queued              bool   `json:"queued,omitempty"`
	ErrorMessage        string `json:"error_message,omitempty"`
}

// ManualEntryRequest represents a privileged manual ledger mutation
type ManualEntryRequest struct {
	TransactionID string          `json:"transaction_id" binding:"omitempty,uuid"`
	Kind          string          `json:"kind" binding:"required,oneof=credit_applied adjustment"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Currency      string          `json:"currency" binding:"required,len=3"`
	Reference     string          `json:"reference,omitempty"`
	Notes         string          `json:"notes,omitempty"`
}

// ManualRefundRequest represents an administrator-initiated refund
type ManualRefundRequest struct {
	TransactionID string          `json:"transaction_id" binding:"required,uuid"`
	Amount        decimal.Decimal `json:"amount" binding:"required"`
	Currency      string          `json:"currency" binding:"required,len=3"`
	Type          string          `json:"type" binding:"required,oneof=FULL PARTIAL"`
	ReasonCode    string          `json:"reason_code,omitempty"`
}

// LedgerEntryResponse represents a ledger entry in API responses
type LedgerEntryResponse struct {
	ID            string `json:"id"`
	Seq           int64  `json:"seq"`
	OrderID       string `json:"order_id"`
	TransactionID string `json:"transaction_id,omitempty"`
	Kind          string `json:"kind"`
	Amount        string `json:"amount"`
	Currency      string `json:"currency"`
	BaseAmount    string `json:"base_amount"`
	ExchangeRate  string `json:"exchange_rate"`
	RateFallback  bool   `json:"rate_fallback,omitempty"`
	BalanceBefore string `json:"balance_before"`
	BalanceAfter  string `json:"balance_after"`
	Reference     string `json:"reference,omitempty"`
	Status        string `json:"status"`
	Notes         string `json:"notes,omitempty"`
	CreatedBy     string `json:"created_by"`
	CreatedAt     string `json:"created_at"`
}

// LedgerEntryListResponse represents a list of ledger entries
type LedgerEntryListResponse struct {
	Entries []LedgerEntryResponse `json:"entries"`
}

// BalanceResponse represents an order's running base-currency balance
type BalanceResponse struct {
	OrderID  string `json:"order_id"`
	Balance  string `json:"balance"`
	Currency string `json:"currency"`
}

// PaymentStatusResponse represents an order's derived payment state
type PaymentStatusResponse struct {
	OrderID           string `json:"order_id"`
	PaymentStatus     string `json:"payment_status"`
	TotalDue          string `json:"total_due"`
	AmountPaid        string `json:"amount_paid"`
	OverpaymentAmount string `json:"overpayment_amount"`
}

// TransactionResponse represents a payment transaction in API responses
type TransactionResponse struct {
	ID                   string `json:"id"`
	OrderID              string `json:"order_id,omitempty"`
	GatewayTransactionID string `json:"gateway_transaction_id"`
	PaymentMethod        string `json:"payment_method"`
	GrossAmount          string `json:"gross_amount"`
	Currency             string `json:"currency"`
	Status               string `json:"status"`
	FeeAmount            string `json:"fee_amount"`
	FeeCurrency          string `json:"fee_currency,omitempty"`
	NetAmount            string `json:"net_amount"`
	TotalRefunded        string `json:"total_refunded"`
	RefundCount          int    `json:"refund_count"`
	IsFullyRefunded      bool   `json:"is_fully_refunded"`
	LastRefundAt         string `json:"last_refund_at,omitempty"`
	CreatedAt            string `json:"created_at"`
}

// RefundResponse represents a refund in API responses
type RefundResponse struct {
	ID              string `json:"id"`
	TransactionID   string `json:"transaction_id"`
	OrderID         string `json:"order_id"`
	GatewayRefundID string `json:"gateway_refund_id"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Type            string `json:"type"`
	ReasonCode      string `json:"reason_code,omitempty"`
	Status          string `json:"status"`
	CreatedAt       string `json:"created_at"`
}

// RefundListResponse represents a list of refunds
type RefundListResponse struct {
	Refunds []RefundResponse `json:"refunds"`
}

// DeliveryResponse represents an archived webhook delivery
type DeliveryResponse struct {
	EventID         string `json:"event_id"`
	Gateway         string `json:"gateway"`
	EventType       string `json:"event_type"`
	Outcome         string `json:"outcome"`
	CorrelationID   string `json:"correlation_id,omitempty"`
	Success         bool   `json:"success"`
	ProcessingError string `json:"processing_error,omitempty"`
	ReceivedAt      string `json:"received_at"`
	ProcessedAt     string `json:"processed_at,omitempty"`
}

// DeliveryListResponse represents a list of archived webhook deliveries
type DeliveryListResponse struct {
	Deliveries []DeliveryResponse `json:"deliveries"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}
