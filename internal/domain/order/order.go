package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the derived payment state of an order. It is a
// projection of the ledger, never independent truth.
type PaymentStatus string

const (
	PaymentStatusUnpaid   PaymentStatus = "unpaid"
	PaymentStatusPartial  PaymentStatus = "partial"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusOverpaid PaymentStatus = "overpaid"
)

// Order is the slice of the externally-owned order this core reads and
// writes: the amount due and the ledger-derived payment fields. Pricing
// belongs to the pricing calculator, not here.
type Order struct {
	ID                uuid.UUID       `json:"id"`
	Currency          string          `json:"currency"`
	TotalDue          decimal.Decimal `json:"total_due"`
	PaymentStatus     PaymentStatus   `json:"payment_status"`
	AmountPaid        decimal.Decimal `json:"amount_paid"`
	OverpaymentAmount decimal.Decimal `json:"overpayment_amount"`
	CustomerEmail     string          `json:"customer_email,omitempty"`
	CustomerName      string          `json:"customer_name,omitempty"`
	CustomerPhone     string          `json:"customer_phone,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// SessionStatus defines guest checkout session states
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusFailed    SessionStatus = "failed"
)

// GuestSession is a token-keyed guest checkout session. On payment success
// its contact details are promoted onto the order; on failure only the
// session status changes.
type GuestSession struct {
	Token         string        `json:"token"`
	Status        SessionStatus `json:"status"`
	OrderID       *uuid.UUID    `json:"order_id,omitempty"`
	CustomerEmail string        `json:"customer_email,omitempty"`
	CustomerName  string        `json:"customer_name,omitempty"`
	CustomerPhone string        `json:"customer_phone,omitempty"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
