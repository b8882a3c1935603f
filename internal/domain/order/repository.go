package order

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repository defines order persistence for the payment core
type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetByID(ctx context.Context, id uuid.UUID) (*Order, error)

	// UpdatePaymentProjection writes the ledger-derived payment fields
	UpdatePaymentProjection(ctx context.Context, id uuid.UUID, status PaymentStatus, amountPaid, overpayment decimal.Decimal) error

	// UpdateContact promotes guest session contact details onto the order
	UpdateContact(ctx context.Context, id uuid.UUID, email, name, phone string) error

	WithTx(tx pgx.Tx) Repository
}

// SessionRepository defines guest checkout session persistence
type SessionRepository interface {
	GetByToken(ctx context.Context, token string) (*GuestSession, error)
	UpdateStatus(ctx context.Context, token string, status SessionStatus, orderID *uuid.UUID) error
	WithTx(tx pgx.Tx) SessionRepository
}

// ErrOrderNotFound indicates a missing order
type ErrOrderNotFound struct {
	OrderID uuid.UUID
}

func (e ErrOrderNotFound) Error() string {
	return "order not found: " + e.OrderID.String()
}

// Is implements the errors.Is interface for ErrOrderNotFound
func (e ErrOrderNotFound) Is(target error) bool {
	t, ok := target.(ErrOrderNotFound)
	if !ok {
		return false
	}
	if t.OrderID == uuid.Nil {
		return true
	}
	return e.OrderID == t.OrderID
}

// ErrSessionNotFound indicates a missing guest checkout session
type ErrSessionNotFound struct {
	Token string
}

func (e ErrSessionNotFound) Error() string {
	return "guest session not found: " + e.Token
}

// Is implements the errors.Is interface for ErrSessionNotFound
func (e ErrSessionNotFound) Is(target error) bool {
	t, ok := target.(ErrSessionNotFound)
	if !ok {
		return false
	}
	if t.Token == "" {
		return true
	}
	return e.Token == t.Token
}
