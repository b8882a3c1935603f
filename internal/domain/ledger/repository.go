package ledger

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Repository manages the append-only ledger. There are no update or delete
// operations: corrections are new adjustment entries.
type Repository interface {
	// Append persists a new entry, computing the balance chain under a
	// row-level lock on the owning order. The caller provides BaseAmount
	// already signed; BalanceBefore/BalanceAfter/Seq are filled in here.
	// Must run inside a transaction (use WithTx).
	Append(ctx context.Context, entry *Entry) (*Entry, error)

	// GetBalance returns balance_after of the most recent entry, or zero
	GetBalance(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)

	GetByID(ctx context.Context, id uuid.UUID) (*Entry, error)
	GetByOrderID(ctx context.Context, orderID uuid.UUID, limit, offset int) ([]*Entry, error)
	CountByOrderID(ctx context.Context, orderID uuid.UUID) (int64, error)

	// SumCompletedPaid sums signed base amounts of completed entries whose
	// kind counts toward the derived payment status
	SumCompletedPaid(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error)

	// HasEntry reports whether an entry of the given kind already exists for
	// the (transaction, order) pair. This is the replay guard: a redelivered
	// webhook must not append a second customer_payment entry.
	HasEntry(ctx context.Context, transactionID, orderID uuid.UUID, kind Kind) (bool, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrOrderNotFound indicates the owning order row does not exist, so the
// append lock could not be taken
type ErrOrderNotFound struct {
	OrderID uuid.UUID
}

func (e ErrOrderNotFound) Error() string {
	return "order not found for ledger append: " + e.OrderID.String()
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
