package exchange

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// Rate is one exchange-rate snapshot: how many units of the base currency
// one unit of Currency was worth at EffectiveAt
type Rate struct {
	Currency    string          `json:"currency"`
	Rate        decimal.Decimal `json:"rate"`
	EffectiveAt time.Time       `json:"effective_at"`
}

// Repository looks up exchange-rate snapshots
type Repository interface {
	// Latest returns the most recent rate for the currency effective at or
	// before asOf. Returns ErrRateNotFound if none was ever captured.
	Latest(ctx context.Context, currency string, asOf time.Time) (*Rate, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrRateNotFound indicates no usable rate exists for a currency
type ErrRateNotFound struct {
	Currency string
}

func (e ErrRateNotFound) Error() string {
	return "no exchange rate available for currency: " + e.Currency
}

// Is implements the errors.Is interface for ErrRateNotFound
func (e ErrRateNotFound) Is(target error) bool {
	t, ok := target.(ErrRateNotFound)
	if !ok {
		return false
	}
	if t.Currency == "" {
		return true
	}
	return e.Currency == t.Currency
}
