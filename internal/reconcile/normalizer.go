package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/orderhub-payment-ledger/internal/config"
	"github.com/orderhub-payment-ledger/internal/domain/exchange"
)

// Normalized is the result of converting a native-currency amount into the
// ledger's base currency
type Normalized struct {
	BaseAmount      decimal.Decimal
	Rate            decimal.Decimal
	FallbackApplied bool
}

// Normalizer converts native-currency amounts to the base currency using
// point-in-time exchange rates
type Normalizer struct {
	rates           exchange.Repository
	baseCurrency    string
	fallbackToUnity bool
	logger          *slog.Logger
}

// NewNormalizer creates a currency normalizer backed by the rate repository
func NewNormalizer(rates exchange.Repository, cfg *config.LedgerConfig, logger *slog.Logger) *Normalizer {
	return &Normalizer{
		rates:           rates,
		baseCurrency:    cfg.BaseCurrency,
		fallbackToUnity: cfg.RateFallbackToUnity,
		logger:          logger,
	}
}

// Normalize converts amount from currency into the base currency using the
// latest rate effective at or before asOf. Amounts already in the base
// currency get a rate of exactly 1. When no rate exists and unity fallback is
// enabled the amount passes through unconverted with FallbackApplied set, so
// the entry is never indistinguishable from a genuine 1:1 conversion.
func (n *Normalizer) Normalize(ctx context.Context, tx pgx.Tx, amount decimal.Decimal, currency string, asOf time.Time) (*Normalized, error) {
	if currency == n.baseCurrency {
		return &Normalized{
			BaseAmount: amount,
			Rate:       decimal.NewFromInt(1),
		}, nil
	}

	repo := n.rates
	if tx != nil {
		repo = repo.WithTx(tx)
	}

	rate, err := repo.Latest(ctx, currency, asOf)
	if err != nil {
		if errors.Is(err, exchange.ErrRateNotFound{}) && n.fallbackToUnity {
			n.logger.Warn("No exchange rate available, falling back to 1:1",
				"currency", currency,
				"base_currency", n.baseCurrency,
				"as_of", asOf)
			return &Normalized{
				BaseAmount:      amount,
				Rate:            decimal.NewFromInt(1),
				FallbackApplied: true,
			}, nil
		}
		return nil, err
	}

	return &Normalized{
		BaseAmount: amount.Mul(rate.Rate),
		Rate:       rate.Rate,
	}, nil
}
