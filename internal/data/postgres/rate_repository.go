package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/orderhub-payment-ledger/internal/domain/exchange"
	"github.com/orderhub-payment-ledger/internal/platform/persistence"
)

// RateRepository implements the exchange.Repository interface for PostgreSQL
type RateRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewRateRepository creates a new PostgreSQL exchange rate repository
func NewRateRepository(logger *slog.Logger, db *persistence.PostgresDB) exchange.Repository {
	return &RateRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *RateRepository) WithTx(tx pgx.Tx) exchange.Repository {
	return &RateRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Latest returns the most recent rate snapshot for the currency effective at
// or before asOf
func (r *RateRepository) Latest(ctx context.Context, currency string, asOf time.Time) (*exchange.Rate, error) {
	query := `
		SELECT currency, rate, effective_at
		FROM exchange_rates
		WHERE currency = $1 AND effective_at <= $2
		ORDER BY effective_at DESC
		LIMIT 1
	`

	var rate exchange.Rate
	err := r.querier.QueryRow(ctx, query, currency, asOf).Scan(&rate.Currency, &rate.Rate, &rate.EffectiveAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, exchange.ErrRateNotFound{Currency: currency}
		}
		r.logger.Error("Failed to look up exchange rate", "currency", currency, "error", err)
		return nil, fmt.Errorf("failed to look up exchange rate: %w", err)
	}

	return &rate, nil
}
