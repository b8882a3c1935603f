// Package postgres provides PostgreSQL implementations of the domain
// repositories. It handles all database operations while maintaining
// transaction safety and proper error handling for the payment ledger.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/orderhub-payment-ledger/internal/domain/payment"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
	"github.com/orderhub-payment-ledger/internal/platform/persistence"
)

const transactionColumns = `id, order_id, gross_amount, currency, status, payment_method,
		gateway_transaction_id, fee_amount, fee_currency, net_amount,
		total_refunded, refund_count, is_fully_refunded, last_refund_at,
		gateway_payload, created_at, updated_at`

// TransactionRepository implements the payment.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository.
// It expects db.Pool() to satisfy persistence.Querier.
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction, allowing for atomic operations
// across multiple repository calls
func (r *TransactionRepository) WithTx(tx pgx.Tx) payment.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Upsert inserts a transaction or updates the existing row keyed by
// (gateway_transaction_id, payment_method). The unique index serializes
// concurrent replays of the same webhook, so exactly one row ever exists for
// a gateway attempt; the second caller observes the first caller's write.
func (r *TransactionRepository) Upsert(ctx context.Context, txn *payment.Transaction) (*payment.Transaction, error) {
	query := `
		INSERT INTO transactions (id, order_id, gross_amount, currency, status, payment_method,
			gateway_transaction_id, fee_amount, fee_currency, net_amount, gateway_payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (gateway_transaction_id, payment_method) DO UPDATE
		SET status = EXCLUDED.status,
			fee_amount = EXCLUDED.fee_amount,
			fee_currency = EXCLUDED.fee_currency,
			net_amount = EXCLUDED.net_amount,
			gateway_payload = EXCLUDED.gateway_payload,
			updated_at = NOW()
		RETURNING ` + transactionColumns

	row := r.querier.QueryRow(ctx, query,
		txn.ID,
		txn.OrderID,
		txn.GrossAmount,
		txn.Currency,
		txn.Status,
		txn.PaymentMethod,
		txn.GatewayTransactionID,
		txn.FeeAmount,
		txn.FeeCurrency,
		txn.NetAmount,
		txn.GatewayPayload,
		txn.CreatedAt,
		txn.UpdatedAt,
	)

	resolved, err := scanTransaction(row)
	if err != nil {
		r.logger.Error("Failed to upsert transaction",
			"gateway_transaction_id", txn.GatewayTransactionID,
			"payment_method", string(txn.PaymentMethod),
			"error", err)
		return nil, fmt.Errorf("failed to upsert transaction: %w", err)
	}

	return resolved, nil
}

// GetByID retrieves a transaction by its internal ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	txn, err := scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrTransactionNotFound{GatewayTransactionID: id.String()}
		}
		r.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return txn, nil
}

// GetByGatewayID retrieves a transaction by its idempotency key
func (r *TransactionRepository) GetByGatewayID(ctx context.Context, gatewayTxID string, method shared.Gateway) (*payment.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions
		WHERE gateway_transaction_id = $1 AND payment_method = $2`

	txn, err := scanTransaction(r.querier.QueryRow(ctx, query, gatewayTxID, method))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrTransactionNotFound{GatewayTransactionID: gatewayTxID, PaymentMethod: method}
		}
		r.logger.Error("Failed to get transaction by gateway id",
			"gateway_transaction_id", gatewayTxID,
			"payment_method", string(method),
			"error", err)
		return nil, fmt.Errorf("failed to get transaction by gateway id: %w", err)
	}

	return txn, nil
}

// LockForUpdate obtains a pessimistic lock on the transaction and returns its
// current state. This should be used within a transaction when refund
// aggregates are about to change.
func (r *TransactionRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	txn, err := scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrTransactionNotFound{GatewayTransactionID: id.String()}
		}
		r.logger.Error("Failed to lock transaction for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock transaction for update: %w", err)
	}

	return txn, nil
}

// UpdateRefundAggregates overwrites the refund aggregate fields with freshly
// recomputed values
func (r *TransactionRepository) UpdateRefundAggregates(ctx context.Context, id uuid.UUID, totalRefunded decimal.Decimal, refundCount int, fullyRefunded bool, lastRefundAt *time.Time) error {
	query := `
		UPDATE transactions
		SET total_refunded = $1, refund_count = $2, is_fully_refunded = $3, last_refund_at = $4, updated_at = NOW()
		WHERE id = $5
	`

	result, err := r.querier.Exec(ctx, query, totalRefunded, refundCount, fullyRefunded, lastRefundAt, id)
	if err != nil {
		r.logger.Error("Failed to update refund aggregates", "id", id.String(), "error", err)
		return fmt.Errorf("failed to update refund aggregates: %w", err)
	}

	if result.RowsAffected() == 0 {
		return payment.ErrTransactionNotFound{GatewayTransactionID: id.String()}
	}

	return nil
}

func scanTransaction(row pgx.Row) (*payment.Transaction, error) {
	var txn payment.Transaction
	err := row.Scan(
		&txn.ID,
		&txn.OrderID,
		&txn.GrossAmount,
		&txn.Currency,
		&txn.Status,
		&txn.PaymentMethod,
		&txn.GatewayTransactionID,
		&txn.FeeAmount,
		&txn.FeeCurrency,
		&txn.NetAmount,
		&txn.TotalRefunded,
		&txn.RefundCount,
		&txn.IsFullyRefunded,
		&txn.LastRefundAt,
		&txn.GatewayPayload,
		&txn.CreatedAt,
		&txn.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
