package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/orderhub-payment-ledger/internal/domain/ledger"
	"github.com/orderhub-payment-ledger/internal/platform/persistence"
)

const ledgerColumns = `id, seq, order_id, transaction_id, kind, amount, currency,
		base_amount, exchange_rate, rate_fallback, balance_before, balance_after,
		reference, status, notes, created_by, gateway_payload, created_at`

// LedgerRepository implements the ledger.Repository interface for PostgreSQL.
// The ledger is append-only: there is no update or delete here on purpose.
type LedgerRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewLedgerRepository creates a new PostgreSQL ledger repository
func NewLedgerRepository(logger *slog.Logger, db *persistence.PostgresDB) ledger.Repository {
	return &LedgerRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *LedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	return &LedgerRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Append persists a new entry, chaining the running balance. The owning
// order row is locked first so concurrent appends for the same order
// serialize and balance_before always equals the previous balance_after.
// Appends for different orders proceed in parallel.
func (r *LedgerRepository) Append(ctx context.Context, entry *ledger.Entry) (*ledger.Entry, error) {
	lockQuery := `SELECT id FROM orders WHERE id = $1 FOR UPDATE`

	var lockedID uuid.UUID
	if err := r.querier.QueryRow(ctx, lockQuery, entry.OrderID).Scan(&lockedID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ledger.ErrOrderNotFound{OrderID: entry.OrderID}
		}
		r.logger.Error("Failed to lock order for ledger append", "order_id", entry.OrderID.String(), "error", err)
		return nil, fmt.Errorf("failed to lock order for ledger append: %w", err)
	}

	balance, err := r.GetBalance(ctx, entry.OrderID)
	if err != nil {
		return nil, err
	}

	entry.BalanceBefore = balance
	entry.BalanceAfter = balance.Add(entry.BaseAmount)

	insertQuery := `
		INSERT INTO ledger_entries (id, order_id, transaction_id, kind, amount, currency,
			base_amount, exchange_rate, rate_fallback, balance_before, balance_after,
			reference, status, notes, created_by, gateway_payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
		RETURNING seq
	`

	err = r.querier.QueryRow(ctx, insertQuery,
		entry.ID,
		entry.OrderID,
		entry.TransactionID,
		entry.Kind,
		entry.Amount,
		entry.Currency,
		entry.BaseAmount,
		entry.ExchangeRate,
		entry.RateFallback,
		entry.BalanceBefore,
		entry.BalanceAfter,
		entry.Reference,
		entry.Status,
		entry.Notes,
		entry.CreatedBy,
		entry.GatewayPayload,
		entry.CreatedAt,
	).Scan(&entry.Seq)
	if err != nil {
		r.logger.Error("Failed to append ledger entry",
			"order_id", entry.OrderID.String(),
			"kind", string(entry.Kind),
			"error", err)
		return nil, fmt.Errorf("failed to append ledger entry: %w", err)
	}

	return entry, nil
}

// GetBalance returns the order's current running balance in the base
// currency: balance_after of the most recent entry, or zero if none exist
func (r *LedgerRepository) GetBalance(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT balance_after FROM ledger_entries
		WHERE order_id = $1
		ORDER BY seq DESC
		LIMIT 1
	`

	var balance decimal.Decimal
	err := r.querier.QueryRow(ctx, query, orderID).Scan(&balance)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return decimal.Zero, nil
		}
		r.logger.Error("Failed to get order balance", "order_id", orderID.String(), "error", err)
		return decimal.Zero, fmt.Errorf("failed to get order balance: %w", err)
	}

	return balance, nil
}

// GetByID retrieves a single ledger entry
func (r *LedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE id = $1`

	entry, err := scanLedgerEntry(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get ledger entry", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entry: %w", err)
	}

	return entry, nil
}

// GetByOrderID retrieves paginated ledger entries for an order in causal
// (append) order
func (r *LedgerRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries
		WHERE order_id = $1
		ORDER BY seq ASC
		LIMIT $2 OFFSET $3`

	rows, err := r.querier.Query(ctx, query, orderID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get ledger entries", "order_id", orderID.String(), "error", err)
		return nil, fmt.Errorf("failed to get ledger entries: %w", err)
	}
	defer rows.Close()

	var entries []*ledger.Entry
	for rows.Next() {
		entry, err := scanLedgerEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan ledger entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read ledger entries: %w", err)
	}

	return entries, nil
}

// CountByOrderID counts ledger entries for an order
func (r *LedgerRepository) CountByOrderID(ctx context.Context, orderID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM ledger_entries WHERE order_id = $1`

	var count int64
	if err := r.querier.QueryRow(ctx, query, orderID).Scan(&count); err != nil {
		r.logger.Error("Failed to count ledger entries", "order_id", orderID.String(), "error", err)
		return 0, fmt.Errorf("failed to count ledger entries: %w", err)
	}

	return count, nil
}

// SumCompletedPaid sums the signed base amounts of completed entries that
// count toward the derived payment status (payments and credits minus
// refunds; fees and adjustments excluded)
func (r *LedgerRepository) SumCompletedPaid(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(base_amount), 0) FROM ledger_entries
		WHERE order_id = $1
		  AND status = 'completed'
		  AND kind IN ('customer_payment', 'credit_applied', 'refund', 'partial_refund')
	`

	var sum decimal.Decimal
	if err := r.querier.QueryRow(ctx, query, orderID).Scan(&sum); err != nil {
		r.logger.Error("Failed to sum completed ledger entries", "order_id", orderID.String(), "error", err)
		return decimal.Zero, fmt.Errorf("failed to sum completed ledger entries: %w", err)
	}

	return sum, nil
}

// HasEntry reports whether an entry of the given kind already exists for the
// (transaction, order) pair. A redelivered webhook resolves to the same
// transaction, so this is what keeps replays from double-posting.
func (r *LedgerRepository) HasEntry(ctx context.Context, transactionID, orderID uuid.UUID, kind ledger.Kind) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM ledger_entries
			WHERE transaction_id = $1 AND order_id = $2 AND kind = $3
		)
	`

	var exists bool
	if err := r.querier.QueryRow(ctx, query, transactionID, orderID, kind).Scan(&exists); err != nil {
		r.logger.Error("Failed to check for existing ledger entry",
			"transaction_id", transactionID.String(),
			"order_id", orderID.String(),
			"kind", string(kind),
			"error", err)
		return false, fmt.Errorf("failed to check for existing ledger entry: %w", err)
	}

	return exists, nil
}

func scanLedgerEntry(row pgx.Row) (*ledger.Entry, error) {
	var entry ledger.Entry
	err := row.Scan(
		&entry.ID,
		&entry.Seq,
		&entry.OrderID,
		&entry.TransactionID,
		&entry.Kind,
		&entry.Amount,
		&entry.Currency,
		&entry.BaseAmount,
		&entry.ExchangeRate,
		&entry.RateFallback,
		&entry.BalanceBefore,
		&entry.BalanceAfter,
		&entry.Reference,
		&entry.Status,
		&entry.Notes,
		&entry.CreatedBy,
		&entry.GatewayPayload,
		&entry.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
