package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/orderhub-payment-ledger/internal/domain/refund"
	"github.com/orderhub-payment-ledger/internal/platform/persistence"
)

const refundColumns = `id, transaction_id, order_id, gateway_refund_id, amount, currency,
		type, reason_code, status, gateway_payload, created_at, updated_at`

// RefundRepository implements the refund.Repository interface for PostgreSQL
type RefundRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewRefundRepository creates a new PostgreSQL refund repository
func NewRefundRepository(logger *slog.Logger, db *persistence.PostgresDB) refund.Repository {
	return &RefundRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *RefundRepository) WithTx(tx pgx.Tx) refund.Repository {
	return &RefundRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new refund. The gateway refund id carries a unique
// constraint, so duplicate-key races surface as a database error for the
// caller to resolve against the existing row.
func (r *RefundRepository) Create(ctx context.Context, ref *refund.Refund) error {
	query := `
		INSERT INTO refunds (id, transaction_id, order_id, gateway_refund_id, amount, currency,
			type, reason_code, status, gateway_payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.querier.Exec(ctx, query,
		ref.ID,
		ref.TransactionID,
		ref.OrderID,
		ref.GatewayRefundID,
		ref.Amount,
		ref.Currency,
		ref.Type,
		ref.ReasonCode,
		ref.Status,
		ref.GatewayPayload,
		ref.CreatedAt,
		ref.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create refund",
			"gateway_refund_id", ref.GatewayRefundID,
			"transaction_id", ref.TransactionID.String(),
			"error", err)
		return fmt.Errorf("failed to create refund: %w", err)
	}

	return nil
}

// GetByID retrieves a refund by its internal ID
func (r *RefundRepository) GetByID(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE id = $1`

	ref, err := scanRefund(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, refund.ErrRefundNotFound{GatewayRefundID: id.String()}
		}
		r.logger.Error("Failed to get refund", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get refund: %w", err)
	}

	return ref, nil
}

// GetByGatewayRefundID retrieves a refund by the gateway-assigned id.
// Returns nil, nil when no refund exists, which is the common first-delivery
// path.
func (r *RefundRepository) GetByGatewayRefundID(ctx context.Context, gatewayRefundID string) (*refund.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds WHERE gateway_refund_id = $1`

	ref, err := scanRefund(r.querier.QueryRow(ctx, query, gatewayRefundID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		r.logger.Error("Failed to get refund by gateway id", "gateway_refund_id", gatewayRefundID, "error", err)
		return nil, fmt.Errorf("failed to get refund by gateway id: %w", err)
	}

	return ref, nil
}

// ListByTransactionID retrieves all refunds recorded against a transaction
func (r *RefundRepository) ListByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*refund.Refund, error) {
	query := `SELECT ` + refundColumns + ` FROM refunds
		WHERE transaction_id = $1
		ORDER BY created_at ASC`

	rows, err := r.querier.Query(ctx, query, transactionID)
	if err != nil {
		r.logger.Error("Failed to list refunds", "transaction_id", transactionID.String(), "error", err)
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	defer rows.Close()

	var refunds []*refund.Refund
	for rows.Next() {
		ref, err := scanRefund(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		refunds = append(refunds, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read refunds: %w", err)
	}

	return refunds, nil
}

// UpdateStatus transitions a refund to a new processing status
func (r *RefundRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status refund.Status) error {
	query := `UPDATE refunds SET status = $1, updated_at = NOW() WHERE id = $2`

	result, err := r.querier.Exec(ctx, query, status, id)
	if err != nil {
		r.logger.Error("Failed to update refund status", "id", id.String(), "error", err)
		return fmt.Errorf("failed to update refund status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return refund.ErrRefundNotFound{GatewayRefundID: id.String()}
	}

	return nil
}

// AggregatesForTransaction re-runs the completed-refund aggregate query.
// The aggregates are always recomputed whole rather than incremented so a
// replayed refund webhook cannot skew them.
func (r *RefundRepository) AggregatesForTransaction(ctx context.Context, transactionID uuid.UUID) (*refund.Aggregates, error) {
	query := `
		SELECT COALESCE(SUM(amount), 0), COUNT(*), MAX(created_at)
		FROM refunds
		WHERE transaction_id = $1 AND status = 'completed'
	`

	var agg refund.Aggregates
	err := r.querier.QueryRow(ctx, query, transactionID).Scan(&agg.TotalRefunded, &agg.RefundCount, &agg.LastRefundAt)
	if err != nil {
		r.logger.Error("Failed to aggregate refunds", "transaction_id", transactionID.String(), "error", err)
		return nil, fmt.Errorf("failed to aggregate refunds: %w", err)
	}

	return &agg, nil
}

func scanRefund(row pgx.Row) (*refund.Refund, error) {
	var ref refund.Refund
	err := row.Scan(
		&ref.ID,
		&ref.TransactionID,
		&ref.OrderID,
		&ref.GatewayRefundID,
		&ref.Amount,
		&ref.Currency,
		&ref.Type,
		&ref.ReasonCode,
		&ref.Status,
		&ref.GatewayPayload,
		&ref.CreatedAt,
		&ref.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}
