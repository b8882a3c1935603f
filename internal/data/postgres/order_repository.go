package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/orderhub-payment-ledger/internal/domain/order"
	"github.com/orderhub-payment-ledger/internal/platform/persistence"
)

const orderColumns = `id, currency, total_due, payment_status, amount_paid, overpayment_amount,
		customer_email, customer_name, customer_phone, created_at, updated_at`

// OrderRepository implements the order.Repository interface for PostgreSQL
type OrderRepository struct {
	querier persistence.Querier // Can be *pgxpool.Pool or pgx.Tx
	logger  *slog.Logger
}

// NewOrderRepository creates a new PostgreSQL order repository
func NewOrderRepository(logger *slog.Logger, db *persistence.PostgresDB) order.Repository {
	return &OrderRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *OrderRepository) WithTx(tx pgx.Tx) order.Repository {
	return &OrderRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new order
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	query := `
		INSERT INTO orders (id, currency, total_due, payment_status, amount_paid, overpayment_amount,
			customer_email, customer_name, customer_phone, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		o.ID,
		o.Currency,
		o.TotalDue,
		o.PaymentStatus,
		o.AmountPaid,
		o.OverpaymentAmount,
		o.CustomerEmail,
		o.CustomerName,
		o.CustomerPhone,
		o.CreatedAt,
		o.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create order", "id", o.ID.String(), "error", err)
		return fmt.Errorf("failed to create order: %w", err)
	}

	return nil
}

// GetByID retrieves an order by its ID
func (r *OrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	o, err := scanOrder(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrOrderNotFound{OrderID: id}
		}
		r.logger.Error("Failed to get order", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get order: %w", err)
	}

	return o, nil
}

// UpdatePaymentProjection writes the ledger-derived payment fields onto the
// order row. The projection is always recomputed from the ledger, never
// patched in place.
func (r *OrderRepository) UpdatePaymentProjection(ctx context.Context, id uuid.UUID, status order.PaymentStatus, amountPaid, overpayment decimal.Decimal) error {
	query := `
		UPDATE orders
		SET payment_status = $1, amount_paid = $2, overpayment_amount = $3, updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query, status, amountPaid, overpayment, id)
	if err != nil {
		r.logger.Error("Failed to update order payment projection", "id", id.String(), "error", err)
		return fmt.Errorf("failed to update order payment projection: %w", err)
	}

	if result.RowsAffected() == 0 {
		return order.ErrOrderNotFound{OrderID: id}
	}

	return nil
}

// UpdateContact promotes contact details onto the order
func (r *OrderRepository) UpdateContact(ctx context.Context, id uuid.UUID, email, name, phone string) error {
	query := `
		UPDATE orders
		SET customer_email = $1, customer_name = $2, customer_phone = $3, updated_at = NOW()
		WHERE id = $4
	`

	result, err := r.querier.Exec(ctx, query, email, name, phone, id)
	if err != nil {
		r.logger.Error("Failed to update order contact", "id", id.String(), "error", err)
		return fmt.Errorf("failed to update order contact: %w", err)
	}

	if result.RowsAffected() == 0 {
		return order.ErrOrderNotFound{OrderID: id}
	}

	return nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var o order.Order
	err := row.Scan(
		&o.ID,
		&o.Currency,
		&o.TotalDue,
		&o.PaymentStatus,
		&o.AmountPaid,
		&o.OverpaymentAmount,
		&o.CustomerEmail,
		&o.CustomerName,
		&o.CustomerPhone,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// GuestSessionRepository implements the order.SessionRepository interface
type GuestSessionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewGuestSessionRepository creates a new PostgreSQL guest session repository
func NewGuestSessionRepository(logger *slog.Logger, db *persistence.PostgresDB) order.SessionRepository {
	return &GuestSessionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction
func (r *GuestSessionRepository) WithTx(tx pgx.Tx) order.SessionRepository {
	return &GuestSessionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// GetByToken retrieves a guest checkout session by its token
func (r *GuestSessionRepository) GetByToken(ctx context.Context, token string) (*order.GuestSession, error) {
	query := `
		SELECT token, status, order_id, customer_email, customer_name, customer_phone, created_at, updated_at
		FROM guest_sessions
		WHERE token = $1
	`

	var s order.GuestSession
	err := r.querier.QueryRow(ctx, query, token).Scan(
		&s.Token,
		&s.Status,
		&s.OrderID,
		&s.CustomerEmail,
		&s.CustomerName,
		&s.CustomerPhone,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrSessionNotFound{Token: token}
		}
		r.logger.Error("Failed to get guest session", "token", token, "error", err)
		return nil, fmt.Errorf("failed to get guest session: %w", err)
	}

	return &s, nil
}

// UpdateStatus transitions the session and optionally links a created order
func (r *GuestSessionRepository) UpdateStatus(ctx context.Context, token string, status order.SessionStatus, orderID *uuid.UUID) error {
	query := `
		UPDATE guest_sessions
		SET status = $1, order_id = COALESCE($2, order_id), updated_at = NOW()
		WHERE token = $3
	`

	result, err := r.querier.Exec(ctx, query, status, orderID, token)
	if err != nil {
		r.logger.Error("Failed to update guest session", "token", token, "error", err)
		return fmt.Errorf("failed to update guest session: %w", err)
	}

	if result.RowsAffected() == 0 {
		return order.ErrSessionNotFound{Token: token}
	}

	return nil
}
