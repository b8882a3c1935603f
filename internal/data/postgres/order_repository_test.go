package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orderhub-payment-ledger/internal/domain/order"
)

func testOrder() *order.Order {
	now := time.Now()
	return &order.Order{
		ID:                uuid.New(),
		Currency:          "USD",
		TotalDue:          decimal.RequireFromString("100.00"),
		PaymentStatus:     order.PaymentStatusUnpaid,
		AmountPaid:        decimal.Zero,
		OverpaymentAmount: decimal.Zero,
		CustomerEmail:     "buyer@example.com",
		CustomerName:      "Test Buyer",
		CustomerPhone:     "+15550100",
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

func orderRow(o *order.Order) *pgxmock.Rows {
	return pgxmock.NewRows([]string{
		"id", "currency", "total_due", "payment_status", "amount_paid", "overpayment_amount",
		"customer_email", "customer_name", "customer_phone", "created_at", "updated_at",
	}).AddRow(o.ID, o.Currency, o.TotalDue, o.PaymentStatus, o.AmountPaid, o.OverpaymentAmount,
		o.CustomerEmail, o.CustomerName, o.CustomerPhone, o.CreatedAt, o.UpdatedAt)
}

func TestOrderRepository_Create(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OrderRepository{querier: mock, logger: logger}
	o := testOrder()

	query := `INSERT INTO orders \(id, currency, total_due, payment_status, amount_paid, overpayment_amount,
			customer_email, customer_name, customer_phone, created_at, updated_at\)`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(o.ID, o.Currency, o.TotalDue, o.PaymentStatus, o.AmountPaid, o.OverpaymentAmount,
				o.CustomerEmail, o.CustomerName, o.CustomerPhone, o.CreatedAt, o.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		err := repo.Create(ctx, o)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("db error", func(t *testing.T) {
		dbErr := errors.New("db error")
		mock.ExpectExec(query).
			WithArgs(o.ID, o.Currency, o.TotalDue, o.PaymentStatus, o.AmountPaid, o.OverpaymentAmount,
				o.CustomerEmail, o.CustomerName, o.CustomerPhone, o.CreatedAt, o.UpdatedAt).
			WillReturnError(dbErr)

		err := repo.Create(ctx, o)
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "failed to create order")
		assert.ErrorIs(t, err, dbErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_GetByID(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OrderRepository{querier: mock, logger: logger}
	o := testOrder()

	query := `SELECT (.+) FROM orders WHERE id = \$1`

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(o.ID).WillReturnRows(orderRow(o))

		got, err := repo.GetByID(ctx, o.ID)
		assert.NoError(t, err)
		assert.Equal(t, o.ID, got.ID)
		assert.True(t, got.TotalDue.Equal(o.TotalDue))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(o.ID).WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetByID(ctx, o.ID)
		assert.Error(t, err)
		assert.Nil(t, got)
		var notFoundErr order.ErrOrderNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, o.ID, notFoundErr.OrderID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_UpdatePaymentProjection(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OrderRepository{querier: mock, logger: logger}
	orderID := uuid.New()
	paid := decimal.RequireFromString("130.00")
	over := decimal.RequireFromString("30.00")

	query := `
		UPDATE orders
		SET payment_status = \$1, amount_paid = \$2, overpayment_amount = \$3, updated_at = NOW\(\)
		WHERE id = \$4
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(order.PaymentStatusOverpaid, paid, over, orderID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.UpdatePaymentProjection(ctx, orderID, order.PaymentStatusOverpaid, paid, over)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(order.PaymentStatusOverpaid, paid, over, orderID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdatePaymentProjection(ctx, orderID, order.PaymentStatusOverpaid, paid, over)
		assert.Error(t, err)
		var notFoundErr order.ErrOrderNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestOrderRepository_UpdateContact(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &OrderRepository{querier: mock, logger: logger}
	orderID := uuid.New()

	query := `
		UPDATE orders
		SET customer_email = \$1, customer_name = \$2, customer_phone = \$3, updated_at = NOW\(\)
		WHERE id = \$4
	`

	t.Run("success", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("guest@example.com", "Guest Buyer", "+15550199", orderID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.UpdateContact(ctx, orderID, "guest@example.com", "Guest Buyer", "+15550199")
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs("guest@example.com", "Guest Buyer", "+15550199", orderID).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateContact(ctx, orderID, "guest@example.com", "Guest Buyer", "+15550199")
		assert.Error(t, err)
		var notFoundErr order.ErrOrderNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGuestSessionRepository_GetByToken(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &GuestSessionRepository{querier: mock, logger: logger}
	now := time.Now()
	orderID := uuid.New()
	session := &order.GuestSession{
		Token:         "sess_abc123",
		Status:        order.SessionStatusPending,
		OrderID:       &orderID,
		CustomerEmail: "guest@example.com",
		CustomerName:  "Guest Buyer",
		CustomerPhone: "+15550199",
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	query := `
		SELECT token, status, order_id, customer_email, customer_name, customer_phone, created_at, updated_at
		FROM guest_sessions
		WHERE token = \$1
	`
	rows := pgxmock.NewRows([]string{"token", "status", "order_id", "customer_email", "customer_name", "customer_phone", "created_at", "updated_at"}).
		AddRow(session.Token, session.Status, session.OrderID, session.CustomerEmail, session.CustomerName, session.CustomerPhone, session.CreatedAt, session.UpdatedAt)

	t.Run("success", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(session.Token).WillReturnRows(rows)

		got, err := repo.GetByToken(ctx, session.Token)
		assert.NoError(t, err)
		assert.Equal(t, session, got)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectQuery(query).WithArgs(session.Token).WillReturnError(pgx.ErrNoRows)

		got, err := repo.GetByToken(ctx, session.Token)
		assert.Error(t, err)
		assert.Nil(t, got)
		var notFoundErr order.ErrSessionNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.Equal(t, session.Token, notFoundErr.Token)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestGuestSessionRepository_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	logger := newTestLogger()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := &GuestSessionRepository{querier: mock, logger: logger}
	token := "sess_abc123"
	orderID := uuid.New()

	query := `
		UPDATE guest_sessions
		SET status = \$1, order_id = COALESCE\(\$2, order_id\), updated_at = NOW\(\)
		WHERE token = \$3
	`

	t.Run("completes and links order", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(order.SessionStatusCompleted, &orderID, token).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.UpdateStatus(ctx, token, order.SessionStatusCompleted, &orderID)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("fails without linking order", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(order.SessionStatusFailed, (*uuid.UUID)(nil), token).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		err := repo.UpdateStatus(ctx, token, order.SessionStatusFailed, nil)
		assert.NoError(t, err)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found", func(t *testing.T) {
		mock.ExpectExec(query).
			WithArgs(order.SessionStatusCompleted, &orderID, token).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		err := repo.UpdateStatus(ctx, token, order.SessionStatusCompleted, &orderID)
		assert.Error(t, err)
		var notFoundErr order.ErrSessionNotFound
		assert.ErrorAs(t, err, &notFoundErr)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
