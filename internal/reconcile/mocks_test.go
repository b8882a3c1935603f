package reconcile

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	"github.com/orderhub-payment-ledger/internal/domain/exchange"
	"github.com/orderhub-payment-ledger/internal/domain/ledger"
	"github.com/orderhub-payment-ledger/internal/domain/order"
	"github.com/orderhub-payment-ledger/internal/domain/payment"
	"github.com/orderhub-payment-ledger/internal/domain/refund"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

// fakeTransactor runs the function directly, without a database
type fakeTransactor struct{}

func (fakeTransactor) ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	return fn(nil)
}

type MockTransactionRepo struct {
	mock.Mock
}

func (m *MockTransactionRepo) Upsert(ctx context.Context, txn *payment.Transaction) (*payment.Transaction, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) GetByID(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) GetByGatewayID(ctx context.Context, gatewayTxID string, method shared.Gateway) (*payment.Transaction, error) {
	args := m.Called(ctx, gatewayTxID, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockTransactionRepo) UpdateRefundAggregates(ctx context.Context, id uuid.UUID, totalRefunded decimal.Decimal, refundCount int, fullyRefunded bool, lastRefundAt *time.Time) error {
	args := m.Called(ctx, id, totalRefunded, refundCount, fullyRefunded, lastRefundAt)
	return args.Error(0)
}

func (m *MockTransactionRepo) WithTx(tx pgx.Tx) payment.Repository {
	args := m.Called(tx)
	return args.Get(0).(payment.Repository)
}

type MockLedgerRepo struct {
	mock.Mock
}

func (m *MockLedgerRepo) Append(ctx context.Context, entry *ledger.Entry) (*ledger.Entry, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepo) GetBalance(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepo) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepo) GetByOrderID(ctx context.Context, orderID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, orderID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepo) CountByOrderID(ctx context.Context, orderID uuid.UUID) (int64, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepo) SumCompletedPaid(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepo) HasEntry(ctx context.Context, transactionID, orderID uuid.UUID, kind ledger.Kind) (bool, error) {
	args := m.Called(ctx, transactionID, orderID, kind)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepo) WithTx(tx pgx.Tx) ledger.Repository {
	args := m.Called(tx)
	return args.Get(0).(ledger.Repository)
}

type MockRefundRepo struct {
	mock.Mock
}

func (m *MockRefundRepo) Create(ctx context.Context, r *refund.Refund) error {
	args := m.Called(ctx, r)
	return args.Error(0)
}

func (m *MockRefundRepo) GetByID(ctx context.Context, id uuid.UUID) (*refund.Refund, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*refund.Refund), args.Error(1)
}

func (m *MockRefundRepo) GetByGatewayRefundID(ctx context.Context, gatewayRefundID string) (*refund.Refund, error) {
	args := m.Called(ctx, gatewayRefundID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*refund.Refund), args.Error(1)
}

func (m *MockRefundRepo) ListByTransactionID(ctx context.Context, transactionID uuid.UUID) ([]*refund.Refund, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*refund.Refund), args.Error(1)
}

func (m *MockRefundRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status refund.Status) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockRefundRepo) AggregatesForTransaction(ctx context.Context, transactionID uuid.UUID) (*refund.Aggregates, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*refund.Aggregates), args.Error(1)
}

func (m *MockRefundRepo) WithTx(tx pgx.Tx) refund.Repository {
	args := m.Called(tx)
	return args.Get(0).(refund.Repository)
}

type MockOrderRepo struct {
	mock.Mock
}

func (m *MockOrderRepo) Create(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepo) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepo) UpdatePaymentProjection(ctx context.Context, id uuid.UUID, status order.PaymentStatus, amountPaid, overpayment decimal.Decimal) error {
	args := m.Called(ctx, id, status, amountPaid, overpayment)
	return args.Error(0)
}

func (m *MockOrderRepo) UpdateContact(ctx context.Context, id uuid.UUID, email, name, phone string) error {
	args := m.Called(ctx, id, email, name, phone)
	return args.Error(0)
}

func (m *MockOrderRepo) WithTx(tx pgx.Tx) order.Repository {
	args := m.Called(tx)
	return args.Get(0).(order.Repository)
}

type MockSessionRepo struct {
	mock.Mock
}

func (m *MockSessionRepo) GetByToken(ctx context.Context, token string) (*order.GuestSession, error) {
	args := m.Called(ctx, token)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.GuestSession), args.Error(1)
}

func (m *MockSessionRepo) UpdateStatus(ctx context.Context, token string, status order.SessionStatus, orderID *uuid.UUID) error {
	args := m.Called(ctx, token, status, orderID)
	return args.Error(0)
}

func (m *MockSessionRepo) WithTx(tx pgx.Tx) order.SessionRepository {
	args := m.Called(tx)
	return args.Get(0).(order.SessionRepository)
}

type MockRateRepo struct {
	mock.Mock
}

func (m *MockRateRepo) Latest(ctx context.Context, currency string, asOf time.Time) (*exchange.Rate, error) {
	args := m.Called(ctx, currency, asOf)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*exchange.Rate), args.Error(1)
}

func (m *MockRateRepo) WithTx(tx pgx.Tx) exchange.Repository {
	args := m.Called(tx)
	return args.Get(0).(exchange.Repository)
}
