package service

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/orderhub-payment-ledger/internal/domain/ledger"
	"github.com/orderhub-payment-ledger/internal/domain/order"
	"github.com/orderhub-payment-ledger/internal/domain/payment"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
	"github.com/orderhub-payment-ledger/internal/reconcile"
)

type MockLedgerRepository struct {
	mock.Mock
}

func (m *MockLedgerRepository) Append(ctx context.Context, entry *ledger.Entry) (*ledger.Entry, error) {
	args := m.Called(ctx, entry)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) GetBalance(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepository) GetByID(ctx context.Context, id uuid.UUID) (*ledger.Entry, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) GetByOrderID(ctx context.Context, orderID uuid.UUID, limit, offset int) ([]*ledger.Entry, error) {
	args := m.Called(ctx, orderID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Entry), args.Error(1)
}

func (m *MockLedgerRepository) CountByOrderID(ctx context.Context, orderID uuid.UUID) (int64, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockLedgerRepository) SumCompletedPaid(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

func (m *MockLedgerRepository) HasEntry(ctx context.Context, transactionID, orderID uuid.UUID, kind ledger.Kind) (bool, error) {
	args := m.Called(ctx, transactionID, orderID, kind)
	return args.Bool(0), args.Error(1)
}

func (m *MockLedgerRepository) WithTx(tx pgx.Tx) ledger.Repository {
	args := m.Called(tx)
	return args.Get(0).(ledger.Repository)
}

type MockOrderRepository struct {
	mock.Mock
}

func (m *MockOrderRepository) Create(ctx context.Context, o *order.Order) error {
	args := m.Called(ctx, o)
	return args.Error(0)
}

func (m *MockOrderRepository) GetByID(ctx context.Context, id uuid.UUID) (*order.Order, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*order.Order), args.Error(1)
}

func (m *MockOrderRepository) UpdatePaymentProjection(ctx context.Context, id uuid.UUID, status order.PaymentStatus, amountPaid, overpayment decimal.Decimal) error {
	args := m.Called(ctx, id, status, amountPaid, overpayment)
	return args.Error(0)
}

func (m *MockOrderRepository) UpdateContact(ctx context.Context, id uuid.UUID, email, name, phone string) error {
	args := m.Called(ctx, id, email, name, phone)
	return args.Error(0)
}

func (m *MockOrderRepository) WithTx(tx pgx.Tx) order.Repository {
	args := m.Called(tx)
	return args.Get(0).(order.Repository)
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Upsert(ctx context.Context, txn *payment.Transaction) (*payment.Transaction, error) {
	args := m.Called(ctx, txn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByGatewayID(ctx context.Context, gatewayTxID string, method shared.Gateway) (*payment.Transaction, error) {
	args := m.Called(ctx, gatewayTxID, method)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) UpdateRefundAggregates(ctx context.Context, id uuid.UUID, totalRefunded decimal.Decimal, refundCount int, fullyRefunded bool, lastRefundAt *time.Time) error {
	args := m.Called(ctx, id, totalRefunded, refundCount, fullyRefunded, lastRefundAt)
	return args.Error(0)
}

func (m *MockTransactionRepository) WithTx(tx pgx.Tx) payment.Repository {
	args := m.Called(tx)
	return args.Get(0).(payment.Repository)
}

func TestLedgerServiceImpl_AppendManualEntry(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	t.Run("DelegatesToEngine", func(t *testing.T) {
		mockEngine := new(MockReconciler)
		service := NewLedgerService(logger, mockEngine, new(MockLedgerRepository), new(MockOrderRepository), new(MockTransactionRepository))
		actor := shared.Actor{ID: "admin-1", Name: "admin", Permissions: []string{shared.PermLedgerWrite}}
		params := reconcile.ManualEntryParams{
			OrderID:  uuid.New(),
			Kind:     ledger.KindCreditApplied,
			Amount:   decimal.RequireFromString("15.00"),
			Currency: "USD",
			Notes:    "store credit",
		}
		expectedEntry := &ledger.Entry{
			ID:      uuid.New(),
			OrderID: params.OrderID,
			Kind:    ledger.KindCreditApplied,
		}

		mockEngine.On("AppendManualEntry", ctx, actor, params).Return(expectedEntry, nil).Once()

		entry, err := service.AppendManualEntry(ctx, actor, params)

		assert.NoError(t, err)
		assert.Equal(t, expectedEntry, entry)
		mockEngine.AssertExpectations(t)
	})

	t.Run("UnauthorizedError", func(t *testing.T) {
		mockEngine := new(MockReconciler)
		service := NewLedgerService(logger, mockEngine, new(MockLedgerRepository), new(MockOrderRepository), new(MockTransactionRepository))
		actor := shared.Actor{ID: "intern"}
		params := reconcile.ManualEntryParams{
			OrderID:  uuid.New(),
			Kind:     ledger.KindAdjustment,
			Amount:   decimal.RequireFromString("-5.00"),
			Currency: "USD",
		}

		mockEngine.On("AppendManualEntry", ctx, actor, params).Return(nil, shared.ErrUnauthorized{Permission: shared.PermLedgerWrite}).Once()

		entry, err := service.AppendManualEntry(ctx, actor, params)

		assert.Nil(t, entry)
		assert.ErrorIs(t, err, shared.ErrUnauthorized{})
		mockEngine.AssertExpectations(t)
	})
}

func TestLedgerServiceImpl_GetEntriesByOrderID(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()

	orderID := uuid.New()
	page := 2
	perPage := 10
	offset := 10

	t.Run("Success", func(t *testing.T) {
		mockEntries := new(MockLedgerRepository)
		service := NewLedgerService(logger, new(MockReconciler), mockEntries, new(MockOrderRepository), new(MockTransactionRepository))
		expectedEntries := []*ledger.Entry{
			{ID: uuid.New(), OrderID: orderID, Seq: 11, Kind: ledger.KindCustomerPayment},
			{ID: uuid.New(), OrderID: orderID, Seq: 12, Kind: ledger.KindGatewayFee},
		}
		var expectedTotal int64 = 12

		mockEntries.On("GetByOrderID", ctx, orderID, perPage, offset).Return(expectedEntries, nil).Once()
		mockEntries.On("CountByOrderID", ctx, orderID).Return(expectedTotal, nil).Once()

		entries, total, err := service.GetEntriesByOrderID(ctx, orderID, page, perPage)

		assert.NoError(t, err)
		assert.Equal(t, expectedEntries, entries)
		assert.Equal(t, expectedTotal, total)
		mockEntries.AssertExpectations(t)
	})

	t.Run("GetByOrderIDError", func(t *testing.T) {
		mockEntries := new(MockLedgerRepository)
		service := NewLedgerService(logger, new(MockReconciler), mockEntries, new(MockOrderRepository), new(MockTransactionRepository))
		getError := errors.New("db get error")

		mockEntries.On("GetByOrderID", ctx, orderID, perPage, offset).Return(nil, getError).Once()

		entries, total, err := service.GetEntriesByOrderID(ctx, orderID, page, perPage)

		assert.Error(t, err)
		assert.Nil(t, entries)
		assert.Zero(t, total)
		assert.Equal(t, getError, err)
		mockEntries.AssertNotCalled(t, "CountByOrderID", ctx, orderID)
	})

	t.Run("CountError", func(t *testing.T) {
		mockEntries := new(MockLedgerRepository)
		service := NewLedgerService(logger, new(MockReconciler), mockEntries, new(MockOrderRepository), new(MockTransactionRepository))
		countError := errors.New("db count error")

		mockEntries.On("GetByOrderID", ctx, orderID, perPage, offset).Return([]*ledger.Entry{}, nil).Once()
		mockEntries.On("CountByOrderID", ctx, orderID).Return(int64(0), countError).Once()

		entries, total, err := service.GetEntriesByOrderID(ctx, orderID, page, perPage)

		assert.Error(t, err)
		assert.Nil(t, entries)
		assert.Zero(t, total)
		assert.Equal(t, countError, err)
		mockEntries.AssertExpectations(t)
	})
}

func TestLedgerServiceImpl_GetBalance(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()
	orderID := uuid.New()

	mockEntries := new(MockLedgerRepository)
	service := NewLedgerService(logger, new(MockReconciler), mockEntries, new(MockOrderRepository), new(MockTransactionRepository))
	expectedBalance := decimal.RequireFromString("71.80")

	mockEntries.On("GetBalance", ctx, orderID).Return(expectedBalance, nil).Once()

	balance, err := service.GetBalance(ctx, orderID)

	assert.NoError(t, err)
	assert.True(t, expectedBalance.Equal(balance))
	mockEntries.AssertExpectations(t)
}

func TestLedgerServiceImpl_GetPaymentStatus(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()
	orderID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockOrders := new(MockOrderRepository)
		service := NewLedgerService(logger, new(MockReconciler), new(MockLedgerRepository), mockOrders, new(MockTransactionRepository))
		expectedOrder := &order.Order{
			ID:            orderID,
			Currency:      "USD",
			TotalDue:      decimal.RequireFromString("100.00"),
			PaymentStatus: order.PaymentStatusPaid,
			AmountPaid:    decimal.RequireFromString("100.00"),
		}

		mockOrders.On("GetByID", ctx, orderID).Return(expectedOrder, nil).Once()

		o, err := service.GetPaymentStatus(ctx, orderID)

		assert.NoError(t, err)
		assert.Equal(t, expectedOrder, o)
		mockOrders.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockOrders := new(MockOrderRepository)
		service := NewLedgerService(logger, new(MockReconciler), new(MockLedgerRepository), mockOrders, new(MockTransactionRepository))

		mockOrders.On("GetByID", ctx, orderID).Return(nil, order.ErrOrderNotFound{OrderID: orderID}).Once()

		o, err := service.GetPaymentStatus(ctx, orderID)

		assert.Nil(t, o)
		assert.ErrorIs(t, err, order.ErrOrderNotFound{})
		mockOrders.AssertExpectations(t)
	})
}

func TestLedgerServiceImpl_GetTransactionByID(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	ctx := context.Background()
	transactionID := uuid.New()

	t.Run("Success", func(t *testing.T) {
		mockTransactions := new(MockTransactionRepository)
		service := NewLedgerService(logger, new(MockReconciler), new(MockLedgerRepository), new(MockOrderRepository), mockTransactions)
		orderID := uuid.New()
		expectedTxn := &payment.Transaction{
			ID:                   transactionID,
			OrderID:              &orderID,
			GatewayTransactionID: "ch_1a2b3c",
			PaymentMethod:        shared.GatewayStripe,
			GrossAmount:          decimal.RequireFromString("100.00"),
			Currency:             "USD",
		}

		mockTransactions.On("GetByID", ctx, transactionID).Return(expectedTxn, nil).Once()

		txn, err := service.GetTransactionByID(ctx, transactionID)

		assert.NoError(t, err)
		assert.Equal(t, expectedTxn, txn)
		mockTransactions.AssertExpectations(t)
	})

	t.Run("NotFoundReturnsNil", func(t *testing.T) {
		mockTransactions := new(MockTransactionRepository)
		service := NewLedgerService(logger, new(MockReconciler), new(MockLedgerRepository), new(MockOrderRepository), mockTransactions)

		mockTransactions.On("GetByID", ctx, transactionID).Return(nil, payment.ErrTransactionNotFound{}).Once()

		txn, err := service.GetTransactionByID(ctx, transactionID)

		assert.NoError(t, err)
		assert.Nil(t, txn)
		mockTransactions.AssertExpectations(t)
	})

	t.Run("DatabaseError", func(t *testing.T) {
		mockTransactions := new(MockTransactionRepository)
		service := NewLedgerService(logger, new(MockReconciler), new(MockLedgerRepository), new(MockOrderRepository), mockTransactions)
		dbError := errors.New("db error")

		mockTransactions.On("GetByID", ctx, transactionID).Return(nil, dbError).Once()

		txn, err := service.GetTransactionByID(ctx, transactionID)

		assert.Error(t, err)
		assert.Nil(t, txn)
		assert.Equal(t, dbError, err)
		mockTransactions.AssertExpectations(t)
	})
}

var _ ledger.Repository = (*MockLedgerRepository)(nil)
var _ order.Repository = (*MockOrderRepository)(nil)
var _ payment.Repository = (*MockTransactionRepository)(nil)
