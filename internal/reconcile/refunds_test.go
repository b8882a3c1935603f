package reconcile

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/orderhub-payment-ledger/internal/config"
	"github.com/orderhub-payment-ledger/internal/domain/ledger"
	"github.com/orderhub-payment-ledger/internal/domain/order"
	"github.com/orderhub-payment-ledger/internal/domain/payment"
	"github.com/orderhub-payment-ledger/internal/domain/refund"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

type refundFixture struct {
	transactions *MockTransactionRepo
	refunds      *MockRefundRepo
	entries      *MockLedgerRepo
	orders       *MockOrderRepo
	recorder     *RefundRecorder
	txn          *payment.Transaction
}

func newRefundFixture() *refundFixture {
	f := &refundFixture{
		transactions: &MockTransactionRepo{},
		refunds:      &MockRefundRepo{},
		entries:      &MockLedgerRepo{},
		orders:       &MockOrderRepo{},
	}

	logger := slog.Default()
	normalizer := NewNormalizer(&MockRateRepo{}, &config.LedgerConfig{BaseCurrency: "USD"}, logger)
	projector := NewProjector(f.entries, f.orders, logger)
	f.recorder = NewRefundRecorder(f.transactions, f.refunds, f.entries, normalizer, projector, logger)

	orderID := uuid.New()
	f.txn = &payment.Transaction{
		ID:                   uuid.New(),
		OrderID:              &orderID,
		GrossAmount:          decimal.RequireFromString("50.00"),
		Currency:             "USD",
		Status:               payment.StatusCompleted,
		PaymentMethod:        shared.GatewayStripe,
		GatewayTransactionID: "ch_1",
	}

	f.transactions.On("WithTx", mock.Anything).Return(f.transactions)
	f.refunds.On("WithTx", mock.Anything).Return(f.refunds)
	f.transactions.On("LockForUpdate", mock.Anything, f.txn.ID).Return(f.txn, nil)

	return f
}

func (f *refundFixture) record(t *testing.T, amount string, refundType shared.RefundType) (*refund.Refund, *ledger.Entry, error) {
	t.Helper()
	return f.recorder.Record(context.Background(), nil, f.txn.ID, &shared.RefundData{
		GatewayRefundID: "re_" + amount,
		Amount:          decimal.RequireFromString(amount),
		Currency:        "USD",
		Type:            refundType,
	}, shared.OutcomeSuccess, shared.GatewayActor(shared.GatewayStripe), nil, time.Now())
}

func TestRefundRecorder_RejectsOverCeiling(t *testing.T) {
	f := newRefundFixture()

	f.refunds.On("GetByGatewayRefundID", mock.Anything, "re_60.00").Return(nil, nil)
	f.refunds.On("AggregatesForTransaction", mock.Anything, f.txn.ID).Return(&refund.Aggregates{
		TotalRefunded: decimal.Zero,
	}, nil)

	rec, entry, err := f.record(t, "60.00", shared.RefundTypePartial)

	assert.Nil(t, rec)
	assert.Nil(t, entry)
	assert.ErrorIs(t, err, refund.ErrRefundExceedsCaptured{TransactionID: f.txn.ID})
	f.refunds.AssertNotCalled(t, "Create")
	f.entries.AssertNotCalled(t, "Append")
}

func TestRefundRecorder_ReplayReturnsExisting(t *testing.T) {
	f := newRefundFixture()

	existing := &refund.Refund{
		ID:              uuid.New(),
		TransactionID:   f.txn.ID,
		OrderID:         *f.txn.OrderID,
		GatewayRefundID: "re_25.00",
		Amount:          decimal.RequireFromString("25.00"),
		Status:          refund.StatusCompleted,
	}
	f.refunds.On("GetByGatewayRefundID", mock.Anything, "re_25.00").Return(existing, nil)

	rec, entry, err := f.record(t, "25.00", shared.RefundTypePartial)

	assert.NoError(t, err)
	assert.Equal(t, existing.ID, rec.ID)
	assert.Nil(t, entry, "a replayed refund must not append a second ledger entry")
	f.refunds.AssertNotCalled(t, "Create")
	f.entries.AssertNotCalled(t, "Append")
	f.transactions.AssertNotCalled(t, "UpdateRefundAggregates")
}

func TestRefundRecorder_SecondRefundFullyRefunds(t *testing.T) {
	f := newRefundFixture()

	now := time.Now()
	f.refunds.On("GetByGatewayRefundID", mock.Anything, "re_25.00").Return(nil, nil)
	// Ceiling check sees the first completed refund; the post-write aggregate
	// sees both.
	f.refunds.On("AggregatesForTransaction", mock.Anything, f.txn.ID).Return(&refund.Aggregates{
		TotalRefunded: decimal.RequireFromString("25.00"),
		RefundCount:   1,
		LastRefundAt:  &now,
	}, nil).Once()
	f.refunds.On("Create", mock.Anything, mock.MatchedBy(func(r *refund.Refund) bool {
		return r.Status == refund.StatusCompleted && r.Amount.Equal(decimal.RequireFromString("25.00"))
	})).Return(nil)
	f.refunds.On("AggregatesForTransaction", mock.Anything, f.txn.ID).Return(&refund.Aggregates{
		TotalRefunded: decimal.RequireFromString("50.00"),
		RefundCount:   2,
		LastRefundAt:  &now,
	}, nil).Once()

	f.transactions.On("UpdateRefundAggregates", mock.Anything, f.txn.ID,
		mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(decimal.RequireFromString("50.00")) }),
		2, true, &now).Return(nil)

	f.entries.On("WithTx", mock.Anything).Return(f.entries)
	f.entries.On("Append", mock.Anything, mock.MatchedBy(func(e *ledger.Entry) bool {
		return e.Kind == ledger.KindPartialRefund &&
			e.BaseAmount.Equal(decimal.RequireFromString("-25.00")) &&
			e.OrderID == *f.txn.OrderID
	})).Return(&ledger.Entry{ID: uuid.New(), Kind: ledger.KindPartialRefund}, nil)

	f.orders.On("WithTx", mock.Anything).Return(f.orders)
	f.orders.On("GetByID", mock.Anything, *f.txn.OrderID).Return(&order.Order{
		ID:       *f.txn.OrderID,
		TotalDue: decimal.RequireFromString("50.00"),
	}, nil)
	f.entries.On("SumCompletedPaid", mock.Anything, *f.txn.OrderID).Return(decimal.Zero, nil)
	f.orders.On("UpdatePaymentProjection", mock.Anything, *f.txn.OrderID, order.PaymentStatusUnpaid, mock.Anything, mock.Anything).Return(nil)

	rec, entry, err := f.record(t, "25.00", shared.RefundTypePartial)

	assert.NoError(t, err)
	assert.NotNil(t, rec)
	assert.NotNil(t, entry)
	f.refunds.AssertExpectations(t)
	f.transactions.AssertExpectations(t)
	f.entries.AssertExpectations(t)
}

func TestRefundRecorder_RejectsCurrencyMismatch(t *testing.T) {
	f := newRefundFixture()

	rec, entry, err := f.recorder.Record(context.Background(), nil, f.txn.ID, &shared.RefundData{
		GatewayRefundID: "re_jpy_1",
		Amount:          decimal.RequireFromString("50"),
		Currency:        "JPY",
		Type:            shared.RefundTypeFull,
	}, shared.OutcomeSuccess, shared.GatewayActor(shared.GatewayStripe), nil, time.Now())

	assert.Nil(t, rec)
	assert.Nil(t, entry)
	assert.ErrorIs(t, err, shared.ErrInvalidPaymentData{})
	f.refunds.AssertNotCalled(t, "GetByGatewayRefundID")
	f.refunds.AssertNotCalled(t, "Create")
	f.entries.AssertNotCalled(t, "Append")
}

func TestRefundRecorder_FailedOutcomeRecordsRowOnly(t *testing.T) {
	f := newRefundFixture()

	f.refunds.On("GetByGatewayRefundID", mock.Anything, "re_10.00").Return(nil, nil)
	f.refunds.On("Create", mock.Anything, mock.MatchedBy(func(r *refund.Refund) bool {
		return r.Status == refund.StatusFailed
	})).Return(nil)

	rec, entry, err := f.recorder.Record(context.Background(), nil, f.txn.ID, &shared.RefundData{
		GatewayRefundID: "re_10.00",
		Amount:          decimal.RequireFromString("10.00"),
		Currency:        "USD",
		Type:            shared.RefundTypePartial,
	}, shared.OutcomeFailed, shared.GatewayActor(shared.GatewayStripe), nil, time.Now())

	assert.NoError(t, err)
	assert.Equal(t, refund.StatusFailed, rec.Status)
	assert.Nil(t, entry)
	f.entries.AssertNotCalled(t, "Append")
	f.transactions.AssertNotCalled(t, "UpdateRefundAggregates")
}
