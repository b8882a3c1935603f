package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/orderhub-payment-ledger/internal/domain/ledger"
	"github.com/orderhub-payment-ledger/internal/domain/order"
	"github.com/orderhub-payment-ledger/internal/domain/payment"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
	"github.com/orderhub-payment-ledger/internal/reconcile"
)

// LedgerServiceImpl implements the LedgerService interface
type LedgerServiceImpl struct {
	engine       Reconciler
	entries      ledger.Repository
	orders       order.Repository
	transactions payment.Repository
	logger       *slog.Logger
}

// NewLedgerService creates a new ledger query service
func NewLedgerService(logger *slog.Logger, engine Reconciler, entries ledger.Repository, orders order.Repository, transactions payment.Repository) LedgerService {
	return &LedgerServiceImpl{
		engine:       engine,
		entries:      entries,
		orders:       orders,
		transactions: transactions,
		logger:       logger,
	}
}

// AppendManualEntry appends a privileged entry through the engine so the
// balance chain and projection stay consistent with webhook-driven writes
func (s *LedgerServiceImpl) AppendManualEntry(ctx context.Context, actor shared.Actor, p reconcile.ManualEntryParams) (*ledger.Entry, error) {
	return s.engine.AppendManualEntry(ctx, actor, p)
}

// GetEntriesByOrderID retrieves paginated ledger entries for an order in
// append order. Returns entries, total count, and any error.
func (s *LedgerServiceImpl) GetEntriesByOrderID(ctx context.Context, orderID uuid.UUID, page, perPage int) ([]*ledger.Entry, int64, error) {
	offset := (page - 1) * perPage

	entries, err := s.entries.GetByOrderID(ctx, orderID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.entries.CountByOrderID(ctx, orderID)
	if err != nil {
		return nil, 0, err
	}

	return entries, total, nil
}

// GetBalance returns the order's running base-currency balance
func (s *LedgerServiceImpl) GetBalance(ctx context.Context, orderID uuid.UUID) (decimal.Decimal, error) {
	return s.entries.GetBalance(ctx, orderID)
}

// GetPaymentStatus returns the order with its ledger-derived payment fields
func (s *LedgerServiceImpl) GetPaymentStatus(ctx context.Context, orderID uuid.UUID) (*order.Order, error) {
	return s.orders.GetByID(ctx, orderID)
}

// GetTransactionByID retrieves a payment transaction. Returns nil if not found.
func (s *LedgerServiceImpl) GetTransactionByID(ctx context.Context, id uuid.UUID) (*payment.Transaction, error) {
	txn, err := s.transactions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, payment.ErrTransactionNotFound{}) {
			s.logger.Info("Transaction not found", "transaction_id", id.String())
			return nil, nil
		}
		s.logger.Error("Failed to get transaction by ID", "transaction_id", id.String(), "error", err)
		return nil, err
	}
	return txn, nil
}
