package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/orderhub-payment-ledger/internal/domain/exchange"
	"github.com/orderhub-payment-ledger/internal/domain/ledger"
	"github.com/orderhub-payment-ledger/internal/domain/order"
	"github.com/orderhub-payment-ledger/internal/domain/payment"
	"github.com/orderhub-payment-ledger/internal/domain/refund"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
	"github.com/orderhub-payment-ledger/internal/platform/persistence"
)

// Transactor runs a function inside one database transaction. Satisfied by
// persistence.PostgresDB.
type Transactor interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

var _ Transactor = (*persistence.PostgresDB)(nil)

// Engine reconciles gateway webhook events into the payment ledger. One call
// to Reconcile is one atomic unit: transaction upsert, ledger entries, refund
// rows, status projection and guest session transition commit together or not
// at all.
type Engine struct {
	pg           Transactor
	transactions payment.Repository
	entries      ledger.Repository
	orders       order.Repository
	sessions     order.SessionRepository
	recorder     *RefundRecorder
	normalizer   *Normalizer
	projector    *Projector
	fees         *FeeExtractor
	logger       *slog.Logger
}

// NewEngine wires the reconciliation engine
func NewEngine(pg Transactor, transactions payment.Repository, entries ledger.Repository, orders order.Repository, sessions order.SessionRepository, recorder *RefundRecorder, normalizer *Normalizer, projector *Projector, fees *FeeExtractor, logger *slog.Logger) *Engine {
	return &Engine{
		pg:           pg,
		transactions: transactions,
		entries:      entries,
		orders:       orders,
		sessions:     sessions,
		recorder:     recorder,
		normalizer:   normalizer,
		projector:    projector,
		fees:         fees,
		logger:       logger,
	}
}

// Reconcile processes one webhook event. Domain failures (bad data, unknown
// transaction, refund over the ceiling, missing rate) come back as a
// structured result with Success=false so the gateway endpoint always has a
// deterministic answer; only storage-level failures return a non-nil error,
// which marks the event retryable.
func (e *Engine) Reconcile(ctx context.Context, event *shared.WebhookEvent) (*shared.ReconcileResult, error) {
	if err := event.Validate(); err != nil {
		return &shared.ReconcileResult{Success: false, ErrorMessage: err.Error()}, nil
	}

	actor := shared.GatewayActor(event.Payment.PaymentMethod)

	result := &shared.ReconcileResult{}
	err := e.pg.ExecuteTx(ctx, func(tx pgx.Tx) error {
		switch event.Type {
		case shared.EventTypeRefund:
			return e.reconcileRefund(ctx, tx, event, actor, result)
		default:
			return e.reconcilePayment(ctx, tx, event, actor, result)
		}
	})
	if err != nil {
		if isDomainError(err) {
			e.logger.Warn("Reconciliation rejected",
				"event_id", event.EventID,
				"gateway_transaction_id", event.Payment.GatewayTransactionID,
				"error", err)
			return &shared.ReconcileResult{Success: false, ErrorMessage: err.Error()}, nil
		}
		return nil, err
	}

	result.Success = true
	return result, nil
}

func (e *Engine) reconcilePayment(ctx context.Context, tx pgx.Tx, event *shared.WebhookEvent, actor shared.Actor, result *shared.ReconcileResult) error {
	fee, feeCurrency := e.fees.Extract(event.Payment.PaymentMethod, event.Payment.GatewayResponse)
	if feeCurrency == "" {
		feeCurrency = event.Payment.Currency
	}

	orderIDs := event.OrderIDs
	if event.CreateOrder && event.Outcome == shared.OutcomeSuccess {
		created, err := e.createOrder(ctx, tx, event)
		if err != nil {
			return err
		}
		orderIDs = append(orderIDs, created.ID)
		result.CreatedOrderID = &created.ID
	}
	if len(orderIDs) == 0 && !event.CreateOrder {
		return shared.ErrInvalidPaymentData{Field: "order_ids"}
	}

	// A failed or pending attempt that requested order creation has no order
	// yet; the gateway attempt is still registered, without an order ref.
	var orderRef *uuid.UUID
	if len(orderIDs) > 0 {
		orderRef = &orderIDs[0]
	}

	txn := payment.NewTransaction(
		orderRef,
		event.Payment.GatewayTransactionID,
		event.Payment.PaymentMethod,
		event.Payment.Amount,
		event.Payment.Currency,
		payment.StatusFromOutcome(event.Outcome),
		fee,
		feeCurrency,
		event.Payment.GatewayResponse,
	)
	txn, err := e.transactions.WithTx(tx).Upsert(ctx, txn)
	if err != nil {
		return err
	}
	result.TransactionID = &txn.ID

	if event.Outcome == shared.OutcomeSuccess {
		if err := e.postPaymentEntries(ctx, tx, event, txn, orderIDs, fee, feeCurrency, actor, result); err != nil {
			return err
		}
	}

	if event.GuestSessionToken != "" {
		var firstOrder uuid.UUID
		if len(orderIDs) > 0 {
			firstOrder = orderIDs[0]
		}
		if err := e.transitionSession(ctx, tx, event, firstOrder); err != nil {
			return err
		}
		result.GuestSessionUpdated = true
	}

	e.logger.Info("Payment event reconciled",
		"event_id", event.EventID,
		"transaction_id", txn.ID,
		"outcome", string(event.Outcome),
		"orders", len(orderIDs))
	return nil
}

// postPaymentEntries appends the gateway_fee entry (once, against the first
// order) and the customer_payment entries. A single payment covering several
// orders is allocated greedily by each order's amount due, with any remainder
// landing on the last order, so the sum of the entries always equals the
// captured amount. The per-order replay guard makes a redelivered webhook a
// no-op for orders already posted.
func (e *Engine) postPaymentEntries(ctx context.Context, tx pgx.Tx, event *shared.WebhookEvent, txn *payment.Transaction, orderIDs []uuid.UUID, fee decimal.Decimal, feeCurrency string, actor shared.Actor, result *shared.ReconcileResult) error {
	allocations, err := e.allocate(ctx, tx, event.Payment.Amount, orderIDs)
	if err != nil {
		return err
	}

	entryRepo := e.entries.WithTx(tx)

	// The fee is a transaction-level cost: it posts against the first order
	// whether or not that order receives any of the allocation.
	var feePosted bool
	if fee.IsPositive() {
		feeEntry, err := e.appendFeeEntry(ctx, tx, event, txn, orderIDs[0], fee, feeCurrency, actor)
		if err != nil {
			return err
		}
		if feeEntry != nil {
			result.FeeLedgerEntryID = &feeEntry.ID
			feePosted = true
		}
	}

	for i, orderID := range orderIDs {
		amount := allocations[i]
		if amount.IsZero() {
			continue
		}

		posted, err := entryRepo.HasEntry(ctx, txn.ID, orderID, ledger.KindCustomerPayment)
		if err != nil {
			return err
		}
		if posted {
			e.logger.Info("Payment entry already posted, skipping replay",
				"transaction_id", txn.ID,
				"order_id", orderID)
			continue
		}

		norm, err := e.normalizer.Normalize(ctx, tx, amount, event.Payment.Currency, event.ReceivedAt)
		if err != nil {
			return err
		}

		entry, err := entryRepo.Append(ctx, &ledger.Entry{
			ID:             uuid.New(),
			OrderID:        orderID,
			TransactionID:  &txn.ID,
			Kind:           ledger.KindCustomerPayment,
			Amount:         amount,
			Currency:       event.Payment.Currency,
			BaseAmount:     norm.BaseAmount,
			ExchangeRate:   norm.Rate,
			RateFallback:   norm.FallbackApplied,
			Reference:      event.Payment.GatewayTransactionID,
			Status:         ledger.StatusCompleted,
			CreatedBy:      actor.Identity(),
			GatewayPayload: event.Payment.GatewayResponse,
			CreatedAt:      time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to append payment ledger entry: %w", err)
		}
		if result.LedgerEntryID == nil {
			result.LedgerEntryID = &entry.ID
		}

		if _, err := e.projector.Project(ctx, tx, orderID); err != nil {
			return err
		}
		result.OrderUpdated = true
	}

	// The loop projects only orders that received an allocation; a fee on a
	// zero-allocation first order still moved its balance.
	if feePosted && allocations[0].IsZero() {
		if _, err := e.projector.Project(ctx, tx, orderIDs[0]); err != nil {
			return err
		}
		result.OrderUpdated = true
	}

	return nil
}

func (e *Engine) appendFeeEntry(ctx context.Context, tx pgx.Tx, event *shared.WebhookEvent, txn *payment.Transaction, orderID uuid.UUID, fee decimal.Decimal, feeCurrency string, actor shared.Actor) (*ledger.Entry, error) {
	entryRepo := e.entries.WithTx(tx)

	posted, err := entryRepo.HasEntry(ctx, txn.ID, orderID, ledger.KindGatewayFee)
	if err != nil {
		return nil, err
	}
	if posted {
		return nil, nil
	}

	norm, err := e.normalizer.Normalize(ctx, tx, fee, feeCurrency, event.ReceivedAt)
	if err != nil {
		return nil, err
	}
	signedBase, err := ledger.SignedBase(ledger.KindGatewayFee, norm.BaseAmount)
	if err != nil {
		return nil, err
	}

	entry, err := entryRepo.Append(ctx, &ledger.Entry{
		ID:            uuid.New(),
		OrderID:       orderID,
		TransactionID: &txn.ID,
		Kind:          ledger.KindGatewayFee,
		Amount:        fee,
		Currency:      feeCurrency,
		BaseAmount:    signedBase,
		ExchangeRate:  norm.Rate,
		RateFallback:  norm.FallbackApplied,
		Reference:     event.Payment.GatewayTransactionID,
		Status:        ledger.StatusCompleted,
		CreatedBy:     actor.Identity(),
		CreatedAt:     time.Now(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to append fee ledger entry: %w", err)
	}
	return entry, nil
}

// allocate splits a captured amount across orders by their amount due. The
// split is deterministic for a given order list, which keeps replayed
// webhooks allocating identically.
func (e *Engine) allocate(ctx context.Context, tx pgx.Tx, amount decimal.Decimal, orderIDs []uuid.UUID) ([]decimal.Decimal, error) {
	allocations := make([]decimal.Decimal, len(orderIDs))
	if len(orderIDs) == 1 {
		allocations[0] = amount
		return allocations, nil
	}

	orderRepo := e.orders.WithTx(tx)
	remaining := amount
	for i, id := range orderIDs {
		o, err := orderRepo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if i == len(orderIDs)-1 {
			allocations[i] = remaining
			break
		}
		share := decimal.Min(remaining, o.TotalDue)
		allocations[i] = share
		remaining = remaining.Sub(share)
	}
	return allocations, nil
}

func (e *Engine) reconcileRefund(ctx context.Context, tx pgx.Tx, event *shared.WebhookEvent, actor shared.Actor, result *shared.ReconcileResult) error {
	// Refunds never create transactions: an unknown gateway transaction is a
	// domain failure, not an upsert.
	txn, err := e.transactions.WithTx(tx).GetByGatewayID(ctx, event.Payment.GatewayTransactionID, event.Payment.PaymentMethod)
	if err != nil {
		return err
	}
	result.TransactionID = &txn.ID

	rec, entry, err := e.recorder.Record(ctx, tx, txn.ID, event.Refund, event.Outcome, actor, event.Payment.GatewayResponse, event.ReceivedAt)
	if err != nil {
		return err
	}
	result.RefundID = &rec.ID
	if entry != nil {
		result.LedgerEntryID = &entry.ID
		result.OrderUpdated = true
	}

	e.logger.Info("Refund event reconciled",
		"event_id", event.EventID,
		"transaction_id", txn.ID,
		"refund_id", rec.ID,
		"outcome", string(event.Outcome))
	return nil
}

func (e *Engine) createOrder(ctx context.Context, tx pgx.Tx, event *shared.WebhookEvent) (*order.Order, error) {
	o := &order.Order{
		ID:            uuid.New(),
		Currency:      event.Payment.Currency,
		TotalDue:      event.Payment.Amount,
		PaymentStatus: order.PaymentStatusUnpaid,
		AmountPaid:    decimal.Zero,
		CustomerEmail: event.Payment.CustomerEmail,
		CustomerName:  event.Payment.CustomerName,
		CustomerPhone: event.Payment.CustomerPhone,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}
	if err := e.orders.WithTx(tx).Create(ctx, o); err != nil {
		return nil, fmt.Errorf("failed to create order for payment: %w", err)
	}
	e.logger.Info("Order created from payment event",
		"order_id", o.ID,
		"total_due", o.TotalDue.String(),
		"currency", o.Currency)
	return o, nil
}

// transitionSession moves the guest checkout session according to the
// outcome. Success promotes the session's contact details onto the order;
// failure only marks the session. A pending outcome leaves it untouched.
func (e *Engine) transitionSession(ctx context.Context, tx pgx.Tx, event *shared.WebhookEvent, orderID uuid.UUID) error {
	sessionRepo := e.sessions.WithTx(tx)

	session, err := sessionRepo.GetByToken(ctx, event.GuestSessionToken)
	if err != nil {
		return err
	}

	switch event.Outcome {
	case shared.OutcomeSuccess:
		if err := sessionRepo.UpdateStatus(ctx, session.Token, order.SessionStatusCompleted, &orderID); err != nil {
			return err
		}
		email, name, phone := session.CustomerEmail, session.CustomerName, session.CustomerPhone
		if event.Payment.CustomerEmail != "" {
			email = event.Payment.CustomerEmail
		}
		if event.Payment.CustomerName != "" {
			name = event.Payment.CustomerName
		}
		if event.Payment.CustomerPhone != "" {
			phone = event.Payment.CustomerPhone
		}
		if email != "" || name != "" || phone != "" {
			if err := e.orders.WithTx(tx).UpdateContact(ctx, orderID, email, name, phone); err != nil {
				return err
			}
		}
	case shared.OutcomeFailed:
		if err := sessionRepo.UpdateStatus(ctx, session.Token, order.SessionStatusFailed, nil); err != nil {
			return err
		}
	}

	return nil
}

// isDomainError reports whether the error is a business rejection rather
// than a storage failure. Domain errors produce a structured failure result;
// everything else is retryable.
func isDomainError(err error) bool {
	return errors.Is(err, shared.ErrInvalidPaymentData{}) ||
		errors.Is(err, shared.ErrUnauthorized{}) ||
		errors.Is(err, payment.ErrTransactionNotFound{}) ||
		errors.Is(err, refund.ErrRefundExceedsCaptured{}) ||
		errors.Is(err, refund.ErrRefundNotFound{}) ||
		errors.Is(err, exchange.ErrRateNotFound{}) ||
		errors.Is(err, ledger.ErrOrderNotFound{}) ||
		errors.Is(err, order.ErrOrderNotFound{}) ||
		errors.Is(err, order.ErrSessionNotFound{}) ||
		errors.Is(err, ledger.ErrInvalidKind) ||
		errors.Is(err, ledger.ErrInvalidAmount)
}
