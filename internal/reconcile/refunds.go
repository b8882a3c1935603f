package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/orderhub-payment-ledger/internal/domain/ledger"
	"github.com/orderhub-payment-ledger/internal/domain/payment"
	"github.com/orderhub-payment-ledger/internal/domain/refund"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

// RefundRecorder applies one gateway-reported refund against a transaction:
// idempotency on the gateway refund id, the over-refund ceiling, aggregate
// recomputation, the ledger entry and the payment status reprojection.
// All methods must run inside the caller's database transaction.
type RefundRecorder struct {
	transactions payment.Repository
	refunds      refund.Repository
	entries      ledger.Repository
	normalizer   *Normalizer
	projector    *Projector
	logger       *slog.Logger
}

// NewRefundRecorder creates a refund recorder
func NewRefundRecorder(transactions payment.Repository, refunds refund.Repository, entries ledger.Repository, normalizer *Normalizer, projector *Projector, logger *slog.Logger) *RefundRecorder {
	return &RefundRecorder{
		transactions: transactions,
		refunds:      refunds,
		entries:      entries,
		normalizer:   normalizer,
		projector:    projector,
		logger:       logger,
	}
}

// Record processes one refund event for the given transaction inside tx.
// A replayed gateway refund id returns the existing refund without touching
// the ledger. The returned entry is nil when no ledger entry was appended
// (replay, or a non-success outcome).
func (r *RefundRecorder) Record(ctx context.Context, tx pgx.Tx, transactionID uuid.UUID, data *shared.RefundData, outcome shared.Outcome, actor shared.Actor, payload json.RawMessage, receivedAt time.Time) (*refund.Refund, *ledger.Entry, error) {
	// Lock first so concurrent refunds for the same transaction serialize
	// before the ceiling check reads aggregates.
	txn, err := r.transactions.WithTx(tx).LockForUpdate(ctx, transactionID)
	if err != nil {
		return nil, nil, err
	}
	// The ceiling compares refund sums against the gross amount, which only
	// means anything when both sides are in the transaction's currency.
	if data.Currency != txn.Currency {
		return nil, nil, shared.ErrInvalidPaymentData{Field: "refund_currency"}
	}
	if txn.OrderID == nil {
		return nil, nil, shared.ErrInvalidPaymentData{Field: "order_ids"}
	}

	refundRepo := r.refunds.WithTx(tx)

	existing, err := refundRepo.GetByGatewayRefundID(ctx, data.GatewayRefundID)
	if err != nil {
		return nil, nil, err
	}
	if existing != nil && existing.Status == refund.StatusCompleted {
		r.logger.Info("Refund already recorded, skipping replay",
			"gateway_refund_id", data.GatewayRefundID,
			"refund_id", existing.ID)
		return existing, nil, nil
	}

	status := refundStatusFromOutcome(outcome)

	if status == refund.StatusCompleted {
		agg, err := refundRepo.AggregatesForTransaction(ctx, txn.ID)
		if err != nil {
			return nil, nil, err
		}
		if agg.TotalRefunded.Add(data.Amount).GreaterThan(txn.GrossAmount) {
			return nil, nil, refund.ErrRefundExceedsCaptured{
				TransactionID: txn.ID,
				Requested:     data.Amount,
				Available:     txn.GrossAmount.Sub(agg.TotalRefunded),
			}
		}
	}

	rec := existing
	if rec == nil {
		rec = &refund.Refund{
			ID:              uuid.New(),
			TransactionID:   txn.ID,
			OrderID:         *txn.OrderID,
			GatewayRefundID: data.GatewayRefundID,
			Amount:          data.Amount,
			Currency:        data.Currency,
			Type:            data.Type,
			ReasonCode:      data.ReasonCode,
			Status:          status,
			GatewayPayload:  payload,
			CreatedAt:       time.Now(),
			UpdatedAt:       time.Now(),
		}
		if err := refundRepo.Create(ctx, rec); err != nil {
			return nil, nil, err
		}
	} else if rec.Status != status {
		if err := refundRepo.UpdateStatus(ctx, rec.ID, status); err != nil {
			return nil, nil, err
		}
		rec.Status = status
	}

	if status != refund.StatusCompleted {
		return rec, nil, nil
	}

	// Aggregates are recomputed whole from the refund rows after the write,
	// so a replayed or out-of-order webhook can never double-count.
	agg, err := refundRepo.AggregatesForTransaction(ctx, txn.ID)
	if err != nil {
		return nil, nil, err
	}
	fullyRefunded := agg.TotalRefunded.GreaterThanOrEqual(txn.GrossAmount)
	if err := r.transactions.WithTx(tx).UpdateRefundAggregates(ctx, txn.ID, agg.TotalRefunded, agg.RefundCount, fullyRefunded, agg.LastRefundAt); err != nil {
		return nil, nil, err
	}

	norm, err := r.normalizer.Normalize(ctx, tx, data.Amount, data.Currency, receivedAt)
	if err != nil {
		return nil, nil, err
	}

	kind := ledger.Kind(rec.LedgerKind())
	signedBase, err := ledger.SignedBase(kind, norm.BaseAmount)
	if err != nil {
		return nil, nil, err
	}

	entry, err := r.entries.WithTx(tx).Append(ctx, &ledger.Entry{
		ID:             uuid.New(),
		OrderID:        *txn.OrderID,
		TransactionID:  &txn.ID,
		Kind:           kind,
		Amount:         data.Amount,
		Currency:       data.Currency,
		BaseAmount:     signedBase,
		ExchangeRate:   norm.Rate,
		RateFallback:   norm.FallbackApplied,
		Reference:      data.GatewayRefundID,
		Status:         ledger.StatusCompleted,
		CreatedBy:      actor.Identity(),
		GatewayPayload: payload,
		CreatedAt:      time.Now(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to append refund ledger entry: %w", err)
	}

	if _, err := r.projector.Project(ctx, tx, *txn.OrderID); err != nil {
		return nil, nil, err
	}

	r.logger.Info("Refund recorded",
		"refund_id", rec.ID,
		"transaction_id", txn.ID,
		"order_id", *txn.OrderID,
		"amount", data.Amount.String(),
		"fully_refunded", fullyRefunded)

	return rec, entry, nil
}

func refundStatusFromOutcome(outcome shared.Outcome) refund.Status {
	switch outcome {
	case shared.OutcomeSuccess:
		return refund.StatusCompleted
	case shared.OutcomeFailed:
		return refund.StatusFailed
	default:
		return refund.StatusPending
	}
}
