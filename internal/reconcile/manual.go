package reconcile

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/orderhub-payment-ledger/internal/domain/ledger"
	"github.com/orderhub-payment-ledger/internal/domain/refund"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

// ManualEntryParams describes a privileged manual ledger mutation. Amount is
// unsigned except for adjustments, which carry their own sign.
type ManualEntryParams struct {
	OrderID       uuid.UUID
	TransactionID *uuid.UUID
	Kind          ledger.Kind
	Amount        decimal.Decimal
	Currency      string
	Reference     string
	Notes         string
}

// ManualRefundParams describes an administrator-initiated refund against a
// known transaction
type ManualRefundParams struct {
	TransactionID uuid.UUID
	Amount        decimal.Decimal
	Currency      string
	Type          shared.RefundType
	ReasonCode    string
}

// AppendManualEntry appends one privileged ledger entry and reprojects the
// order's payment status, atomically. Only actors holding ledger write
// permission may call it.
func (e *Engine) AppendManualEntry(ctx context.Context, actor shared.Actor, p ManualEntryParams) (*ledger.Entry, error) {
	if !actor.Can(shared.PermLedgerWrite) {
		return nil, shared.ErrUnauthorized{ActorID: actor.ID, Permission: shared.PermLedgerWrite}
	}
	if p.Amount.IsZero() {
		return nil, ledger.ErrInvalidAmount
	}
	if _, err := p.Kind.Sign(); err != nil {
		return nil, err
	}

	var entry *ledger.Entry
	err := e.pg.ExecuteTx(ctx, func(tx pgx.Tx) error {
		norm, err := e.normalizer.Normalize(ctx, tx, p.Amount.Abs(), p.Currency, time.Now())
		if err != nil {
			return err
		}

		signedBase, err := ledger.SignedBase(p.Kind, norm.BaseAmount)
		if err != nil {
			return err
		}
		if p.Kind == ledger.KindAdjustment && p.Amount.IsNegative() {
			signedBase = signedBase.Neg()
		}

		entry, err = e.entries.WithTx(tx).Append(ctx, &ledger.Entry{
			ID:            uuid.New(),
			OrderID:       p.OrderID,
			TransactionID: p.TransactionID,
			Kind:          p.Kind,
			Amount:        p.Amount,
			Currency:      p.Currency,
			BaseAmount:    signedBase,
			ExchangeRate:  norm.Rate,
			RateFallback:  norm.FallbackApplied,
			Reference:     p.Reference,
			Status:        ledger.StatusCompleted,
			Notes:         p.Notes,
			CreatedBy:     actor.Identity(),
			CreatedAt:     time.Now(),
		})
		if err != nil {
			return fmt.Errorf("failed to append manual ledger entry: %w", err)
		}

		_, err = e.projector.Project(ctx, tx, p.OrderID)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Manual ledger entry appended",
		"order_id", p.OrderID,
		"entry_id", entry.ID,
		"kind", string(p.Kind),
		"amount", p.Amount.String(),
		"actor", actor.Identity())

	return entry, nil
}

// RecordManualRefund records an administrator-initiated refund through the
// same path gateway refund webhooks take, so the ceiling check, aggregates
// and ledger entry behave identically. Each call mints a fresh synthetic
// refund id: two sequential manual refunds of the same amount are two
// refunds, not a replay, and only the ceiling bounds them.
func (e *Engine) RecordManualRefund(ctx context.Context, actor shared.Actor, p ManualRefundParams) (*refund.Refund, error) {
	if !actor.Can(shared.PermRefundWrite) {
		return nil, shared.ErrUnauthorized{ActorID: actor.ID, Permission: shared.PermRefundWrite}
	}

	data := &shared.RefundData{
		GatewayRefundID: fmt.Sprintf("manual-%s", uuid.New()),
		Amount:          p.Amount,
		Currency:        p.Currency,
		Type:            p.Type,
		ReasonCode:      p.ReasonCode,
	}

	var rec *refund.Refund
	err := e.pg.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		rec, _, err = e.recorder.Record(ctx, tx, p.TransactionID, data, shared.OutcomeSuccess, actor, nil, time.Now())
		return err
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Manual refund recorded",
		"transaction_id", p.TransactionID,
		"refund_id", rec.ID,
		"amount", p.Amount.String(),
		"actor", actor.Identity())

	return rec, nil
}
