package reconcile

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/orderhub-payment-ledger/internal/domain/ledger"
	"github.com/orderhub-payment-ledger/internal/domain/order"
)

// Projection is the ledger-derived payment state of an order
type Projection struct {
	Status      order.PaymentStatus
	AmountPaid  decimal.Decimal
	Overpayment decimal.Decimal
}

// Classify maps the sum of completed payment-relevant entries against the
// amount due. A net negative sum (refunds exceeding payments) clamps to
// unpaid with zero paid.
func Classify(totalDue, paid decimal.Decimal) Projection {
	if paid.IsNegative() {
		paid = decimal.Zero
	}

	p := Projection{
		AmountPaid:  paid,
		Overpayment: decimal.Zero,
	}

	switch {
	case paid.IsZero():
		p.Status = order.PaymentStatusUnpaid
	case paid.LessThan(totalDue):
		p.Status = order.PaymentStatusPartial
	case paid.Equal(totalDue):
		p.Status = order.PaymentStatusPaid
	default:
		p.Status = order.PaymentStatusOverpaid
		p.Overpayment = paid.Sub(totalDue)
	}

	return p
}

// Projector recomputes an order's payment status from its ledger entries and
// writes the result onto the order row
type Projector struct {
	entries ledger.Repository
	orders  order.Repository
	logger  *slog.Logger
}

// NewProjector creates a payment status projector
func NewProjector(entries ledger.Repository, orders order.Repository, logger *slog.Logger) *Projector {
	return &Projector{
		entries: entries,
		orders:  orders,
		logger:  logger,
	}
}

// Project derives the payment status for the order inside tx and persists it.
// Fees and adjustments never count toward the paid amount; only completed
// payment and refund entries do.
func (p *Projector) Project(ctx context.Context, tx pgx.Tx, orderID uuid.UUID) (*Projection, error) {
	o, err := p.orders.WithTx(tx).GetByID(ctx, orderID)
	if err != nil {
		return nil, err
	}

	paid, err := p.entries.WithTx(tx).SumCompletedPaid(ctx, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to sum ledger entries for order %s: %w", orderID, err)
	}

	proj := Classify(o.TotalDue, paid)

	if err := p.orders.WithTx(tx).UpdatePaymentProjection(ctx, orderID, proj.Status, proj.AmountPaid, proj.Overpayment); err != nil {
		return nil, fmt.Errorf("failed to update payment projection for order %s: %w", orderID, err)
	}

	p.logger.Debug("Projected order payment status",
		"order_id", orderID,
		"status", string(proj.Status),
		"amount_paid", proj.AmountPaid.String(),
		"overpayment", proj.Overpayment.String())

	return &proj, nil
}
