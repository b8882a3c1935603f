package shared

// Gateway identifies the payment provider that produced an event.
// Fee extraction and payload parsing are keyed on this value.
type Gateway string

const (
	GatewayStripe       Gateway = "stripe"
	GatewayPayPal       Gateway = "paypal"
	GatewayPayU         Gateway = "payu"
	GatewayBankTransfer Gateway = "bank_transfer"
	GatewayManual       Gateway = "manual"
)

// Valid reports whether the gateway code is one we know how to reconcile
func (g Gateway) Valid() bool {
	switch g {
	case GatewayStripe, GatewayPayPal, GatewayPayU, GatewayBankTransfer, GatewayManual:
		return true
	}
	return false
}

// Outcome is the payment result reported by the gateway
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailed  Outcome = "failed"
	OutcomePending Outcome = "pending"
)

// Valid reports whether the outcome is a recognized gateway result
func (o Outcome) Valid() bool {
	switch o {
	case OutcomeSuccess, OutcomeFailed, OutcomePending:
		return true
	}
	return false
}

// EventType distinguishes payment notifications from refund notifications
type EventType string

const (
	EventTypePayment EventType = "payment"
	EventTypeRefund  EventType = "refund"
)
