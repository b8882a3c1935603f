package reconcile

import (
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

// feeParser extracts the processing fee from one gateway's payload shape.
// Each gateway reports fees differently, so parsing is keyed on the gateway
// code rather than probing fields.
type feeParser interface {
	parse(payload []byte) (decimal.Decimal, string, error)
}

// FeeExtractor resolves the gateway fee from an opaque gateway payload.
// Gateways that do not report a fee, and payloads that cannot be parsed,
// yield a zero fee: the payload is audit data, not a contract.
type FeeExtractor struct {
	parsers map[shared.Gateway]feeParser
	logger  *slog.Logger
}

// NewFeeExtractor creates a fee extractor with the known gateway parsers
func NewFeeExtractor(logger *slog.Logger) *FeeExtractor {
	return &FeeExtractor{
		parsers: map[shared.Gateway]feeParser{
			shared.GatewayStripe:       stripeFeeParser{},
			shared.GatewayPayPal:       paypalFeeParser{},
			shared.GatewayPayU:         payuFeeParser{},
			shared.GatewayBankTransfer: zeroFeeParser{},
			shared.GatewayManual:       zeroFeeParser{},
		},
		logger: logger,
	}
}

// Extract returns the fee amount and its currency, defaulting to zero when
// the gateway reports none
func (f *FeeExtractor) Extract(gateway shared.Gateway, payload json.RawMessage) (decimal.Decimal, string) {
	parser, ok := f.parsers[gateway]
	if !ok || len(payload) == 0 {
		return decimal.Zero, ""
	}

	fee, currency, err := parser.parse(payload)
	if err != nil {
		f.logger.Warn("Failed to parse gateway fee, defaulting to zero",
			"gateway", string(gateway),
			"error", err)
		return decimal.Zero, ""
	}

	if fee.IsNegative() {
		f.logger.Warn("Gateway reported negative fee, defaulting to zero",
			"gateway", string(gateway),
			"fee", fee.String())
		return decimal.Zero, ""
	}

	return fee, currency
}

// stripeFeeParser reads the fee from the balance transaction attached to a
// Stripe charge. Stripe reports fees in minor units.
type stripeFeeParser struct{}

func (stripeFeeParser) parse(payload []byte) (decimal.Decimal, string, error) {
	var doc struct {
		BalanceTransaction struct {
			Fee      int64  `json:"fee"`
			Currency string `json:"currency"`
		} `json:"balance_transaction"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return decimal.Zero, "", err
	}
	if doc.BalanceTransaction.Fee == 0 {
		return decimal.Zero, "", nil
	}
	fee := decimal.New(doc.BalanceTransaction.Fee, -2)
	return fee, strings.ToUpper(doc.BalanceTransaction.Currency), nil
}

// paypalFeeParser reads the fee from the seller receivable breakdown of a
// PayPal capture
type paypalFeeParser struct{}

func (paypalFeeParser) parse(payload []byte) (decimal.Decimal, string, error) {
	var doc struct {
		SellerReceivableBreakdown struct {
			PayPalFee struct {
				Value        string `json:"value"`
				CurrencyCode string `json:"currency_code"`
			} `json:"paypal_fee"`
		} `json:"seller_receivable_breakdown"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return decimal.Zero, "", err
	}
	if doc.SellerReceivableBreakdown.PayPalFee.Value == "" {
		return decimal.Zero, "", nil
	}
	fee, err := decimal.NewFromString(doc.SellerReceivableBreakdown.PayPalFee.Value)
	if err != nil {
		return decimal.Zero, "", err
	}
	return fee, doc.SellerReceivableBreakdown.PayPalFee.CurrencyCode, nil
}

// payuFeeParser reads the commission field from a PayU notification
type payuFeeParser struct{}

func (payuFeeParser) parse(payload []byte) (decimal.Decimal, string, error) {
	var doc struct {
		Commission string `json:"commission"`
		Currency   string `json:"currency"`
	}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return decimal.Zero, "", err
	}
	if doc.Commission == "" {
		return decimal.Zero, "", nil
	}
	fee, err := decimal.NewFromString(doc.Commission)
	if err != nil {
		return decimal.Zero, "", err
	}
	return fee, doc.Currency, nil
}

// zeroFeeParser covers gateways that never report a fee
type zeroFeeParser struct{}

func (zeroFeeParser) parse([]byte) (decimal.Decimal, string, error) {
	return decimal.Zero, "", nil
}
