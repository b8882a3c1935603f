package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/orderhub-payment-ledger/internal/api_gateway/middleware"
	"github.com/orderhub-payment-ledger/internal/api_gateway/service"
	"github.com/orderhub-payment-ledger/internal/domain/exchange"
	"github.com/orderhub-payment-ledger/internal/domain/ledger"
	"github.com/orderhub-payment-ledger/internal/domain/order"
	"github.com/orderhub-payment-ledger/internal/domain/payment"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
	"github.com/orderhub-payment-ledger/internal/reconcile"
)

// LedgerHandler handles HTTP requests for ledger and payment-state queries
type LedgerHandler struct {
	ledgerService service.LedgerService
	baseCurrency  string
	logger        *slog.Logger
}

// NewLedgerHandler creates a new ledger handler
func NewLedgerHandler(logger *slog.Logger, ledgerService service.LedgerService, baseCurrency string) *LedgerHandler {
	return &LedgerHandler{
		ledgerService: ledgerService,
		baseCurrency:  baseCurrency,
		logger:        logger,
	}
}

// AppendEntry records a privileged manual ledger entry against an order
func (h *LedgerHandler) AppendEntry(c *gin.Context) {
	orderID, ok := parseIDParam(c, h.logger, "order")
	if !ok {
		return
	}

	var req ManualEntryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	params := reconcile.ManualEntryParams{
		OrderID:   orderID,
		Kind:      ledger.Kind(req.Kind),
		Amount:    req.Amount,
		Currency:  req.Currency,
		Reference: req.Reference,
		Notes:     req.Notes,
	}
	if req.TransactionID != "" {
		txnID, err := uuid.Parse(req.TransactionID)
		if err != nil {
			RespondBadRequest(c, "Invalid transaction ID")
			return
		}
		params.TransactionID = &txnID
	}

	entry, err := h.ledgerService.AppendManualEntry(c.Request.Context(), middleware.GetActor(c), params)
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrUnauthorized{}):
			RespondForbidden(c, err.Error())
		case errors.Is(err, ledger.ErrOrderNotFound{}) || errors.Is(err, order.ErrOrderNotFound{}):
			RespondNotFound(c, "Order not found")
		case errors.Is(err, ledger.ErrInvalidKind) || errors.Is(err, ledger.ErrInvalidAmount):
			RespondBadRequest(c, err.Error())
		case errors.Is(err, exchange.ErrRateNotFound{}):
			RespondUnprocessable(c, err.Error())
		default:
			h.logger.Error("Failed to append manual ledger entry", "order_id", orderID, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapEntryToResponse(entry))
}

// GetEntries retrieves paginated ledger entries for an order in append order
func (h *LedgerHandler) GetEntries(c *gin.Context) {
	orderID, ok := parseIDParam(c, h.logger, "order")
	if !ok {
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	entries, total, err := h.ledgerService.GetEntriesByOrderID(c.Request.Context(), orderID, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to get ledger entries", "order_id", orderID, "error", err)
		RespondInternalError(c)
		return
	}

	response := LedgerEntryListResponse{Entries: make([]LedgerEntryResponse, 0, len(entries))}
	for _, entry := range entries {
		response.Entries = append(response.Entries, mapEntryToResponse(entry))
	}

	RespondWithPaginatedData(c, 200, response, pagination.Page, pagination.PerPage, int(total))
}

// GetBalance returns the order's running base-currency balance
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	orderID, ok := parseIDParam(c, h.logger, "order")
	if !ok {
		return
	}

	balance, err := h.ledgerService.GetBalance(c.Request.Context(), orderID)
	if err != nil {
		h.logger.Error("Failed to get balance", "order_id", orderID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, BalanceResponse{
		OrderID:  orderID.String(),
		Balance:  balance.String(),
		Currency: h.baseCurrency,
	})
}

// GetPaymentStatus returns the order's ledger-derived payment state
func (h *LedgerHandler) GetPaymentStatus(c *gin.Context) {
	orderID, ok := parseIDParam(c, h.logger, "order")
	if !ok {
		return
	}

	o, err := h.ledgerService.GetPaymentStatus(c.Request.Context(), orderID)
	if err != nil {
		if errors.Is(err, order.ErrOrderNotFound{}) {
			RespondNotFound(c, "Order not found")
			return
		}
		h.logger.Error("Failed to get payment status", "order_id", orderID, "error", err)
		RespondInternalError(c)
		return
	}

	RespondOK(c, PaymentStatusResponse{
		OrderID:           o.ID.String(),
		PaymentStatus:     string(o.PaymentStatus),
		TotalDue:          o.TotalDue.String(),
		AmountPaid:        o.AmountPaid.String(),
		OverpaymentAmount: o.OverpaymentAmount.String(),
	})
}

// GetTransaction retrieves transaction details by ID, returns 404 if not found
func (h *LedgerHandler) GetTransaction(c *gin.Context) {
	id, ok := parseIDParam(c, h.logger, "transaction")
	if !ok {
		return
	}

	txn, err := h.ledgerService.GetTransactionByID(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("Failed to get transaction", "transaction_id", id, "error", err)
		RespondInternalError(c)
		return
	}
	if txn == nil {
		RespondNotFound(c, "Transaction not found")
		return
	}

	RespondOK(c, mapTransactionToResponse(txn))
}

func parseIDParam(c *gin.Context, logger *slog.Logger, what string) (uuid.UUID, bool) {
	idParam := c.Param("id")
	id, err := uuid.Parse(idParam)
	if err != nil {
		logger.Error("Invalid "+what+" ID", "id", idParam, "error", err)
		RespondBadRequest(c, "Invalid "+what+" ID")
		return uuid.Nil, false
	}
	return id, true
}

func mapEntryToResponse(entry *ledger.Entry) LedgerEntryResponse {
	resp := LedgerEntryResponse{
		ID:            entry.ID.String(),
		Seq:           entry.Seq,
		OrderID:       entry.OrderID.String(),
		Kind:          string(entry.Kind),
		Amount:        entry.Amount.String(),
		Currency:      entry.Currency,
		BaseAmount:    entry.BaseAmount.String(),
		ExchangeRate:  entry.ExchangeRate.String(),
		RateFallback:  entry.RateFallback,
		BalanceBefore: entry.BalanceBefore.String(),
		BalanceAfter:  entry.BalanceAfter.String(),
		Reference:     entry.Reference,
		Status:        string(entry.Status),
		Notes:         entry.Notes,
		CreatedBy:     entry.CreatedBy,
		CreatedAt:     entry.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if entry.TransactionID != nil {
		resp.TransactionID = entry.TransactionID.String()
	}
	return resp
}

func mapTransactionToResponse(txn *payment.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:                   txn.ID.String(),
		GatewayTransactionID: txn.GatewayTransactionID,
		PaymentMethod:        string(txn.PaymentMethod),
		GrossAmount:          txn.GrossAmount.String(),
		Currency:             txn.Currency,
		Status:               string(txn.Status),
		FeeAmount:            txn.FeeAmount.String(),
		FeeCurrency:          txn.FeeCurrency,
		NetAmount:            txn.NetAmount.String(),
		TotalRefunded:        txn.TotalRefunded.String(),
		RefundCount:          txn.RefundCount,
		IsFullyRefunded:      txn.IsFullyRefunded,
		CreatedAt:            txn.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if txn.OrderID != nil {
		resp.OrderID = txn.OrderID.String()
	}
	if txn.LastRefundAt != nil {
		resp.LastRefundAt = txn.LastRefundAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}
