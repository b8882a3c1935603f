package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/orderhub-payment-ledger/internal/api_gateway/middleware"
	"github.com/orderhub-payment-ledger/internal/api_gateway/service"
	"github.com/orderhub-payment-ledger/internal/domain/payment"
	"github.com/orderhub-payment-ledger/internal/domain/refund"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
	"github.com/orderhub-payment-ledger/internal/reconcile"
)

// RefundHandler handles HTTP requests for refund operations
type RefundHandler struct {
	refundService service.RefundService
	logger        *slog.Logger
}

// NewRefundHandler creates a new refund handler
func NewRefundHandler(logger *slog.Logger, refundService service.RefundService) *RefundHandler {
	return &RefundHandler{
		refundService: refundService,
		logger:        logger,
	}
}

// Create records an administrator-initiated refund
func (h *RefundHandler) Create(c *gin.Context) {
	var req ManualRefundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	transactionID, err := uuid.Parse(req.TransactionID)
	if err != nil {
		RespondBadRequest(c, "Invalid transaction ID")
		return
	}

	if req.Amount.IsNegative() || req.Amount.IsZero() {
		RespondBadRequest(c, "Refund amount must be positive")
		return
	}

	rec, err := h.refundService.CreateManualRefund(c.Request.Context(), middleware.GetActor(c), reconcile.ManualRefundParams{
		TransactionID: transactionID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Type:          shared.RefundType(req.Type),
		ReasonCode:    req.ReasonCode,
	})
	if err != nil {
		switch {
		case errors.Is(err, shared.ErrUnauthorized{}):
			RespondForbidden(c, err.Error())
		case errors.Is(err, payment.ErrTransactionNotFound{}):
			RespondNotFound(c, "Transaction not found")
		case errors.Is(err, refund.ErrRefundExceedsCaptured{}):
			RespondUnprocessable(c, err.Error())
		default:
			h.logger.Error("Failed to create manual refund", "transaction_id", transactionID, "error", err)
			RespondInternalError(c)
		}
		return
	}

	RespondCreated(c, mapRefundToResponse(rec))
}

// GetByTransactionID lists all refunds recorded against a transaction
func (h *RefundHandler) GetByTransactionID(c *gin.Context) {
	transactionID, ok := parseIDParam(c, h.logger, "transaction")
	if !ok {
		return
	}

	refunds, err := h.refundService.ListByTransactionID(c.Request.Context(), transactionID)
	if err != nil {
		h.logger.Error("Failed to list refunds", "transaction_id", transactionID, "error", err)
		RespondInternalError(c)
		return
	}

	response := RefundListResponse{Refunds: make([]RefundResponse, 0, len(refunds))}
	for _, rec := range refunds {
		response.Refunds = append(response.Refunds, mapRefundToResponse(rec))
	}

	RespondOK(c, response)
}

func mapRefundToResponse(rec *refund.Refund) RefundResponse {
	return RefundResponse{
		ID:              rec.ID.String(),
		TransactionID:   rec.TransactionID.String(),
		OrderID:         rec.OrderID.String(),
		GatewayRefundID: rec.GatewayRefundID,
		Amount:          rec.Amount.String(),
		Currency:        rec.Currency,
		Type:            string(rec.Type),
		ReasonCode:      rec.ReasonCode,
		Status:          string(rec.Status),
		CreatedAt:       rec.CreatedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
}
