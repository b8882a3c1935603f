package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"

	"github.com/orderhub-payment-ledger/internal/api_gateway/middleware"
	"github.com/orderhub-payment-ledger/internal/api_gateway/service"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

// WebhookHandler handles inbound payment gateway notifications
type WebhookHandler struct {
	webhookService service.WebhookService
	logger         *slog.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(logger *slog.Logger, webhookService service.WebhookService) *WebhookHandler {
	return &WebhookHandler{
		webhookService: webhookService,
		logger:         logger,
	}
}

// Receive processes one gateway notification synchronously and returns the
// structured reconciliation result. The gateway always gets a deterministic
// response: domain rejections come back as success=false, storage failures
// are queued on the retry topic and acknowledged as accepted.
func (h *WebhookHandler) Receive(c *gin.Context) {
	gateway := shared.Gateway(c.Param("gateway"))
	if !gateway.Valid() {
		h.logger.Error("Unknown payment gateway", "gateway", c.Param("gateway"))
		RespondBadRequest(c, "Unknown payment gateway")
		return
	}

	// The raw body is archived verbatim, so read it before binding.
	rawPayload, err := c.GetRawData()
	if err != nil {
		h.logger.Error("Failed to read webhook body", "gateway", string(gateway), "error", err)
		RespondBadRequest(c, "Failed to read request body")
		return
	}

	var req WebhookRequest
	if err := binding.JSON.BindBody(rawPayload, &req); err != nil {
		h.logger.Error("Invalid webhook body", "gateway", string(gateway), "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	event, err := buildWebhookEvent(gateway, &req, middleware.GetCorrelationID(c))
	if err != nil {
		h.logger.Error("Invalid webhook event", "gateway", string(gateway), "error", err)
		RespondBadRequest(c, err.Error())
		return
	}

	result, queued, err := h.webhookService.Process(c.Request.Context(), event, rawPayload)
	if err != nil {
		h.logger.Error("Failed to process webhook",
			"gateway", string(gateway),
			"event_id", event.EventID,
			"error", err)
		RespondInternalError(c)
		return
	}

	if queued {
		RespondAccepted(c, WebhookResponse{Queued: true})
		return
	}

	RespondOK(c, mapResultToResponse(result))
}

func buildWebhookEvent(gateway shared.Gateway, req *WebhookRequest, correlationID string) (*shared.WebhookEvent, error) {
	orderIDs := make([]uuid.UUID, 0, len(req.OrderIDs))
	for _, raw := range req.OrderIDs {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, shared.ErrInvalidPaymentData{Field: "order_ids"}
		}
		orderIDs = append(orderIDs, id)
	}

	eventType := shared.EventTypePayment
	if req.EventType == string(shared.EventTypeRefund) || req.RefundData != nil {
		eventType = shared.EventTypeRefund
	}

	event := &shared.WebhookEvent{
		EventID:  uuid.New(),
		Type:     eventType,
		OrderIDs: orderIDs,
		Outcome:  shared.Outcome(req.Outcome),
		Payment: shared.PaymentData{
			GatewayTransactionID: req.PaymentData.GatewayTransactionID,
			Amount:               req.PaymentData.Amount,
			Currency:             req.PaymentData.Currency,
			PaymentMethod:        gateway,
			CustomerEmail:        req.PaymentData.CustomerEmail,
			CustomerName:         req.PaymentData.CustomerName,
			CustomerPhone:        req.PaymentData.CustomerPhone,
			GatewayResponse:      req.PaymentData.GatewayResponse,
		},
		GuestSessionToken: req.GuestSessionToken,
		GuestSessionData:  req.GuestSessionData,
		CreateOrder:       req.CreateOrder,
		CorrelationID:     correlationID,
		ReceivedAt:        time.Now(),
	}

	if req.RefundData != nil {
		event.Refund = &shared.RefundData{
			GatewayRefundID: req.RefundData.GatewayRefundID,
			Amount:          req.RefundData.Amount,
			Currency:        req.RefundData.Currency,
			Type:            shared.RefundType(req.RefundData.Type),
			ReasonCode:      req.RefundData.ReasonCode,
		}
	}

	return event, nil
}

func mapResultToResponse(result *shared.ReconcileResult) WebhookResponse {
	resp := WebhookResponse{
		Success:             result.Success,
		OrderUpdated:        result.OrderUpdated,
		GuestSessionUpdated: result.GuestSessionUpdated,
		ErrorMessage:        result.ErrorMessage,
	}
	if result.TransactionID != nil {
		resp.TransactionID = result.TransactionID.String()
	}
	if result.LedgerEntryID != nil {
		resp.LedgerEntryID = result.LedgerEntryID.String()
	}
	if result.FeeLedgerEntryID != nil {
		resp.FeeLedgerEntryID = result.FeeLedgerEntryID.String()
	}
	if result.RefundID != nil {
		resp.RefundID = result.RefundID.String()
	}
	if result.CreatedOrderID != nil {
		resp.CreatedOrderID = result.CreatedOrderID.String()
	}
	return resp
}
