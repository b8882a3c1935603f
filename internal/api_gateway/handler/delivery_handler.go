package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/orderhub-payment-ledger/internal/api_gateway/service"
	mongodata "github.com/orderhub-payment-ledger/internal/data/mongo"
	"github.com/orderhub-payment-ledger/internal/domain/shared"
)

// DeliveryHandler handles HTTP requests for the webhook delivery audit archive
type DeliveryHandler struct {
	deliveryService service.DeliveryService
	logger          *slog.Logger
}

// NewDeliveryHandler creates a new delivery handler
func NewDeliveryHandler(logger *slog.Logger, deliveryService service.DeliveryService) *DeliveryHandler {
	return &DeliveryHandler{
		deliveryService: deliveryService,
		logger:          logger,
	}
}

// GetByEventID retrieves one archived delivery, returns 404 if not found
func (h *DeliveryHandler) GetByEventID(c *gin.Context) {
	eventID, ok := parseIDParam(c, h.logger, "event")
	if !ok {
		return
	}

	delivery, err := h.deliveryService.GetByEventID(c.Request.Context(), eventID)
	if err != nil {
		h.logger.Error("Failed to get webhook delivery", "event_id", eventID, "error", err)
		RespondInternalError(c)
		return
	}
	if delivery == nil {
		RespondNotFound(c, "Webhook delivery not found")
		return
	}

	RespondOK(c, mapDeliveryToResponse(delivery))
}

// ListByGateway lists archived deliveries for one gateway, newest first
func (h *DeliveryHandler) ListByGateway(c *gin.Context) {
	gateway := shared.Gateway(c.Query("gateway"))
	if !gateway.Valid() {
		RespondBadRequest(c, "Unknown payment gateway")
		return
	}

	var pagination PaginationParams
	if err := c.ShouldBindQuery(&pagination); err != nil {
		RespondBadRequest(c, "Invalid pagination parameters: "+err.Error())
		return
	}

	deliveries, total, err := h.deliveryService.ListByGateway(c.Request.Context(), gateway, pagination.Page, pagination.PerPage)
	if err != nil {
		h.logger.Error("Failed to list webhook deliveries", "gateway", string(gateway), "error", err)
		RespondInternalError(c)
		return
	}

	response := DeliveryListResponse{Deliveries: make([]DeliveryResponse, 0, len(deliveries))}
	for _, delivery := range deliveries {
		response.Deliveries = append(response.Deliveries, mapDeliveryToResponse(delivery))
	}

	RespondWithPaginatedData(c, 200, response, pagination.Page, pagination.PerPage, int(total))
}

func mapDeliveryToResponse(delivery *mongodata.Delivery) DeliveryResponse {
	resp := DeliveryResponse{
		EventID:         delivery.EventID.String(),
		Gateway:         string(delivery.Gateway),
		EventType:       delivery.EventType,
		Outcome:         delivery.Outcome,
		CorrelationID:   delivery.CorrelationID,
		Success:         delivery.Success,
		ProcessingError: delivery.ProcessingError,
		ReceivedAt:      delivery.ReceivedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if delivery.ProcessedAt != nil {
		resp.ProcessedAt = delivery.ProcessedAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}
