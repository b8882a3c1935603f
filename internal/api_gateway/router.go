package api_gateway

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/orderhub-payment-ledger/internal/api_gateway/handler"
	"github.com/orderhub-payment-ledger/internal/api_gateway/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	webhookHandler *handler.WebhookHandler,
	ledgerHandler *handler.LedgerHandler,
	refundHandler *handler.RefundHandler,
	deliveryHandler *handler.DeliveryHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Actor())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Gateway webhook intake
		v1.POST("/webhooks/:gateway", webhookHandler.Receive)

		// Order ledger operations
		orders := v1.Group("/orders")
		{
			orders.POST("/:id/ledger-entries", ledgerHandler.AppendEntry)
			orders.GET("/:id/ledger-entries", ledgerHandler.GetEntries)
			orders.GET("/:id/balance", ledgerHandler.GetBalance)
			orders.GET("/:id/payment-status", ledgerHandler.GetPaymentStatus)
		}

		// Transaction and refund operations
		transactions := v1.Group("/transactions")
		{
			transactions.GET("/:id", ledgerHandler.GetTransaction)
			transactions.GET("/:id/refunds", refundHandler.GetByTransactionID)
		}
		v1.POST("/refunds", refundHandler.Create)

		// Webhook delivery audit archive
		deliveries := v1.Group("/webhook-deliveries")
		{
			deliveries.GET("", deliveryHandler.ListByGateway)
			deliveries.GET("/:id", deliveryHandler.GetByEventID)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}
