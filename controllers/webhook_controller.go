package controllers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yashrajoria/checkout-service/providers"
	"github.com/yashrajoria/checkout-service/services"
	"go.uber.org/zap"
)

const maxWebhookBody = 65536

type WebhookController struct {
	parser  providers.WebhookParser
	service services.WebhookService
	logger  *zap.Logger
}

func NewWebhookController(parser providers.WebhookParser, service services.WebhookService, logger *zap.Logger) *WebhookController {
	return &WebhookController{parser: parser, service: service, logger: logger}
}

// HandleStripeWebhook handles POST /stripe/webhook
func (wc *WebhookController) HandleStripeWebhook(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBody))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	event, err := wc.parser.ParseWebhook(payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		wc.logger.Warn("Stripe webhook signature verification failed", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid webhook"})
		return
	}

	wc.logger.Info("Processing Stripe webhook",
		zap.String("event_type", event.Type),
		zap.String("event_id", event.ID),
	)

	if err := wc.service.HandleEvent(c.Request.Context(), event); err != nil {
		wc.logger.Error("Failed to process webhook",
			zap.String("event_id", event.ID),
			zap.String("event_type", event.Type),
			zap.Error(err),
		)
		// Non-2xx makes the processor redeliver.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to process event"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "received"})
}
