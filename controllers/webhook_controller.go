package controllers

import (
	"io"
	"net/http"

	"github.com/atoz-auto/autoshop-api/apperrors"
	"github.com/atoz-auto/autoshop-api/services"
	"github.com/atoz-auto/autoshop-api/utils"
	"github.com/gin-gonic/gin"
)

// maxWebhookBytes bounds the webhook body read.
const maxWebhookBytes = 64 << 10

// WebhookController receives payment processor notifications.
type WebhookController struct {
	processor *services.WebhookProcessor
}

func NewWebhookController(processor *services.WebhookProcessor) *WebhookController {
	return &WebhookController{processor: processor}
}

// Receive handles POST /api/v1/payments/webhook. A bad signature is
// rejected with 400; every verified delivery is acknowledged with 200 so
// the sender does not retry on our processing errors.
func (ctl *WebhookController) Receive(c *gin.Context) {
	payload, err := io.ReadAll(io.LimitReader(c.Request.Body, maxWebhookBytes+1))
	if err != nil {
		utils.RespondError(c, apperrors.Validation("Failed to read request body"))
		return
	}
	if len(payload) > maxWebhookBytes {
		utils.RespondError(c, apperrors.Validation("Request body too large"))
		return
	}

	result, err := ctl.processor.Handle(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		utils.RespondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"received": true,
		"event_id": result.EventID,
	})
}
