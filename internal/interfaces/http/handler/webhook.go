package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	appintegration "github.com/erp/connector/internal/application/integration"
	"github.com/erp/connector/internal/domain/integration"
	"github.com/erp/connector/internal/infrastructure/logger"
	"github.com/erp/connector/internal/interfaces/http/dto"
)

// SignatureHeader carries the hex HMAC-SHA256 of the raw webhook body
const SignatureHeader = "X-ShipStation-Signature"

// ShipmentEventProcessor verifies and applies shipment webhooks
type ShipmentEventProcessor interface {
	VerifySignature(body []byte, signature string) bool
	ProcessShipmentEvent(ctx context.Context, event integration.ShipmentEvent) (*integration.WritebackResult, error)
}

// WebhookHandler receives destination platform webhooks
type WebhookHandler struct {
	BaseHandler
	processor ShipmentEventProcessor
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(processor ShipmentEventProcessor) *WebhookHandler {
	return &WebhookHandler{processor: processor}
}

// ShipStation verifies the signature over the raw body, then writes the
// shipment's tracking back to the source. Outcomes, including writeback
// failures, are acknowledged with 200 so the sender does not redeliver;
// only an unverifiable or unreadable request is rejected.
//
// POST /webhooks/shipstation
func (h *WebhookHandler) ShipStation(c *gin.Context) {
	log := logger.FromContext(c.Request.Context())

	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodePayloadTooLarge, "Webhook body exceeds maximum allowed size")
			return
		}
		h.BadRequest(c, "Failed to read webhook body")
		return
	}

	if !h.processor.VerifySignature(body, c.GetHeader(SignatureHeader)) {
		log.Warn("Invalid webhook signature", zap.String("client_ip", c.ClientIP()))
		c.JSON(http.StatusUnauthorized, dto.WebhookErrorResponse{Error: "Invalid webhook signature"})
		return
	}

	var req appintegration.ShipmentWebhookRequest
	if err := json.Unmarshal(body, &req); err != nil {
		h.Error(c, http.StatusBadRequest, dto.ErrCodeInvalidJSON, "Webhook body is not valid JSON")
		return
	}

	log.Info("Received ShipStation webhook",
		zap.String("resource_type", req.ResourceType),
		zap.String("resource_url", req.ResourceURL),
	)

	result, err := h.processor.ProcessShipmentEvent(c.Request.Context(), req.ToDomain())
	if err != nil {
		_ = c.Error(err)
	}
	if result == nil {
		h.HandleError(c, err)
		return
	}

	c.JSON(http.StatusOK, appintegration.ToWritebackResponse(result))
}
