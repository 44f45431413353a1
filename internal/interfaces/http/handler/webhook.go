package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	catalogapp "github.com/SWFTstudios/onlyatthekiosk-website/internal/application/catalog"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/ecommerce"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/logger"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/dto"
)

// WebhookApplier applies one product webhook delivery to the mirror
type WebhookApplier interface {
	Apply(ctx context.Context, topic string, payload []byte) (*catalogapp.WebhookResult, error)
}

// WebhookConfig controls signature verification of product webhooks
type WebhookConfig struct {
	Secret string
	Verify bool
}

// WebhookHandler receives Shopify product webhooks
type WebhookHandler struct {
	BaseHandler
	service WebhookApplier
	config  WebhookConfig
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(service WebhookApplier, cfg WebhookConfig) *WebhookHandler {
	return &WebhookHandler{service: service, config: cfg}
}

// ShopifyProducts handles POST /api/v1/webhooks/shopify/products. The
// signature is checked over the raw body before anything is decoded. With
// verification on but no secret configured the delivery is accepted with a
// warning.
func (h *WebhookHandler) ShopifyProducts(c *gin.Context) {
	reqLog := logger.GetGinLogger(c)

	body, err := c.GetRawData()
	if err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.Error(c, http.StatusRequestEntityTooLarge, dto.ErrCodeRequestTooLarge, "Request body exceeds maximum allowed size")
			return
		}
		h.BadRequest(c, "Failed to read request body")
		return
	}

	if h.config.Verify {
		if h.config.Secret == "" {
			reqLog.Warn("Shopify webhook secret not configured, skipping signature verification")
		} else if !ecommerce.VerifyWebhookSignature(body, c.GetHeader(ecommerce.HeaderShopifyHmac), h.config.Secret) {
			reqLog.Warn("Rejected Shopify webhook with invalid signature",
				zap.String("shop_domain", c.GetHeader(ecommerce.HeaderShopifyDomain)),
			)
			h.Unauthorized(c, "Invalid webhook signature")
			return
		}
	}

	topic := c.GetHeader(ecommerce.HeaderShopifyTopic)
	if topic == "" {
		h.BadRequest(c, ecommerce.HeaderShopifyTopic+" header is required")
		return
	}

	result, err := h.service.Apply(c.Request.Context(), topic, body)
	if err != nil {
		reqLog.Warn("Shopify webhook not applied", zap.String("topic", topic), zap.Error(err))
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}
