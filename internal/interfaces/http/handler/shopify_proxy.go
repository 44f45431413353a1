package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/ecommerce"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/logger"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/dto"
)

// GraphQLProxyRequest is the body accepted by POST /api/shopify
type GraphQLProxyRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// ShopifyProxyHandler forwards Storefront GraphQL documents
type ShopifyProxyHandler struct {
	client *ecommerce.StorefrontClient
}

// NewShopifyProxyHandler creates a new ShopifyProxyHandler. A nil client
// answers every request with a configuration error.
func NewShopifyProxyHandler(client *ecommerce.StorefrontClient) *ShopifyProxyHandler {
	return &ShopifyProxyHandler{client: client}
}

// Query handles POST /api/shopify. The upstream body is relayed as is on
// success.
func (h *ShopifyProxyHandler) Query(c *gin.Context) {
	if c.Request.Method != http.MethodPost {
		methodNotAllowed(c)
		return
	}
	if h.client == nil {
		proxyError(c, http.StatusInternalServerError, msgConfigError, "Shopify storefront token is not configured")
		return
	}

	var req GraphQLProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		proxyError(c, http.StatusBadRequest, msgInvalidJSON, err.Error())
		return
	}
	if req.Query == "" {
		proxyError(c, http.StatusBadRequest, "GraphQL query is required", nil)
		return
	}

	reqLog := logger.GetGinLogger(c)
	status, body, err := h.client.Execute(c.Request.Context(), req.Query, req.Variables)
	if err != nil {
		reqLog.Error("Shopify proxy request failed", zap.Error(err))
		proxyError(c, http.StatusInternalServerError, msgInternalError, err.Error())
		return
	}
	if status < 200 || status >= 300 {
		reqLog.Warn("Shopify returned an error", zap.Int("status", status))
		c.JSON(status, dto.ProxyError{
			Error:   "Shopify API error",
			Details: upstreamDetails(body),
			Status:  status,
		})
		return
	}
	c.Data(http.StatusOK, "application/json", body)
}
