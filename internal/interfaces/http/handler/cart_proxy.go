package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/ecommerce"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/logger"
)

// Cart actions carried in the request body
const (
	CartActionCreate = "create"
	CartActionAdd    = "add"
	CartActionUpdate = "update"
	CartActionRemove = "remove"
)

// CartProxyHandler exposes the Storefront cart operations to the browser
// and to the cart proxy client.
type CartProxyHandler struct {
	client *ecommerce.StorefrontClient
}

// NewCartProxyHandler creates a new CartProxyHandler. A nil client answers
// every request with a configuration error.
func NewCartProxyHandler(client *ecommerce.StorefrontClient) *CartProxyHandler {
	return &CartProxyHandler{client: client}
}

// Handle dispatches /api/shopify-cart on the request method
func (h *CartProxyHandler) Handle(c *gin.Context) {
	if h.client == nil {
		proxyError(c, http.StatusInternalServerError, msgConfigError, "Shopify storefront token is not configured")
		return
	}

	switch c.Request.Method {
	case http.MethodGet:
		h.get(c)
	case http.MethodPost:
		h.post(c)
	case http.MethodPut:
		h.update(c)
	case http.MethodDelete:
		h.remove(c)
	default:
		methodNotAllowed(c)
	}
}

func (h *CartProxyHandler) get(c *gin.Context) {
	cartID := c.Query("cartId")
	if cartID == "" {
		proxyError(c, http.StatusBadRequest, "Cart ID is required", nil)
		return
	}
	h.respond(c, "Failed to get cart", cartID, func(ctx context.Context) (*ecommerce.ShopifyCart, error) {
		return h.client.GetCart(ctx, cartID)
	})
}

func (h *CartProxyHandler) post(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}

	switch req.Action {
	case CartActionCreate:
		h.respond(c, "Failed to create cart", "", h.client.CreateCart)
	case CartActionAdd:
		if req.CartID == "" || req.VariantID == "" {
			proxyError(c, http.StatusBadRequest, "Cart ID and variant ID are required", nil)
			return
		}
		quantity := 1
		if req.Quantity != nil {
			quantity = *req.Quantity
		}
		h.respond(c, "Failed to add item to cart", req.CartID, func(ctx context.Context) (*ecommerce.ShopifyCart, error) {
			return h.client.AddLines(ctx, req.CartID, req.VariantID, quantity)
		})
	default:
		proxyError(c, http.StatusBadRequest, "Invalid action", nil)
	}
}

func (h *CartProxyHandler) update(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	if req.CartID == "" || req.LineID == "" || req.Quantity == nil {
		proxyError(c, http.StatusBadRequest, "Cart ID, line ID, and quantity are required", nil)
		return
	}
	h.respond(c, "Failed to update cart item", req.CartID, func(ctx context.Context) (*ecommerce.ShopifyCart, error) {
		return h.client.UpdateLines(ctx, req.CartID, req.LineID, *req.Quantity)
	})
}

func (h *CartProxyHandler) remove(c *gin.Context) {
	req, ok := h.bind(c)
	if !ok {
		return
	}
	if req.CartID == "" || req.LineID == "" {
		proxyError(c, http.StatusBadRequest, "Cart ID and line ID are required", nil)
		return
	}
	h.respond(c, "Failed to remove cart item", req.CartID, func(ctx context.Context) (*ecommerce.ShopifyCart, error) {
		return h.client.RemoveLines(ctx, req.CartID, req.LineID)
	})
}

func (h *CartProxyHandler) bind(c *gin.Context) (*ecommerce.CartProxyRequest, bool) {
	var req ecommerce.CartProxyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		proxyError(c, http.StatusBadRequest, msgInvalidJSON, err.Error())
		return nil, false
	}
	return &req, true
}

// respond runs one storefront call and writes {cart} or the failure body
// with the upstream status.
func (h *CartProxyHandler) respond(c *gin.Context, failure, cartID string, call func(context.Context) (*ecommerce.ShopifyCart, error)) {
	ctx := c.Request.Context()
	if cartID != "" {
		ctx = logger.WithCartID(ctx, cartID)
	}
	cart, err := call(ctx)
	if err != nil {
		status := http.StatusInternalServerError
		var remoteErr *shared.RemoteError
		if errors.As(err, &remoteErr) {
			status = remoteStatus(remoteErr)
		}
		logger.L(ctx).Warn(failure,
			zap.Int("status", status),
			zap.Error(err),
		)
		proxyError(c, status, failure, remoteDetails(err))
		return
	}
	c.JSON(http.StatusOK, ecommerce.CartProxyResponse{Cart: cart})
}
