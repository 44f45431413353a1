package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/cart"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
)

// CartProxyPath is where the storefront cart proxy is mounted
const CartProxyPath = "/api/shopify-cart"

var ErrCartProxyMissingBaseURL = errors.New("cart proxy: base url is required")

// CartProxyRequest is the JSON body accepted by the cart proxy
type CartProxyRequest struct {
	Action    string `json:"action"`
	CartID    string `json:"cartId,omitempty"`
	VariantID string `json:"variantId,omitempty"`
	LineID    string `json:"lineId,omitempty"`
	Quantity  *int   `json:"quantity,omitempty"`
}

// CartProxyResponse is the success body of the cart proxy
type CartProxyResponse struct {
	Cart *ShopifyCart `json:"cart"`
}

// CartProxyError is the failure body of the cart proxy
type CartProxyError struct {
	Error   string          `json:"error"`
	Details json.RawMessage `json:"details,omitempty"`
}

// CartProxyClient implements cart.RemoteService against the storefront's own
// cart proxy endpoint, the way the browser talks to it.
type CartProxyClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewCartProxyClient creates a client for the cart proxy at baseURL
func NewCartProxyClient(baseURL string, timeout time.Duration) (*CartProxyClient, error) {
	if baseURL == "" {
		return nil, ErrCartProxyMissingBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &CartProxyClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *CartProxyClient) CreateCart(ctx context.Context) (*cart.Cart, error) {
	return c.do(ctx, "create cart", http.MethodPost, "", &CartProxyRequest{Action: "create"})
}

func (c *CartProxyClient) AddLine(ctx context.Context, cartID, variantID string, quantity int) (*cart.Cart, error) {
	return c.do(ctx, "add item to cart", http.MethodPost, "", &CartProxyRequest{
		Action:    "add",
		CartID:    cartID,
		VariantID: variantID,
		Quantity:  &quantity,
	})
}

func (c *CartProxyClient) UpdateLine(ctx context.Context, cartID, lineID string, quantity int) (*cart.Cart, error) {
	return c.do(ctx, "update cart item", http.MethodPut, "", &CartProxyRequest{
		Action:   "update",
		CartID:   cartID,
		LineID:   lineID,
		Quantity: &quantity,
	})
}

func (c *CartProxyClient) RemoveLine(ctx context.Context, cartID, lineID string) (*cart.Cart, error) {
	return c.do(ctx, "remove cart item", http.MethodDelete, "", &CartProxyRequest{
		Action: "remove",
		CartID: cartID,
		LineID: lineID,
	})
}

func (c *CartProxyClient) GetCart(ctx context.Context, cartID string) (*cart.Cart, error) {
	return c.do(ctx, "get cart", http.MethodGet, "?cartId="+url.QueryEscape(cartID), nil)
}

func (c *CartProxyClient) do(ctx context.Context, op, method, query string, body *CartProxyRequest) (*cart.Cart, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("cart proxy: failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+CartProxyPath+query, reader)
	if err != nil {
		return nil, fmt.Errorf("cart proxy: failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &shared.RemoteError{Service: "cart proxy", Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &shared.RemoteError{Service: "cart proxy", Op: op, StatusCode: resp.StatusCode, Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		remoteErr := &shared.RemoteError{Service: "cart proxy", Op: op, StatusCode: resp.StatusCode}
		var perr CartProxyError
		if json.Unmarshal(raw, &perr) == nil {
			remoteErr.Message = perr.Error
			remoteErr.Details = perr.Details
		}
		return nil, remoteErr
	}

	var out CartProxyResponse
	if err := json.Unmarshal(raw, &out); err != nil || out.Cart == nil {
		if err == nil {
			err = errors.New("missing cart")
		}
		return nil, &shared.RemoteError{Service: "cart proxy", Op: op, StatusCode: resp.StatusCode, Message: "malformed response", Err: err}
	}
	return out.Cart.ToDomain(), nil
}

var _ cart.RemoteService = (*CartProxyClient)(nil)
