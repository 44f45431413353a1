package ecommerce

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/cart"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
)

// maxResponseSize is the maximum allowed response size from Shopify (10MB)
const maxResponseSize = 10 * 1024 * 1024

var (
	ErrShopifyUnavailable     = errors.New("shopify: service unavailable")
	ErrShopifyRequestFailed   = errors.New("shopify: request failed")
	ErrShopifyGraphQL         = errors.New("shopify: graphql errors")
	ErrShopifyUserErrors      = errors.New("shopify: user errors")
	ErrShopifyInvalidResponse = errors.New("shopify: invalid response")
	ErrShopifyCartNotFound    = errors.New("shopify: cart not found")
)

const cartFields = `
fragment CartFields on Cart {
  id
  checkoutUrl
  totalQuantity
  cost { totalAmount { amount currencyCode } }
  lines(first: 100) {
    edges {
      node {
        id
        quantity
        merchandise {
          ... on ProductVariant {
            id
            title
            price { amount currencyCode }
            product {
              id
              title
              handle
              images(first: 1) { edges { node { url altText } } }
            }
          }
        }
        cost { totalAmount { amount currencyCode } }
      }
    }
  }
}`

const (
	queryGetCart = `query getCart($id: ID!) { cart(id: $id) { ...CartFields } }` + cartFields

	mutationCartCreate = `mutation cartCreate {
  cartCreate { cart { ...CartFields } userErrors { field message } }
}` + cartFields

	mutationCartLinesAdd = `mutation cartLinesAdd($cartId: ID!, $lines: [CartLineInput!]!) {
  cartLinesAdd(cartId: $cartId, lines: $lines) { cart { ...CartFields } userErrors { field message } }
}` + cartFields

	mutationCartLinesUpdate = `mutation cartLinesUpdate($cartId: ID!, $lines: [CartLineUpdateInput!]!) {
  cartLinesUpdate(cartId: $cartId, lines: $lines) { cart { ...CartFields } userErrors { field message } }
}` + cartFields

	mutationCartLinesRemove = `mutation cartLinesRemove($cartId: ID!, $lineIds: [ID!]!) {
  cartLinesRemove(cartId: $cartId, lineIds: $lineIds) { cart { ...CartFields } userErrors { field message } }
}` + cartFields
)

// cartPayload is the shape shared by every cart mutation payload
type cartPayload struct {
	Cart       *ShopifyCart       `json:"cart"`
	UserErrors []ShopifyUserError `json:"userErrors"`
}

// StorefrontClient calls the Shopify Storefront GraphQL API
type StorefrontClient struct {
	config     *ShopifyConfig
	httpClient *http.Client
}

// NewStorefrontClient creates a new Storefront client with the given configuration
func NewStorefrontClient(config *ShopifyConfig) (*StorefrontClient, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &StorefrontClient{
		config: config,
		httpClient: &http.Client{
			Timeout: time.Duration(config.TimeoutSeconds) * time.Second,
		},
	}, nil
}

// Execute forwards an arbitrary GraphQL document and returns the upstream
// status and body. Only transport failures are returned as errors; non-2xx
// statuses are the caller's to interpret.
func (c *StorefrontClient) Execute(ctx context.Context, query string, variables map[string]any) (int, []byte, error) {
	if variables == nil {
		variables = map[string]any{}
	}
	payload, err := json.Marshal(GraphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return 0, nil, fmt.Errorf("shopify: failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.GraphQLEndpoint(), bytes.NewReader(payload))
	if err != nil {
		return 0, nil, fmt.Errorf("shopify: failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Storefront-Access-Token", c.config.StorefrontToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("%w: %v", ErrShopifyUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return 0, nil, fmt.Errorf("shopify: failed to read response: %w", err)
	}
	return resp.StatusCode, body, nil
}

// ---------------------------------------------------------------------------
// Cart operations
// ---------------------------------------------------------------------------

// GetCart fetches a cart by id
func (c *StorefrontClient) GetCart(ctx context.Context, cartID string) (*ShopifyCart, error) {
	const op = "get cart"
	data, err := c.call(ctx, op, queryGetCart, map[string]any{"id": cartID})
	if err != nil {
		return nil, err
	}
	var out struct {
		Cart *ShopifyCart `json:"cart"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, invalidResponse(op, err)
	}
	if out.Cart == nil {
		return nil, &shared.RemoteError{Service: "shopify", Op: op, StatusCode: http.StatusNotFound, Message: "cart not found", Err: ErrShopifyCartNotFound}
	}
	return out.Cart, nil
}

// CreateCart creates an empty cart
func (c *StorefrontClient) CreateCart(ctx context.Context) (*ShopifyCart, error) {
	return c.mutateCart(ctx, "create cart", "cartCreate", mutationCartCreate, nil)
}

// AddLines adds one variant line to a cart
func (c *StorefrontClient) AddLines(ctx context.Context, cartID, variantID string, quantity int) (*ShopifyCart, error) {
	return c.mutateCart(ctx, "add item to cart", "cartLinesAdd", mutationCartLinesAdd, map[string]any{
		"cartId": cartID,
		"lines":  []map[string]any{{"merchandiseId": variantID, "quantity": quantity}},
	})
}

// UpdateLines sets the quantity of one line; quantity 0 removes it
func (c *StorefrontClient) UpdateLines(ctx context.Context, cartID, lineID string, quantity int) (*ShopifyCart, error) {
	return c.mutateCart(ctx, "update cart item", "cartLinesUpdate", mutationCartLinesUpdate, map[string]any{
		"cartId": cartID,
		"lines":  []map[string]any{{"id": lineID, "quantity": quantity}},
	})
}

// RemoveLines removes one line from a cart
func (c *StorefrontClient) RemoveLines(ctx context.Context, cartID, lineID string) (*ShopifyCart, error) {
	return c.mutateCart(ctx, "remove cart item", "cartLinesRemove", mutationCartLinesRemove, map[string]any{
		"cartId":  cartID,
		"lineIds": []string{lineID},
	})
}

func (c *StorefrontClient) mutateCart(ctx context.Context, op, field, mutation string, variables map[string]any) (*ShopifyCart, error) {
	data, err := c.call(ctx, op, mutation, variables)
	if err != nil {
		return nil, err
	}

	var out map[string]cartPayload
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, invalidResponse(op, err)
	}
	payload, ok := out[field]
	if !ok {
		return nil, invalidResponse(op, fmt.Errorf("missing %s payload", field))
	}
	if len(payload.UserErrors) > 0 {
		details, _ := json.Marshal(payload.UserErrors)
		return nil, &shared.RemoteError{
			Service:    "shopify",
			Op:         op,
			StatusCode: http.StatusUnprocessableEntity,
			Message:    payload.UserErrors[0].Message,
			Details:    details,
			Err:        ErrShopifyUserErrors,
		}
	}
	if payload.Cart == nil {
		return nil, invalidResponse(op, errors.New("missing cart"))
	}
	return payload.Cart, nil
}

// call executes a document and returns its data member, mapping non-2xx
// statuses and GraphQL errors onto RemoteError.
func (c *StorefrontClient) call(ctx context.Context, op, query string, variables map[string]any) (json.RawMessage, error) {
	status, body, err := c.Execute(ctx, query, variables)
	if err != nil {
		return nil, &shared.RemoteError{Service: "shopify", Op: op, Err: err}
	}

	var resp GraphQLResponse
	decodeErr := json.Unmarshal(body, &resp)

	if status < 200 || status >= 300 {
		remoteErr := &shared.RemoteError{Service: "shopify", Op: op, StatusCode: status, Err: ErrShopifyRequestFailed}
		if decodeErr == nil {
			remoteErr.Message = resp.Message
			if resp.HasErrors() {
				remoteErr.Details = resp.Errors
			}
		}
		return nil, remoteErr
	}
	if decodeErr != nil {
		return nil, invalidResponse(op, decodeErr)
	}
	if resp.HasErrors() {
		return nil, &shared.RemoteError{
			Service:    "shopify",
			Op:         op,
			StatusCode: http.StatusBadGateway,
			Message:    "graphql errors",
			Details:    resp.Errors,
			Err:        ErrShopifyGraphQL,
		}
	}
	return resp.Data, nil
}

func invalidResponse(op string, err error) error {
	return &shared.RemoteError{
		Service:    "shopify",
		Op:         op,
		StatusCode: http.StatusBadGateway,
		Message:    "malformed response",
		Err:        fmt.Errorf("%w: %v", ErrShopifyInvalidResponse, err),
	}
}

// ---------------------------------------------------------------------------
// StorefrontCartService
// ---------------------------------------------------------------------------

// StorefrontCartService adapts StorefrontClient to cart.RemoteService
type StorefrontCartService struct {
	client *StorefrontClient
}

// NewStorefrontCartService creates a remote cart service backed by the Storefront API
func NewStorefrontCartService(client *StorefrontClient) *StorefrontCartService {
	return &StorefrontCartService{client: client}
}

func (s *StorefrontCartService) CreateCart(ctx context.Context) (*cart.Cart, error) {
	return toDomainCart(s.client.CreateCart(ctx))
}

func (s *StorefrontCartService) AddLine(ctx context.Context, cartID, variantID string, quantity int) (*cart.Cart, error) {
	return toDomainCart(s.client.AddLines(ctx, cartID, variantID, quantity))
}

func (s *StorefrontCartService) UpdateLine(ctx context.Context, cartID, lineID string, quantity int) (*cart.Cart, error) {
	return toDomainCart(s.client.UpdateLines(ctx, cartID, lineID, quantity))
}

func (s *StorefrontCartService) RemoveLine(ctx context.Context, cartID, lineID string) (*cart.Cart, error) {
	return toDomainCart(s.client.RemoveLines(ctx, cartID, lineID))
}

func (s *StorefrontCartService) GetCart(ctx context.Context, cartID string) (*cart.Cart, error) {
	return toDomainCart(s.client.GetCart(ctx, cartID))
}

func toDomainCart(c *ShopifyCart, err error) (*cart.Cart, error) {
	if err != nil {
		return nil, err
	}
	return c.ToDomain(), nil
}

var _ cart.RemoteService = (*StorefrontCartService)(nil)
