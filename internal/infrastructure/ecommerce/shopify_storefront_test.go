package ecommerce

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/config"
)

// ---------------------------------------------------------------------------
// Config Tests
// ---------------------------------------------------------------------------

func TestShopifyConfig_Validate(t *testing.T) {
	cfg := &ShopifyConfig{StorefrontToken: "tok"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, DefaultShopifyStore, cfg.StoreDomain)
	assert.Equal(t, DefaultShopifyAPIVersion, cfg.APIVersion)
	assert.Equal(t, 30, cfg.TimeoutSeconds)
	assert.Equal(t, "https://onlyatthekiosk.com/api/2024-01/graphql.json", cfg.GraphQLEndpoint())

	assert.ErrorIs(t, (&ShopifyConfig{}).Validate(), ErrShopifyConfigMissingToken)
}

func TestShopifyConfigFromSettings(t *testing.T) {
	cfg := ShopifyConfigFromSettings(config.ShopifyConfig{
		StorefrontToken: "tok",
		APIVersion:      "2025-01",
		WebhookSecret:   "shh",
	})
	assert.Equal(t, DefaultShopifyStore, cfg.StoreDomain)
	assert.Equal(t, "2025-01", cfg.APIVersion)
	assert.Equal(t, "shh", cfg.WebhookSecret)
	assert.False(t, cfg.VerifyWebhook)
	assert.Equal(t, 30, cfg.TimeoutSeconds)
}

func TestShopifyConfig_GraphQLEndpoint(t *testing.T) {
	cfg := &ShopifyConfig{StoreDomain: "https://kiosk.myshopify.com/", APIVersion: "2025-01"}
	assert.Equal(t, "https://kiosk.myshopify.com/api/2025-01/graphql.json", cfg.GraphQLEndpoint())

	cfg.Endpoint = "http://127.0.0.1:9999/graphql"
	assert.Equal(t, "http://127.0.0.1:9999/graphql", cfg.GraphQLEndpoint())
}

// ---------------------------------------------------------------------------
// Mock Storefront
// ---------------------------------------------------------------------------

func sampleCart(id string, lines ...map[string]any) map[string]any {
	edges := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		edges = append(edges, map[string]any{"node": l})
	}
	return map[string]any{
		"id":            id,
		"checkoutUrl":   "https://checkout.example/" + id,
		"totalQuantity": 0,
		"cost":          map[string]any{"totalAmount": map[string]any{"amount": "0.0", "currencyCode": "SEK"}},
		"lines":         map[string]any{"edges": edges},
	}
}

func sampleLine(id, variantID string, qty int, price string) map[string]any {
	return map[string]any{
		"id":       id,
		"quantity": qty,
		"merchandise": map[string]any{
			"id":    variantID,
			"title": "Default Title",
			"price": map[string]any{"amount": price, "currencyCode": "SEK"},
			"product": map[string]any{
				"id":     "gid://shopify/Product/1",
				"title":  "Linen Shirt",
				"handle": "linen-shirt",
				"images": map[string]any{"edges": []map[string]any{
					{"node": map[string]any{"url": "https://cdn.example/a.jpg", "altText": "shirt"}},
				}},
			},
		},
		"cost": map[string]any{"totalAmount": map[string]any{"amount": "0", "currencyCode": "SEK"}},
	}
}

// createMockStorefront routes by the GraphQL operation name found in the query.
func createMockStorefront(t *testing.T, handle func(op string, vars map[string]any) (int, any)) *StorefrontClient {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "test-token", r.Header.Get("X-Shopify-Storefront-Access-Token"))

		var req GraphQLRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		op := ""
		for _, name := range []string{"cartCreate", "cartLinesAdd", "cartLinesUpdate", "cartLinesRemove", "getCart"} {
			if strings.Contains(req.Query, name) {
				op = name
				break
			}
		}
		status, body := handle(op, req.Variables)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)

	cfg := NewShopifyConfig("test-token")
	cfg.Endpoint = server.URL
	client, err := NewStorefrontClient(cfg)
	require.NoError(t, err)
	return client
}

// ---------------------------------------------------------------------------
// Storefront Tests
// ---------------------------------------------------------------------------

func TestStorefrontClient_CreateCart(t *testing.T) {
	client := createMockStorefront(t, func(op string, vars map[string]any) (int, any) {
		assert.Equal(t, "cartCreate", op)
		return http.StatusOK, map[string]any{"data": map[string]any{
			"cartCreate": map[string]any{"cart": sampleCart("gid://shopify/Cart/1"), "userErrors": []any{}},
		}}
	})

	c, err := client.CreateCart(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "gid://shopify/Cart/1", c.ID)
	assert.Equal(t, "https://checkout.example/gid://shopify/Cart/1", c.CheckoutURL)
}

func TestStorefrontCartService_AddLineMapsToDomain(t *testing.T) {
	client := createMockStorefront(t, func(op string, vars map[string]any) (int, any) {
		assert.Equal(t, "cartLinesAdd", op)
		assert.Equal(t, "cart-1", vars["cartId"])
		lines := vars["lines"].([]any)
		first := lines[0].(map[string]any)
		assert.Equal(t, "variant-1", first["merchandiseId"])
		assert.Equal(t, float64(2), first["quantity"])

		return http.StatusOK, map[string]any{"data": map[string]any{
			"cartLinesAdd": map[string]any{
				"cart":       sampleCart("cart-1", sampleLine("line-1", "variant-1", 2, "199.50")),
				"userErrors": []any{},
			},
		}}
	})

	svc := NewStorefrontCartService(client)
	c, err := svc.AddLine(context.Background(), "cart-1", "variant-1", 2)
	require.NoError(t, err)
	require.Len(t, c.Lines, 1)

	line := c.Lines[0]
	assert.Equal(t, "line-1", line.LineID)
	assert.Equal(t, "variant-1", line.VariantID)
	assert.Equal(t, 2, line.Quantity)
	assert.True(t, decimal.RequireFromString("199.50").Equal(line.UnitPrice))
	assert.Equal(t, "Linen Shirt", line.Product.Title)
	assert.Equal(t, "linen-shirt", line.Product.Handle)
	assert.Equal(t, "https://cdn.example/a.jpg", line.Product.Image)
	assert.Equal(t, "SEK", c.Currency)
}

func TestStorefrontClient_UserErrors(t *testing.T) {
	client := createMockStorefront(t, func(op string, vars map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"data": map[string]any{
			"cartLinesUpdate": map[string]any{
				"cart": nil,
				"userErrors": []map[string]any{
					{"field": []string{"lines", "0", "id"}, "message": "The merchandise line does not exist"},
				},
			},
		}}
	})

	_, err := client.UpdateLines(context.Background(), "cart-1", "missing", 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrShopifyUserErrors))

	var remoteErr *shared.RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusUnprocessableEntity, remoteErr.StatusCode)
	assert.Equal(t, "The merchandise line does not exist", remoteErr.Message)
	assert.Contains(t, string(remoteErr.Details), "merchandise line")
}

func TestStorefrontClient_GraphQLErrors(t *testing.T) {
	client := createMockStorefront(t, func(op string, vars map[string]any) (int, any) {
		return http.StatusOK, map[string]any{"errors": []map[string]any{{"message": "Throttled"}}}
	})

	_, err := client.GetCart(context.Background(), "cart-1")
	assert.True(t, errors.Is(err, ErrShopifyGraphQL))

	var remoteErr *shared.RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusBadGateway, remoteErr.StatusCode)
	assert.Contains(t, string(remoteErr.Details), "Throttled")
}

func TestStorefrontClient_HTTPError(t *testing.T) {
	client := createMockStorefront(t, func(op string, vars map[string]any) (int, any) {
		return http.StatusUnauthorized, map[string]any{"errors": "[API] Invalid API key or access token"}
	})

	_, err := client.CreateCart(context.Background())
	assert.True(t, errors.Is(err, ErrShopifyRequestFailed))

	var remoteErr *shared.RemoteError
	require.True(t, errors.As(err, &remoteErr))
	assert.Equal(t, http.StatusUnauthorized, remoteErr.StatusCode)
	assert.Contains(t, string(remoteErr.Details), "Invalid API key")
}

func TestStorefrontClient_GetCartNotFound(t *testing.T) {
	client := createMockStorefront(t, func(op string, vars map[string]any) (int, any) {
		assert.Equal(t, "getCart", op)
		assert.Equal(t, "cart-x", vars["id"])
		return http.StatusOK, map[string]any{"data": map[string]any{"cart": nil}}
	})

	_, err := client.GetCart(context.Background(), "cart-x")
	assert.True(t, errors.Is(err, ErrShopifyCartNotFound))
}

func TestStorefrontClient_Execute_PassesThrough(t *testing.T) {
	client := createMockStorefront(t, func(op string, vars map[string]any) (int, any) {
		assert.Equal(t, "bar", vars["foo"])
		return http.StatusOK, map[string]any{"data": map[string]any{"shop": map[string]any{"name": "Kiosk"}}}
	})

	status, body, err := client.Execute(context.Background(), "{ shop { name } }", map[string]any{"foo": "bar"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"data":{"shop":{"name":"Kiosk"}}}`, string(body))
}

// ---------------------------------------------------------------------------
// Cart conversion Tests
// ---------------------------------------------------------------------------

func TestShopifyCart_ToDomain_UnitPriceFallback(t *testing.T) {
	var c ShopifyCart
	raw := `{
		"id": "cart-1",
		"cost": {"totalAmount": {"amount": "90.00", "currencyCode": ""}},
		"lines": {"edges": [{"node": {
			"id": "line-1",
			"quantity": 3,
			"merchandise": {"id": "v1", "price": {"amount": "", "currencyCode": "EUR"}},
			"cost": {"totalAmount": {"amount": "90.00", "currencyCode": "EUR"}}
		}}]}
	}`
	require.NoError(t, json.Unmarshal([]byte(raw), &c))

	d := c.ToDomain()
	require.Len(t, d.Lines, 1)
	assert.True(t, decimal.NewFromInt(30).Equal(d.Lines[0].UnitPrice))
	assert.Equal(t, "EUR", d.Currency)
	assert.True(t, decimal.NewFromInt(90).Equal(d.TotalAmount))
}
