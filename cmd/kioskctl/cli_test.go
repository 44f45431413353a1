package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/config"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/ecommerce"
)

func setupCLI(t *testing.T, c *config.Config) {
	t.Helper()
	cfg = c
	log = zap.NewNop()
	t.Cleanup(func() {
		cfg = nil
		log = nil
		cartAPIURL, cartStatePath = "", ""
		cartDirect = false
		airtableTable, airtableMax = "", 0
	})
}

func newTestCommand() (*cobra.Command, *bytes.Buffer) {
	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetOut(&out)
	return cmd, &out
}

func cartBody(lines ...map[string]any) map[string]any {
	edges := make([]map[string]any, 0, len(lines))
	for _, l := range lines {
		edges = append(edges, map[string]any{"node": l})
	}
	return map[string]any{"cart": map[string]any{
		"id":            "gid://shopify/Cart/1",
		"checkoutUrl":   "https://checkout.example/1",
		"totalQuantity": 0,
		"cost":          map[string]any{"totalAmount": map[string]any{"amount": "250.0", "currencyCode": "SEK"}},
		"lines":         map[string]any{"edges": edges},
	}}
}

func shirtLine(qty int) map[string]any {
	return map[string]any{
		"id":       "line-1",
		"quantity": qty,
		"merchandise": map[string]any{
			"id":      "v-1",
			"title":   "Default Title",
			"price":   map[string]any{"amount": "125.0", "currencyCode": "SEK"},
			"product": map[string]any{"id": "gid://shopify/Product/1", "title": "Linen Shirt", "handle": "linen-shirt"},
		},
		"cost": map[string]any{"totalAmount": map[string]any{"amount": "250.0", "currencyCode": "SEK"}},
	}
}

// newCartProxy fakes the storefront cart proxy with a single cart
func newCartProxy(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ecommerce.CartProxyPath, r.URL.Path)
		var req ecommerce.CartProxyRequest
		if r.Method != http.MethodGet {
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		}

		var body map[string]any
		switch {
		case req.Action == "create":
			body = cartBody()
		case req.Action == "add":
			body = cartBody(shirtLine(*req.Quantity))
		case req.Action == "remove":
			body = cartBody()
		default:
			body = cartBody(shirtLine(2))
		}
		_ = json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestCartCommands(t *testing.T) {
	proxy := newCartProxy(t)
	setupCLI(t, &config.Config{Cart: config.CartConfig{
		APIURL:    proxy.URL,
		StatePath: filepath.Join(t.TempDir(), "cart.db"),
		Timeout:   5 * time.Second,
	}})

	cmd, out := newTestCommand()
	require.NoError(t, runCartAdd(cmd, []string{"v-1", "2"}))
	assert.Contains(t, out.String(), "cart changed: 2 item(s)")
	assert.Contains(t, out.String(), "Linen Shirt")

	// A new invocation restores the persisted session
	cmd, out = newTestCommand()
	require.NoError(t, runCartShow(cmd, nil))
	assert.Contains(t, out.String(), "cart gid://shopify/Cart/1")
	assert.Contains(t, out.String(), "line-1")
	assert.Contains(t, out.String(), "2 item(s)")

	cmd, out = newTestCommand()
	require.NoError(t, runCartRemove(cmd, []string{"line-1"}))
	assert.Contains(t, out.String(), "cart changed: 0 item(s)")

	cmd, _ = newTestCommand()
	require.NoError(t, runCartClear(cmd, nil))

	cmd, out = newTestCommand()
	require.NoError(t, runCartShow(cmd, nil))
	assert.Equal(t, "no active cart\n", out.String())
}

func TestCartCommands_FlagsOverrideConfig(t *testing.T) {
	proxy := newCartProxy(t)
	setupCLI(t, &config.Config{Cart: config.CartConfig{
		APIURL:    "http://127.0.0.1:1",
		StatePath: filepath.Join(t.TempDir(), "unused.db"),
		Timeout:   5 * time.Second,
	}})
	cartAPIURL = proxy.URL
	cartStatePath = filepath.Join(t.TempDir(), "flag.db")

	cmd, out := newTestCommand()
	require.NoError(t, runCartAdd(cmd, []string{"v-1"}))
	assert.Contains(t, out.String(), "cart changed: 1 item(s)")
}

func TestCartRefresh_NoCart(t *testing.T) {
	setupCLI(t, &config.Config{Cart: config.CartConfig{
		APIURL:    "http://127.0.0.1:1",
		StatePath: filepath.Join(t.TempDir(), "cart.db"),
		Timeout:   time.Second,
	}})

	cmd, _ := newTestCommand()
	err := runCartRefresh(cmd, nil)
	var stateErr *shared.StateError
	assert.ErrorAs(t, err, &stateErr)
}

func TestParseQuantity(t *testing.T) {
	q, err := parseQuantity("3")
	require.NoError(t, err)
	assert.Equal(t, 3, q)

	q, err = parseQuantity("0")
	require.NoError(t, err)
	assert.Equal(t, 0, q)

	_, err = parseQuantity("-1")
	assert.Error(t, err)
	_, err = parseQuantity("two")
	assert.Error(t, err)
}

func TestFormatMoney(t *testing.T) {
	amount := decimal.RequireFromString("12.5")

	usd := formatMoney(amount, "USD")
	assert.Contains(t, usd, "$")
	assert.Contains(t, usd, "12.5")

	assert.Equal(t, "12.50 XYZ", formatMoney(amount, "XYZ"))
}

func TestAirtableList(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/app1/Products", r.URL.Path)
		assert.Equal(t, "2", r.URL.Query().Get("maxRecords"))
		assert.Equal(t, "Bearer pat-1", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(`{"records":[{"id":"rec1","fields":{"Name":"Tee"}}]}`))
	}))
	defer server.Close()

	setupCLI(t, &config.Config{Airtable: config.AirtableConfig{
		AccessToken: "pat-1",
		BaseID:      "app1",
		APIBaseURL:  server.URL,
	}})
	airtableTable = "Products"
	airtableMax = 2

	cmd, out := newTestCommand()
	require.NoError(t, runAirtableList(cmd, nil))
	assert.Contains(t, out.String(), `"id": "rec1"`)
}

func TestAirtableList_NotConfigured(t *testing.T) {
	setupCLI(t, &config.Config{})
	airtableTable = "Products"

	cmd, _ := newTestCommand()
	assert.ErrorIs(t, runAirtableList(cmd, nil), errAirtableNotConfigured)
}

func TestCatalogSync_NotConfigured(t *testing.T) {
	setupCLI(t, &config.Config{})

	cmd, _ := newTestCommand()
	assert.ErrorIs(t, runCatalogSync(cmd, nil), errAirtableNotConfigured)
}

func TestCartDirect_NotConfigured(t *testing.T) {
	c := &config.Config{}
	c.Cart.StatePath = filepath.Join(t.TempDir(), "cart.db")
	setupCLI(t, c)
	cartDirect = true

	cmd, _ := newTestCommand()
	err := runCartRefresh(cmd, nil)
	assert.ErrorIs(t, err, errStorefrontNotConfigured)
}
