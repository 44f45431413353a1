package integration

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	catalogapp "github.com/SWFTstudios/onlyatthekiosk-website/internal/application/catalog"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/airtable"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/cache"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/ecommerce"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/persistence"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/handler"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/middleware"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/router"
	"github.com/SWFTstudios/onlyatthekiosk-website/tests/testutil"
)

// TestMain runs before any tests and handles cleanup
func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	code := m.Run()
	CleanupSharedContainers()
	os.Exit(code)
}

func newSyncService(t *testing.T, repo *persistence.GormProductRepository, fake *testutil.FakeAirtable, lock catalog.RunLock) *catalogapp.SyncService {
	t.Helper()

	cfg := airtable.NewConfig("pat-test", "appKiosk")
	cfg.APIBaseURL = fake.URL()
	client, err := airtable.NewClient(cfg)
	require.NoError(t, err)

	return catalogapp.NewSyncService(airtable.NewProductSource(client), repo, lock, zap.NewNop())
}

func TestCatalogSync_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewSharedTestDB(t)
	testDB.CleanTables()
	repo := persistence.NewGormProductRepository(testDB.DB)
	ctx := context.Background()

	fake := testutil.NewFakeAirtable(t,
		testutil.AirtableProduct("rec1", "linen-shirt", "Linen Shirt", 499),
		testutil.AirtableProduct("rec2", "wool-scarf", "Wool Scarf", 299),
		testutil.AirtableProduct("rec3", "canvas-tote", "Canvas Tote", 149),
		catalog.Record{ID: "rec4", Fields: map[string]any{"Title": "No handle"}},
	)
	fake.PageSize = 2
	service := newSyncService(t, repo, fake, cache.NewInMemoryRunLock())

	t.Run("first run creates rows", func(t *testing.T) {
		report, err := service.Run(ctx)
		require.NoError(t, err)
		assert.True(t, report.Success)
		assert.Equal(t, 4, report.Total)
		assert.Equal(t, 3, report.Operations.Created)
		assert.Equal(t, 1, report.Operations.Skipped)

		rows, err := repo.ListBySource(ctx, catalog.SourceAirtable)
		require.NoError(t, err)
		assert.Len(t, rows, 3)
	})

	t.Run("second run changes nothing", func(t *testing.T) {
		report, err := service.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, report.Operations.Created)
		assert.Equal(t, 0, report.Operations.Updated)
		assert.Equal(t, 3, report.Operations.Unchanged)
	})

	t.Run("edits and removals are mirrored", func(t *testing.T) {
		fake.SetRecords(
			testutil.AirtableProduct("rec1", "linen-shirt", "Linen Shirt (Natural)", 499),
			testutil.AirtableProduct("rec2", "wool-scarf", "Wool Scarf", 299),
		)

		report, err := service.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, report.Operations.Updated)
		assert.Equal(t, 1, report.Operations.Unchanged)
		assert.Equal(t, 1, report.Operations.Deleted)

		shirt, err := repo.FindBySourceID(ctx, catalog.SourceAirtable, "rec1")
		require.NoError(t, err)
		assert.Equal(t, "Linen Shirt (Natural)", shirt.Title)

		_, err = repo.FindBySourceID(ctx, catalog.SourceAirtable, "rec3")
		assert.ErrorIs(t, err, catalog.ErrProductNotFound)
	})

	t.Run("source failure leaves the mirror untouched", func(t *testing.T) {
		fake.FailWith(http.StatusInternalServerError)

		_, err := service.Run(ctx)
		require.Error(t, err)

		rows, err := repo.ListBySource(ctx, catalog.SourceAirtable)
		require.NoError(t, err)
		assert.Len(t, rows, 2)
	})
}

func TestCatalogSync_RedisLock_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	client := NewSharedRedis(t)
	ctx := context.Background()

	first := cache.NewRedisRunLock(client, "", 0)
	second := cache.NewRedisRunLock(client, "", 0)

	release, err := first.TryAcquire(ctx)
	require.NoError(t, err)

	_, err = second.TryAcquire(ctx)
	assert.ErrorIs(t, err, catalog.ErrSyncInProgress)

	release()
	release()

	releaseAgain, err := second.TryAcquire(ctx)
	require.NoError(t, err)
	releaseAgain()
}

func TestCartStore_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()
	stores := map[string]interface {
		Get(ctx context.Context, key string) (string, bool, error)
		Set(ctx context.Context, key, value string) error
		Delete(ctx context.Context, keys ...string) error
	}{
		"redis":    cache.NewRedisCartStore(NewSharedRedis(t), "kiosk:test:"),
		"postgres": persistence.NewGormCartStore(NewSharedTestDB(t).DB),
	}

	for name, store := range stores {
		t.Run(name, func(t *testing.T) {
			_, ok, err := store.Get(ctx, "shopify_cart_id")
			require.NoError(t, err)
			assert.False(t, ok)

			require.NoError(t, store.Set(ctx, "shopify_cart_id", "gid://shopify/Cart/1"))
			require.NoError(t, store.Set(ctx, "shopify_cart_id", "gid://shopify/Cart/2"))
			value, ok, err := store.Get(ctx, "shopify_cart_id")
			require.NoError(t, err)
			assert.True(t, ok)
			assert.Equal(t, "gid://shopify/Cart/2", value)

			require.NoError(t, store.Delete(ctx, "shopify_cart_id", "shopify_cart_items"))
			_, ok, err = store.Get(ctx, "shopify_cart_id")
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestCatalogAPI_Integration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	testDB := NewSharedTestDB(t)
	testDB.CleanTables()
	repo := persistence.NewGormProductRepository(testDB.DB)

	fake := testutil.NewFakeAirtable(t,
		testutil.AirtableProduct("rec1", "linen-shirt", "Linen Shirt", 499),
	)
	syncService := newSyncService(t, repo, fake, cache.NewInMemoryRunLock())
	webhookService := catalogapp.NewWebhookService(repo, ecommerce.ParseProductWebhook, zap.NewNop())

	catalogHandler := handler.NewCatalogHandler(syncService, catalogapp.NewQueryService(repo))
	webhookHandler := handler.NewWebhookHandler(webhookService, handler.WebhookConfig{Verify: false})

	engine := gin.New()
	engine.Use(middleware.RequestID())
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Register(router.NewDomainGroup("catalog", "/catalog").
		POST("/sync", catalogHandler.Sync).
		GET("/products", catalogHandler.ListProducts).
		GET("/products/:handle", catalogHandler.GetProduct))
	r.Register(router.NewDomainGroup("webhooks", "/webhooks").
		POST("/shopify/products", webhookHandler.ShopifyProducts))
	r.Setup()

	do := func(method, target, topic, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, target, strings.NewReader(body))
		if topic != "" {
			req.Header.Set("X-Shopify-Topic", topic)
		}
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)
		return w
	}

	w := do(http.MethodPost, "/api/v1/catalog/sync", "", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	report := testutil.DecodeJSON[map[string]any](t, w)
	assert.Equal(t, true, report["success"])
	assert.Equal(t, "1 created, 0 updated, 0 deleted, 0 skipped", report["summary"])
	ops, ok := report["operations"].(map[string]any)
	require.True(t, ok, w.Body.String())
	assert.Equal(t, float64(1), ops["created"])

	payload := string(testutil.ShopifyProductPayload(7001, "kiosk-mug", "Kiosk Mug", "129.00"))
	w = do(http.MethodPost, "/api/v1/webhooks/shopify/products", "products/create", payload)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(http.MethodGet, "/api/v1/catalog/products?page_size=10", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Success bool              `json:"success"`
		Data    []catalog.Product `json:"data"`
		Meta    struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &list))
	assert.True(t, list.Success)
	assert.Equal(t, int64(2), list.Meta.Total)

	w = do(http.MethodGet, "/api/v1/catalog/products/kiosk-mug", "", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"shopify_product_id":"7001"`)

	w = do(http.MethodPost, "/api/v1/webhooks/shopify/products", "products/delete", `{"id":7001}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = do(http.MethodGet, "/api/v1/catalog/products/kiosk-mug", "", "")
	assert.Equal(t, http.StatusNotFound, w.Code)

	fake.FailWith(http.StatusInternalServerError)
	w = do(http.MethodPost, "/api/v1/catalog/sync", "", "")
	assert.Equal(t, http.StatusBadGateway, w.Code, w.Body.String())
	failure := testutil.DecodeJSON[map[string]any](t, w)
	assert.Equal(t, false, failure["success"])
	assert.NotEmpty(t, failure["error"])
}
