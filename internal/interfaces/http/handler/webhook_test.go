package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	catalogapp "github.com/SWFTstudios/onlyatthekiosk-website/internal/application/catalog"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/ecommerce"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/dto"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/interfaces/http/middleware"
	"github.com/SWFTstudios/onlyatthekiosk-website/tests/testutil"
)

type mockWebhookApplier struct {
	mock.Mock
}

func (m *mockWebhookApplier) Apply(ctx context.Context, topic string, payload []byte) (*catalogapp.WebhookResult, error) {
	args := m.Called(ctx, topic, string(payload))
	if result := args.Get(0); result != nil {
		return result.(*catalogapp.WebhookResult), args.Error(1)
	}
	return nil, args.Error(1)
}

const webhookBody = `{"id":123,"title":"Tote","handle":"tote"}`

func postWebhook(engine *gin.Engine, body, topic, signature string) *httptest.ResponseRecorder {
	return testutil.Serve(engine, http.MethodPost, "/api/v1/webhooks/shopify/products", body, webhookHeaders(topic, signature))
}

func webhookHeaders(topic, signature string) map[string]string {
	headers := map[string]string{}
	if topic != "" {
		headers[ecommerce.HeaderShopifyTopic] = topic
	}
	if signature != "" {
		headers[ecommerce.HeaderShopifyHmac] = signature
	}
	return headers
}

func newWebhookRouter(service WebhookApplier, cfg WebhookConfig, mws ...gin.HandlerFunc) *gin.Engine {
	engine := gin.New()
	engine.Use(mws...)
	engine.POST("/api/v1/webhooks/shopify/products", NewWebhookHandler(service, cfg).ShopifyProducts)
	return engine
}

func TestWebhookHandler_ValidSignature(t *testing.T) {
	service := new(mockWebhookApplier)
	service.On("Apply", mock.Anything, "products/update", webhookBody).Return(&catalogapp.WebhookResult{
		Success:   true,
		Message:   "Product updated",
		Operation: catalogapp.OperationUpdated,
		ProductID: "123",
	}, nil)

	engine := newWebhookRouter(service, WebhookConfig{Secret: "shh", Verify: true})
	w := postWebhook(engine, webhookBody, "products/update", ecommerce.SignWebhook([]byte(webhookBody), "shh"))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"operation":"updated"`)
	service.AssertExpectations(t)
}

func TestWebhookHandler_InvalidSignature(t *testing.T) {
	service := new(mockWebhookApplier)
	engine := newWebhookRouter(service, WebhookConfig{Secret: "shh", Verify: true})

	testutil.RunHTTPCases(t, engine, []testutil.HTTPCase{
		{
			Name:       "wrong secret",
			Method:     http.MethodPost,
			Path:       "/api/v1/webhooks/shopify/products",
			Body:       webhookBody,
			Headers:    webhookHeaders("products/update", ecommerce.SignWebhook([]byte(webhookBody), "other")),
			WantStatus: http.StatusUnauthorized,
			WantCode:   dto.ErrCodeUnauthorized,
		},
		{
			Name:       "missing signature",
			Method:     http.MethodPost,
			Path:       "/api/v1/webhooks/shopify/products",
			Body:       webhookBody,
			Headers:    webhookHeaders("products/update", ""),
			WantStatus: http.StatusUnauthorized,
			WantCode:   dto.ErrCodeUnauthorized,
		},
	})

	service.AssertNotCalled(t, "Apply", mock.Anything, mock.Anything, mock.Anything)
}

func TestWebhookHandler_VerificationSkipped(t *testing.T) {
	for name, cfg := range map[string]WebhookConfig{
		"no secret":    {Verify: true},
		"verify false": {Secret: "shh", Verify: false},
	} {
		t.Run(name, func(t *testing.T) {
			service := new(mockWebhookApplier)
			service.On("Apply", mock.Anything, "products/delete", `{"id":123}`).Return(&catalogapp.WebhookResult{
				Success:   true,
				Operation: catalogapp.OperationDeleted,
				ProductID: "123",
			}, nil)

			w := postWebhook(newWebhookRouter(service, cfg), `{"id":123}`, "products/delete", "")
			assert.Equal(t, http.StatusOK, w.Code)
			service.AssertExpectations(t)
		})
	}
}

func TestWebhookHandler_Errors(t *testing.T) {
	invalid := new(mockWebhookApplier)
	invalid.On("Apply", mock.Anything, "products/create", `{"id":1}`).
		Return(nil, shared.NewValidationError("handle", "product handle is required"))

	testutil.RunHTTPCases(t, newWebhookRouter(new(mockWebhookApplier), WebhookConfig{}), []testutil.HTTPCase{{
		Name:       "topic required",
		Method:     http.MethodPost,
		Path:       "/api/v1/webhooks/shopify/products",
		Body:       webhookBody,
		WantStatus: http.StatusBadRequest,
		WantCode:   dto.ErrCodeBadRequest,
	}})

	testutil.RunHTTPCases(t, newWebhookRouter(invalid, WebhookConfig{}), []testutil.HTTPCase{{
		Name:       "validation error",
		Method:     http.MethodPost,
		Path:       "/api/v1/webhooks/shopify/products",
		Body:       `{"id":1}`,
		Headers:    webhookHeaders("products/create", ""),
		WantStatus: http.StatusBadRequest,
		WantCode:   dto.ErrCodeValidation,
		Check: func(t *testing.T, w *httptest.ResponseRecorder) {
			assert.Contains(t, w.Body.String(), `"field":"handle"`)
		},
	}})

	t.Run("body too large", func(t *testing.T) {
		engine := newWebhookRouter(new(mockWebhookApplier), WebhookConfig{}, func(c *gin.Context) {
			c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, 8)
			c.Next()
		}, middleware.RequestID())

		w := postWebhook(engine, webhookBody, "products/update", "")
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		testutil.AssertEnvelopeError(t, w, dto.ErrCodeRequestTooLarge)
	})
}
