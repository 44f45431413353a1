package catalog

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/telemetry"
)

// Webhook operations
const (
	OperationCreated = "created"
	OperationUpdated = "updated"
	OperationDeleted = "deleted"
)

// ProductPayloadParser decodes a webhook body into a mirror row keyed by
// ShopifyProductID.
type ProductPayloadParser func(body []byte) (*catalog.Product, error)

// WebhookResult is returned to the webhook caller
type WebhookResult struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Operation string `json:"operation"`
	ProductID string `json:"product_id"`
}

// WebhookService applies Shopify product webhooks to the mirror table
type WebhookService struct {
	repo   catalog.MirrorRepository
	parse  ProductPayloadParser
	logger *zap.Logger
}

// NewWebhookService creates a new WebhookService
func NewWebhookService(repo catalog.MirrorRepository, parse ProductPayloadParser, logger *zap.Logger) *WebhookService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebhookService{
		repo:   repo,
		parse:  parse,
		logger: logger.Named("catalog_webhook"),
	}
}

// Apply handles one webhook delivery. A topic containing "delete" removes
// the row, any other topic upserts it.
func (s *WebhookService) Apply(ctx context.Context, topic string, payload []byte) (result *WebhookResult, err error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "catalog_webhook", "apply", "topic", topic)
	defer func() {
		telemetry.RecordError(span, err)
		span.End()
	}()

	row, err := s.parse(payload)
	if err != nil {
		return nil, shared.NewValidationError("payload", err.Error())
	}
	if row.ShopifyProductID == "" {
		return nil, shared.NewValidationError("id", "product id is required")
	}

	if strings.Contains(strings.ToLower(topic), "delete") {
		return s.delete(ctx, row.ShopifyProductID)
	}
	return s.upsert(ctx, topic, row)
}

func (s *WebhookService) delete(ctx context.Context, productID string) (*WebhookResult, error) {
	deleted, err := s.repo.DeleteBySourceIDs(ctx, catalog.SourceShopify, []string{productID})
	if err != nil {
		return nil, err
	}
	s.logger.Info("mirror row deleted from webhook",
		zap.String("product_id", productID),
		zap.Int64("rows", deleted),
	)
	return &WebhookResult{
		Success:   true,
		Message:   "Product deleted",
		Operation: OperationDeleted,
		ProductID: productID,
	}, nil
}

func (s *WebhookService) upsert(ctx context.Context, topic string, row *catalog.Product) (*WebhookResult, error) {
	if err := row.Validate(); err != nil {
		switch {
		case errors.Is(err, catalog.ErrMissingHandle):
			return nil, shared.NewValidationError("handle", "product handle is required")
		case errors.Is(err, catalog.ErrMissingTitle):
			return nil, shared.NewValidationError("title", "product title is required")
		}
		return nil, err
	}

	current, err := s.repo.FindBySourceID(ctx, catalog.SourceShopify, row.ShopifyProductID)
	if err != nil && !errors.Is(err, catalog.ErrProductNotFound) {
		return nil, err
	}

	result := &WebhookResult{Success: true, ProductID: row.ShopifyProductID}
	if current == nil {
		if err := s.repo.Create(ctx, row); err != nil {
			return nil, err
		}
		result.Message, result.Operation = "Product created", OperationCreated
	} else {
		if !current.SameContent(row) {
			current.CopyContentFrom(row)
			if err := s.repo.Update(ctx, current); err != nil {
				return nil, err
			}
		}
		result.Message, result.Operation = "Product updated", OperationUpdated
	}

	s.logger.Info("mirror row upserted from webhook",
		zap.String("topic", topic),
		zap.String("product_id", row.ShopifyProductID),
		zap.String("operation", result.Operation),
	)
	return result, nil
}
