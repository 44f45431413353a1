package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	catalogapp "github.com/SWFTstudios/onlyatthekiosk-website/internal/application/catalog"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/logger"
)

// SyncRunner runs one catalog reconciliation pass
type SyncRunner interface {
	Run(ctx context.Context) (*catalog.SyncReport, error)
}

// ProductQuerier reads the products mirror
type ProductQuerier interface {
	List(ctx context.Context, filter catalog.ProductFilter) (*catalogapp.ProductListResult, error)
	GetByHandle(ctx context.Context, handle string) (*catalog.Product, error)
}

// CatalogHandler serves the catalog sync trigger and the mirror reads
type CatalogHandler struct {
	BaseHandler
	sync  SyncRunner
	query ProductQuerier
}

// NewCatalogHandler creates a new CatalogHandler. sync may be nil when no
// catalog source is configured.
func NewCatalogHandler(sync SyncRunner, query ProductQuerier) *CatalogHandler {
	return &CatalogHandler{sync: sync, query: query}
}

// ListProductsQuery holds the query parameters of the mirror listing
type ListProductsQuery struct {
	Status    string `form:"status" binding:"omitempty,oneof=active draft archived"`
	Source    string `form:"source" binding:"omitempty,oneof=airtable shopify"`
	Published *bool  `form:"published"`
	Search    string `form:"search" binding:"max=100"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	PageSize  int    `form:"page_size" binding:"omitempty,min=1,max=100"`
	OrderBy   string `form:"order_by" binding:"omitempty,oneof=title handle created_at updated_at"`
	OrderDir  string `form:"order_dir" binding:"omitempty,oneof=asc desc"`
}

// SyncFailure is the body of a sync trigger that could not produce a report
type SyncFailure struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// Sync handles POST /api/v1/catalog/sync. The run is synchronous and the
// report itself is the response body, not wrapped in the API envelope.
func (h *CatalogHandler) Sync(c *gin.Context) {
	if h.sync == nil {
		h.syncFailed(c, catalog.ErrSourceNotEnabled)
		return
	}

	report, err := h.sync.Run(c.Request.Context())
	if err != nil {
		logger.GetGinLogger(c).Warn("Catalog sync request failed", zap.Error(err))
		h.syncFailed(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// syncFailed answers 409 while another run holds the lock, 502 when the
// catalog source failed and 500 otherwise.
func (h *CatalogHandler) syncFailed(c *gin.Context, err error) {
	status, msg := http.StatusInternalServerError, err.Error()

	var remoteErr *shared.RemoteError
	switch {
	case errors.Is(err, catalog.ErrSyncInProgress):
		status, msg = http.StatusConflict, "A catalog sync is already running"
	case errors.As(err, &remoteErr):
		status = http.StatusBadGateway
	case errors.Is(err, catalog.ErrSourceNotEnabled):
		msg = "Server configuration error: catalog source is not configured"
	}
	c.JSON(status, SyncFailure{Error: msg})
}

// ListProducts handles GET /api/v1/catalog/products
func (h *CatalogHandler) ListProducts(c *gin.Context) {
	var q ListProductsQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	result, err := h.query.List(c.Request.Context(), catalog.ProductFilter{
		Status:    catalog.Status(q.Status),
		Source:    catalog.SourceSystem(q.Source),
		Published: q.Published,
		Search:    q.Search,
		Page:      q.Page,
		PageSize:  q.PageSize,
		OrderBy:   q.OrderBy,
		OrderDir:  q.OrderDir,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, result.Products, result.Total, result.Page, result.PageSize)
}

// GetProduct handles GET /api/v1/catalog/products/:handle
func (h *CatalogHandler) GetProduct(c *gin.Context) {
	product, err := h.query.GetByHandle(c.Request.Context(), c.Param("handle"))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, product)
}
