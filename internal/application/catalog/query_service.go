package catalog

import (
	"context"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
)

// ProductListResult is one page of mirror rows
type ProductListResult struct {
	Products []catalog.Product `json:"products"`
	Total    int64             `json:"total"`
	Page     int               `json:"page"`
	PageSize int               `json:"page_size"`
}

// QueryService serves read access to the mirror table
type QueryService struct {
	repo catalog.MirrorRepository
}

// NewQueryService creates a new QueryService
func NewQueryService(repo catalog.MirrorRepository) *QueryService {
	return &QueryService{repo: repo}
}

// List returns a page of mirror rows
func (s *QueryService) List(ctx context.Context, filter catalog.ProductFilter) (*ProductListResult, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, catalog.ErrInvalidStatus
	}
	if filter.Source != "" && !filter.Source.IsValid() {
		return nil, catalog.ErrInvalidSource
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize < 1 {
		filter.PageSize = 20
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}

	products, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	return &ProductListResult{
		Products: products,
		Total:    total,
		Page:     filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// GetByHandle returns one mirror row, catalog.ErrProductNotFound when absent
func (s *QueryService) GetByHandle(ctx context.Context, handle string) (*catalog.Product, error) {
	return s.repo.FindByHandle(ctx, handle)
}
