package persistence

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const (
	defaultProductPageSize = 20
	maxProductPageSize     = 100
	// deleteChunkSize bounds the number of bind parameters in one IN clause.
	deleteChunkSize = 500
)

// GormProductRepository implements catalog.MirrorRepository using GORM
type GormProductRepository struct {
	db *gorm.DB
}

// NewGormProductRepository creates a new GormProductRepository
func NewGormProductRepository(db *gorm.DB) *GormProductRepository {
	return &GormProductRepository{db: db}
}

func sourceColumn(system catalog.SourceSystem) (string, error) {
	switch system {
	case catalog.SourceAirtable:
		return "airtable_record_id", nil
	case catalog.SourceShopify:
		return "shopify_product_id", nil
	default:
		return "", catalog.ErrInvalidSource
	}
}

// ListBySource returns every row keyed by the given source system
func (r *GormProductRepository) ListBySource(ctx context.Context, system catalog.SourceSystem) ([]catalog.Product, error) {
	column, err := sourceColumn(system)
	if err != nil {
		return nil, err
	}

	var rows []models.ProductModel
	if err := r.db.WithContext(ctx).
		Where(column + " IS NOT NULL").
		Order("created_at ASC").
		Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("list products by %s: %w", system, err)
	}
	return toDomainProducts(rows), nil
}

// FindBySourceID finds a row by its source key
func (r *GormProductRepository) FindBySourceID(ctx context.Context, system catalog.SourceSystem, sourceID string) (*catalog.Product, error) {
	column, err := sourceColumn(system)
	if err != nil {
		return nil, err
	}

	var row models.ProductModel
	if err := r.db.WithContext(ctx).First(&row, column+" = ?", sourceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// FindByHandle finds a row by its handle
func (r *GormProductRepository) FindByHandle(ctx context.Context, handle string) (*catalog.Product, error) {
	var row models.ProductModel
	if err := r.db.WithContext(ctx).
		Where("handle = ?", handle).
		Order("updated_at DESC").
		First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, catalog.ErrProductNotFound
		}
		return nil, err
	}
	return row.ToDomain(), nil
}

// List returns a page of rows matching the filter and the total count
func (r *GormProductRepository) List(ctx context.Context, filter catalog.ProductFilter) ([]catalog.Product, int64, error) {
	var total int64
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.ProductModel{}), filter).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, pageSize := filter.Page, filter.PageSize
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = defaultProductPageSize
	}
	if pageSize > maxProductPageSize {
		pageSize = maxProductPageSize
	}

	orderBy := ValidateSortField(filter.OrderBy, ProductSortFields, "updated_at")
	orderDir := ValidateSortOrder(filter.OrderDir)

	var rows []models.ProductModel
	if err := r.applyFilter(r.db.WithContext(ctx).Model(&models.ProductModel{}), filter).
		Order(orderBy + " " + orderDir).
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return toDomainProducts(rows), total, nil
}

// Create inserts a new row
func (r *GormProductRepository) Create(ctx context.Context, product *catalog.Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	now := time.Now()
	if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now

	row := models.ProductModelFromDomain(product)
	if err := r.db.WithContext(ctx).Create(row).Error; err != nil {
		return err
	}
	product.ID = row.ID
	return nil
}

// Update overwrites every content column of an existing row. Source keys
// and created_at are left untouched.
func (r *GormProductRepository) Update(ctx context.Context, product *catalog.Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	product.UpdatedAt = time.Now()

	row := models.ProductModelFromDomain(product)
	result := r.db.WithContext(ctx).
		Model(&models.ProductModel{}).
		Where("id = ?", product.ID).
		Select("*").
		Omit("id", "created_at", "airtable_record_id", "shopify_product_id").
		Updates(row)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return catalog.ErrProductNotFound
	}
	return nil
}

// DeleteBySourceIDs removes rows by source key in chunks and returns the number deleted
func (r *GormProductRepository) DeleteBySourceIDs(ctx context.Context, system catalog.SourceSystem, sourceIDs []string) (int64, error) {
	column, err := sourceColumn(system)
	if err != nil {
		return 0, err
	}
	if len(sourceIDs) == 0 {
		return 0, nil
	}

	var deleted int64
	for start := 0; start < len(sourceIDs); start += deleteChunkSize {
		end := start + deleteChunkSize
		if end > len(sourceIDs) {
			end = len(sourceIDs)
		}
		result := r.db.WithContext(ctx).
			Where(column+" IN ?", sourceIDs[start:end]).
			Delete(&models.ProductModel{})
		if result.Error != nil {
			return deleted, fmt.Errorf("delete products by %s: %w", system, result.Error)
		}
		deleted += result.RowsAffected
	}
	return deleted, nil
}

func (r *GormProductRepository) applyFilter(query *gorm.DB, filter catalog.ProductFilter) *gorm.DB {
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.Source != "" {
		if column, err := sourceColumn(filter.Source); err == nil {
			query = query.Where(column + " IS NOT NULL")
		}
	}
	if filter.Published != nil {
		query = query.Where("published = ?", *filter.Published)
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(title) LIKE ? OR LOWER(handle) LIKE ?", pattern, pattern)
	}
	return query
}

func toDomainProducts(rows []models.ProductModel) []catalog.Product {
	products := make([]catalog.Product, 0, len(rows))
	for i := range rows {
		products = append(products, *rows[i].ToDomain())
	}
	return products
}

// Ensure GormProductRepository implements catalog.MirrorRepository
var _ catalog.MirrorRepository = (*GormProductRepository)(nil)
