package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
)

// ProductModel is the persistence model for the products mirror table.
type ProductModel struct {
	BaseModel
	AirtableRecordID        *string             `gorm:"type:varchar(64);uniqueIndex:idx_products_airtable_record_id"`
	ShopifyProductID        *string             `gorm:"type:varchar(64);uniqueIndex:idx_products_shopify_product_id"`
	Handle                  string              `gorm:"type:varchar(255);not null;index:idx_products_handle"`
	Title                   string              `gorm:"type:varchar(500);not null"`
	BodyHTML                string              `gorm:"type:text;column:body_html"`
	Vendor                  string              `gorm:"type:varchar(255)"`
	ProductCategory         string              `gorm:"type:varchar(255)"`
	Type                    string              `gorm:"type:varchar(255)"`
	TagsJSON                *string             `gorm:"type:jsonb;column:tags"`
	Published               bool                `gorm:"not null;default:false"`
	Featured                bool                `gorm:"not null;default:false"`
	Status                  catalog.Status      `gorm:"type:varchar(20);not null;default:'draft';index:idx_products_status"`
	VariantSKU              string              `gorm:"type:varchar(255);column:variant_sku"`
	VariantPrice            decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	VariantCompareAtPrice   decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	Currency                string              `gorm:"type:varchar(3);not null;default:'SEK'"`
	VariantRequiresShipping bool                `gorm:"not null;default:true"`
	VariantTaxable          bool                `gorm:"not null;default:true"`
	PrimaryImage            string              `gorm:"type:text"`
	SecondaryImage          string              `gorm:"type:text"`
	ImageAltText            string              `gorm:"type:text"`
	CategoryDisplay         string              `gorm:"type:varchar(255)"`
	SEOTitle                string              `gorm:"type:varchar(255);column:seo_title"`
	SEODescription          string              `gorm:"type:text;column:seo_description"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product.
func (m *ProductModel) ToDomain() *catalog.Product {
	p := &catalog.Product{
		ID:                      m.ID,
		Handle:                  m.Handle,
		Title:                   m.Title,
		BodyHTML:                m.BodyHTML,
		Vendor:                  m.Vendor,
		ProductCategory:         m.ProductCategory,
		Type:                    m.Type,
		Published:               m.Published,
		Featured:                m.Featured,
		Status:                  m.Status,
		VariantSKU:              m.VariantSKU,
		VariantPrice:            m.VariantPrice,
		VariantCompareAtPrice:   m.VariantCompareAtPrice,
		Currency:                m.Currency,
		VariantRequiresShipping: m.VariantRequiresShipping,
		VariantTaxable:          m.VariantTaxable,
		PrimaryImage:            m.PrimaryImage,
		SecondaryImage:          m.SecondaryImage,
		ImageAltText:            m.ImageAltText,
		CategoryDisplay:         m.CategoryDisplay,
		SEOTitle:                m.SEOTitle,
		SEODescription:          m.SEODescription,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
	if m.AirtableRecordID != nil {
		p.AirtableRecordID = *m.AirtableRecordID
	}
	if m.ShopifyProductID != nil {
		p.ShopifyProductID = *m.ShopifyProductID
	}
	if m.TagsJSON != nil && *m.TagsJSON != "" {
		var tags []string
		if err := json.Unmarshal([]byte(*m.TagsJSON), &tags); err == nil && len(tags) > 0 {
			p.Tags = tags
		}
	}
	return p
}

// FromDomain populates the persistence model from a domain Product.
func (m *ProductModel) FromDomain(p *catalog.Product) {
	m.ID = p.ID
	m.AirtableRecordID = optionalString(p.AirtableRecordID)
	m.ShopifyProductID = optionalString(p.ShopifyProductID)
	m.Handle = p.Handle
	m.Title = p.Title
	m.BodyHTML = p.BodyHTML
	m.Vendor = p.Vendor
	m.ProductCategory = p.ProductCategory
	m.Type = p.Type
	m.TagsJSON = nil
	if len(p.Tags) > 0 {
		if b, err := json.Marshal(p.Tags); err == nil {
			s := string(b)
			m.TagsJSON = &s
		}
	}
	m.Published = p.Published
	m.Featured = p.Featured
	m.Status = p.Status
	m.VariantSKU = p.VariantSKU
	m.VariantPrice = p.VariantPrice
	m.VariantCompareAtPrice = p.VariantCompareAtPrice
	m.Currency = p.Currency
	m.VariantRequiresShipping = p.VariantRequiresShipping
	m.VariantTaxable = p.VariantTaxable
	m.PrimaryImage = p.PrimaryImage
	m.SecondaryImage = p.SecondaryImage
	m.ImageAltText = p.ImageAltText
	m.CategoryDisplay = p.CategoryDisplay
	m.SEOTitle = p.SEOTitle
	m.SEODescription = p.SEODescription
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
}

// ProductModelFromDomain creates a new ProductModel from a domain Product.
func ProductModelFromDomain(p *catalog.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// ---------------------------------------------------------------------------
// Cart storage
// ---------------------------------------------------------------------------

// CartStorageModel is one key of the local cart session storage.
type CartStorageModel struct {
	Key       string    `gorm:"type:varchar(64);primaryKey"`
	Value     string    `gorm:"type:text;not null"`
	UpdatedAt time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (CartStorageModel) TableName() string {
	return "cart_storage"
}
