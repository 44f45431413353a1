package catalog

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// Catalog Errors
// ---------------------------------------------------------------------------

var (
	ErrMissingHandle    = errors.New("catalog: missing handle")
	ErrMissingTitle     = errors.New("catalog: missing title")
	ErrMissingSourceID  = errors.New("catalog: missing source record id")
	ErrProductNotFound  = errors.New("catalog: product not found")
	ErrSyncInProgress   = errors.New("catalog: sync already in progress")
	ErrInvalidSource    = errors.New("catalog: invalid source system")
	ErrInvalidStatus    = errors.New("catalog: invalid product status")
	ErrSourceNotEnabled = errors.New("catalog: source not configured")
)

// DefaultVendor is used when a record carries no vendor.
const DefaultVendor = "Only at The Kiosk"

// DefaultCurrency is used when a record carries no currency.
const DefaultCurrency = "SEK"

// ---------------------------------------------------------------------------
// SourceSystem
// ---------------------------------------------------------------------------

// SourceSystem identifies where a mirror row comes from
type SourceSystem string

const (
	SourceAirtable SourceSystem = "airtable"
	SourceShopify  SourceSystem = "shopify"
)

// IsValid checks if the source system is known
func (s SourceSystem) IsValid() bool {
	switch s {
	case SourceAirtable, SourceShopify:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Status
// ---------------------------------------------------------------------------

// Status is the closed product status enumeration
type Status string

const (
	StatusActive   Status = "active"
	StatusDraft    Status = "draft"
	StatusArchived Status = "archived"
)

// IsValid checks if the status is one of the enumerated values
func (s Status) IsValid() bool {
	switch s {
	case StatusActive, StatusDraft, StatusArchived:
		return true
	}
	return false
}

// ---------------------------------------------------------------------------
// Product
// ---------------------------------------------------------------------------

// Product is one row of the products mirror table. Exactly one of
// AirtableRecordID and ShopifyProductID identifies its source.
type Product struct {
	ID                      uuid.UUID           `json:"id"`
	AirtableRecordID        string              `json:"airtable_record_id,omitempty"`
	ShopifyProductID        string              `json:"shopify_product_id,omitempty"`
	Handle                  string              `json:"handle"`
	Title                   string              `json:"title"`
	BodyHTML                string              `json:"body_html,omitempty"`
	Vendor                  string              `json:"vendor"`
	ProductCategory         string              `json:"product_category,omitempty"`
	Type                    string              `json:"type,omitempty"`
	Tags                    []string            `json:"tags"`
	Published               bool                `json:"published"`
	Featured                bool                `json:"featured"`
	Status                  Status              `json:"status"`
	VariantSKU              string              `json:"variant_sku,omitempty"`
	VariantPrice            decimal.NullDecimal `json:"variant_price"`
	VariantCompareAtPrice   decimal.NullDecimal `json:"variant_compare_at_price"`
	Currency                string              `json:"currency"`
	VariantRequiresShipping bool                `json:"variant_requires_shipping"`
	VariantTaxable          bool                `json:"variant_taxable"`
	PrimaryImage            string              `json:"primary_image,omitempty"`
	SecondaryImage          string              `json:"secondary_image,omitempty"`
	ImageAltText            string              `json:"image_alt_text,omitempty"`
	CategoryDisplay         string              `json:"category_display,omitempty"`
	SEOTitle                string              `json:"seo_title,omitempty"`
	SEODescription          string              `json:"seo_description,omitempty"`
	CreatedAt               time.Time           `json:"created_at"`
	UpdatedAt               time.Time           `json:"updated_at"`
}

// Validate enforces the mandatory columns
func (p *Product) Validate() error {
	if p.Handle == "" {
		return ErrMissingHandle
	}
	if p.Title == "" {
		return ErrMissingTitle
	}
	return nil
}

// Source returns the source system and record id keying this row.
func (p *Product) Source() (SourceSystem, string) {
	if p.AirtableRecordID != "" {
		return SourceAirtable, p.AirtableRecordID
	}
	if p.ShopifyProductID != "" {
		return SourceShopify, p.ShopifyProductID
	}
	return "", ""
}

// SourceID returns the record id for the given source system
func (p *Product) SourceID(system SourceSystem) string {
	switch system {
	case SourceAirtable:
		return p.AirtableRecordID
	case SourceShopify:
		return p.ShopifyProductID
	}
	return ""
}

// SameContent reports whether both rows carry identical mirrored columns.
// Identity, source keys and timestamps are ignored.
func (p *Product) SameContent(o *Product) bool {
	return p.Handle == o.Handle &&
		p.Title == o.Title &&
		p.BodyHTML == o.BodyHTML &&
		p.Vendor == o.Vendor &&
		p.ProductCategory == o.ProductCategory &&
		p.Type == o.Type &&
		slices.Equal(p.Tags, o.Tags) &&
		p.Published == o.Published &&
		p.Featured == o.Featured &&
		p.Status == o.Status &&
		p.VariantSKU == o.VariantSKU &&
		nullDecimalEqual(p.VariantPrice, o.VariantPrice) &&
		nullDecimalEqual(p.VariantCompareAtPrice, o.VariantCompareAtPrice) &&
		p.Currency == o.Currency &&
		p.VariantRequiresShipping == o.VariantRequiresShipping &&
		p.VariantTaxable == o.VariantTaxable &&
		p.PrimaryImage == o.PrimaryImage &&
		p.SecondaryImage == o.SecondaryImage &&
		p.ImageAltText == o.ImageAltText &&
		p.CategoryDisplay == o.CategoryDisplay &&
		p.SEOTitle == o.SEOTitle &&
		p.SEODescription == o.SEODescription
}

// CopyContentFrom overwrites the mirrored columns with those of src, keeping
// identity, source keys and CreatedAt.
func (p *Product) CopyContentFrom(src *Product) {
	id, airtableID, shopifyID, created := p.ID, p.AirtableRecordID, p.ShopifyProductID, p.CreatedAt
	*p = *src
	p.Tags = slices.Clone(src.Tags)
	p.ID, p.AirtableRecordID, p.ShopifyProductID, p.CreatedAt = id, airtableID, shopifyID, created
}

func nullDecimalEqual(a, b decimal.NullDecimal) bool {
	if a.Valid != b.Valid {
		return false
	}
	return !a.Valid || a.Decimal.Equal(b.Decimal)
}
