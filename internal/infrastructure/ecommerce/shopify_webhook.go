package ecommerce

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/catalog"
)

// Webhook headers sent by Shopify
const (
	HeaderShopifyHmac   = "X-Shopify-Hmac-Sha256"
	HeaderShopifyTopic  = "X-Shopify-Topic"
	HeaderShopifyDomain = "X-Shopify-Shop-Domain"
)

var (
	ErrShopifyInvalidSignature = errors.New("shopify: invalid webhook signature")
	ErrShopifyInvalidPayload   = errors.New("shopify: invalid webhook payload")
)

// ShopifyProductPayload is the product webhook body (products/create,
// products/update, products/delete)
type ShopifyProductPayload struct {
	ID          json.Number `json:"id"`
	Title       string      `json:"title"`
	Handle      string      `json:"handle"`
	BodyHTML    *string     `json:"body_html"`
	Vendor      string      `json:"vendor"`
	ProductType string      `json:"product_type"`
	Tags        string      `json:"tags"`
	Status      string      `json:"status"`
	Variants    []struct {
		ID               json.Number `json:"id"`
		Price            string      `json:"price"`
		CompareAtPrice   *string     `json:"compare_at_price"`
		SKU              *string     `json:"sku"`
		RequiresShipping *bool       `json:"requires_shipping"`
		Taxable          *bool       `json:"taxable"`
	} `json:"variants"`
	Images []struct {
		ID       json.Number `json:"id"`
		Src      string      `json:"src"`
		Alt      *string     `json:"alt"`
		Position int         `json:"position"`
	} `json:"images"`
}

// VerifyWebhookSignature checks an HMAC-SHA256 signature over the raw body.
// Shopify sends the digest base64 encoded; a hex digest is accepted as well.
func VerifyWebhookSignature(body []byte, signature, secret string) bool {
	signature = strings.TrimSpace(signature)
	if signature == "" || secret == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := mac.Sum(nil)

	if got, err := base64.StdEncoding.DecodeString(signature); err == nil && hmac.Equal(got, expected) {
		return true
	}
	if got, err := hex.DecodeString(signature); err == nil && hmac.Equal(got, expected) {
		return true
	}
	return false
}

// SignWebhook returns the base64 HMAC-SHA256 signature Shopify would send
func SignWebhook(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// ParseProductWebhook decodes a product webhook body and maps it onto a
// mirror row keyed by shopify_product_id. Handle and title are not checked
// here since delete payloads carry only the id.
func ParseProductWebhook(body []byte) (*catalog.Product, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var p ShopifyProductPayload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrShopifyInvalidPayload, err)
	}
	if p.ID.String() == "" {
		return nil, fmt.Errorf("%w: missing product id", ErrShopifyInvalidPayload)
	}
	return p.ToMirrorRow(), nil
}

// ToMirrorRow maps the payload using the first variant and the images at
// positions 1 and 2.
func (p *ShopifyProductPayload) ToMirrorRow() *catalog.Product {
	row := &catalog.Product{
		ShopifyProductID:        p.ID.String(),
		Handle:                  strings.TrimSpace(p.Handle),
		Title:                   strings.TrimSpace(p.Title),
		Vendor:                  p.Vendor,
		Type:                    p.ProductType,
		Tags:                    catalog.NormalizeTags(p.Tags),
		Published:               p.Status == "active",
		Status:                  mapShopifyStatus(p.Status),
		Currency:                catalog.DefaultCurrency,
		VariantRequiresShipping: true,
		VariantTaxable:          true,
	}
	if row.Vendor == "" {
		row.Vendor = catalog.DefaultVendor
	}
	if p.BodyHTML != nil {
		row.BodyHTML = *p.BodyHTML
	}

	if len(p.Variants) > 0 {
		v := p.Variants[0]
		if v.SKU != nil {
			row.VariantSKU = *v.SKU
		}
		row.VariantPrice = catalog.NormalizePrice(v.Price)
		if v.CompareAtPrice != nil {
			row.VariantCompareAtPrice = catalog.NormalizePrice(*v.CompareAtPrice)
		}
		if v.RequiresShipping != nil {
			row.VariantRequiresShipping = *v.RequiresShipping
		}
		if v.Taxable != nil {
			row.VariantTaxable = *v.Taxable
		}
	}

	primary, secondary := -1, -1
	for i, img := range p.Images {
		switch img.Position {
		case 1:
			if primary < 0 {
				primary = i
			}
		case 2:
			if secondary < 0 {
				secondary = i
			}
		}
	}
	if primary < 0 && len(p.Images) > 0 {
		primary = 0
	}
	if secondary < 0 && len(p.Images) > 1 {
		secondary = 1
	}
	if primary >= 0 {
		row.PrimaryImage = p.Images[primary].Src
		if p.Images[primary].Alt != nil {
			row.ImageAltText = *p.Images[primary].Alt
		}
	}
	if secondary >= 0 {
		row.SecondaryImage = p.Images[secondary].Src
	}
	return row
}

func mapShopifyStatus(status string) catalog.Status {
	switch status {
	case "active":
		return catalog.StatusActive
	case "archived":
		return catalog.StatusArchived
	}
	return catalog.StatusDraft
}
