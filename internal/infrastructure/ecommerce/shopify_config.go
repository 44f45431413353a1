package ecommerce

import (
	"errors"
	"fmt"
	"strings"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/config"
)

// ShopifyConfig holds configuration for the Shopify Storefront API and
// product webhooks
type ShopifyConfig struct {
	// StoreDomain is the storefront domain (myshop.myshopify.com or a custom domain)
	StoreDomain string
	// APIVersion is the Storefront API version
	APIVersion string
	// StorefrontToken is the public storefront access token
	StorefrontToken string
	// WebhookSecret signs product webhooks (HMAC-SHA256)
	WebhookSecret string
	// VerifyWebhook turns signature verification on
	VerifyWebhook bool
	// Endpoint overrides the derived GraphQL endpoint, used in tests
	Endpoint string
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// DefaultShopifyStore is the storefront domain when none is configured
	DefaultShopifyStore = "onlyatthekiosk.com"
	// DefaultShopifyAPIVersion is the Storefront API version when none is configured
	DefaultShopifyAPIVersion = "2024-01"
)

// Errors for Shopify configuration
var (
	ErrShopifyConfigMissingToken = errors.New("shopify: storefront access token is required")
)

// NewShopifyConfig creates a Shopify configuration with defaults
func NewShopifyConfig(storefrontToken string) *ShopifyConfig {
	return &ShopifyConfig{
		StoreDomain:     DefaultShopifyStore,
		APIVersion:      DefaultShopifyAPIVersion,
		StorefrontToken: storefrontToken,
		VerifyWebhook:   true,
		TimeoutSeconds:  30,
	}
}

// ShopifyConfigFromSettings maps the shopify section of the application
// configuration, keeping defaults for unset values
func ShopifyConfigFromSettings(s config.ShopifyConfig) *ShopifyConfig {
	c := NewShopifyConfig(s.StorefrontToken)
	if s.StoreDomain != "" {
		c.StoreDomain = s.StoreDomain
	}
	if s.APIVersion != "" {
		c.APIVersion = s.APIVersion
	}
	if s.TimeoutSeconds > 0 {
		c.TimeoutSeconds = s.TimeoutSeconds
	}
	c.WebhookSecret = s.WebhookSecret
	c.VerifyWebhook = s.VerifyWebhook
	return c
}

// Validate validates the Shopify configuration and fills in defaults
func (c *ShopifyConfig) Validate() error {
	if c.StorefrontToken == "" {
		return ErrShopifyConfigMissingToken
	}
	if c.StoreDomain == "" {
		c.StoreDomain = DefaultShopifyStore
	}
	if c.APIVersion == "" {
		c.APIVersion = DefaultShopifyAPIVersion
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}

// GraphQLEndpoint returns the Storefront GraphQL endpoint
func (c *ShopifyConfig) GraphQLEndpoint() string {
	if c.Endpoint != "" {
		return c.Endpoint
	}
	domain := strings.TrimPrefix(strings.TrimPrefix(c.StoreDomain, "https://"), "http://")
	return fmt.Sprintf("https://%s/api/%s/graphql.json", strings.TrimSuffix(domain, "/"), c.APIVersion)
}
