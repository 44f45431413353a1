package airtable

import (
	"errors"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/config"
)

// Config holds configuration for the Airtable REST API
type Config struct {
	// AccessToken is the personal access token sent as a bearer credential
	AccessToken string
	// BaseID identifies the Airtable base (appXXXXXXXX)
	BaseID string
	// ProductsTable is the table mirrored into the products table
	ProductsTable string
	// OrdersTable is exposed through the proxy only
	OrdersTable string
	// View is applied to proxied listings
	View string
	// APIBaseURL is the API root, overridable for tests
	APIBaseURL string
	// PageSize is the number of records requested per page (max 100)
	PageSize int
	// TimeoutSeconds is the HTTP request timeout
	TimeoutSeconds int
}

const (
	// DefaultAPIBaseURL is the production API endpoint
	DefaultAPIBaseURL = "https://api.airtable.com/v0"
	// DefaultView is the view applied to proxied listings
	DefaultView = "Grid view"
	// MaxPageSize is the largest page Airtable serves
	MaxPageSize = 100
)

// Errors for Airtable configuration
var (
	ErrConfigMissingToken  = errors.New("airtable: access token is required")
	ErrConfigMissingBaseID = errors.New("airtable: base id is required")
)

// NewConfig creates an Airtable configuration with defaults
func NewConfig(accessToken, baseID string) *Config {
	return &Config{
		AccessToken:    accessToken,
		BaseID:         baseID,
		ProductsTable:  "Products",
		OrdersTable:    "Orders",
		View:           DefaultView,
		APIBaseURL:     DefaultAPIBaseURL,
		PageSize:       MaxPageSize,
		TimeoutSeconds: 30,
	}
}

// ConfigFromSettings maps the airtable section of the application
// configuration, keeping defaults for unset values
func ConfigFromSettings(s config.AirtableConfig) *Config {
	c := NewConfig(s.AccessToken, s.BaseID)
	if s.ProductsTable != "" {
		c.ProductsTable = s.ProductsTable
	}
	if s.OrdersTable != "" {
		c.OrdersTable = s.OrdersTable
	}
	if s.APIBaseURL != "" {
		c.APIBaseURL = s.APIBaseURL
	}
	if s.TimeoutSeconds > 0 {
		c.TimeoutSeconds = s.TimeoutSeconds
	}
	return c
}

// Enabled reports whether credentials are present
func (c *Config) Enabled() bool {
	return c.AccessToken != "" && c.BaseID != ""
}

// Validate validates the configuration and fills in defaults
func (c *Config) Validate() error {
	if c.AccessToken == "" {
		return ErrConfigMissingToken
	}
	if c.BaseID == "" {
		return ErrConfigMissingBaseID
	}
	if c.APIBaseURL == "" {
		c.APIBaseURL = DefaultAPIBaseURL
	}
	if c.ProductsTable == "" {
		c.ProductsTable = "Products"
	}
	if c.OrdersTable == "" {
		c.OrdersTable = "Orders"
	}
	if c.PageSize <= 0 || c.PageSize > MaxPageSize {
		c.PageSize = MaxPageSize
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 30
	}
	return nil
}
