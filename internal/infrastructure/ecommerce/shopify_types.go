package ecommerce

import (
	"encoding/json"

	"github.com/shopspring/decimal"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/cart"
)

// ---------------------------------------------------------------------------
// GraphQL envelope
// ---------------------------------------------------------------------------

// GraphQLRequest is the body posted to the Storefront API
type GraphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables"`
}

// GraphQLResponse is the Storefront API response envelope
type GraphQLResponse struct {
	Data    json.RawMessage `json:"data"`
	Errors  json.RawMessage `json:"errors,omitempty"`
	Message string          `json:"message,omitempty"`
}

// HasErrors reports whether the response carries a non-empty errors member
func (r *GraphQLResponse) HasErrors() bool {
	return len(r.Errors) > 0 && string(r.Errors) != "null" && string(r.Errors) != "[]"
}

// ShopifyUserError is a mutation level validation error
type ShopifyUserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

// ---------------------------------------------------------------------------
// Cart wire types
// ---------------------------------------------------------------------------

// ShopifyMoney is a Storefront MoneyV2
type ShopifyMoney struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

// ShopifyCartCost holds the total amount of a cart or line
type ShopifyCartCost struct {
	TotalAmount ShopifyMoney `json:"totalAmount"`
}

// ShopifyImage is a product image
type ShopifyImage struct {
	URL     string `json:"url"`
	AltText string `json:"altText"`
}

// ShopifyImageConnection is the images(first: 1) connection
type ShopifyImageConnection struct {
	Edges []struct {
		Node ShopifyImage `json:"node"`
	} `json:"edges"`
}

// ShopifyMerchandiseProduct is the product behind a variant
type ShopifyMerchandiseProduct struct {
	ID     string                 `json:"id"`
	Title  string                 `json:"title"`
	Handle string                 `json:"handle"`
	Images ShopifyImageConnection `json:"images"`
}

// ShopifyMerchandise is the ProductVariant on a cart line
type ShopifyMerchandise struct {
	ID      string                    `json:"id"`
	Title   string                    `json:"title"`
	Price   ShopifyMoney              `json:"price"`
	Product ShopifyMerchandiseProduct `json:"product"`
}

// ShopifyCartLine is one cart line node
type ShopifyCartLine struct {
	ID          string             `json:"id"`
	Quantity    int                `json:"quantity"`
	Merchandise ShopifyMerchandise `json:"merchandise"`
	Cost        ShopifyCartCost    `json:"cost"`
}

// ShopifyCartLineConnection is the lines(first: 100) connection
type ShopifyCartLineConnection struct {
	Edges []struct {
		Node ShopifyCartLine `json:"node"`
	} `json:"edges"`
}

// ShopifyCart is the cart as selected by cartFields
type ShopifyCart struct {
	ID            string                    `json:"id"`
	CheckoutURL   string                    `json:"checkoutUrl"`
	TotalQuantity int                       `json:"totalQuantity"`
	Cost          ShopifyCartCost           `json:"cost"`
	Lines         ShopifyCartLineConnection `json:"lines"`
}

// ToDomain converts the wire cart to the domain cart. Unit price is the
// merchandise price, or line cost divided by quantity when the price is absent.
func (c *ShopifyCart) ToDomain() *cart.Cart {
	out := &cart.Cart{
		ID:            c.ID,
		CheckoutURL:   c.CheckoutURL,
		TotalQuantity: c.TotalQuantity,
		TotalAmount:   ParseDecimal(c.Cost.TotalAmount.Amount),
		Currency:      c.Cost.TotalAmount.CurrencyCode,
		Lines:         make([]cart.Line, 0, len(c.Lines.Edges)),
	}
	for _, edge := range c.Lines.Edges {
		n := edge.Node
		line := cart.Line{
			LineID:    n.ID,
			VariantID: n.Merchandise.ID,
			Quantity:  n.Quantity,
			UnitPrice: unitPrice(n),
			Product: cart.ProductSnapshot{
				ProductID:    n.Merchandise.Product.ID,
				Title:        n.Merchandise.Product.Title,
				VariantTitle: n.Merchandise.Title,
				Handle:       n.Merchandise.Product.Handle,
			},
		}
		if imgs := n.Merchandise.Product.Images.Edges; len(imgs) > 0 {
			line.Product.Image = imgs[0].Node.URL
			line.Product.ImageAlt = imgs[0].Node.AltText
		}
		if out.Currency == "" {
			out.Currency = n.Merchandise.Price.CurrencyCode
		}
		out.Lines = append(out.Lines, line)
	}
	return out
}

func unitPrice(n ShopifyCartLine) decimal.Decimal {
	if n.Merchandise.Price.Amount != "" {
		return ParseDecimal(n.Merchandise.Price.Amount)
	}
	if n.Quantity > 0 && n.Cost.TotalAmount.Amount != "" {
		return ParseDecimal(n.Cost.TotalAmount.Amount).Div(decimal.NewFromInt(int64(n.Quantity)))
	}
	return decimal.Zero
}

// ParseDecimal parses a money amount, returning zero on malformed input
func ParseDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
