package cart

import (
	"context"

	"github.com/shopspring/decimal"
)

// Storage keys under which the cart session is persisted.
const (
	StorageKeyCartID = "shopify_cart_id"
	StorageKeyItems  = "shopify_cart_items"
)

// DefaultCurrency is used when the remote cart carries no currency code.
const DefaultCurrency = "SEK"

// ---------------------------------------------------------------------------
// Line
// ---------------------------------------------------------------------------

// ProductSnapshot is the denormalized product data kept on a line for display.
// It may go stale until the next refresh.
type ProductSnapshot struct {
	ProductID    string `json:"productId,omitempty"`
	Title        string `json:"title"`
	VariantTitle string `json:"variantTitle,omitempty"`
	Handle       string `json:"handle"`
	Image        string `json:"image,omitempty"`
	ImageAlt     string `json:"imageAlt,omitempty"`
}

// Line is one cart line.
type Line struct {
	LineID    string          `json:"id"`
	VariantID string          `json:"variantId"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"price"`
	Product   ProductSnapshot `json:"product"`
}

// Subtotal returns unit price times quantity
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// ---------------------------------------------------------------------------
// Cart
// ---------------------------------------------------------------------------

// Cart is the authoritative cart as returned by the remote cart service.
type Cart struct {
	ID            string
	CheckoutURL   string
	TotalQuantity int
	TotalAmount   decimal.Decimal
	Currency      string
	Lines         []Line
}

// ---------------------------------------------------------------------------
// Snapshot
// ---------------------------------------------------------------------------

// Snapshot is the local cart state. ItemCount and Total are always derived
// from Lines by NewSnapshot.
type Snapshot struct {
	CartID      string          `json:"cartId,omitempty"`
	CheckoutURL string          `json:"checkoutUrl,omitempty"`
	Currency    string          `json:"currency"`
	Lines       []Line          `json:"lines"`
	ItemCount   int             `json:"itemCount"`
	Total       decimal.Decimal `json:"total"`
}

// NewSnapshot builds a snapshot from lines, dropping any line whose quantity
// is not positive and recomputing the derived fields.
func NewSnapshot(cartID, checkoutURL, currency string, lines []Line) Snapshot {
	if currency == "" {
		currency = DefaultCurrency
	}
	kept := make([]Line, 0, len(lines))
	count := 0
	total := decimal.Zero
	for _, l := range lines {
		if l.Quantity <= 0 {
			continue
		}
		kept = append(kept, l)
		count += l.Quantity
		total = total.Add(l.Subtotal())
	}
	return Snapshot{
		CartID:      cartID,
		CheckoutURL: checkoutURL,
		Currency:    currency,
		Lines:       kept,
		ItemCount:   count,
		Total:       total,
	}
}

// SnapshotFromCart replaces local state wholesale from a remote cart.
func SnapshotFromCart(c *Cart) Snapshot {
	if c == nil {
		return NewSnapshot("", "", "", nil)
	}
	return NewSnapshot(c.ID, c.CheckoutURL, c.Currency, c.Lines)
}

// HasCart reports whether a remote cart id is held
func (s Snapshot) HasCart() bool {
	return s.CartID != ""
}

// Clone returns a copy that does not share the lines slice.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Lines = append([]Line(nil), s.Lines...)
	return out
}

// Event returns the change notification for this snapshot
func (s Snapshot) Event() ChangeEvent {
	return ChangeEvent{
		Count: s.ItemCount,
		Total: s.Total,
		Items: append([]Line(nil), s.Lines...),
	}
}

// ---------------------------------------------------------------------------
// Events
// ---------------------------------------------------------------------------

// ChangeEvent is emitted to listeners after every successful mutation and after clear.
type ChangeEvent struct {
	Count int             `json:"count"`
	Total decimal.Decimal `json:"total"`
	Items []Line          `json:"items"`
}

// Listener receives change events.
type Listener func(ChangeEvent)

// ---------------------------------------------------------------------------
// Ports
// ---------------------------------------------------------------------------

// RemoteService is the remote cart service. Every call returns the full
// authoritative cart or an error.
type RemoteService interface {
	CreateCart(ctx context.Context) (*Cart, error)
	AddLine(ctx context.Context, cartID, variantID string, quantity int) (*Cart, error)
	UpdateLine(ctx context.Context, cartID, lineID string, quantity int) (*Cart, error)
	RemoveLine(ctx context.Context, cartID, lineID string) (*Cart, error)
	GetCart(ctx context.Context, cartID string) (*Cart, error)
}

// Store is durable local key/value storage for the cart session.
type Store interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}
