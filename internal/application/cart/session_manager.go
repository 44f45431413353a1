// Package cart keeps a local, persisted mirror of one remote storefront cart.
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/cart"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
)

const ensureCartKey = "ensure"

// SessionManager owns the cart session. The remote service is authoritative:
// every successful mutation replaces the local lines with the returned cart.
//
// At most one mutating call runs at a time. A call issued while another is
// outstanding fails fast with shared.ErrOperationInFlight. Clear is always
// accepted; a response that arrives after it is discarded.
type SessionManager struct {
	remote cart.RemoteService
	store  cart.Store
	logger *zap.Logger

	inFlight atomic.Bool
	create   singleflight.Group

	// storeMu orders writes to the store so a stale persist cannot land
	// after Clear purged it.
	storeMu sync.Mutex

	mu        sync.RWMutex
	state     cart.Snapshot
	epoch     uint64 // bumped by Clear
	listeners map[uint64]cart.Listener
	nextID    uint64
}

// NewSessionManager creates a manager with an empty session. Call Restore to
// load a previously persisted session.
func NewSessionManager(remote cart.RemoteService, store cart.Store, logger *zap.Logger) *SessionManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionManager{
		remote:    remote,
		store:     store,
		logger:    logger.Named("cart"),
		state:     cart.NewSnapshot("", "", "", nil),
		listeners: make(map[uint64]cart.Listener),
	}
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Snapshot returns a copy of the current session state
func (m *SessionManager) Snapshot() cart.Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone()
}

// InFlight reports whether a mutating call is outstanding
func (m *SessionManager) InFlight() bool {
	return m.inFlight.Load()
}

// Subscribe registers a listener for change events and returns a function
// that removes it.
func (m *SessionManager) Subscribe(listener cart.Listener) func() {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.listeners[id] = listener
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.listeners, id)
			m.mu.Unlock()
		})
	}
}

// ---------------------------------------------------------------------------
// Mutations
// ---------------------------------------------------------------------------

// EnsureCart creates a remote cart when none is held. Concurrent callers
// share a single creation.
func (m *SessionManager) EnsureCart(ctx context.Context) (cart.Snapshot, error) {
	if snap := m.Snapshot(); snap.HasCart() {
		return snap, nil
	}

	v, err, _ := m.create.Do(ensureCartKey, func() (any, error) {
		if !m.begin() {
			return cart.Snapshot{}, shared.ErrOperationInFlight
		}
		defer m.end()

		snap, epoch := m.current()
		if snap.HasCart() {
			return snap, nil
		}
		return m.createCart(ctx, epoch)
	})
	snap, _ := v.(cart.Snapshot)
	return snap, err
}

// AddItem adds quantity of a variant, creating the remote cart first if needed.
func (m *SessionManager) AddItem(ctx context.Context, variantID string, quantity int) (cart.Snapshot, error) {
	if variantID == "" {
		return m.Snapshot(), shared.NewValidationError("variantId", "variant ID is required")
	}
	if quantity < 1 {
		return m.Snapshot(), shared.NewValidationError("quantity", "quantity must be at least 1")
	}
	if !m.begin() {
		return m.Snapshot(), shared.ErrOperationInFlight
	}
	defer m.end()

	snap, epoch := m.current()
	if !snap.HasCart() {
		created, err := m.createCart(ctx, epoch)
		if err != nil {
			return created, err
		}
		snap = created
	}

	c, err := m.remote.AddLine(ctx, snap.CartID, variantID, quantity)
	if err != nil {
		m.logger.Warn("add item failed", zap.String("variant_id", variantID), zap.Error(err))
		return m.Snapshot(), err
	}
	return m.apply(ctx, "add", epoch, c)
}

// UpdateItem sets a line's quantity. Quantity 0 is forwarded as is and the
// remote service drops the line.
func (m *SessionManager) UpdateItem(ctx context.Context, lineID string, quantity int) (cart.Snapshot, error) {
	if lineID == "" {
		return m.Snapshot(), shared.NewValidationError("lineId", "line ID is required")
	}
	if quantity < 0 {
		return m.Snapshot(), shared.NewValidationError("quantity", "quantity cannot be negative")
	}
	return m.mutate(ctx, "update", func(cartID string) (*cart.Cart, error) {
		return m.remote.UpdateLine(ctx, cartID, lineID, quantity)
	})
}

// RemoveItem removes a line
func (m *SessionManager) RemoveItem(ctx context.Context, lineID string) (cart.Snapshot, error) {
	if lineID == "" {
		return m.Snapshot(), shared.NewValidationError("lineId", "line ID is required")
	}
	return m.mutate(ctx, "remove", func(cartID string) (*cart.Cart, error) {
		return m.remote.RemoveLine(ctx, cartID, lineID)
	})
}

// Refresh re-fetches the authoritative cart and replaces local state
func (m *SessionManager) Refresh(ctx context.Context) (cart.Snapshot, error) {
	return m.mutate(ctx, "refresh", func(cartID string) (*cart.Cart, error) {
		return m.remote.GetCart(ctx, cartID)
	})
}

// Clear drops the local session and its persisted keys. The remote cart is
// left alone; the next EnsureCart creates a new one.
func (m *SessionManager) Clear(ctx context.Context) error {
	m.storeMu.Lock()
	m.mu.Lock()
	m.epoch++
	m.state = cart.NewSnapshot("", "", "", nil)
	snap := m.state.Clone()
	m.mu.Unlock()

	err := m.store.Delete(ctx, cart.StorageKeyCartID, cart.StorageKeyItems)
	m.storeMu.Unlock()
	if err != nil {
		m.logger.Error("failed to purge persisted cart", zap.Error(err))
		err = fmt.Errorf("purge cart storage: %w", err)
	}
	m.notify(snap)
	return err
}

// Restore loads the persisted session. Unreadable lines are discarded and the
// cart id is kept, so the next Refresh repopulates them.
func (m *SessionManager) Restore(ctx context.Context) error {
	cartID, _, err := m.store.Get(ctx, cart.StorageKeyCartID)
	if err != nil {
		return fmt.Errorf("load cart id: %w", err)
	}
	raw, ok, err := m.store.Get(ctx, cart.StorageKeyItems)
	if err != nil {
		return fmt.Errorf("load cart items: %w", err)
	}

	var lines []cart.Line
	if ok && raw != "" {
		if err := json.Unmarshal([]byte(raw), &lines); err != nil {
			m.logger.Warn("discarding unreadable persisted cart items", zap.Error(err))
			lines = nil
		}
	}

	m.mu.Lock()
	m.state = cart.NewSnapshot(cartID, "", "", lines)
	snap := m.state.Clone()
	m.mu.Unlock()

	m.logger.Debug("cart session restored",
		zap.String("cart_id", cartID),
		zap.Int("item_count", snap.ItemCount),
	)
	m.notify(snap)
	return nil
}

// ---------------------------------------------------------------------------
// Internals
// ---------------------------------------------------------------------------

func (m *SessionManager) begin() bool {
	return m.inFlight.CompareAndSwap(false, true)
}

func (m *SessionManager) end() {
	m.inFlight.Store(false)
}

// mutate runs a remote call that requires an existing cart
func (m *SessionManager) mutate(ctx context.Context, op string, call func(cartID string) (*cart.Cart, error)) (cart.Snapshot, error) {
	if !m.begin() {
		return m.Snapshot(), shared.ErrOperationInFlight
	}
	defer m.end()

	snap, epoch := m.current()
	if !snap.HasCart() {
		return snap, shared.NewStateError(op, "no active cart")
	}

	c, err := call(snap.CartID)
	if err != nil {
		m.logger.Warn("cart operation failed", zap.String("op", op), zap.String("cart_id", snap.CartID), zap.Error(err))
		return m.Snapshot(), err
	}
	return m.apply(ctx, op, epoch, c)
}

// current returns the state together with the clear epoch it belongs to
func (m *SessionManager) current() (cart.Snapshot, uint64) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.Clone(), m.epoch
}

// createCart must be called while holding the in-flight slot
func (m *SessionManager) createCart(ctx context.Context, epoch uint64) (cart.Snapshot, error) {
	c, err := m.remote.CreateCart(ctx)
	if err != nil {
		m.logger.Warn("create cart failed", zap.Error(err))
		return m.Snapshot(), err
	}
	snap, err := m.apply(ctx, "create", epoch, c)
	if err == nil {
		m.logger.Info("cart created", zap.String("cart_id", snap.CartID))
	}
	return snap, err
}

// apply replaces local state with the authoritative cart, persists it and
// notifies listeners. A persistence failure is returned wrapped, but the
// in-memory state keeps the new cart. A response issued before the last
// Clear is dropped and reported as a state error.
func (m *SessionManager) apply(ctx context.Context, op string, epoch uint64, c *cart.Cart) (cart.Snapshot, error) {
	next := cart.SnapshotFromCart(c)

	m.storeMu.Lock()
	m.mu.Lock()
	if epoch != m.epoch {
		snap := m.state.Clone()
		m.mu.Unlock()
		m.storeMu.Unlock()
		m.logger.Debug("discarding cart response issued before clear", zap.String("op", op), zap.String("cart_id", c.ID))
		return snap, shared.NewStateError(op, "cart was cleared while the request was outstanding")
	}
	if next.CartID == "" {
		next.CartID = m.state.CartID
	}
	m.state = next
	snap := m.state.Clone()
	m.mu.Unlock()

	err := m.persist(ctx, snap)
	m.storeMu.Unlock()
	if err != nil {
		m.logger.Error("failed to persist cart", zap.String("op", op), zap.String("cart_id", snap.CartID), zap.Error(err))
		err = fmt.Errorf("persist cart after %s: %w", op, err)
	}
	m.notify(snap)
	return snap, err
}

func (m *SessionManager) persist(ctx context.Context, snap cart.Snapshot) error {
	lines := snap.Lines
	if lines == nil {
		lines = []cart.Line{}
	}
	raw, err := json.Marshal(lines)
	if err != nil {
		return err
	}
	if err := m.store.Set(ctx, cart.StorageKeyCartID, snap.CartID); err != nil {
		return err
	}
	return m.store.Set(ctx, cart.StorageKeyItems, string(raw))
}

func (m *SessionManager) notify(snap cart.Snapshot) {
	m.mu.RLock()
	listeners := make([]cart.Listener, 0, len(m.listeners))
	for _, l := range m.listeners {
		listeners = append(listeners, l)
	}
	m.mu.RUnlock()

	event := snap.Event()
	for _, l := range listeners {
		l(event)
	}
}
