package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/cart"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/domain/shared"
	"github.com/SWFTstudios/onlyatthekiosk-website/internal/infrastructure/cache"
)

// MockRemoteService is a mock implementation of cart.RemoteService
type MockRemoteService struct {
	mock.Mock
}

func (m *MockRemoteService) CreateCart(ctx context.Context) (*cart.Cart, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockRemoteService) AddLine(ctx context.Context, cartID, variantID string, quantity int) (*cart.Cart, error) {
	args := m.Called(ctx, cartID, variantID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockRemoteService) UpdateLine(ctx context.Context, cartID, lineID string, quantity int) (*cart.Cart, error) {
	args := m.Called(ctx, cartID, lineID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockRemoteService) RemoveLine(ctx context.Context, cartID, lineID string) (*cart.Cart, error) {
	args := m.Called(ctx, cartID, lineID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

func (m *MockRemoteService) GetCart(ctx context.Context, cartID string) (*cart.Cart, error) {
	args := m.Called(ctx, cartID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cart.Cart), args.Error(1)
}

// failingStore rejects writes
type failingStore struct {
	*cache.InMemoryCartStore
}

func (s failingStore) Set(ctx context.Context, key, value string) error {
	return errors.New("disk full")
}

func remoteCart(id string, lines ...cart.Line) *cart.Cart {
	return &cart.Cart{ID: id, CheckoutURL: "https://checkout.example/" + id, Currency: "SEK", Lines: lines}
}

func line(id, variant string, qty int, price string) cart.Line {
	return cart.Line{
		LineID:    id,
		VariantID: variant,
		Quantity:  qty,
		UnitPrice: decimal.RequireFromString(price),
		Product:   cart.ProductSnapshot{Title: "Linen Shirt", Handle: "linen-shirt"},
	}
}

func newTestManager(remote cart.RemoteService) (*SessionManager, *cache.InMemoryCartStore) {
	store := cache.NewInMemoryCartStore()
	return NewSessionManager(remote, store, zap.NewNop()), store
}

func TestSessionManager_AddItemCreatesCart(t *testing.T) {
	remote := new(MockRemoteService)
	remote.On("CreateCart", mock.Anything).Return(remoteCart("cart-1"), nil).Once()
	remote.On("AddLine", mock.Anything, "cart-1", "v-1", 2).
		Return(remoteCart("cart-1", line("l-1", "v-1", 2, "100.50")), nil).Once()

	m, store := newTestManager(remote)
	var events []cart.ChangeEvent
	m.Subscribe(func(e cart.ChangeEvent) { events = append(events, e) })

	snap, err := m.AddItem(context.Background(), "v-1", 2)
	require.NoError(t, err)

	assert.Equal(t, "cart-1", snap.CartID)
	assert.Equal(t, 2, snap.ItemCount)
	assert.True(t, decimal.RequireFromString("201").Equal(snap.Total))
	assert.False(t, m.InFlight())

	id, ok, _ := store.Get(context.Background(), cart.StorageKeyCartID)
	assert.True(t, ok)
	assert.Equal(t, "cart-1", id)

	raw, _, _ := store.Get(context.Background(), cart.StorageKeyItems)
	var persisted []cart.Line
	require.NoError(t, json.Unmarshal([]byte(raw), &persisted))
	require.Len(t, persisted, 1)
	assert.Equal(t, "l-1", persisted[0].LineID)

	// one event for the creation, one for the add
	require.Len(t, events, 2)
	assert.Equal(t, 2, events[1].Count)
	remote.AssertExpectations(t)
}

func TestSessionManager_Validation(t *testing.T) {
	remote := new(MockRemoteService)
	m, _ := newTestManager(remote)
	ctx := context.Background()

	tests := []struct {
		name  string
		call  func() error
		field string
	}{
		{"add without variant", func() error { _, err := m.AddItem(ctx, "", 1); return err }, "variantId"},
		{"add zero quantity", func() error { _, err := m.AddItem(ctx, "v-1", 0); return err }, "quantity"},
		{"update without line", func() error { _, err := m.UpdateItem(ctx, "", 1); return err }, "lineId"},
		{"update negative quantity", func() error { _, err := m.UpdateItem(ctx, "l-1", -1); return err }, "quantity"},
		{"remove without line", func() error { _, err := m.RemoveItem(ctx, ""); return err }, "lineId"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.call()
			var vErr *shared.ValidationError
			require.True(t, errors.As(err, &vErr))
			assert.Equal(t, tt.field, vErr.Field)
		})
	}
	remote.AssertNotCalled(t, "CreateCart", mock.Anything)
}

func TestSessionManager_RequiresCart(t *testing.T) {
	remote := new(MockRemoteService)
	m, _ := newTestManager(remote)
	ctx := context.Background()

	_, err := m.UpdateItem(ctx, "l-1", 1)
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = m.RemoveItem(ctx, "l-1")
	assert.ErrorIs(t, err, shared.ErrInvalidState)

	_, err = m.Refresh(ctx)
	var stateErr *shared.StateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, "refresh", stateErr.Op)

	remote.AssertExpectations(t)
}

func TestSessionManager_UpdateToZeroThenRefresh(t *testing.T) {
	remote := new(MockRemoteService)
	remote.On("CreateCart", mock.Anything).Return(remoteCart("cart-1"), nil)
	remote.On("AddLine", mock.Anything, "cart-1", "v-1", 1).
		Return(remoteCart("cart-1", line("l-1", "v-1", 1, "50")), nil)
	// the remote drops the line but one response still echoes it with quantity 0
	remote.On("UpdateLine", mock.Anything, "cart-1", "l-1", 0).
		Return(remoteCart("cart-1", line("l-1", "v-1", 0, "50")), nil)
	remote.On("GetCart", mock.Anything, "cart-1").Return(remoteCart("cart-1"), nil)

	m, store := newTestManager(remote)
	ctx := context.Background()

	_, err := m.AddItem(ctx, "v-1", 1)
	require.NoError(t, err)

	snap, err := m.UpdateItem(ctx, "l-1", 0)
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)
	assert.Equal(t, 0, snap.ItemCount)

	raw, _, _ := store.Get(ctx, cart.StorageKeyItems)
	assert.Equal(t, "[]", raw)

	snap, err = m.Refresh(ctx)
	require.NoError(t, err)
	assert.Empty(t, snap.Lines)
	assert.Equal(t, 0, snap.ItemCount)
	assert.True(t, snap.Total.IsZero())
}

func TestSessionManager_RemoveItem(t *testing.T) {
	remote := new(MockRemoteService)
	remote.On("CreateCart", mock.Anything).Return(remoteCart("cart-1"), nil)
	remote.On("AddLine", mock.Anything, "cart-1", "v-2", 3).
		Return(remoteCart("cart-1", line("l-1", "v-1", 1, "10"), line("l-2", "v-2", 3, "20")), nil)
	remote.On("RemoveLine", mock.Anything, "cart-1", "l-1").
		Return(remoteCart("cart-1", line("l-2", "v-2", 3, "20")), nil)

	m, _ := newTestManager(remote)
	ctx := context.Background()

	snap, err := m.AddItem(ctx, "v-2", 3)
	require.NoError(t, err)
	assert.Equal(t, 4, snap.ItemCount)
	assert.Equal(t, "l-1", snap.Lines[0].LineID, "remote order is kept")

	snap, err = m.RemoveItem(ctx, "l-1")
	require.NoError(t, err)
	assert.Equal(t, 3, snap.ItemCount)
	assert.True(t, decimal.NewFromInt(60).Equal(snap.Total))
}

func TestSessionManager_RemoteFailureLeavesStateUnchanged(t *testing.T) {
	remote := new(MockRemoteService)
	remote.On("CreateCart", mock.Anything).Return(remoteCart("cart-1"), nil)
	remote.On("AddLine", mock.Anything, "cart-1", "v-1", 1).
		Return(remoteCart("cart-1", line("l-1", "v-1", 1, "10")), nil)
	upstream := &shared.RemoteError{Service: "cart proxy", Op: "update cart item", StatusCode: 422, Message: "bad line"}
	remote.On("UpdateLine", mock.Anything, "cart-1", "l-1", 5).Return(nil, upstream)

	m, _ := newTestManager(remote)
	ctx := context.Background()

	before, err := m.AddItem(ctx, "v-1", 1)
	require.NoError(t, err)

	var events int
	m.Subscribe(func(cart.ChangeEvent) { events++ })

	_, err = m.UpdateItem(ctx, "l-1", 5)
	assert.True(t, shared.IsRemoteError(err))
	assert.Equal(t, before, m.Snapshot())
	assert.Zero(t, events)
	assert.False(t, m.InFlight())
}

// blockingRemote holds AddLine until release is closed
type blockingRemote struct {
	MockRemoteService
	entered chan struct{}
	release chan struct{}
}

func (b *blockingRemote) AddLine(ctx context.Context, cartID, variantID string, quantity int) (*cart.Cart, error) {
	close(b.entered)
	<-b.release
	return remoteCart(cartID, line("l-1", variantID, quantity, "10")), nil
}

func TestSessionManager_RejectsConcurrentMutation(t *testing.T) {
	remote := &blockingRemote{entered: make(chan struct{}), release: make(chan struct{})}
	remote.On("CreateCart", mock.Anything).Return(remoteCart("cart-1"), nil).Once()

	m, _ := newTestManager(remote)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		_, err := m.AddItem(ctx, "v-1", 1)
		done <- err
	}()
	<-remote.entered
	assert.True(t, m.InFlight())

	before := m.Snapshot()
	_, err := m.AddItem(ctx, "v-2", 1)
	assert.ErrorIs(t, err, shared.ErrOperationInFlight)
	_, err = m.Refresh(ctx)
	assert.ErrorIs(t, err, shared.ErrOperationInFlight)
	assert.Equal(t, before, m.Snapshot())

	close(remote.release)
	require.NoError(t, <-done)
	assert.Equal(t, 1, m.Snapshot().ItemCount)
	assert.False(t, m.InFlight())
}

func TestSessionManager_ClearDiscardsOutstandingResponse(t *testing.T) {
	remote := &blockingRemote{entered: make(chan struct{}), release: make(chan struct{})}
	remote.On("CreateCart", mock.Anything).Return(remoteCart("cart-1"), nil).Once()
	remote.On("CreateCart", mock.Anything).Return(remoteCart("cart-2"), nil).Once()

	m, store := newTestManager(remote)
	ctx := context.Background()

	var events []cart.ChangeEvent
	var eventsMu sync.Mutex
	m.Subscribe(func(e cart.ChangeEvent) {
		eventsMu.Lock()
		events = append(events, e)
		eventsMu.Unlock()
	})

	done := make(chan error, 1)
	go func() {
		_, err := m.AddItem(ctx, "v-1", 1)
		done <- err
	}()
	<-remote.entered

	require.NoError(t, m.Clear(ctx))
	close(remote.release)

	err := <-done
	assert.ErrorIs(t, err, shared.ErrInvalidState)
	assert.False(t, m.InFlight())

	snap := m.Snapshot()
	assert.False(t, snap.HasCart())
	assert.Equal(t, 0, snap.ItemCount)
	_, ok, _ := store.Get(ctx, cart.StorageKeyCartID)
	assert.False(t, ok, "stale response must not be persisted")
	_, ok, _ = store.Get(ctx, cart.StorageKeyItems)
	assert.False(t, ok)

	eventsMu.Lock()
	last := events[len(events)-1]
	eventsMu.Unlock()
	assert.Equal(t, 0, last.Count)

	snap, err = m.EnsureCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cart-2", snap.CartID)
	remote.AssertNumberOfCalls(t, "CreateCart", 2)
}

// slowCreateRemote counts creations and blocks them briefly
type slowCreateRemote struct {
	MockRemoteService
	mu      sync.Mutex
	creates int
}

func (s *slowCreateRemote) CreateCart(ctx context.Context) (*cart.Cart, error) {
	s.mu.Lock()
	s.creates++
	s.mu.Unlock()
	time.Sleep(20 * time.Millisecond)
	return remoteCart("cart-1"), nil
}

func TestSessionManager_EnsureCartCreatesOnce(t *testing.T) {
	remote := &slowCreateRemote{}
	m, _ := newTestManager(remote)

	var wg sync.WaitGroup
	ids := make([]string, 8)
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			snap, err := m.EnsureCart(context.Background())
			if err == nil {
				ids[i] = snap.CartID
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, remote.creates)
	for _, id := range ids {
		assert.Equal(t, "cart-1", id)
	}
}

func TestSessionManager_ClearThenEnsureCreatesNewCart(t *testing.T) {
	remote := new(MockRemoteService)
	remote.On("CreateCart", mock.Anything).Return(remoteCart("cart-1"), nil).Once()
	remote.On("CreateCart", mock.Anything).Return(remoteCart("cart-2"), nil).Once()

	m, store := newTestManager(remote)
	ctx := context.Background()

	snap, err := m.EnsureCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cart-1", snap.CartID)

	var cleared []cart.ChangeEvent
	unsubscribe := m.Subscribe(func(e cart.ChangeEvent) { cleared = append(cleared, e) })
	require.NoError(t, m.Clear(ctx))
	unsubscribe()

	require.Len(t, cleared, 1)
	assert.Equal(t, 0, cleared[0].Count)
	_, ok, _ := store.Get(ctx, cart.StorageKeyCartID)
	assert.False(t, ok)

	snap, err = m.EnsureCart(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cart-2", snap.CartID)
	assert.Len(t, cleared, 1, "unsubscribed listener gets no more events")
	remote.AssertExpectations(t)
}

func TestSessionManager_Restore(t *testing.T) {
	ctx := context.Background()

	t.Run("loads persisted lines", func(t *testing.T) {
		m, store := newTestManager(new(MockRemoteService))
		raw, _ := json.Marshal([]cart.Line{line("l-1", "v-1", 2, "10"), line("l-2", "v-2", 0, "99")})
		require.NoError(t, store.Set(ctx, cart.StorageKeyCartID, "cart-7"))
		require.NoError(t, store.Set(ctx, cart.StorageKeyItems, string(raw)))

		require.NoError(t, m.Restore(ctx))
		snap := m.Snapshot()
		assert.Equal(t, "cart-7", snap.CartID)
		require.Len(t, snap.Lines, 1)
		assert.Equal(t, 2, snap.ItemCount)
		assert.True(t, decimal.NewFromInt(20).Equal(snap.Total))
	})

	t.Run("discards corrupt lines and keeps cart id", func(t *testing.T) {
		m, store := newTestManager(new(MockRemoteService))
		require.NoError(t, store.Set(ctx, cart.StorageKeyCartID, "cart-7"))
		require.NoError(t, store.Set(ctx, cart.StorageKeyItems, "{not json"))

		require.NoError(t, m.Restore(ctx))
		snap := m.Snapshot()
		assert.Equal(t, "cart-7", snap.CartID)
		assert.Empty(t, snap.Lines)
		assert.Equal(t, 0, snap.ItemCount)
	})

	t.Run("empty store", func(t *testing.T) {
		m, _ := newTestManager(new(MockRemoteService))
		require.NoError(t, m.Restore(ctx))
		assert.False(t, m.Snapshot().HasCart())
	})
}

func TestSessionManager_PersistFailureKeepsState(t *testing.T) {
	remote := new(MockRemoteService)
	remote.On("CreateCart", mock.Anything).Return(remoteCart("cart-1"), nil)

	m := NewSessionManager(remote, failingStore{cache.NewInMemoryCartStore()}, zap.NewNop())

	snap, err := m.EnsureCart(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.Equal(t, "cart-1", snap.CartID)
	assert.Equal(t, "cart-1", m.Snapshot().CartID)
}
