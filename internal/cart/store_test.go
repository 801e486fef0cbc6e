package cart

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/greeneye-shop/internal/credentials"
	"github.com/joao-fontenele/greeneye-shop/internal/domain"
)

type fakeGateway struct {
	mu        sync.Mutex
	items     []domain.CartLineItem
	plants    map[string]domain.Plant
	nextID    int
	calls     map[string]int
	getErr    error
	mutateErr error
	getCart   func(call int) (domain.Cart, error)
}

func newFakeGateway(plants ...domain.Plant) *fakeGateway {
	g := &fakeGateway{plants: map[string]domain.Plant{}, calls: map[string]int{}}
	for _, p := range plants {
		g.plants[p.ID] = p
	}
	return g
}

func (g *fakeGateway) record(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[op]++
	return g.calls[op]
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *fakeGateway) total() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	var n int
	for _, c := range g.calls {
		n += c
	}
	return n
}

func (g *fakeGateway) GetCart(ctx context.Context) (domain.Cart, error) {
	call := g.record("get")
	if g.getCart != nil {
		return g.getCart(call)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.getErr != nil {
		return domain.Cart{}, g.getErr
	}
	items := make([]domain.CartLineItem, len(g.items))
	copy(items, g.items)
	return domain.Cart{Items: items}, nil
}

func (g *fakeGateway) AddCartItem(ctx context.Context, productRef string, quantity int) error {
	g.record("add")
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mutateErr != nil {
		return g.mutateErr
	}
	for i := range g.items {
		if g.items[i].Plant.ID == productRef {
			g.items[i].Quantity += quantity
			return nil
		}
	}
	g.nextID++
	g.items = append(g.items, domain.CartLineItem{
		ID:       fmt.Sprintf("item-%d", g.nextID),
		Quantity: quantity,
		Plant:    g.plants[productRef],
	})
	return nil
}

func (g *fakeGateway) UpdateCartItem(ctx context.Context, id string, quantity int) error {
	g.record("update")
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mutateErr != nil {
		return g.mutateErr
	}
	for i := range g.items {
		if g.items[i].ID == id {
			g.items[i].Quantity = quantity
			return nil
		}
	}
	return errors.New("not found")
}

func (g *fakeGateway) RemoveCartItem(ctx context.Context, id string) error {
	g.record("remove")
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.mutateErr != nil {
		return g.mutateErr
	}
	for i := range g.items {
		if g.items[i].ID == id {
			g.items = append(g.items[:i], g.items[i+1:]...)
			return nil
		}
	}
	return errors.New("not found")
}

func (g *fakeGateway) serverCart() []domain.CartLineItem {
	g.mu.Lock()
	defer g.mu.Unlock()
	items := make([]domain.CartLineItem, len(g.items))
	copy(items, g.items)
	return items
}

var neem = domain.Plant{ID: "p1", Name: "Neem", Price: decimal.NewFromInt(500)}
var tulsi = domain.Plant{ID: "p2", Name: "Tulsi", Price: decimal.RequireFromString("120.50")}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStore_TotalsFollowRefresh(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(neem)
	gw.items = []domain.CartLineItem{{ID: "i1", Quantity: 2, Plant: neem}}
	store := NewStore(gw, credentials.Static("tok"), discardLogger())

	store.Refresh(ctx)
	assert.True(t, store.Total().Equal(decimal.NewFromInt(1000)))
	assert.Equal(t, 2, store.ItemCount())

	require.NoError(t, store.ChangeQuantity(ctx, "i1", 5))
	assert.True(t, store.Total().Equal(decimal.NewFromInt(2500)))
	assert.Equal(t, 5, store.ItemCount())
}

func TestStore_MirrorsGatewayAfterAwaitedMutations(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(neem, tulsi)
	store := NewStore(gw, credentials.Static("tok"), discardLogger())

	require.NoError(t, store.AddItem(ctx, "p1", 1))
	require.NoError(t, store.AddItem(ctx, "p2", 3))
	require.NoError(t, store.AddItem(ctx, "p1", 2))
	require.NoError(t, store.ChangeQuantity(ctx, "item-2", 1))
	require.NoError(t, store.RemoveItem(ctx, "item-1"))

	assert.Equal(t, gw.serverCart(), store.Snapshot().Items)
	assert.Equal(t, 1, store.ItemCount())
}

func TestStore_SequentialIncrements(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(neem)
	gw.items = []domain.CartLineItem{{ID: "i1", Quantity: 1, Plant: neem}}
	store := NewStore(gw, credentials.Static("tok"), discardLogger())
	store.Refresh(ctx)

	const n = 4
	for i := 0; i < n; i++ {
		item, ok := store.Snapshot().Find("i1")
		require.True(t, ok)
		require.NoError(t, store.ChangeQuantity(ctx, "i1", item.Quantity+1))
	}

	item, _ := store.Snapshot().Find("i1")
	assert.Equal(t, 1+n, item.Quantity)
}

func TestStore_ChangeQuantityBelowOneIsNoop(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(neem)
	gw.items = []domain.CartLineItem{{ID: "i1", Quantity: 1, Plant: neem}}
	store := NewStore(gw, credentials.Static("tok"), discardLogger())
	store.Refresh(ctx)
	before := gw.total()

	for _, q := range []int{0, -1} {
		require.NoError(t, store.ChangeQuantity(ctx, "i1", q))
	}

	assert.Equal(t, before, gw.total(), "gateway must not be called")
	item, _ := store.Snapshot().Find("i1")
	assert.Equal(t, 1, item.Quantity)
}

func TestStore_Unauthenticated(t *testing.T) {
	ctx := context.Background()

	t.Run("add fails with authentication required and no calls", func(t *testing.T) {
		gw := newFakeGateway(neem)
		store := NewStore(gw, credentials.Static(""), discardLogger())

		err := store.AddItem(ctx, "p1", 1)
		assert.ErrorIs(t, err, domain.ErrAuthenticationRequired)
		assert.Zero(t, gw.total())
	})

	t.Run("remove and change quantity are silent", func(t *testing.T) {
		gw := newFakeGateway(neem)
		store := NewStore(gw, credentials.Static(""), discardLogger())

		assert.NoError(t, store.RemoveItem(ctx, "i1"))
		assert.NoError(t, store.ChangeQuantity(ctx, "i1", 3))
		assert.Zero(t, gw.total())
	})

	t.Run("refresh resets to empty without calling the gateway", func(t *testing.T) {
		gw := newFakeGateway(neem)
		gw.items = []domain.CartLineItem{{ID: "i1", Quantity: 1, Plant: neem}}
		token := "tok"
		store := NewStore(gw, credentials.ProviderFunc(func(context.Context) (string, bool) {
			return token, token != ""
		}), discardLogger())

		store.Refresh(ctx)
		require.Equal(t, 1, store.ItemCount())

		token = ""
		calls := gw.total()
		store.Refresh(ctx)
		assert.True(t, store.Snapshot().IsEmpty())
		assert.Equal(t, calls, gw.total())
	})
}

func TestStore_RefreshFailureFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(neem)
	gw.items = []domain.CartLineItem{{ID: "i1", Quantity: 2, Plant: neem}}
	store := NewStore(gw, credentials.Static("tok"), discardLogger())
	store.Refresh(ctx)
	require.Equal(t, 2, store.ItemCount())

	gw.getErr = errors.New("connection refused")
	store.Refresh(ctx)

	assert.Empty(t, store.Snapshot().Items)
	assert.NotNil(t, store.Snapshot().Items)
	assert.True(t, store.Total().IsZero())
}

func TestStore_CustomRefreshFallback(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(neem)
	gw.getErr = errors.New("boom")
	var seen error
	store := NewStore(gw, credentials.Static("tok"), discardLogger(), WithRefreshFallback(func(err error) domain.Cart {
		seen = err
		return domain.Cart{Items: []domain.CartLineItem{{ID: "kept", Quantity: 1, Plant: neem}}}
	}))

	store.Refresh(ctx)
	assert.EqualError(t, seen, "boom")
	assert.Equal(t, 1, store.ItemCount())
}

func TestStore_MutationErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("mutation failure is returned and skips refresh", func(t *testing.T) {
		gw := newFakeGateway(neem)
		gw.mutateErr = &domain.GatewayError{Op: "add cart item", Status: 503}
		store := NewStore(gw, credentials.Static("tok"), discardLogger())

		err := store.AddItem(ctx, "p1", 1)
		assert.ErrorIs(t, err, domain.ErrGatewayUnavailable)
		assert.Zero(t, gw.count("get"))
	})

	t.Run("trailing refresh failure is absorbed", func(t *testing.T) {
		gw := newFakeGateway(neem)
		gw.getErr = errors.New("timeout")
		store := NewStore(gw, credentials.Static("tok"), discardLogger())

		require.NoError(t, store.AddItem(ctx, "p1", 1))
		assert.Equal(t, 1, gw.count("add"))
		assert.True(t, store.Snapshot().IsEmpty())
	})
}

func TestStore_AddItem(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(neem)
	store := NewStore(gw, credentials.Static("tok"), discardLogger())

	var opened int
	store.OnOpenRequested(func() { opened++ })
	var changes []domain.Cart
	store.OnChange(func(c domain.Cart) { changes = append(changes, c) })

	require.NoError(t, store.AddItem(ctx, "p1", 0))

	assert.Equal(t, 1, opened)
	require.Len(t, changes, 1)
	assert.Equal(t, 1, changes[0].ItemCount(), "quantity below one defaults to one")
	assert.Equal(t, 1, gw.count("get"))
}

func TestStore_DetachDiscardsResults(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(neem)
	store := NewStore(gw, credentials.Static("tok"), discardLogger())
	var opened int
	store.OnOpenRequested(func() { opened++ })

	store.Detach()
	require.NoError(t, store.AddItem(ctx, "p1", 1))

	assert.Equal(t, 1, gw.count("add"), "the mutation still reaches the gateway")
	assert.True(t, store.Snapshot().IsEmpty())
	assert.Zero(t, opened)
}

func TestStore_ResetDiscardsCart(t *testing.T) {
	ctx := context.Background()
	gw := newFakeGateway(neem)
	gw.items = []domain.CartLineItem{{ID: "i1", Quantity: 1, Plant: neem}}
	store := NewStore(gw, credentials.Static("tok"), discardLogger())
	store.Refresh(ctx)

	store.Reset()
	assert.True(t, store.Snapshot().IsEmpty())
}

// racingGateway holds the first GetCart until the second has returned, so
// the older fetch completes last.
func racingGateway() (*fakeGateway, chan struct{}, chan struct{}) {
	gw := newFakeGateway(neem)
	started := make(chan struct{})
	release := make(chan struct{})
	older := domain.Cart{Items: []domain.CartLineItem{{ID: "old", Quantity: 1, Plant: neem}}}
	newer := domain.Cart{Items: []domain.CartLineItem{{ID: "new", Quantity: 7, Plant: neem}}}
	gw.getCart = func(call int) (domain.Cart, error) {
		if call == 1 {
			close(started)
			<-release
			return older, nil
		}
		return newer, nil
	}
	return gw, started, release
}

func runRace(store *Store, started, release chan struct{}) {
	ctx := context.Background()
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		store.Refresh(ctx)
	}()
	<-started
	store.Refresh(ctx)
	close(release)
	wg.Wait()
}

func TestStore_LastCompletingRefreshWins(t *testing.T) {
	gw, started, release := racingGateway()
	store := NewStore(gw, credentials.Static("tok"), discardLogger())

	runRace(store, started, release)

	_, ok := store.Snapshot().Find("old")
	assert.True(t, ok)
}

func TestStore_OrderedSyncDropsStaleRefresh(t *testing.T) {
	gw, started, release := racingGateway()
	store := NewStore(gw, credentials.Static("tok"), discardLogger(), WithOrderedSync())

	runRace(store, started, release)

	item, ok := store.Snapshot().Find("new")
	require.True(t, ok)
	assert.Equal(t, 7, item.Quantity)
}
