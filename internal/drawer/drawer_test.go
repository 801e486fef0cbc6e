package drawer

import (
	"bytes"
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joao-fontenele/greeneye-shop/internal/domain"
)

type stubStore struct {
	cart    domain.Cart
	changes []int
	removed []string
	openFn  func()
}

func (s *stubStore) Snapshot() domain.Cart { return s.cart.Clone() }

func (s *stubStore) ChangeQuantity(_ context.Context, id string, quantity int) error {
	s.changes = append(s.changes, quantity)
	return nil
}

func (s *stubStore) RemoveItem(_ context.Context, id string) error {
	s.removed = append(s.removed, id)
	return nil
}

func (s *stubStore) OnOpenRequested(fn func()) { s.openFn = fn }

func TestDrawer_OpensOnStoreSignal(t *testing.T) {
	store := &stubStore{cart: domain.EmptyCart()}
	d := New(store)
	require.NotNil(t, store.openFn)
	assert.False(t, d.IsOpen())

	store.openFn()
	assert.True(t, d.IsOpen())

	d.Close()
	assert.False(t, d.IsOpen())
}

func TestDrawer_View(t *testing.T) {
	t.Run("empty cart is its own state", func(t *testing.T) {
		d := New(&stubStore{cart: domain.EmptyCart()})
		view := d.View()
		assert.True(t, view.Empty)
		assert.Empty(t, view.Lines)
		assert.True(t, view.Total.IsZero())
	})

	t.Run("lines carry totals", func(t *testing.T) {
		store := &stubStore{cart: domain.Cart{Items: []domain.CartLineItem{
			{ID: "i1", Quantity: 2, Plant: domain.Plant{ID: "p1", Name: "Neem", Price: decimal.NewFromInt(500)}},
			{ID: "i2", Quantity: 1, Plant: domain.Plant{ID: "p2", Name: "Tulsi", Price: decimal.NewFromInt(1250)}},
		}}}
		view := New(store).View()

		require.Len(t, view.Lines, 2)
		assert.Equal(t, "Neem", view.Lines[0].Name)
		assert.True(t, view.Lines[0].LineTotal.Equal(decimal.NewFromInt(1000)))
		assert.True(t, view.Total.Equal(decimal.NewFromInt(2250)))
		assert.Equal(t, 3, view.ItemCount)

		var buf bytes.Buffer
		require.NoError(t, Render(&buf, view))
		assert.Contains(t, buf.String(), "Total: ₹2,250")
	})
}

func TestDrawer_Gestures(t *testing.T) {
	store := &stubStore{cart: domain.Cart{Items: []domain.CartLineItem{
		{ID: "i1", Quantity: 1, Plant: domain.Plant{ID: "p1", Price: decimal.NewFromInt(10)}},
	}}}
	d := New(store)
	ctx := context.Background()

	require.NoError(t, d.Increment(ctx, "i1"))
	require.NoError(t, d.Decrement(ctx, "i1"))
	require.NoError(t, d.Increment(ctx, "missing"))
	require.NoError(t, d.Remove(ctx, "i1"))

	assert.Equal(t, []int{2, 0}, store.changes)
	assert.Equal(t, []string{"i1"}, store.removed)
}

func TestDrawer_CheckoutClosesThenHandsOff(t *testing.T) {
	d := New(&stubStore{cart: domain.EmptyCart()})
	d.Open()

	var openDuringHandoff bool
	d.Checkout(func() { openDuringHandoff = d.IsOpen() })

	assert.False(t, openDuringHandoff)
	assert.False(t, d.IsOpen())
}

func TestFormatPrice(t *testing.T) {
	assert.Equal(t, "₹1,000", FormatPrice(decimal.NewFromInt(1000)))
	assert.Equal(t, "₹120.5", FormatPrice(decimal.RequireFromString("120.50")))
}
