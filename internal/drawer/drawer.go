// Package drawer is the cart overlay: it renders the store's snapshot and
// turns gestures into store calls. Its only state is whether it is open.
package drawer

import (
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/joao-fontenele/greeneye-shop/internal/domain"
)

type CartStore interface {
	Snapshot() domain.Cart
	ChangeQuantity(ctx context.Context, id string, quantity int) error
	RemoveItem(ctx context.Context, id string) error
	OnOpenRequested(fn func())
}

type Line struct {
	ID        string
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
	LineTotal decimal.Decimal
}

type View struct {
	Open      bool
	Empty     bool
	Lines     []Line
	ItemCount int
	Total     decimal.Decimal
}

type Drawer struct {
	store CartStore

	mu   sync.Mutex
	open bool
}

func New(store CartStore) *Drawer {
	d := &Drawer{store: store}
	store.OnOpenRequested(d.Open)
	return d
}

func (d *Drawer) Open() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = true
}

func (d *Drawer) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.open = false
}

func (d *Drawer) IsOpen() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.open
}

func (d *Drawer) View() View {
	cart := d.store.Snapshot()
	view := View{
		Open:      d.IsOpen(),
		Empty:     cart.IsEmpty(),
		Lines:     make([]Line, 0, len(cart.Items)),
		ItemCount: cart.ItemCount(),
		Total:     cart.Total(),
	}
	for _, item := range cart.Items {
		view.Lines = append(view.Lines, Line{
			ID:        item.ID,
			Name:      item.Plant.Name,
			UnitPrice: item.Plant.Price,
			Quantity:  item.Quantity,
			LineTotal: item.LineTotal(),
		})
	}
	return view
}

func (d *Drawer) Increment(ctx context.Context, id string) error {
	item, ok := d.store.Snapshot().Find(id)
	if !ok {
		return nil
	}
	return d.store.ChangeQuantity(ctx, id, item.Quantity+1)
}

// Decrement at quantity 1 asks the store for 0, which it ignores. Removing a
// line is always an explicit Remove.
func (d *Drawer) Decrement(ctx context.Context, id string) error {
	item, ok := d.store.Snapshot().Find(id)
	if !ok {
		return nil
	}
	return d.store.ChangeQuantity(ctx, id, item.Quantity-1)
}

func (d *Drawer) Remove(ctx context.Context, id string) error {
	return d.store.RemoveItem(ctx, id)
}

// Checkout closes the drawer and runs next, which takes over with the
// checkout session.
func (d *Drawer) Checkout(next func()) {
	d.Close()
	if next != nil {
		next()
	}
}

var printer = message.NewPrinter(language.English)

func FormatPrice(p decimal.Decimal) string {
	f, _ := p.Float64()
	return "₹" + printer.Sprintf("%v", number.Decimal(f, number.MaxFractionDigits(2)))
}

func Render(w io.Writer, view View) error {
	if view.Empty {
		_, err := fmt.Fprintln(w, "Cart is empty")
		return err
	}
	for _, line := range view.Lines {
		if _, err := fmt.Fprintf(w, "%-10s %-24s %s x %d = %s\n",
			line.ID, line.Name, FormatPrice(line.UnitPrice), line.Quantity, FormatPrice(line.LineTotal)); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(w, "Total: %s (%d items)\n", FormatPrice(view.Total), view.ItemCount)
	return err
}
