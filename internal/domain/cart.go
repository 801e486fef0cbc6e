package domain

import "github.com/shopspring/decimal"

// Plant is the purchasable item as denormalized by the backend. Inside a
// cart line it is a snapshot taken at fetch time and may lag the catalog.
type Plant struct {
	ID          string          `json:"_id"`
	Name        string          `json:"name"`
	Price       decimal.Decimal `json:"price"`
	Image       string          `json:"image,omitempty"`
	Description string          `json:"description,omitempty"`
}

type CartLineItem struct {
	ID       string `json:"_id"`
	Quantity int    `json:"quantity"`
	Plant    Plant  `json:"plant"`
}

func (i CartLineItem) ProductRef() string {
	return i.Plant.ID
}

func (i CartLineItem) LineTotal() decimal.Decimal {
	return i.Plant.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// Cart mirrors the remote cart. Item count and total are always derived.
type Cart struct {
	Items []CartLineItem `json:"items"`
}

func EmptyCart() Cart {
	return Cart{Items: []CartLineItem{}}
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) ItemCount() int {
	var n int
	for _, item := range c.Items {
		n += item.Quantity
	}
	return n
}

func (c Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, item := range c.Items {
		total = total.Add(item.LineTotal())
	}
	return total
}

func (c Cart) Find(id string) (CartLineItem, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return CartLineItem{}, false
}

func (c Cart) Clone() Cart {
	items := make([]CartLineItem, len(c.Items))
	copy(items, c.Items)
	return Cart{Items: items}
}
