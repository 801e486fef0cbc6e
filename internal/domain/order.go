package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "COD"
	PaymentMethodOnlineGateway  PaymentMethod = "Razorpay"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentMethodCashOnDelivery || m == PaymentMethodOnlineGateway
}

type ShippingAddress struct {
	Name    string `json:"name"`
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	Pincode string `json:"pincode"`
	Phone   string `json:"phone"`
}

// OrderItem carries no price: the backend is the price authority.
type OrderItem struct {
	ProductRef string `json:"plant"`
	Quantity   int    `json:"quantity"`
}

type OrderRequest struct {
	OrderItems      []OrderItem     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
}

type PaymentResult struct {
	ID string `json:"id"`
}

// PlacedOrder is the transient reference the client keeps to a created order.
type PlacedOrder struct {
	ID            string          `json:"_id"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	PaymentResult *PaymentResult  `json:"paymentResult,omitempty"`
}

func (o PlacedOrder) GatewayOrderToken() string {
	if o.PaymentResult == nil {
		return ""
	}
	return o.PaymentResult.ID
}

type OrderLine struct {
	ID       string          `json:"_id,omitempty"`
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// Order is the read model served by the order history endpoints.
type Order struct {
	ID              string          `json:"_id"`
	OrderItems      []OrderLine     `json:"orderItems"`
	ShippingAddress ShippingAddress `json:"shippingAddress"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	TotalPrice      decimal.Decimal `json:"totalPrice"`
	IsPaid          bool            `json:"isPaid"`
	IsDelivered     bool            `json:"isDelivered"`
	CreatedAt       time.Time       `json:"createdAt"`
}

func (o Order) ItemsTotal() decimal.Decimal {
	total := decimal.Zero
	for _, line := range o.OrderItems {
		total = total.Add(line.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return total
}
