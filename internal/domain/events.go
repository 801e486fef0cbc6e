package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutEventType string

const (
	CheckoutEventOrderPlaced      CheckoutEventType = "order.placed"
	CheckoutEventOrderFailed      CheckoutEventType = "order.failed"
	CheckoutEventPaymentCompleted CheckoutEventType = "payment.sheet.completed"
	CheckoutEventPaymentCancelled CheckoutEventType = "payment.cancelled"
)

type CheckoutEvent struct {
	ID            string            `json:"id"`
	Type          CheckoutEventType `json:"type"`
	OrderID       string            `json:"order_id,omitempty"`
	PaymentMethod PaymentMethod     `json:"payment_method"`
	Items         []OrderItem       `json:"items"`
	Total         decimal.Decimal   `json:"total"`
	Message       string            `json:"message,omitempty"`
	Timestamp     time.Time         `json:"timestamp"`
}
