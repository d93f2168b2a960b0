package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderSummary is returned to the caller after a committed checkout.
type OrderSummary struct {
	OrderNumber string             `json:"order_number"`
	Total       decimal.Decimal    `json:"total"`
	Items       []OrderItemSummary `json:"items"`
}

type OrderItemSummary struct {
	ProductID   string          `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	Subtotal    decimal.Decimal `json:"subtotal"`
}

// OrderCompletedEvent is published to Kafka after the checkout transaction
// commits. Best-effort: a publish failure never affects the committed order.
type OrderCompletedEvent struct {
	Event       string             `json:"event"` // "order.completed"
	OrderID     string             `json:"order_id"`
	OrderNumber string             `json:"order_number"`
	UserID      string             `json:"user_id"`
	Total       decimal.Decimal    `json:"total"`
	Items       []OrderItemSummary `json:"items"`
	Timestamp   time.Time          `json:"timestamp"`
}
