package models

import "time"

// Event types published to the order-events topic.
const (
	EventTypeOrderCreated     = "ORDER_CREATED"
	EventTypeOrderConfirmed   = "ORDER_CONFIRMED"
	EventTypeOrderCancelled   = "ORDER_CANCELLED"
	EventTypePaymentSucceeded = "PAYMENT_SUCCEEDED"
	EventTypePaymentFailed    = "PAYMENT_FAILED"
)

// BaseEvent contains common fields for all events.
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderItemData represents item data carried inside events.
type OrderItemData struct {
	ProductID int64  `json:"product_id"`
	Quantity  int    `json:"quantity"`
	UnitPrice string `json:"unit_price"`
	Currency  string `json:"currency"`
}

// OrderCreatedEvent is published after an order commits.
type OrderCreatedEvent struct {
	BaseEvent
	OrderID     int64           `json:"order_id"`
	OrderNumber string          `json:"order_number"`
	Guest       bool            `json:"guest"`
	Total       string          `json:"total"`
	Currency    string          `json:"currency"`
	Items       []OrderItemData `json:"items"`
}

// OrderConfirmedEvent is published when an order reaches CONFIRMED.
type OrderConfirmedEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	OrderNumber string `json:"order_number"`
}

// OrderCancelledEvent is published when an order is cancelled and its stock
// returned.
type OrderCancelledEvent struct {
	BaseEvent
	OrderID int64  `json:"order_id"`
	Reason  string `json:"reason"`
}

// PaymentSucceededEvent is published when a payment reaches SUCCEEDED.
type PaymentSucceededEvent struct {
	BaseEvent
	OrderID     int64  `json:"order_id"`
	PaymentID   int64  `json:"payment_id"`
	IntentID    string `json:"intent_id"`
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
}

// PaymentFailedEvent is published when a payment reaches FAILED or CANCELLED.
type PaymentFailedEvent struct {
	BaseEvent
	OrderID   int64  `json:"order_id"`
	PaymentID int64  `json:"payment_id"`
	IntentID  string `json:"intent_id"`
	Reason    string `json:"reason"`
}

// ProcessedEvent records consumer-side idempotency for at-least-once topics.
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
