package domain

import "time"

// Event types published on the order.status topic.
const (
	EventTypeCreated = "order.created"
	EventTypePicked  = "order.picked"
	EventTypeExpired = "order.expired"
)

type OrderStatusEvent struct {
	Type      string      `json:"type"`
	OrderID   string      `json:"order_id"`
	UserKey   string      `json:"user_key"`
	Status    OrderStatus `json:"status"`
	Price     float64     `json:"price"`
	Timestamp time.Time   `json:"timestamp"`
}
