package domain

import (
	"time"

	"github.com/google/uuid"
)

type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusPicked  OrderStatus = "picked"
	OrderStatusExpired OrderStatus = "expired"
)

type OrderItem struct {
	Name     string `json:"name"`
	Quantity int    `json:"quantity"`
}

// Order is a single placed order awaiting pickup. ID and Price are fixed at
// creation; Status only moves pending -> picked or pending -> expired.
type Order struct {
	ID        string      `json:"id"`
	Status    OrderStatus `json:"status"`
	Price     float64     `json:"price"`
	Items     []OrderItem `json:"items,omitempty"`
	Note      string      `json:"note,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// OrderData is the caller-supplied payload for creating an order.
type OrderData struct {
	ID        string      `json:"id,omitempty"`
	Price     float64     `json:"price"`
	Items     []OrderItem `json:"items,omitempty"`
	Note      string      `json:"note,omitempty"`
	CreatedAt time.Time   `json:"created_at,omitempty"`
}

// NewOrder builds a pending order from caller-supplied data. An empty ID gets
// a generated one; an unset creation time defaults to now.
func NewOrder(data OrderData) Order {
	id := data.ID
	if id == "" {
		id = uuid.New().String()
	}

	createdAt := data.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	return Order{
		ID:        id,
		Status:    OrderStatusPending,
		Price:     data.Price,
		Items:     data.Items,
		Note:      data.Note,
		CreatedAt: createdAt,
	}
}

// MarkPicked moves the order to picked. It is a no-op unless the order is
// still pending; callers that need to tell "already picked" from "just picked"
// must check IsPending first.
func (o *Order) MarkPicked() {
	if o.Status == OrderStatusPending {
		o.Status = OrderStatusPicked
	}
}

// MarkExpired moves the order to expired, same pending-only rule as MarkPicked.
func (o *Order) MarkExpired() {
	if o.Status == OrderStatusPending {
		o.Status = OrderStatusExpired
	}
}

func (o *Order) IsPending() bool {
	return o.Status == OrderStatusPending
}

func (o *Order) IsPicked() bool {
	return o.Status == OrderStatusPicked
}

func (o *Order) IsExpired() bool {
	return o.Status == OrderStatusExpired
}
