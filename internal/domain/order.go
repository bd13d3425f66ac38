package domain

import (
	"errors"
	"fmt"
	"time"
)

var ErrInvalidStatus = errors.New("invalid order status")

type OrderStatus string

const (
	OrderStatusPlaced     OrderStatus = "placed"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusReturned   OrderStatus = "returned"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusPlaced,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusReturned,
	OrderStatusCancelled,
}

// OrderStatuses lists the enumeration in lifecycle order.
func OrderStatuses() []OrderStatus {
	out := make([]OrderStatus, len(orderStatuses))
	copy(out, orderStatuses)
	return out
}

// ParseOrderStatus accepts any member of the enumeration. No transition
// rules apply: any status may replace any other.
func ParseOrderStatus(s string) (OrderStatus, error) {
	for _, st := range orderStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

func (s OrderStatus) String() string {
	return string(s)
}

type OrderItem struct {
	Product  Product `json:"product"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

type Order struct {
	ID              string      `json:"id"`
	UserID          string      `json:"user_id,omitempty"`
	Items           []OrderItem `json:"items"`
	Status          OrderStatus `json:"status"`
	Total           float64     `json:"total"`
	ShippingAddress string      `json:"shipping_address,omitempty"`
	CreatedAt       time.Time   `json:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at"`
}

// NewOrderFromCart snapshots the cart lines into order items. Prices are
// copied so later catalog changes do not alter placed orders.
func NewOrderFromCart(id string, lines []CartLine, now time.Time) Order {
	items := make([]OrderItem, 0, len(lines))
	var total float64
	for _, l := range lines {
		items = append(items, OrderItem{
			Product:  l.Product,
			Quantity: l.Quantity,
			Price:    l.Price,
		})
		total += l.Subtotal()
	}
	return Order{
		ID:        id,
		Items:     items,
		Status:    OrderStatusPlaced,
		Total:     total,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
