// Package shop is a small order-management domain used to exercise the
// unit of work: customers place orders made of items, and every
// relationship is navigable in both directions.
package shop

import "time"

// Store kinds.
const (
	KindCustomer = "customers"
	KindOrder    = "orders"
	KindItem     = "items"
)

// Customer places orders. Orders is loaded lazily.
type Customer struct {
	CustomerID string   `json:"customer_id"`
	Name       string   `json:"name" validate:"required"`
	Email      string   `json:"email,omitempty" validate:"omitempty,email"`
	Orders     []*Order `json:"-" validate:"-"`
}

// Order belongs to a customer and holds items. Customer and Items are
// loaded lazily; each loaded item points back at its order.
type Order struct {
	OrderID    string    `json:"order_id"`
	CustomerID string    `json:"customer_id" validate:"required"`
	Note       string    `json:"note,omitempty"`
	PlacedAt   time.Time `json:"placed_at"`
	Customer   *Customer `json:"-" validate:"-"`
	Items      []*Item   `json:"-" validate:"-"`
}

// Item is one line of an order.
type Item struct {
	ItemID   string `json:"item_id"`
	OrderID  string `json:"order_id" validate:"required"`
	SKU      string `json:"sku" validate:"required"`
	Quantity int    `json:"quantity" validate:"gte=1"`
	Order    *Order `json:"-" validate:"-"`
}
