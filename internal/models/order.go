package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type OrderState string

const (
	OrderPending   OrderState = "pending"
	OrderAccepted  OrderState = "accepted"
	OrderRejected  OrderState = "rejected"
	OrderCompleted OrderState = "completed"
	OrderCancelled OrderState = "cancelled"
)

var orderTransitions = map[OrderState][]OrderState{
	OrderPending:  {OrderAccepted, OrderRejected, OrderCancelled},
	OrderAccepted: {OrderCompleted, OrderRejected, OrderCancelled},
}

// Valid reports whether s is one of the known order states.
func (s OrderState) Valid() bool {
	switch s {
	case OrderPending, OrderAccepted, OrderRejected, OrderCompleted, OrderCancelled:
		return true
	}
	return false
}

// CanTransitionTo reports whether the order lifecycle allows s -> to.
func (s OrderState) CanTransitionTo(to OrderState) bool {
	for _, next := range orderTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s OrderState) Terminal() bool {
	return len(orderTransitions[s]) == 0
}

// OrderItem is the snapshot of a product taken when the order was placed.
type OrderItem struct {
	ProductID string          `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  decimal.Decimal `json:"quantity"`
	Unit      string          `json:"unit"`
}

// Subtotal is price times quantity for the snapshot.
func (i OrderItem) Subtotal() decimal.Decimal {
	return i.UnitPrice.Mul(i.Quantity)
}

// OrderItems is stored as a single JSON column.
type OrderItems []OrderItem

func (items OrderItems) Value() (driver.Value, error) {
	return json.Marshal(items)
}

func (items *OrderItems) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	case nil:
		*items = nil
		return nil
	default:
		return fmt.Errorf("order items: unsupported column type %T", src)
	}
	return json.Unmarshal(raw, items)
}

// Order is a purchase placed by a buyer against a seller entity.
// Orders are never deleted.
type Order struct {
	ID             string          `json:"id" db:"id"`
	BuyerID        string          `json:"buyer_id" db:"buyer_id"`
	SellerEntityID string          `json:"seller_entity_id" db:"seller_entity_id"`
	Items          OrderItems      `json:"items" db:"items"`
	Total          decimal.Decimal `json:"total" db:"total"`
	State          OrderState      `json:"state" db:"state"`
	Version        int64           `json:"version" db:"version"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderTotal sums the item snapshots and rounds to cents.
func OrderTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.Subtotal())
	}
	return total.Round(2)
}
