package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Event types
const (
	EventTypeOrderPlaced         = "ORDER_PLACED"
	EventTypeOrderStatusChanged  = "ORDER_STATUS_CHANGED"
	EventTypeVendorStatusChanged = "VENDOR_STATUS_CHANGED"
)

// BaseEvent contains common fields for all events
type BaseEvent struct {
	EventID   string    `json:"event_id"`
	EventType string    `json:"event_type"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderPlacedEvent published when checkout creates an order
type OrderPlacedEvent struct {
	BaseEvent
	OrderID     string          `json:"order_id"`
	UserID      string          `json:"user_id"`
	VendorID    string          `json:"vendor_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Items       []OrderItemData `json:"items"`
}

// OrderStatusChangedEvent published after every legal transition
type OrderStatusChangedEvent struct {
	BaseEvent
	OrderID    string      `json:"order_id"`
	UserID     string      `json:"user_id"`
	VendorID   string      `json:"vendor_id"`
	FromStatus OrderStatus `json:"from_status"`
	ToStatus   OrderStatus `json:"to_status"`
	ActorID    string      `json:"actor_id"`
	ActorRole  Role        `json:"actor_role"`
}

// VendorStatusChangedEvent published when an admin changes approval or suspension
type VendorStatusChangedEvent struct {
	BaseEvent
	VendorID       string         `json:"vendor_id"`
	IsActive       bool           `json:"is_active"`
	ApprovalStatus ApprovalStatus `json:"approval_status"`
}

// OrderItemData represents item data in events
type OrderItemData struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	Quantity     int             `json:"quantity"`
	ProductPrice decimal.Decimal `json:"product_price"`
}
