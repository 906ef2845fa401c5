package models

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

// Role is the single role assigned to a user at signup
type Role string

const (
	RoleCustomer Role = "user"
	RoleVendor   Role = "vendor"
	RoleDelivery Role = "delivery"
	RoleAdmin    Role = "admin"
)

// Valid reports whether r is one of the four known roles
func (r Role) Valid() bool {
	switch r {
	case RoleCustomer, RoleVendor, RoleDelivery, RoleAdmin:
		return true
	}
	return false
}

// OrderStatus is the lifecycle state of an order
type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "pending"
	OrderStatusAccepted       OrderStatus = "accepted"
	OrderStatusReadyForPickup OrderStatus = "ready_for_pickup"
	OrderStatusPickedUp       OrderStatus = "picked_up"
	OrderStatusDelivered      OrderStatus = "delivered"
	OrderStatusCancelled      OrderStatus = "cancelled"
)

// AllOrderStatuses lists every status in lifecycle order
var AllOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusAccepted,
	OrderStatusReadyForPickup,
	OrderStatusPickedUp,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// Valid reports whether s is a known status
func (s OrderStatus) Valid() bool {
	for _, known := range AllOrderStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Label returns the human-readable name used in notifications
func (s OrderStatus) Label() string {
	switch s {
	case OrderStatusPending:
		return "Pending"
	case OrderStatusAccepted:
		return "Accepted"
	case OrderStatusReadyForPickup:
		return "Ready for Pickup"
	case OrderStatusPickedUp:
		return "Picked Up"
	case OrderStatusDelivered:
		return "Delivered"
	case OrderStatusCancelled:
		return "Cancelled"
	}
	return string(s)
}

// ApprovalStatus is the admin review state of a vendor profile
type ApprovalStatus string

const (
	ApprovalPending  ApprovalStatus = "pending"
	ApprovalApproved ApprovalStatus = "approved"
	ApprovalRejected ApprovalStatus = "rejected"
)

// Valid reports whether a is a known approval status
func (a ApprovalStatus) Valid() bool {
	return a == ApprovalPending || a == ApprovalApproved || a == ApprovalRejected
}

// Product represents a vendor's catalog entry
type Product struct {
	ID            string          `db:"id" json:"id"`
	VendorID      string          `db:"vendor_id" json:"vendor_id"`
	Name          string          `db:"name" json:"name"`
	Description   string          `db:"description" json:"description"`
	Category      string          `db:"category" json:"category"`
	Price         decimal.Decimal `db:"price" json:"price"`
	StockQuantity int             `db:"stock_quantity" json:"stock_quantity"`
	Images        pq.StringArray  `db:"images" json:"images"`
	IsActive      bool            `db:"is_active" json:"is_active"`
	CreatedAt     time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`

	VendorName      string `db:"vendor_name" json:"vendor_name,omitempty"`
	VendorStoreName string `db:"vendor_store_name" json:"vendor_store_name,omitempty"`
}

// ProductFilter narrows the public catalog listing
type ProductFilter struct {
	Category string
	Search   string
}

// CartItem is one line of a customer's cart
type CartItem struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"user_id"`
	ProductID string    `db:"product_id" json:"product_id"`
	VendorID  string    `db:"vendor_id" json:"vendor_id"`
	Quantity  int       `db:"quantity" json:"quantity"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`

	Product *Product `db:"-" json:"product,omitempty"`
}

// Order represents a placed order; status is the only field changed after creation
type Order struct {
	ID                    string          `db:"id" json:"id"`
	UserID                string          `db:"user_id" json:"user_id"`
	VendorID              string          `db:"vendor_id" json:"vendor_id"`
	Status                OrderStatus     `db:"status" json:"status"`
	TotalAmount           decimal.Decimal `db:"total_amount" json:"total_amount"`
	DeliveryAddress       string          `db:"delivery_address" json:"delivery_address"`
	VendorAddressSnapshot string          `db:"vendor_address_snapshot" json:"vendor_address_snapshot,omitempty"`
	IdempotencyKey        string          `db:"idempotency_key" json:"-"`
	CreatedAt             time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt             time.Time       `db:"updated_at" json:"updated_at"`

	Items           []OrderItem          `db:"-" json:"order_items,omitempty"`
	History         []OrderStatusHistory `db:"-" json:"status_history,omitempty"`
	VendorName      string               `db:"-" json:"vendor_name,omitempty"`
	VendorStoreName string               `db:"-" json:"vendor_store_name,omitempty"`
}

// OrderItem is a frozen snapshot of a product line at placement time
type OrderItem struct {
	ID           string          `db:"id" json:"id"`
	OrderID      string          `db:"order_id" json:"order_id"`
	ProductID    string          `db:"product_id" json:"product_id"`
	ProductName  string          `db:"product_name" json:"product_name"`
	ProductPrice decimal.Decimal `db:"product_price" json:"product_price"`
	Quantity     int             `db:"quantity" json:"quantity"`
}

// LineTotal is price times quantity
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.ProductPrice.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderStatusHistory is the audit trail of status changes
type OrderStatusHistory struct {
	ID         string      `db:"id" json:"id"`
	OrderID    string      `db:"order_id" json:"order_id"`
	FromStatus OrderStatus `db:"from_status" json:"from_status"`
	ToStatus   OrderStatus `db:"to_status" json:"to_status"`
	ChangedBy  string      `db:"changed_by" json:"changed_by"`
	ActorRole  Role        `db:"actor_role" json:"actor_role"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}

// OrderFilter selects orders for the role-scoped listers.
// Zero-valued fields are ignored.
type OrderFilter struct {
	UserID          string
	VendorID        string
	Statuses        []OrderStatus
	NewestByUpdated bool
}

// Profile holds per-user details; vendor fields are blank for other roles
type Profile struct {
	UserID            string         `db:"user_id" json:"user_id"`
	FullName          string         `db:"full_name" json:"full_name"`
	StoreName         string         `db:"store_name" json:"store_name,omitempty"`
	Phone             string         `db:"phone" json:"phone,omitempty"`
	PickupAddressLine string         `db:"pickup_address_line" json:"pickup_address_line,omitempty"`
	City              string         `db:"city" json:"city,omitempty"`
	State             string         `db:"state" json:"state,omitempty"`
	ZipCode           string         `db:"zip_code" json:"zip_code,omitempty"`
	IsActive          bool           `db:"is_active" json:"is_active"`
	ApprovalStatus    ApprovalStatus `db:"approval_status" json:"approval_status,omitempty"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}

// StoreProfileUpdate carries the vendor-editable profile fields
type StoreProfileUpdate struct {
	FullName          string `json:"full_name" binding:"required"`
	StoreName         string `json:"store_name" binding:"required"`
	Phone             string `json:"phone"`
	PickupAddressLine string `json:"pickup_address_line"`
	City              string `json:"city"`
	State             string `json:"state"`
	ZipCode           string `json:"zip_code"`
}

// RoleAssignment maps a user to exactly one role
type RoleAssignment struct {
	UserID string `db:"user_id" json:"user_id"`
	Role   Role   `db:"role" json:"role"`
}

// StatusTotal is one row of the grouped order summary
type StatusTotal struct {
	Status OrderStatus     `db:"status" json:"status"`
	Count  int             `db:"order_count" json:"count"`
	Amount decimal.Decimal `db:"amount" json:"amount"`
}

// VendorRosterEntry is a vendor profile with live catalog and order counts
type VendorRosterEntry struct {
	Profile
	ProductCount int `db:"product_count" json:"product_count"`
	OrderCount   int `db:"order_count" json:"order_count"`
}

// Notification is a human-readable feed entry for a user
type Notification struct {
	OrderID   string    `json:"order_id,omitempty"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"created_at"`
}
