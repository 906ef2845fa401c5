package service

import (
	"context"
	"time"

	"marketplace-service/internal/models"
)

// CatalogStore reads and writes products
type CatalogStore interface {
	ListVisibleProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error)
	GetVisibleProduct(ctx context.Context, id string) (*models.Product, error)
	GetProductByID(ctx context.Context, id string) (*models.Product, error)
	GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error)
	ListProductsByVendor(ctx context.Context, vendorID string) ([]models.Product, error)
	CreateProduct(ctx context.Context, p *models.Product) error
	UpdateProduct(ctx context.Context, p *models.Product) error
	DeleteProduct(ctx context.Context, id, vendorID string) error
}

// CartStore persists cart lines
type CartStore interface {
	ListCartItems(ctx context.Context, userID string) ([]models.CartItem, error)
	GetCartItem(ctx context.Context, id, userID string) (*models.CartItem, error)
	InsertCartItem(ctx context.Context, item *models.CartItem) error
	UpdateCartItemQuantity(ctx context.Context, id, userID string, quantity int) error
	DeleteCartItem(ctx context.Context, id, userID string) error
	ClearCart(ctx context.Context, userID string) error
}

// OrderStore persists orders, their items and status history
type OrderStore interface {
	PlaceOrder(ctx context.Context, order *models.Order, items []models.OrderItem) (bool, error)
	GetOrderByID(ctx context.Context, id string) (*models.Order, error)
	GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error)
	ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error)
	GetOrderItemsByOrderIDs(ctx context.Context, orderIDs []string) ([]models.OrderItem, error)
	TransitionOrderStatus(ctx context.Context, orderID string, from, to models.OrderStatus, actorID string, role models.Role) error
	ListOrderStatusHistory(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error)
}

// ProfileStore reads and writes profiles and role assignments
type ProfileStore interface {
	GetProfile(ctx context.Context, userID string) (*models.Profile, error)
	GetProfilesByUserIDs(ctx context.Context, userIDs []string) ([]models.Profile, error)
	ListProfilesByRole(ctx context.Context, role models.Role) ([]models.Profile, error)
	ListPendingVendors(ctx context.Context) ([]models.Profile, error)
	UpdateStoreProfile(ctx context.Context, userID string, upd models.StoreProfileUpdate) (*models.Profile, error)
	SetVendorActive(ctx context.Context, userID string, active bool) (*models.Profile, error)
	SetVendorApproval(ctx context.Context, userID string, status models.ApprovalStatus) (*models.Profile, error)
}

// AggregateStore computes the grouped admin roll-ups
type AggregateStore interface {
	CountUsersByRole(ctx context.Context) (map[models.Role]int, error)
	OrderStatusTotals(ctx context.Context) ([]models.StatusTotal, error)
	VendorRoster(ctx context.Context) ([]models.VendorRosterEntry, error)
}

// Store is everything the services need from persistence; *store.Store satisfies it
type Store interface {
	CatalogStore
	CartStore
	OrderStore
	ProfileStore
	AggregateStore
}

// ViewCache holds named, JSON-encoded views
type ViewCache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	DeletePattern(ctx context.Context, pattern string) error
}

// Locker serialises checkouts of the same customer
type Locker interface {
	AcquireLock(ctx context.Context, key, token string, ttl time.Duration) (bool, error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// EventPublisher emits domain events after successful writes
type EventPublisher interface {
	PublishOrderPlaced(ctx context.Context, order *models.Order) error
	PublishOrderStatusChanged(ctx context.Context, order *models.Order, from models.OrderStatus, actorID string, role models.Role) error
	PublishVendorStatusChanged(ctx context.Context, profile *models.Profile) error
}

// BlobStore stores uploaded product images
type BlobStore interface {
	Upload(ctx context.Context, path string, data []byte) error
	PublicURL(path string) string
}
