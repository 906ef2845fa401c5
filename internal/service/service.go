package service

import (
	"context"
	"time"

	"marketplace-service/internal/models"
)

// Deps are the collaborators shared by the services. Cache, Locker and
// Events are optional.
type Deps struct {
	Store           Store
	Cache           ViewCache
	Locker          Locker
	Events          EventPublisher
	Blobs           BlobStore
	ViewTTL         time.Duration
	CheckoutLockTTL time.Duration
}

func (d Deps) events() EventPublisher {
	if d.Events == nil {
		return noopEvents{}
	}
	return d.Events
}

func (d Deps) lockTTL() time.Duration {
	if d.CheckoutLockTTL <= 0 {
		return 10 * time.Second
	}
	return d.CheckoutLockTTL
}

// Services bundles every core service built from one set of dependencies
type Services struct {
	Catalog    *CatalogService
	Cart       *CartService
	Orders     *OrderService
	Vendors    *VendorService
	Admin      *AdminService
	Dashboards *DashboardService
}

// New wires the services together
func New(d Deps) *Services {
	orders := NewOrderService(d)
	vendors := NewVendorService(d)
	admin := NewAdminService(d, orders)
	return &Services{
		Catalog:    NewCatalogService(d),
		Cart:       NewCartService(d, orders),
		Orders:     orders,
		Vendors:    vendors,
		Admin:      admin,
		Dashboards: NewDashboardService(orders, vendors, admin),
	}
}

type noopEvents struct{}

func (noopEvents) PublishOrderPlaced(context.Context, *models.Order) error { return nil }

func (noopEvents) PublishOrderStatusChanged(context.Context, *models.Order, models.OrderStatus, string, models.Role) error {
	return nil
}

func (noopEvents) PublishVendorStatusChanged(context.Context, *models.Profile) error { return nil }
