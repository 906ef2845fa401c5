package service

import (
	"testing"
	"time"

	"marketplace-service/internal/auth"
	"marketplace-service/internal/models"
	"marketplace-service/internal/service/servicetest"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type fixture struct {
	store  *servicetest.Store
	cache  *servicetest.Cache
	locker *servicetest.Locker
	events *servicetest.Publisher
	blobs  *servicetest.Blobs
	svc    *Services
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store:  servicetest.NewStore(),
		cache:  servicetest.NewCache(),
		locker: servicetest.NewLocker(),
		events: &servicetest.Publisher{},
		blobs:  servicetest.NewBlobs(),
	}
	f.svc = New(Deps{
		Store:           f.store,
		Cache:           f.cache,
		Locker:          f.locker,
		Events:          f.events,
		Blobs:           f.blobs,
		ViewTTL:         time.Minute,
		CheckoutLockTTL: time.Second,
	})
	return f
}

func session(userID string, role models.Role) *auth.Session {
	return &auth.Session{UserID: userID, Role: role, TokenID: uuid.New().String()}
}

func (f *fixture) customer(name string) *auth.Session {
	id := uuid.New().String()
	f.store.AddUser(models.Profile{UserID: id, FullName: name, IsActive: true}, models.RoleCustomer)
	return session(id, models.RoleCustomer)
}

func (f *fixture) delivery(name string) *auth.Session {
	id := uuid.New().String()
	f.store.AddUser(models.Profile{UserID: id, FullName: name, IsActive: true}, models.RoleDelivery)
	return session(id, models.RoleDelivery)
}

func (f *fixture) admin() *auth.Session {
	id := uuid.New().String()
	f.store.AddUser(models.Profile{UserID: id, FullName: "Root", IsActive: true}, models.RoleAdmin)
	return session(id, models.RoleAdmin)
}

func (f *fixture) vendor(store string, approval models.ApprovalStatus, active bool) *auth.Session {
	id := uuid.New().String()
	f.store.AddUser(models.Profile{
		UserID:            id,
		FullName:          store + " Owner",
		StoreName:         store,
		Phone:             "555-0100",
		PickupAddressLine: "1 Market St",
		City:              "Springfield",
		State:             "IL",
		ZipCode:           "62701",
		IsActive:          active,
		ApprovalStatus:    approval,
	}, models.RoleVendor)
	return session(id, models.RoleVendor)
}

func (f *fixture) product(vendor *auth.Session, name, price string, stock int) *models.Product {
	p := models.Product{
		ID:            uuid.New().String(),
		VendorID:      vendor.UserID,
		Name:          name,
		Category:      "Groceries",
		Price:         decimal.RequireFromString(price),
		StockQuantity: stock,
		IsActive:      true,
	}
	f.store.AddProduct(p)
	return &p
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
