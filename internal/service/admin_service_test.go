package service

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx"
)

func TestPlatformStats(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin()
	c := f.customer("Ada")
	f.customer("Bob")
	f.delivery("Dan")
	v := f.vendor("Shop", models.ApprovalApproved, true)
	p := f.product(v, "Tea", "10.00", 10)

	f.placeOrder(t, c, p, 1)
	cancelled := f.placeOrder(t, c, p, 2)
	_, err := f.svc.Orders.UpdateStatus(ctx, v, cancelled.ID, models.OrderStatusCancelled)
	require.NoError(t, err)

	stats, err := f.svc.Admin.PlatformStats(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.TotalUsers)
	assert.Equal(t, 1, stats.TotalVendors)
	assert.Equal(t, 1, stats.TotalDelivery)
	assert.Equal(t, 2, stats.TotalOrders)
	assert.True(t, stats.TotalRevenue.Equal(dec("30.00")))
	assert.True(t, stats.RevenueExcludingCancelled.Equal(dec("10.00")))
	assert.Equal(t, 1, stats.OrdersByStatus[models.OrderStatusPending])
	assert.Equal(t, 1, stats.OrdersByStatus[models.OrderStatusCancelled])
	assert.Equal(t, 0, stats.OrdersByStatus[models.OrderStatusDelivered])

	// Served from the cache until an order changes.
	cached, err := f.svc.Admin.PlatformStats(ctx, admin)
	require.NoError(t, err)
	assert.True(t, cached.TotalRevenue.Equal(stats.TotalRevenue))

	_, err = f.svc.Admin.PlatformStats(ctx, c)
	assert.True(t, errors.Is(err, apperr.ErrForbidden))
}

func TestVendorApprovalLiftsGate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin()
	v := f.vendor("New Shop", models.ApprovalPending, true)

	pending, err := f.svc.Admin.PendingVendors(ctx, admin)
	require.NoError(t, err)
	require.Len(t, pending, 1)

	_, err = f.svc.Admin.SetVendorApproval(ctx, admin, v.UserID, models.ApprovalRejected)
	require.NoError(t, err)
	_, err = f.svc.Vendors.CreateProduct(ctx, v, ProductInput{Name: "Tea", Price: dec("1.00")})
	assert.True(t, errors.Is(err, apperr.ErrVendorBlocked))

	p, err := f.svc.Admin.SetVendorApproval(ctx, admin, v.UserID, models.ApprovalApproved)
	require.NoError(t, err)
	assert.Equal(t, models.ApprovalApproved, p.ApprovalStatus)
	_, err = f.svc.Vendors.CreateProduct(ctx, v, ProductInput{Name: "Tea", Price: dec("1.00")})
	assert.NoError(t, err)

	pending, err = f.svc.Admin.PendingVendors(ctx, admin)
	require.NoError(t, err)
	assert.Empty(t, pending)
	assert.Len(t, f.events.Vendors, 2)

	_, err = f.svc.Admin.SetVendorApproval(ctx, admin, v.UserID, "maybe")
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
	_, err = f.svc.Admin.SetVendorActive(ctx, admin, f.customer("Ada").UserID, false)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestVendorRosterAndUsers(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin()
	c := f.customer("Ada")
	v := f.vendor("Shop", models.ApprovalApproved, true)
	f.vendor("Empty", models.ApprovalApproved, true)
	p := f.product(v, "Tea", "1.00", 10)
	f.product(v, "Coffee", "2.00", 10)
	f.placeOrder(t, c, p, 1)

	roster, err := f.svc.Admin.VendorRoster(ctx, admin)
	require.NoError(t, err)
	require.Len(t, roster, 2)
	counts := map[string][2]int{}
	for _, r := range roster {
		counts[r.StoreName] = [2]int{r.ProductCount, r.OrderCount}
	}
	assert.Equal(t, [2]int{2, 1}, counts["Shop"])
	assert.Equal(t, [2]int{0, 0}, counts["Empty"])

	users, err := f.svc.Admin.ListUsers(ctx, admin, models.RoleCustomer)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	_, err = f.svc.Admin.ListUsers(ctx, admin, models.RoleVendor)
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))
}

func TestOrdersFilteredAndExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	admin := f.admin()
	c := f.customer("Ada")
	v := f.vendor("Shop", models.ApprovalApproved, true)
	p := f.product(v, "Tea", "2.00", 10)
	first := f.placeOrder(t, c, p, 1)
	f.placeOrder(t, c, p, 2)
	_, err := f.svc.Orders.UpdateStatus(ctx, v, first.ID, models.OrderStatusAccepted)
	require.NoError(t, err)

	all, err := f.svc.Admin.OrdersFiltered(ctx, admin, "all")
	require.NoError(t, err)
	assert.Len(t, all, 2)
	assert.Equal(t, "Shop", all[0].VendorStoreName)

	accepted, err := f.svc.Admin.OrdersFiltered(ctx, admin, "accepted")
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, first.ID, accepted[0].ID)

	_, err = f.svc.Admin.OrdersFiltered(ctx, admin, "shipped")
	assert.True(t, errors.Is(err, apperr.ErrInvalidInput))

	var buf bytes.Buffer
	require.NoError(t, f.svc.Admin.ExportOrders(ctx, admin, "all", &buf))

	book, err := xlsx.OpenBinary(buf.Bytes())
	require.NoError(t, err)
	require.Len(t, book.Sheets, 1)
	rows := book.Sheets[0].Rows
	require.Len(t, rows, 3)
	assert.Equal(t, "Order ID", rows[0].Cells[0].Value)
	assert.Equal(t, "Shop", rows[1].Cells[4].Value)
}
