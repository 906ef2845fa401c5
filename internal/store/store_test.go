package store

import (
	"context"
	"errors"
	"os"
	"testing"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// openTestStore connects to TEST_DATABASE_URL; integration tests skip without it
func openTestStore(t *testing.T) *Store {
	t.Helper()
	url := os.Getenv("TEST_DATABASE_URL")
	if url == "" {
		t.Skip("Integration test - requires database (set TEST_DATABASE_URL)")
	}

	store, err := NewStore(url)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func seedVendor(t *testing.T, s *Store, approval models.ApprovalStatus) string {
	t.Helper()
	ctx := context.Background()
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO profiles (user_id, full_name, store_name, approval_status) VALUES ($1, 'Asha', 'Corner Shop', $2)",
		id, approval)
	require.NoError(t, err)
	_, err = s.db.ExecContext(ctx, "INSERT INTO user_roles (user_id, role) VALUES ($1, 'vendor')", id)
	require.NoError(t, err)
	return id
}

func seedProduct(t *testing.T, s *Store, vendorID string, stock int) *models.Product {
	t.Helper()
	p := &models.Product{
		ID:            uuid.New().String(),
		VendorID:      vendorID,
		Name:          "Mango",
		Price:         decimal.RequireFromString("40.00"),
		StockQuantity: stock,
		IsActive:      true,
	}
	require.NoError(t, s.CreateProduct(context.Background(), p))
	return p
}

func TestPlaceOrderDecrementsStockAtomically(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	vendorID := seedVendor(t, s, models.ApprovalApproved)
	product := seedProduct(t, s, vendorID, 3)

	order := &models.Order{
		ID:              uuid.New().String(),
		UserID:          uuid.New().String(),
		VendorID:        vendorID,
		Status:          models.OrderStatusPending,
		TotalAmount:     decimal.RequireFromString("80.00"),
		DeliveryAddress: "12 Lake Road",
		IdempotencyKey:  uuid.New().String(),
	}
	items := []models.OrderItem{{
		ID:           uuid.New().String(),
		ProductID:    product.ID,
		ProductName:  product.Name,
		ProductPrice: product.Price,
		Quantity:     2,
	}}

	created, err := s.PlaceOrder(ctx, order, items)
	require.NoError(t, err)
	assert.True(t, created)

	reloaded, err := s.GetProductByID(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, reloaded.StockQuantity)

	// Same key again returns the original order without writing.
	retry := *order
	retry.ID = uuid.New().String()
	created, err = s.PlaceOrder(ctx, &retry, items)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, order.ID, retry.ID)

	// A second order for more than the remaining stock rolls back entirely.
	oversell := *order
	oversell.ID = uuid.New().String()
	oversell.IdempotencyKey = uuid.New().String()
	_, err = s.PlaceOrder(ctx, &oversell, []models.OrderItem{{
		ID: uuid.New().String(), ProductID: product.ID, ProductName: "Mango", ProductPrice: product.Price, Quantity: 2,
	}})
	assert.True(t, errors.Is(err, apperr.ErrInsufficientStock))

	_, err = s.GetOrderByID(ctx, oversell.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))
}

func TestTransitionOrderStatusIsCompareAndSet(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	vendorID := seedVendor(t, s, models.ApprovalApproved)
	product := seedProduct(t, s, vendorID, 5)
	order := &models.Order{
		ID: uuid.New().String(), UserID: uuid.New().String(), VendorID: vendorID,
		Status: models.OrderStatusPending, TotalAmount: product.Price,
		DeliveryAddress: "1 Hill St", IdempotencyKey: uuid.New().String(),
	}
	_, err := s.PlaceOrder(ctx, order, []models.OrderItem{{
		ID: uuid.New().String(), ProductID: product.ID, ProductName: product.Name, ProductPrice: product.Price, Quantity: 1,
	}})
	require.NoError(t, err)

	require.NoError(t, s.TransitionOrderStatus(ctx, order.ID,
		models.OrderStatusPending, models.OrderStatusAccepted, vendorID, models.RoleVendor))

	err = s.TransitionOrderStatus(ctx, order.ID,
		models.OrderStatusPending, models.OrderStatusCancelled, vendorID, models.RoleVendor)
	assert.True(t, errors.Is(err, apperr.ErrIllegalTransition))

	history, err := s.ListOrderStatusHistory(ctx, order.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, models.OrderStatusAccepted, history[0].ToStatus)
}

func TestInsertCartItemRejectsSecondVendor(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	v1 := seedVendor(t, s, models.ApprovalApproved)
	v2 := seedVendor(t, s, models.ApprovalApproved)
	p1 := seedProduct(t, s, v1, 5)
	p2 := seedProduct(t, s, v2, 5)
	userID := uuid.New().String()

	require.NoError(t, s.InsertCartItem(ctx, &models.CartItem{
		ID: uuid.New().String(), UserID: userID, ProductID: p1.ID, VendorID: v1, Quantity: 1,
	}))
	err := s.InsertCartItem(ctx, &models.CartItem{
		ID: uuid.New().String(), UserID: userID, ProductID: p2.ID, VendorID: v2, Quantity: 1,
	})
	assert.True(t, errors.Is(err, apperr.ErrVendorConflict))

	items, err := s.ListCartItems(ctx, userID)
	require.NoError(t, err)
	assert.Len(t, items, 1)
}

func TestVisibleProductsHidePendingVendors(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	pending := seedVendor(t, s, models.ApprovalPending)
	hidden := seedProduct(t, s, pending, 5)

	_, err := s.GetVisibleProduct(ctx, hidden.ID)
	assert.True(t, errors.Is(err, apperr.ErrNotFound))

	_, err = s.SetVendorApproval(ctx, pending, models.ApprovalApproved)
	require.NoError(t, err)

	visible, err := s.GetVisibleProduct(ctx, hidden.ID)
	require.NoError(t, err)
	assert.Equal(t, "Corner Shop", visible.VendorStoreName)
}

func TestEscapeLike(t *testing.T) {
	assert.Equal(t, `50\% off\_now`, escapeLike("50% off_now"))
}
