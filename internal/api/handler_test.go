package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"marketplace-service/internal/auth"
	"marketplace-service/internal/models"
	"marketplace-service/internal/service"
	"marketplace-service/internal/service/servicetest"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySessions struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
}

func (m *memorySessions) RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.revoked[tokenID] = ttl
	return nil
}

func (m *memorySessions) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}

type memoryFeed map[string][]models.Notification

func (f memoryFeed) ListNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	return f[userID], nil
}

type testServer struct {
	router   *gin.Engine
	handler  *Handler
	store    *servicetest.Store
	verifier *auth.TokenVerifier
	sessions *memorySessions
	feed     memoryFeed
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	ts := &testServer{
		store:    servicetest.NewStore(),
		verifier: auth.NewTokenVerifier("test-secret", time.Hour),
		sessions: &memorySessions{revoked: make(map[string]time.Duration)},
		feed:     memoryFeed{},
	}
	services := service.New(service.Deps{
		Store:  ts.store,
		Cache:  servicetest.NewCache(),
		Locker: servicetest.NewLocker(),
		Events: &servicetest.Publisher{},
		Blobs:  servicetest.NewBlobs(),
	})
	ts.handler = NewHandler(services, ts.verifier, ts.sessions, ts.feed)
	ts.router = gin.New()
	ts.handler.SetupRoutes(ts.router, Options{CORSOrigins: []string{"*"}})
	return ts
}

func (ts *testServer) user(t *testing.T, role models.Role, profile models.Profile) (string, string) {
	t.Helper()
	profile.UserID = uuid.New().String()
	if profile.FullName == "" {
		profile.FullName = "Test " + string(role)
	}
	profile.IsActive = true
	ts.store.AddUser(profile, role)

	token, err := ts.verifier.Issue(profile.UserID, role)
	require.NoError(t, err)
	return profile.UserID, token
}

func (ts *testServer) vendor(t *testing.T, approval models.ApprovalStatus) (string, string) {
	return ts.user(t, models.RoleVendor, models.Profile{
		StoreName:         "Corner Shop",
		PickupAddressLine: "1 Market St",
		City:              "Springfield",
		ApprovalStatus:    approval,
	})
}

func (ts *testServer) product(vendorID, name string, stock int) string {
	id := uuid.New().String()
	ts.store.AddProduct(models.Product{
		ID:            id,
		VendorID:      vendorID,
		Name:          name,
		Category:      "Groceries",
		Price:         decimal.RequireFromString("2.50"),
		StockQuantity: stock,
		IsActive:      true,
	})
	return id
}

func (ts *testServer) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dest interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), dest))
}

func errorTitle(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	decode(t, w, &body)
	assert.NotEmpty(t, body["details"])
	return body["error"]
}

func TestHealthAndReadiness(t *testing.T) {
	ts := newTestServer(t)

	w := ts.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	ts.handler.AddReadinessCheck("postgres", func(ctx context.Context) error {
		return errors.New("connection refused")
	})
	w = ts.do(t, http.MethodGet, "/ready", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestAuthentication(t *testing.T) {
	ts := newTestServer(t)
	_, vendorToken := ts.vendor(t, models.ApprovalApproved)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"not bearer", "Basic abc", http.StatusUnauthorized},
		{"garbage token", "Bearer not-a-jwt", http.StatusUnauthorized},
		{"wrong role", "Bearer " + vendorToken, http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/cart", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			ts.router.ServeHTTP(w, req)
			assert.Equal(t, tt.status, w.Code)
		})
	}
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := newTestServer(t)
	_, token := ts.user(t, models.RoleCustomer, models.Profile{})

	w := ts.do(t, http.MethodGet, "/api/v1/cart", token, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/auth/logout", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, ts.sessions.revoked, 1)
	for _, ttl := range ts.sessions.revoked {
		assert.True(t, ttl > 0 && ttl <= time.Hour)
	}

	w = ts.do(t, http.MethodGet, "/api/v1/cart", token, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCartCheckoutAndFulfilment(t *testing.T) {
	ts := newTestServer(t)
	customerID, customer := ts.user(t, models.RoleCustomer, models.Profile{})
	vendorID, vendor := ts.vendor(t, models.ApprovalApproved)
	otherID, _ := ts.vendor(t, models.ApprovalApproved)
	_, courier := ts.user(t, models.RoleDelivery, models.Profile{})
	tea := ts.product(vendorID, "Tea", 5)
	bread := ts.product(otherID, "Bread", 5)

	w := ts.do(t, http.MethodPost, "/api/v1/cart/items", customer, gin.H{"product_id": tea, "quantity": 2})
	require.Equal(t, http.StatusOK, w.Code)
	var cart service.Cart
	decode(t, w, &cart)
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, 2, cart.TotalItems)
	assert.True(t, cart.Subtotal.Equal(decimal.RequireFromString("5.00")))

	w = ts.do(t, http.MethodPost, "/api/v1/cart/items", customer, gin.H{"product_id": bread, "quantity": 1})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Cart holds another vendor's items", errorTitle(t, w))

	w = ts.do(t, http.MethodPost, "/api/v1/cart/items", customer, gin.H{"product_id": tea, "quantity": 10})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Insufficient stock", errorTitle(t, w))

	w = ts.do(t, http.MethodPost, "/api/v1/checkout", customer, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPost, "/api/v1/checkout", customer, gin.H{
		"delivery_address": "9 Elm St",
		"idempotency_key":  "checkout-1",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var order models.Order
	decode(t, w, &order)
	assert.Equal(t, models.OrderStatusPending, order.Status)
	assert.Equal(t, customerID, order.UserID)
	assert.Equal(t, 3, ts.store.Stock(tea))

	w = ts.do(t, http.MethodGet, "/api/v1/cart", customer, nil)
	decode(t, w, &cart)
	assert.Empty(t, cart.Lines)

	statusPath := "/api/v1/orders/" + order.ID + "/status"
	w = ts.do(t, http.MethodPost, statusPath, customer, gin.H{"status": "cancelled"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodPost, statusPath, vendor, gin.H{"status": "delivered"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "Illegal status transition", errorTitle(t, w))

	for _, step := range []struct {
		token  string
		status models.OrderStatus
	}{
		{vendor, models.OrderStatusAccepted},
		{vendor, models.OrderStatusReadyForPickup},
		{courier, models.OrderStatusPickedUp},
		{courier, models.OrderStatusDelivered},
	} {
		w = ts.do(t, http.MethodPost, statusPath, step.token, gin.H{"status": step.status})
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	}

	w = ts.do(t, http.MethodGet, "/api/v1/orders/"+order.ID, customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &order)
	assert.Equal(t, models.OrderStatusDelivered, order.Status)
	assert.Len(t, order.History, 4)

	w = ts.do(t, http.MethodGet, "/api/v1/delivery/history", courier, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Orders []models.Order `json:"orders"`
	}
	decode(t, w, &history)
	assert.Len(t, history.Orders, 1)
}

func TestUpdateCartItemZeroRemovesLine(t *testing.T) {
	ts := newTestServer(t)
	_, customer := ts.user(t, models.RoleCustomer, models.Profile{})
	vendorID, _ := ts.vendor(t, models.ApprovalApproved)
	tea := ts.product(vendorID, "Tea", 5)

	w := ts.do(t, http.MethodPost, "/api/v1/cart/items", customer, gin.H{"product_id": tea})
	var cart service.Cart
	decode(t, w, &cart)
	require.Len(t, cart.Lines, 1)
	lineID := cart.Lines[0].ID

	w = ts.do(t, http.MethodPatch, "/api/v1/cart/items/"+lineID, customer, gin.H{"quantity": 3})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &cart)
	assert.Equal(t, 3, cart.TotalItems)

	w = ts.do(t, http.MethodPatch, "/api/v1/cart/items/"+lineID, customer, gin.H{"quantity": 0})
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &cart)
	assert.Empty(t, cart.Lines)

	w = ts.do(t, http.MethodPatch, "/api/v1/cart/items/"+lineID, customer, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPendingVendorIsBlocked(t *testing.T) {
	ts := newTestServer(t)
	_, vendor := ts.vendor(t, models.ApprovalPending)

	w := ts.do(t, http.MethodPost, "/api/v1/vendor/products", vendor, gin.H{"name": "Tea", "price": "1.00"})
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Store access restricted", errorTitle(t, w))

	w = ts.do(t, http.MethodGet, "/api/v1/vendor/profile", vendor, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Access service.DashboardAccess `json:"access"`
	}
	decode(t, w, &body)
	assert.Equal(t, service.AccessBlocked, body.Access)
}

func TestVendorCatalogRoutes(t *testing.T) {
	ts := newTestServer(t)
	_, vendor := ts.vendor(t, models.ApprovalApproved)

	w := ts.do(t, http.MethodPost, "/api/v1/vendor/products", vendor, gin.H{
		"name": "Coffee", "category": "Drinks", "price": "4.50", "stock_quantity": 3,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var product models.Product
	decode(t, w, &product)

	w = ts.do(t, http.MethodGet, "/api/v1/products?category=Drinks", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var listing struct {
		Products []models.Product `json:"products"`
	}
	decode(t, w, &listing)
	require.Len(t, listing.Products, 1)
	assert.Equal(t, "Corner Shop", listing.Products[0].VendorStoreName)

	w = ts.do(t, http.MethodPost, "/api/v1/vendor/products/"+product.ID+"/toggle", vendor, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/products/"+product.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = ts.do(t, http.MethodDelete, "/api/v1/vendor/products/"+product.ID, vendor, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestUploadImage(t *testing.T) {
	ts := newTestServer(t)
	vendorID, vendor := ts.vendor(t, models.ApprovalApproved)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = part.Write([]byte("png-bytes"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/vendor/images", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+vendor)
	w := httptest.NewRecorder()
	ts.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp map[string]string
	decode(t, w, &resp)
	assert.Contains(t, resp["url"], "https://media.test/"+vendorID+"/")

	w = ts.do(t, http.MethodPost, "/api/v1/vendor/images", vendor, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminRoutes(t *testing.T) {
	ts := newTestServer(t)
	_, admin := ts.user(t, models.RoleAdmin, models.Profile{})
	vendorID, vendor := ts.vendor(t, models.ApprovalPending)

	w := ts.do(t, http.MethodGet, "/api/v1/admin/vendors/pending", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var pending struct {
		Vendors []models.Profile `json:"vendors"`
	}
	decode(t, w, &pending)
	require.Len(t, pending.Vendors, 1)

	w = ts.do(t, http.MethodPut, "/api/v1/admin/vendors/"+vendorID+"/approval", admin, gin.H{"approval_status": "approved"})
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/admin/vendors/"+vendorID+"/active", admin, gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodPut, "/api/v1/admin/vendors/"+vendorID+"/active", admin, gin.H{"is_active": false})
	require.Equal(t, http.StatusOK, w.Code)
	var profile models.Profile
	decode(t, w, &profile)
	assert.False(t, profile.IsActive)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/stats", vendor, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/stats", admin, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/orders?status=shipped", admin, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = ts.do(t, http.MethodGet, "/api/v1/admin/orders/export", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "orders-all-")
	assert.NotZero(t, w.Body.Len())
}

func TestDashboardAndNotifications(t *testing.T) {
	ts := newTestServer(t)
	userID, customer := ts.user(t, models.RoleCustomer, models.Profile{})
	ts.feed[userID] = []models.Notification{{Title: "Order Accepted"}}

	w := ts.do(t, http.MethodGet, "/api/v1/dashboard", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var dash service.Dashboard
	decode(t, w, &dash)
	assert.Equal(t, models.RoleCustomer, dash.Role)
	assert.NotNil(t, dash.Customer)

	w = ts.do(t, http.MethodGet, "/api/v1/notifications", customer, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Order Accepted")

	w = ts.do(t, http.MethodGet, "/api/v1/order-lifecycle", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ready_for_pickup")
}

func TestCreateOrderRejectsForgedPrice(t *testing.T) {
	ts := newTestServer(t)
	vendorID, _ := ts.vendor(t, models.ApprovalApproved)
	productID := ts.product(vendorID, "Milk", 4)
	_, customer := ts.user(t, models.RoleCustomer, models.Profile{})

	order := func(price, total string) gin.H {
		return gin.H{
			"vendor_id":        vendorID,
			"delivery_address": "7 Pine Rd",
			"total_amount":     total,
			"items": []gin.H{
				{"product_id": productID, "product_name": "Milk", "product_price": price, "quantity": 2},
			},
		}
	}

	w := ts.do(t, http.MethodPost, "/api/v1/orders", customer, order("0.01", "0.02"))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request", errorTitle(t, w))
	assert.Equal(t, 4, ts.store.Stock(productID))

	w = ts.do(t, http.MethodPost, "/api/v1/orders", customer, order("2.50", "5.00"))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var placed models.Order
	decode(t, w, &placed)
	assert.True(t, placed.TotalAmount.Equal(decimal.RequireFromString("5.00")))
	assert.Equal(t, 2, ts.store.Stock(productID))
}
