package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/auth"
	"marketplace-service/internal/lifecycle"
	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// OrderService handles order placement, role-scoped listings and status changes
type OrderService struct {
	store  Store
	events EventPublisher
	views  *views
	gate   vendorGate
	logger *zap.Logger
}

// NewOrderService creates a new order service
func NewOrderService(d Deps) *OrderService {
	return &OrderService{
		store:  d.Store,
		events: d.events(),
		views:  newViews(d.Cache, d.ViewTTL),
		gate:   vendorGate{profiles: d.Store},
		logger: util.GetLogger(),
	}
}

// PlaceOrderRequest is a single-vendor order with frozen item snapshots
type PlaceOrderRequest struct {
	VendorID        string           `json:"vendor_id"`
	DeliveryAddress string           `json:"delivery_address"`
	TotalAmount     decimal.Decimal  `json:"total_amount"`
	Items           []PlaceOrderItem `json:"items"`
	IdempotencyKey  string           `json:"idempotency_key,omitempty"`
}

// PlaceOrderItem is one line of a PlaceOrderRequest
type PlaceOrderItem struct {
	ProductID    string          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	ProductPrice decimal.Decimal `json:"product_price"`
	Quantity     int             `json:"quantity"`
}

// PlaceOrder creates a pending order. The order, its items and the stock
// decrements are written atomically; retrying with the same idempotency key
// returns the original order.
func (s *OrderService) PlaceOrder(ctx context.Context, sess *auth.Session, req PlaceOrderRequest) (*models.Order, error) {
	ctx, span := util.StartSpan(ctx, "OrderService.PlaceOrder")
	defer span.End()

	if err := auth.RequireRole(sess, models.RoleCustomer); err != nil {
		return nil, err
	}
	span.SetAttributes(util.ActorAttrs(sess.UserID, string(sess.Role))...)

	start := time.Now()
	defer func() {
		util.CheckoutLatency.Observe(time.Since(start).Seconds())
	}()

	lines, vendor, err := s.resolvePlaceOrder(ctx, req)
	if err != nil {
		reason := "invalid_request"
		if apperr.KindOf(err) == apperr.KindBackendFailure {
			reason = "backend"
		}
		util.OrdersFailedTotal.WithLabelValues(reason).Inc()
		return nil, err
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = uuid.New().String()
	}

	order := &models.Order{
		ID:                    uuid.New().String(),
		UserID:                sess.UserID,
		VendorID:              req.VendorID,
		Status:                models.OrderStatusPending,
		TotalAmount:           req.TotalAmount,
		DeliveryAddress:       strings.TrimSpace(req.DeliveryAddress),
		VendorAddressSnapshot: VendorAddressSnapshot(vendor),
		IdempotencyKey:        req.IdempotencyKey,
	}
	items := make([]models.OrderItem, len(lines))
	for i, item := range lines {
		items[i] = models.OrderItem{
			ID:           uuid.New().String(),
			OrderID:      order.ID,
			ProductID:    item.ProductID,
			ProductName:  item.ProductName,
			ProductPrice: item.ProductPrice,
			Quantity:     item.Quantity,
		}
	}

	created, err := s.store.PlaceOrder(ctx, order, items)
	if err != nil {
		reason := "backend"
		if errors.Is(err, apperr.ErrInsufficientStock) {
			reason = "insufficient_stock"
		}
		util.OrdersFailedTotal.WithLabelValues(reason).Inc()
		return nil, apperr.Backend("failed to place order", err)
	}

	if !created {
		if order.UserID != sess.UserID {
			return nil, apperr.New(apperr.KindInvalidInput, "idempotency key already used")
		}
		s.logger.Info("Duplicate checkout detected",
			zap.String("idempotency_key", req.IdempotencyKey),
			zap.String("order_id", order.ID))
		if err := s.enrich(ctx, []*models.Order{order}); err != nil {
			return nil, err
		}
		return order, nil
	}

	order.Items = items
	util.OrdersPlacedTotal.Inc()
	s.logger.Info("Order placed",
		zap.String("order_id", order.ID),
		zap.String("user_id", order.UserID),
		zap.String("vendor_id", order.VendorID),
		zap.String("total", order.TotalAmount.StringFixed(2)))

	if err := s.events.PublishOrderPlaced(ctx, order); err != nil {
		s.logger.Error("Failed to publish OrderPlaced event", zap.String("order_id", order.ID), zap.Error(err))
	}
	s.views.invalidate(ctx, orderChangedViews(order))

	return order, nil
}

// resolvePlaceOrder checks the request against the catalog and returns the
// lines with names and prices taken from the stored products. Every product
// must be visible to customers and priced as the client was shown.
func (s *OrderService) resolvePlaceOrder(ctx context.Context, req PlaceOrderRequest) ([]PlaceOrderItem, *models.Profile, error) {
	if req.VendorID == "" {
		return nil, nil, apperr.New(apperr.KindInvalidInput, "vendor_id is required")
	}
	if strings.TrimSpace(req.DeliveryAddress) == "" {
		return nil, nil, apperr.New(apperr.KindInvalidInput, "delivery address is required")
	}
	if len(req.Items) == 0 {
		return nil, nil, apperr.New(apperr.KindInvalidInput, "an order needs at least one item")
	}

	ids := make([]string, 0, len(req.Items))
	for _, item := range req.Items {
		if item.ProductID == "" || item.Quantity < 1 {
			return nil, nil, apperr.New(apperr.KindInvalidInput, "invalid order item %q", item.ProductID)
		}
		ids = append(ids, item.ProductID)
	}

	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, nil, apperr.Backend("failed to load products", err)
	}
	byID := make(map[string]models.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	lines := make([]PlaceOrderItem, len(req.Items))
	total := decimal.Zero
	for i, item := range req.Items {
		p, ok := byID[item.ProductID]
		if !ok || !p.IsActive {
			return nil, nil, apperr.NotFound("product", item.ProductID)
		}
		if p.VendorID != req.VendorID {
			return nil, nil, apperr.New(apperr.KindVendorConflict, "%s is not sold by this store", p.Name)
		}
		if !item.ProductPrice.Equal(p.Price) {
			return nil, nil, apperr.New(apperr.KindInvalidInput,
				"the price of %s is now %s", p.Name, p.Price.StringFixed(2))
		}
		lines[i] = PlaceOrderItem{
			ProductID:    p.ID,
			ProductName:  p.Name,
			ProductPrice: p.Price,
			Quantity:     item.Quantity,
		}
		total = total.Add(p.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if !total.Equal(req.TotalAmount) {
		return nil, nil, apperr.New(apperr.KindInvalidInput,
			"total %s does not match the items (%s)", req.TotalAmount.StringFixed(2), total.StringFixed(2))
	}

	vendor, err := s.store.GetProfile(ctx, req.VendorID)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			return nil, nil, apperr.NotFound("product", ids[0])
		}
		return nil, nil, apperr.Backend("failed to load vendor profile", err)
	}
	// Same rule as the public catalog: hidden vendors sell nothing.
	if ApprovalStateOf(vendor) != models.ApprovalApproved || !vendor.IsActive {
		return nil, nil, apperr.NotFound("product", ids[0])
	}
	return lines, vendor, nil
}

// VendorAddressSnapshot renders "store · line, city, state, zip · phone",
// omitting blank parts
func VendorAddressSnapshot(p *models.Profile) string {
	var address []string
	for _, part := range []string{p.PickupAddressLine, p.City, p.State, p.ZipCode} {
		if part = strings.TrimSpace(part); part != "" {
			address = append(address, part)
		}
	}

	var parts []string
	for _, part := range []string{p.StoreName, strings.Join(address, ", "), p.Phone} {
		if part = strings.TrimSpace(part); part != "" {
			parts = append(parts, part)
		}
	}
	return strings.Join(parts, " · ")
}

// ListForCustomer returns the caller's orders, newest first
func (s *OrderService) ListForCustomer(ctx context.Context, sess *auth.Session) ([]models.Order, error) {
	if err := auth.RequireRole(sess, models.RoleCustomer); err != nil {
		return nil, err
	}
	ctx, span := util.StartSpan(ctx, "OrderService.ListForCustomer", util.ActorAttrs(sess.UserID, string(sess.Role))...)
	defer span.End()

	return s.listView(ctx, userOrdersView(sess.UserID), models.OrderFilter{UserID: sess.UserID})
}

// ListForVendor returns the calling vendor's orders, newest first
func (s *OrderService) ListForVendor(ctx context.Context, sess *auth.Session) ([]models.Order, error) {
	if _, err := s.gate.forRead(ctx, sess); err != nil {
		return nil, err
	}
	ctx, span := util.StartSpan(ctx, "OrderService.ListForVendor", util.ActorAttrs(sess.UserID, string(sess.Role))...)
	defer span.End()

	return s.listView(ctx, vendorOrdersView(sess.UserID), models.OrderFilter{VendorID: sess.UserID})
}

// ListForDelivery returns every order awaiting pickup or in transit, most recently updated first
func (s *OrderService) ListForDelivery(ctx context.Context, sess *auth.Session) ([]models.Order, error) {
	if err := auth.RequireRole(sess, models.RoleDelivery); err != nil {
		return nil, err
	}
	ctx, span := util.StartSpan(ctx, "OrderService.ListForDelivery", util.ActorAttrs(sess.UserID, string(sess.Role))...)
	defer span.End()

	return s.listView(ctx, viewDeliveryActive, deliveryActiveFilter())
}

// ListDeliveryHistory returns delivered orders, most recently updated first
func (s *OrderService) ListDeliveryHistory(ctx context.Context, sess *auth.Session) ([]models.Order, error) {
	if err := auth.RequireRole(sess, models.RoleDelivery); err != nil {
		return nil, err
	}
	ctx, span := util.StartSpan(ctx, "OrderService.ListDeliveryHistory", util.ActorAttrs(sess.UserID, string(sess.Role))...)
	defer span.End()

	return s.listView(ctx, viewDeliveryHistory, models.OrderFilter{
		Statuses:        []models.OrderStatus{models.OrderStatusDelivered},
		NewestByUpdated: true,
	})
}

// WarmDeliveryViews recomputes the delivery work list and stores it
func (s *OrderService) WarmDeliveryViews(ctx context.Context) (int, error) {
	orders, err := s.list(ctx, deliveryActiveFilter())
	if err != nil {
		return 0, err
	}
	s.views.store(ctx, viewDeliveryActive, orders)
	return len(orders), nil
}

func deliveryActiveFilter() models.OrderFilter {
	return models.OrderFilter{
		Statuses:        lifecycle.DeliveryActiveStatuses,
		NewestByUpdated: true,
	}
}

func (s *OrderService) listView(ctx context.Context, name string, filter models.OrderFilter) ([]models.Order, error) {
	return cachedView(ctx, s.views, name, func(ctx context.Context) ([]models.Order, error) {
		return s.list(ctx, filter)
	})
}

func (s *OrderService) list(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	orders, err := s.store.ListOrders(ctx, filter)
	if err != nil {
		return nil, apperr.Backend("failed to list orders", err)
	}

	ptrs := make([]*models.Order, len(orders))
	for i := range orders {
		ptrs[i] = &orders[i]
	}
	if err := s.enrich(ctx, ptrs); err != nil {
		return nil, err
	}
	return orders, nil
}

// enrich attaches items and vendor display names using one lookup per kind
func (s *OrderService) enrich(ctx context.Context, orders []*models.Order) error {
	if len(orders) == 0 {
		return nil
	}

	orderIDs := make([]string, len(orders))
	vendorIDs := make([]string, 0, len(orders))
	seen := make(map[string]bool)
	for i, o := range orders {
		orderIDs[i] = o.ID
		if !seen[o.VendorID] {
			seen[o.VendorID] = true
			vendorIDs = append(vendorIDs, o.VendorID)
		}
	}

	items, err := s.store.GetOrderItemsByOrderIDs(ctx, orderIDs)
	if err != nil {
		return apperr.Backend("failed to load order items", err)
	}
	byOrder := make(map[string][]models.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}

	profiles, err := s.store.GetProfilesByUserIDs(ctx, vendorIDs)
	if err != nil {
		return apperr.Backend("failed to load vendor profiles", err)
	}
	byVendor := make(map[string]models.Profile, len(profiles))
	for _, p := range profiles {
		byVendor[p.UserID] = p
	}

	for _, o := range orders {
		o.Items = byOrder[o.ID]
		if p, ok := byVendor[o.VendorID]; ok {
			o.VendorName = p.FullName
			o.VendorStoreName = p.StoreName
		}
	}
	return nil
}

// UpdateStatus applies one legal transition for the acting role. The write
// is conditional on the status the check was made against, so a concurrent
// change makes it fail with IllegalTransition.
func (s *OrderService) UpdateStatus(ctx context.Context, sess *auth.Session, orderID string, to models.OrderStatus) (*models.Order, error) {
	if err := auth.Require(sess); err != nil {
		return nil, err
	}
	ctx, span := util.StartSpan(ctx, "OrderService.UpdateStatus", append(
		util.ActorAttrs(sess.UserID, string(sess.Role)),
		attribute.String("order_id", orderID),
		attribute.String("to_status", string(to)))...)
	defer span.End()

	if !to.Valid() {
		util.OrderTransitionsRejected.WithLabelValues(string(sess.Role), "illegal").Inc()
		return nil, apperr.New(apperr.KindIllegalTransition, "unknown order status %q", to)
	}

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, apperr.Backend("failed to load order", err)
	}

	if sess.Role == models.RoleVendor {
		if order.VendorID != sess.UserID {
			return nil, apperr.NotFound("order", orderID)
		}
		if _, err := s.gate.forRead(ctx, sess); err != nil {
			return nil, err
		}
	}

	from := order.Status
	if err := lifecycle.Check(from, to, sess.Role); err != nil {
		util.OrderTransitionsRejected.WithLabelValues(string(sess.Role), "illegal").Inc()
		return nil, err
	}

	if err := s.store.TransitionOrderStatus(ctx, orderID, from, to, sess.UserID, sess.Role); err != nil {
		if errors.Is(err, apperr.ErrIllegalTransition) {
			util.OrderTransitionsRejected.WithLabelValues(string(sess.Role), "concurrent").Inc()
		}
		return nil, apperr.Backend("failed to update order status", err)
	}

	order.Status = to
	order.UpdatedAt = time.Now().UTC()
	util.OrderTransitionsTotal.WithLabelValues(string(from), string(to), string(sess.Role)).Inc()
	s.logger.Info("Order status changed",
		zap.String("order_id", orderID),
		zap.String("from", string(from)),
		zap.String("to", string(to)),
		zap.String("actor_role", string(sess.Role)))

	if err := s.events.PublishOrderStatusChanged(ctx, order, from, sess.UserID, sess.Role); err != nil {
		s.logger.Error("Failed to publish OrderStatusChanged event", zap.String("order_id", orderID), zap.Error(err))
	}
	s.views.invalidate(ctx, orderChangedViews(order))

	if err := s.enrich(ctx, []*models.Order{order}); err != nil {
		return nil, err
	}
	return order, nil
}

// GetOrder returns one order with items and status history. Callers who may
// not see the order get NotFound.
func (s *OrderService) GetOrder(ctx context.Context, sess *auth.Session, orderID string) (*models.Order, error) {
	if err := auth.Require(sess); err != nil {
		return nil, err
	}
	ctx, span := util.StartSpan(ctx, "OrderService.GetOrder", append(
		util.ActorAttrs(sess.UserID, string(sess.Role)),
		attribute.String("order_id", orderID))...)
	defer span.End()

	order, err := s.store.GetOrderByID(ctx, orderID)
	if err != nil {
		return nil, apperr.Backend("failed to load order", err)
	}
	if !canView(sess, order) {
		return nil, apperr.NotFound("order", orderID)
	}

	if err := s.enrich(ctx, []*models.Order{order}); err != nil {
		return nil, err
	}
	history, err := s.store.ListOrderStatusHistory(ctx, orderID)
	if err != nil {
		return nil, apperr.Backend("failed to load status history", err)
	}
	order.History = history
	return order, nil
}

func canView(sess *auth.Session, order *models.Order) bool {
	switch sess.Role {
	case models.RoleAdmin:
		return true
	case models.RoleCustomer:
		return order.UserID == sess.UserID
	case models.RoleVendor:
		return order.VendorID == sess.UserID
	case models.RoleDelivery:
		return lifecycle.IsDeliveryVisible(order.Status)
	}
	return false
}
