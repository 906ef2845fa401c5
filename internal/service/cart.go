package service

import (
	"context"
	"errors"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/auth"
	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Cart is a customer's cart as last loaded from the store
type Cart struct {
	Lines      []models.CartItem `json:"items"`
	Subtotal   decimal.Decimal   `json:"subtotal"`
	TotalItems int               `json:"total_items"`
	// VendorID is the vendor of the oldest line, empty for an empty cart
	VendorID string `json:"vendor_id,omitempty"`
	IsOpen   bool   `json:"is_open"`
}

// Line returns the line holding productID
func (c *Cart) Line(productID string) (*models.CartItem, bool) {
	for i := range c.Lines {
		if c.Lines[i].ProductID == productID {
			return &c.Lines[i], true
		}
	}
	return nil, false
}

func newCart(lines []models.CartItem) *Cart {
	c := &Cart{Lines: lines, Subtotal: decimal.Zero}
	if len(lines) > 0 {
		c.VendorID = lines[0].VendorID
	}
	for _, l := range lines {
		c.TotalItems += l.Quantity
		if l.Product != nil {
			c.Subtotal = c.Subtotal.Add(l.Product.Price.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}
	}
	return c
}

// CartService keeps each customer's cart within one vendor and below stock
type CartService struct {
	store   Store
	orders  *OrderService
	locker  Locker
	lockTTL time.Duration
	logger  *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(d Deps, orders *OrderService) *CartService {
	return &CartService{
		store:   d.Store,
		orders:  orders,
		locker:  d.Locker,
		lockTTL: d.lockTTL(),
		logger:  util.GetLogger(),
	}
}

// Get loads the caller's cart
func (s *CartService) Get(ctx context.Context, sess *auth.Session) (*Cart, error) {
	if err := auth.RequireRole(sess, models.RoleCustomer); err != nil {
		return nil, err
	}
	return s.load(ctx, sess.UserID)
}

func (s *CartService) load(ctx context.Context, userID string) (*Cart, error) {
	lines, err := s.store.ListCartItems(ctx, userID)
	if err != nil {
		return nil, apperr.Backend("failed to load cart", err)
	}

	ids := make([]string, len(lines))
	for i, l := range lines {
		ids[i] = l.ProductID
	}
	products, err := s.store.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, apperr.Backend("failed to load cart products", err)
	}
	byID := make(map[string]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	for i := range lines {
		lines[i].Product = byID[lines[i].ProductID]
	}
	return newCart(lines), nil
}

func (s *CartService) reject(reason string, err error) error {
	util.CartRejectionsTotal.WithLabelValues(reason).Inc()
	return err
}

// AddItem adds quantity units of a product, merging into an existing line.
// A zero quantity means one. The returned cart is marked open.
func (s *CartService) AddItem(ctx context.Context, sess *auth.Session, productID string, quantity int) (*Cart, error) {
	if err := auth.RequireRole(sess, models.RoleCustomer); err != nil {
		return nil, err
	}
	ctx, span := util.StartSpan(ctx, "CartService.AddItem", append(
		util.ActorAttrs(sess.UserID, string(sess.Role)),
		attribute.String("product_id", productID))...)
	defer span.End()

	if quantity == 0 {
		quantity = 1
	}
	if quantity < 0 {
		return nil, s.reject("invalid", apperr.New(apperr.KindInvalidInput, "quantity must be positive"))
	}

	product, err := s.store.GetVisibleProduct(ctx, productID)
	if err != nil {
		return nil, apperr.Backend("failed to load product", err)
	}
	if product.StockQuantity < 1 {
		return nil, s.reject("out_of_stock", apperr.New(apperr.KindOutOfStock, "%s is out of stock", product.Name))
	}

	cart, err := s.load(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if cart.VendorID != "" && cart.VendorID != product.VendorID {
		return nil, s.reject("vendor_conflict", apperr.New(apperr.KindVendorConflict,
			"your cart already has items from another store; clear it or complete your current order"))
	}

	if line, ok := cart.Line(productID); ok {
		merged := line.Quantity + quantity
		if merged > product.StockQuantity {
			return nil, s.reject("insufficient_stock", insufficientStock(product))
		}
		if err := s.store.UpdateCartItemQuantity(ctx, line.ID, sess.UserID, merged); err != nil {
			return nil, apperr.Backend("failed to update cart line", err)
		}
	} else {
		if quantity > product.StockQuantity {
			return nil, s.reject("insufficient_stock", insufficientStock(product))
		}
		item := &models.CartItem{
			ID:        uuid.New().String(),
			UserID:    sess.UserID,
			ProductID: product.ID,
			VendorID:  product.VendorID,
			Quantity:  quantity,
		}
		if err := s.store.InsertCartItem(ctx, item); err != nil {
			if errors.Is(err, apperr.ErrVendorConflict) {
				return nil, s.reject("vendor_conflict", err)
			}
			return nil, apperr.Backend("failed to add cart line", err)
		}
	}
	util.CartMutationsTotal.WithLabelValues("add").Inc()

	cart, err = s.load(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	cart.IsOpen = true
	return cart, nil
}

// UpdateQuantity sets a line's quantity. Removing a line is RemoveItem's job.
func (s *CartService) UpdateQuantity(ctx context.Context, sess *auth.Session, lineID string, quantity int) (*Cart, error) {
	if err := auth.RequireRole(sess, models.RoleCustomer); err != nil {
		return nil, err
	}
	ctx, span := util.StartSpan(ctx, "CartService.UpdateQuantity", append(
		util.ActorAttrs(sess.UserID, string(sess.Role)),
		attribute.String("line_id", lineID))...)
	defer span.End()

	if quantity <= 0 {
		return nil, s.reject("invalid", apperr.New(apperr.KindInvalidInput, "quantity must be at least 1"))
	}

	line, err := s.store.GetCartItem(ctx, lineID, sess.UserID)
	if err != nil {
		return nil, apperr.Backend("failed to load cart line", err)
	}
	product, err := s.store.GetProductByID(ctx, line.ProductID)
	if err != nil {
		return nil, apperr.Backend("failed to load product", err)
	}
	if quantity > product.StockQuantity {
		return nil, s.reject("insufficient_stock", insufficientStock(product))
	}

	if err := s.store.UpdateCartItemQuantity(ctx, lineID, sess.UserID, quantity); err != nil {
		return nil, apperr.Backend("failed to update cart line", err)
	}
	util.CartMutationsTotal.WithLabelValues("update").Inc()
	return s.load(ctx, sess.UserID)
}

// RemoveItem deletes a line. Removing a missing line is not an error.
func (s *CartService) RemoveItem(ctx context.Context, sess *auth.Session, lineID string) (*Cart, error) {
	if err := auth.RequireRole(sess, models.RoleCustomer); err != nil {
		return nil, err
	}
	if err := s.store.DeleteCartItem(ctx, lineID, sess.UserID); err != nil {
		return nil, apperr.Backend("failed to remove cart line", err)
	}
	util.CartMutationsTotal.WithLabelValues("remove").Inc()
	return s.load(ctx, sess.UserID)
}

// Clear empties the cart, which also releases the vendor lock
func (s *CartService) Clear(ctx context.Context, sess *auth.Session) (*Cart, error) {
	if err := auth.RequireRole(sess, models.RoleCustomer); err != nil {
		return nil, err
	}
	if err := s.store.ClearCart(ctx, sess.UserID); err != nil {
		return nil, apperr.Backend("failed to clear cart", err)
	}
	util.CartMutationsTotal.WithLabelValues("clear").Inc()
	return s.load(ctx, sess.UserID)
}

// Checkout places an order for the whole cart and empties it. Retrying with
// the same idempotency key returns the order placed by the first attempt.
func (s *CartService) Checkout(ctx context.Context, sess *auth.Session, deliveryAddress, idempotencyKey string) (*models.Order, error) {
	if err := auth.RequireRole(sess, models.RoleCustomer); err != nil {
		return nil, err
	}
	ctx, span := util.StartSpan(ctx, "CartService.Checkout", util.ActorAttrs(sess.UserID, string(sess.Role))...)
	defer span.End()

	if idempotencyKey == "" {
		idempotencyKey = uuid.New().String()
	}

	release, err := s.lock(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	defer release()

	if existing, err := s.store.GetOrderByIdempotencyKey(ctx, idempotencyKey); err != nil {
		return nil, apperr.Backend("failed to check idempotency", err)
	} else if existing != nil && existing.UserID == sess.UserID {
		return s.orders.GetOrder(ctx, sess, existing.ID)
	}

	cart, err := s.load(ctx, sess.UserID)
	if err != nil {
		return nil, err
	}
	if len(cart.Lines) == 0 {
		return nil, apperr.New(apperr.KindInvalidInput, "your cart is empty")
	}

	req := PlaceOrderRequest{
		VendorID:        cart.VendorID,
		DeliveryAddress: deliveryAddress,
		TotalAmount:     cart.Subtotal,
		IdempotencyKey:  idempotencyKey,
	}
	for _, l := range cart.Lines {
		if l.Product == nil {
			return nil, apperr.NotFound("product", l.ProductID)
		}
		req.Items = append(req.Items, PlaceOrderItem{
			ProductID:    l.ProductID,
			ProductName:  l.Product.Name,
			ProductPrice: l.Product.Price,
			Quantity:     l.Quantity,
		})
	}

	order, err := s.orders.PlaceOrder(ctx, sess, req)
	if err != nil {
		return nil, err
	}

	// The order stands even if the cart cannot be emptied now.
	if err := s.store.ClearCart(ctx, sess.UserID); err != nil {
		s.logger.Warn("Failed to clear cart after checkout",
			zap.String("user_id", sess.UserID),
			zap.String("order_id", order.ID),
			zap.Error(err))
	}
	util.CartMutationsTotal.WithLabelValues("checkout").Inc()
	return order, nil
}

// lock serialises concurrent checkouts of the same customer
func (s *CartService) lock(ctx context.Context, userID string) (func(), error) {
	if s.locker == nil {
		return func() {}, nil
	}

	key := "checkout:" + userID
	token := uuid.New().String()
	ok, err := s.locker.AcquireLock(ctx, key, token, s.lockTTL)
	if err != nil {
		return nil, apperr.Backend("failed to acquire checkout lock", err)
	}
	if !ok {
		return nil, apperr.New(apperr.KindInvalidInput, "a checkout for this cart is already in progress")
	}

	return func() {
		if err := s.locker.ReleaseLock(context.Background(), key, token); err != nil {
			s.logger.Warn("Failed to release checkout lock", zap.String("user_id", userID), zap.Error(err))
		}
	}, nil
}

func insufficientStock(p *models.Product) error {
	return apperr.New(apperr.KindInsufficientStock, "only %d of %s left in stock", p.StockQuantity, p.Name)
}
