// Package servicetest provides in-memory doubles of the service ports with
// the same observable semantics as the postgres store.
package servicetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"

	"github.com/google/uuid"
)

// Store is an in-memory store. The zero value is not usable; call NewStore.
type Store struct {
	mu       sync.Mutex
	now      func() time.Time
	profiles map[string]models.Profile
	roles    map[string]models.Role
	products map[string]models.Product
	cart     map[string]models.CartItem
	orders   map[string]models.Order
	items    map[string][]models.OrderItem
	history  map[string][]models.OrderStatusHistory

	// Err, when set, is returned by every call
	Err error
}

// NewStore creates an empty store whose clock advances one millisecond per write
func NewStore() *Store {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	tick := 0
	return &Store{
		now: func() time.Time {
			tick++
			return base.Add(time.Duration(tick) * time.Millisecond)
		},
		profiles: make(map[string]models.Profile),
		roles:    make(map[string]models.Role),
		products: make(map[string]models.Product),
		cart:     make(map[string]models.CartItem),
		orders:   make(map[string]models.Order),
		items:    make(map[string][]models.OrderItem),
		history:  make(map[string][]models.OrderStatusHistory),
	}
}

// AddUser seeds a profile and role assignment
func (s *Store) AddUser(p models.Profile, role models.Role) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	s.profiles[p.UserID] = p
	s.roles[p.UserID] = role
}

// AddProduct seeds a product
func (s *Store) AddProduct(p models.Product) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
		p.UpdatedAt = p.CreatedAt
	}
	s.products[p.ID] = p
}

// Stock returns a product's current stock, -1 if missing
func (s *Store) Stock(productID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[productID]
	if !ok {
		return -1
	}
	return p.StockQuantity
}

// SetStatus forces an order's status, bypassing the transition table
func (s *Store) SetStatus(orderID string, status models.OrderStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.orders[orderID]
	o.Status = status
	s.orders[orderID] = o
}

// OrderCount returns the number of stored orders
func (s *Store) OrderCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.orders)
}

func (s *Store) visible(p models.Product) (models.Product, bool) {
	v, ok := s.profiles[p.VendorID]
	if !ok || !p.IsActive || !v.IsActive || v.ApprovalStatus != models.ApprovalApproved {
		return p, false
	}
	p.VendorName = v.FullName
	p.VendorStoreName = v.StoreName
	return p, true
}

func newestProductsFirst(ps []models.Product) {
	sort.SliceStable(ps, func(i, j int) bool { return ps[i].CreatedAt.After(ps[j].CreatedAt) })
}

func (s *Store) ListVisibleProducts(ctx context.Context, filter models.ProductFilter) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := []models.Product{}
	for _, p := range s.products {
		p, ok := s.visible(p)
		if !ok {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Name), strings.ToLower(filter.Search)) {
			continue
		}
		out = append(out, p)
	}
	newestProductsFirst(out)
	return out, nil
}

func (s *Store) GetVisibleProduct(ctx context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.products[id]
	if ok {
		p, ok = s.visible(p)
	}
	if !ok {
		return nil, apperr.NotFound("product", id)
	}
	return &p, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.products[id]
	if !ok {
		return nil, apperr.NotFound("product", id)
	}
	return &p, nil
}

func (s *Store) GetProductsByIDs(ctx context.Context, ids []string) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.Product{}
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) ListProductsByVendor(ctx context.Context, vendorID string) ([]models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.Product{}
	for _, p := range s.products {
		if p.VendorID == vendorID {
			out = append(out, p)
		}
	}
	newestProductsFirst(out)
	return out, nil
}

func (s *Store) CreateProduct(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.products[p.ID] = *p
	return nil
}

func (s *Store) UpdateProduct(ctx context.Context, p *models.Product) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	cur, ok := s.products[p.ID]
	if !ok || cur.VendorID != p.VendorID {
		return apperr.NotFound("product", p.ID)
	}
	p.UpdatedAt = s.now()
	p.CreatedAt = cur.CreatedAt
	s.products[p.ID] = *p
	return nil
}

func (s *Store) DeleteProduct(ctx context.Context, id, vendorID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	cur, ok := s.products[id]
	if !ok || cur.VendorID != vendorID {
		return apperr.NotFound("product", id)
	}
	delete(s.products, id)
	for lineID, line := range s.cart {
		if line.ProductID == id {
			delete(s.cart, lineID)
		}
	}
	return nil
}

func (s *Store) cartOf(userID string) []models.CartItem {
	out := []models.CartItem{}
	for _, line := range s.cart {
		if line.UserID == userID {
			out = append(out, line)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) ListCartItems(ctx context.Context, userID string) ([]models.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.cartOf(userID), nil
}

func (s *Store) GetCartItem(ctx context.Context, id, userID string) (*models.CartItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	line, ok := s.cart[id]
	if !ok || line.UserID != userID {
		return nil, apperr.NotFound("cart item", id)
	}
	return &line, nil
}

func (s *Store) InsertCartItem(ctx context.Context, item *models.CartItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, line := range s.cart {
		if line.UserID == item.UserID && line.VendorID != item.VendorID {
			return apperr.New(apperr.KindVendorConflict,
				"your cart already has items from another store; clear it or complete your current order")
		}
	}
	item.CreatedAt = s.now()
	s.cart[item.ID] = *item
	return nil
}

func (s *Store) UpdateCartItemQuantity(ctx context.Context, id, userID string, quantity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	line, ok := s.cart[id]
	if !ok || line.UserID != userID {
		return apperr.NotFound("cart item", id)
	}
	line.Quantity = quantity
	s.cart[id] = line
	return nil
}

func (s *Store) DeleteCartItem(ctx context.Context, id, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	if line, ok := s.cart[id]; ok && line.UserID == userID {
		delete(s.cart, id)
	}
	return nil
}

func (s *Store) ClearCart(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for id, line := range s.cart {
		if line.UserID == userID {
			delete(s.cart, id)
		}
	}
	return nil
}

func (s *Store) PlaceOrder(ctx context.Context, order *models.Order, items []models.OrderItem) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return false, s.Err
	}

	for _, existing := range s.orders {
		if existing.IdempotencyKey == order.IdempotencyKey {
			*order = existing
			return false, nil
		}
	}

	need := make(map[string]int)
	for _, item := range items {
		need[item.ProductID] += item.Quantity
	}
	for _, item := range items {
		p, ok := s.products[item.ProductID]
		if !ok || p.StockQuantity < need[item.ProductID] {
			return false, apperr.New(apperr.KindInsufficientStock, "not enough stock left for %s", item.ProductName)
		}
	}
	for id, n := range need {
		p := s.products[id]
		p.StockQuantity -= n
		s.products[id] = p
	}

	order.CreatedAt = s.now()
	order.UpdatedAt = order.CreatedAt
	stored := make([]models.OrderItem, len(items))
	for i, item := range items {
		item.OrderID = order.ID
		stored[i] = item
		items[i] = item
	}
	s.items[order.ID] = stored
	saved := *order
	saved.Items = nil
	s.orders[order.ID] = saved
	order.Items = items
	return true, nil
}

func (s *Store) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, apperr.NotFound("order", id)
	}
	return &o, nil
}

func (s *Store) GetOrderByIdempotencyKey(ctx context.Context, key string) (*models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	for _, o := range s.orders {
		if o.IdempotencyKey == key {
			return &o, nil
		}
	}
	return nil, nil
}

func (s *Store) ListOrders(ctx context.Context, filter models.OrderFilter) ([]models.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}

	out := []models.Order{}
	for _, o := range s.orders {
		if filter.UserID != "" && o.UserID != filter.UserID {
			continue
		}
		if filter.VendorID != "" && o.VendorID != filter.VendorID {
			continue
		}
		if len(filter.Statuses) > 0 && !hasStatus(filter.Statuses, o.Status) {
			continue
		}
		out = append(out, o)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if filter.NewestByUpdated {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func hasStatus(statuses []models.OrderStatus, s models.OrderStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func (s *Store) GetOrderItemsByOrderIDs(ctx context.Context, orderIDs []string) ([]models.OrderItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.OrderItem{}
	for _, id := range orderIDs {
		out = append(out, s.items[id]...)
	}
	return out, nil
}

func (s *Store) TransitionOrderStatus(ctx context.Context, orderID string, from, to models.OrderStatus, actorID string, role models.Role) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	o, ok := s.orders[orderID]
	if !ok || o.Status != from {
		return apperr.New(apperr.KindIllegalTransition, "order %s is no longer %s", orderID, from)
	}
	o.Status = to
	o.UpdatedAt = s.now()
	s.orders[orderID] = o
	s.history[orderID] = append(s.history[orderID], models.OrderStatusHistory{
		ID:         uuid.New().String(),
		OrderID:    orderID,
		FromStatus: from,
		ToStatus:   to,
		ChangedBy:  actorID,
		ActorRole:  role,
		CreatedAt:  o.UpdatedAt,
	})
	return nil
}

func (s *Store) ListOrderStatusHistory(ctx context.Context, orderID string) ([]models.OrderStatusHistory, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return append([]models.OrderStatusHistory{}, s.history[orderID]...), nil
}

func (s *Store) GetProfile(ctx context.Context, userID string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, apperr.NotFound("profile", userID)
	}
	return &p, nil
}

func (s *Store) GetProfilesByUserIDs(ctx context.Context, userIDs []string) ([]models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	out := []models.Profile{}
	for _, id := range userIDs {
		if p, ok := s.profiles[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *Store) profilesWhere(keep func(models.Profile, models.Role) bool) []models.Profile {
	out := []models.Profile{}
	for id, p := range s.profiles {
		if keep(p, s.roles[id]) {
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Store) ListProfilesByRole(ctx context.Context, role models.Role) ([]models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.profilesWhere(func(_ models.Profile, r models.Role) bool { return r == role }), nil
}

func (s *Store) ListPendingVendors(ctx context.Context) ([]models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.profilesWhere(func(p models.Profile, r models.Role) bool {
		return r == models.RoleVendor && p.ApprovalStatus == models.ApprovalPending
	}), nil
}

func (s *Store) UpdateStoreProfile(ctx context.Context, userID string, upd models.StoreProfileUpdate) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	p, ok := s.profiles[userID]
	if !ok {
		return nil, apperr.NotFound("profile", userID)
	}
	p.FullName = upd.FullName
	p.StoreName = upd.StoreName
	p.Phone = upd.Phone
	p.PickupAddressLine = upd.PickupAddressLine
	p.City = upd.City
	p.State = upd.State
	p.ZipCode = upd.ZipCode
	s.profiles[userID] = p
	return &p, nil
}

func (s *Store) updateVendor(userID string, apply func(*models.Profile)) (*models.Profile, error) {
	p, ok := s.profiles[userID]
	if !ok || s.roles[userID] != models.RoleVendor {
		return nil, apperr.NotFound("vendor", userID)
	}
	apply(&p)
	s.profiles[userID] = p
	return &p, nil
}

func (s *Store) SetVendorActive(ctx context.Context, userID string, active bool) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.updateVendor(userID, func(p *models.Profile) { p.IsActive = active })
}

func (s *Store) SetVendorApproval(ctx context.Context, userID string, status models.ApprovalStatus) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	return s.updateVendor(userID, func(p *models.Profile) { p.ApprovalStatus = status })
}

func (s *Store) CountUsersByRole(ctx context.Context) (map[models.Role]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	counts := make(map[models.Role]int)
	for _, r := range s.roles {
		counts[r]++
	}
	return counts, nil
}

func (s *Store) OrderStatusTotals(ctx context.Context) ([]models.StatusTotal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	byStatus := make(map[models.OrderStatus]*models.StatusTotal)
	for _, o := range s.orders {
		t, ok := byStatus[o.Status]
		if !ok {
			t = &models.StatusTotal{Status: o.Status}
			byStatus[o.Status] = t
		}
		t.Count++
		t.Amount = t.Amount.Add(o.TotalAmount)
	}
	out := []models.StatusTotal{}
	for _, t := range byStatus {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}

func (s *Store) VendorRoster(ctx context.Context) ([]models.VendorRosterEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return nil, s.Err
	}
	vendors := s.profilesWhere(func(_ models.Profile, r models.Role) bool { return r == models.RoleVendor })
	out := make([]models.VendorRosterEntry, len(vendors))
	for i, v := range vendors {
		out[i].Profile = v
		for _, p := range s.products {
			if p.VendorID == v.UserID {
				out[i].ProductCount++
			}
		}
		for _, o := range s.orders {
			if o.VendorID == v.UserID {
				out[i].OrderCount++
			}
		}
	}
	return out, nil
}
