package service

import (
	"context"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/auth"
	"marketplace-service/internal/lifecycle"
	"marketplace-service/internal/models"
)

// Dashboard is the per-role home view. Exactly one of the role fields is
// set, matching Role.
type Dashboard struct {
	Role     models.Role        `json:"role"`
	Customer *CustomerDashboard `json:"customer,omitempty"`
	Vendor   *VendorDashboard   `json:"vendor,omitempty"`
	Delivery *DeliveryDashboard `json:"delivery,omitempty"`
	Admin    *AdminDashboard    `json:"admin,omitempty"`
}

type CustomerDashboard struct {
	Orders []models.Order `json:"orders"`
}

// VendorDashboard carries only the profile when access is blocked
type VendorDashboard struct {
	Access   DashboardAccess       `json:"access"`
	Approval models.ApprovalStatus `json:"approval_status"`
	Profile  *models.Profile       `json:"profile"`
	Products []models.Product      `json:"products,omitempty"`
	Orders   []models.Order        `json:"orders,omitempty"`
}

type DeliveryDashboard struct {
	Active  []models.Order `json:"active"`
	History []models.Order `json:"history"`
	// Transitions the partner may apply, by current status
	Actions map[models.OrderStatus][]models.OrderStatus `json:"actions"`
}

type AdminDashboard struct {
	Stats          *PlatformStats             `json:"stats"`
	Vendors        []models.VendorRosterEntry `json:"vendors"`
	PendingVendors []models.Profile           `json:"pending_vendors"`
}

// DashboardService selects the dashboard for a session's role
type DashboardService struct {
	orders  *OrderService
	vendors *VendorService
	admin   *AdminService
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(orders *OrderService, vendors *VendorService, admin *AdminService) *DashboardService {
	return &DashboardService{orders: orders, vendors: vendors, admin: admin}
}

// For builds the caller's dashboard. This is the single place a session's
// role decides which operations are reachable.
func (s *DashboardService) For(ctx context.Context, sess *auth.Session) (*Dashboard, error) {
	if err := auth.Require(sess); err != nil {
		return nil, err
	}

	d := &Dashboard{Role: sess.Role}
	var err error
	switch sess.Role {
	case models.RoleCustomer:
		d.Customer, err = s.customer(ctx, sess)
	case models.RoleVendor:
		d.Vendor, err = s.vendor(ctx, sess)
	case models.RoleDelivery:
		d.Delivery, err = s.delivery(ctx, sess)
	case models.RoleAdmin:
		d.Admin, err = s.adminView(ctx, sess)
	default:
		return nil, apperr.New(apperr.KindForbidden, "unknown role %q", sess.Role)
	}
	if err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DashboardService) customer(ctx context.Context, sess *auth.Session) (*CustomerDashboard, error) {
	orders, err := s.orders.ListForCustomer(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &CustomerDashboard{Orders: orders}, nil
}

func (s *DashboardService) vendor(ctx context.Context, sess *auth.Session) (*VendorDashboard, error) {
	profile, err := s.vendors.Profile(ctx, sess)
	if err != nil {
		return nil, err
	}
	d := &VendorDashboard{
		Access:   AccessFor(profile),
		Approval: ApprovalStateOf(profile),
		Profile:  profile,
	}
	if d.Access == AccessBlocked {
		return d, nil
	}

	if d.Products, err = s.vendors.ListProducts(ctx, sess); err != nil {
		return nil, err
	}
	if d.Orders, err = s.orders.ListForVendor(ctx, sess); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *DashboardService) delivery(ctx context.Context, sess *auth.Session) (*DeliveryDashboard, error) {
	active, err := s.orders.ListForDelivery(ctx, sess)
	if err != nil {
		return nil, err
	}
	history, err := s.orders.ListDeliveryHistory(ctx, sess)
	if err != nil {
		return nil, err
	}

	actions := make(map[models.OrderStatus][]models.OrderStatus)
	for _, st := range lifecycle.DeliveryActiveStatuses {
		actions[st] = lifecycle.NextFor(st, models.RoleDelivery)
	}
	return &DeliveryDashboard{Active: active, History: history, Actions: actions}, nil
}

func (s *DashboardService) adminView(ctx context.Context, sess *auth.Session) (*AdminDashboard, error) {
	stats, err := s.admin.PlatformStats(ctx, sess)
	if err != nil {
		return nil, err
	}
	vendors, err := s.admin.VendorRoster(ctx, sess)
	if err != nil {
		return nil, err
	}
	pending, err := s.admin.PendingVendors(ctx, sess)
	if err != nil {
		return nil, err
	}
	return &AdminDashboard{Stats: stats, Vendors: vendors, PendingVendors: pending}, nil
}
