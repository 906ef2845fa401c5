package service

import (
	"context"
	"fmt"
	"io"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/auth"
	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"github.com/shopspring/decimal"
	"github.com/tealeg/xlsx"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// PlatformStats is the admin overview
type PlatformStats struct {
	TotalUsers                int                        `json:"total_users"`
	TotalVendors              int                        `json:"total_vendors"`
	TotalDelivery             int                        `json:"total_delivery"`
	TotalOrders               int                        `json:"total_orders"`
	TotalRevenue              decimal.Decimal            `json:"total_revenue"`
	RevenueExcludingCancelled decimal.Decimal            `json:"revenue_excluding_cancelled"`
	OrdersByStatus            map[models.OrderStatus]int `json:"orders_by_status"`
}

// AdminService aggregates platform data and manages vendor status
type AdminService struct {
	store  Store
	orders *OrderService
	events EventPublisher
	views  *views
	logger *zap.Logger
}

// NewAdminService creates a new admin service
func NewAdminService(d Deps, orders *OrderService) *AdminService {
	return &AdminService{
		store:  d.Store,
		orders: orders,
		events: d.events(),
		views:  newViews(d.Cache, d.ViewTTL),
		logger: util.GetLogger(),
	}
}

// PlatformStats counts users per role and orders per status. Total revenue
// covers every status; cancelled orders are excluded only from
// RevenueExcludingCancelled.
func (s *AdminService) PlatformStats(ctx context.Context, sess *auth.Session) (*PlatformStats, error) {
	if err := auth.RequireRole(sess, models.RoleAdmin); err != nil {
		return nil, err
	}
	ctx, span := util.StartSpan(ctx, "AdminService.PlatformStats")
	defer span.End()

	return cachedView(ctx, s.views, viewAdminStats, func(ctx context.Context) (*PlatformStats, error) {
		roles, err := s.store.CountUsersByRole(ctx)
		if err != nil {
			return nil, apperr.Backend("failed to count users", err)
		}
		totals, err := s.store.OrderStatusTotals(ctx)
		if err != nil {
			return nil, apperr.Backend("failed to total orders", err)
		}
		return buildStats(roles, totals), nil
	})
}

func buildStats(roles map[models.Role]int, totals []models.StatusTotal) *PlatformStats {
	stats := &PlatformStats{
		TotalUsers:                roles[models.RoleCustomer],
		TotalVendors:              roles[models.RoleVendor],
		TotalDelivery:             roles[models.RoleDelivery],
		TotalRevenue:              decimal.Zero,
		RevenueExcludingCancelled: decimal.Zero,
		OrdersByStatus:            make(map[models.OrderStatus]int, len(models.AllOrderStatuses)),
	}
	for _, st := range models.AllOrderStatuses {
		stats.OrdersByStatus[st] = 0
	}
	for _, t := range totals {
		stats.TotalOrders += t.Count
		stats.OrdersByStatus[t.Status] += t.Count
		stats.TotalRevenue = stats.TotalRevenue.Add(t.Amount)
		if t.Status != models.OrderStatusCancelled {
			stats.RevenueExcludingCancelled = stats.RevenueExcludingCancelled.Add(t.Amount)
		}
	}
	return stats
}

// VendorRoster lists vendors with their product and order counts
func (s *AdminService) VendorRoster(ctx context.Context, sess *auth.Session) ([]models.VendorRosterEntry, error) {
	if err := auth.RequireRole(sess, models.RoleAdmin); err != nil {
		return nil, err
	}
	return cachedView(ctx, s.views, viewAdminVendors, func(ctx context.Context) ([]models.VendorRosterEntry, error) {
		roster, err := s.store.VendorRoster(ctx)
		if err != nil {
			return nil, apperr.Backend("failed to load vendor roster", err)
		}
		return roster, nil
	})
}

// PendingVendors lists vendors awaiting review
func (s *AdminService) PendingVendors(ctx context.Context, sess *auth.Session) ([]models.Profile, error) {
	if err := auth.RequireRole(sess, models.RoleAdmin); err != nil {
		return nil, err
	}
	return cachedView(ctx, s.views, viewAdminPending, func(ctx context.Context) ([]models.Profile, error) {
		profiles, err := s.store.ListPendingVendors(ctx)
		if err != nil {
			return nil, apperr.Backend("failed to list pending vendors", err)
		}
		return profiles, nil
	})
}

// ListUsers lists customers or delivery partners
func (s *AdminService) ListUsers(ctx context.Context, sess *auth.Session, role models.Role) ([]models.Profile, error) {
	if err := auth.RequireRole(sess, models.RoleAdmin); err != nil {
		return nil, err
	}
	if role != models.RoleCustomer && role != models.RoleDelivery {
		return nil, apperr.New(apperr.KindInvalidInput, "role must be %q or %q", models.RoleCustomer, models.RoleDelivery)
	}

	profiles, err := s.store.ListProfilesByRole(ctx, role)
	if err != nil {
		return nil, apperr.Backend("failed to list users", err)
	}
	return profiles, nil
}

// OrdersFiltered returns every order in status, or all orders for "all" or empty
func (s *AdminService) OrdersFiltered(ctx context.Context, sess *auth.Session, status string) ([]models.Order, error) {
	if err := auth.RequireRole(sess, models.RoleAdmin); err != nil {
		return nil, err
	}
	ctx, span := util.StartSpan(ctx, "AdminService.OrdersFiltered", attribute.String("status", status))
	defer span.End()

	filter := models.OrderFilter{}
	if status == "" {
		status = "all"
	}
	if status != "all" {
		st := models.OrderStatus(status)
		if !st.Valid() {
			return nil, apperr.New(apperr.KindInvalidInput, "unknown order status %q", status)
		}
		filter.Statuses = []models.OrderStatus{st}
	}

	return s.orders.listView(ctx, adminOrdersView(status), filter)
}

// SetVendorActive suspends or reinstates a vendor
func (s *AdminService) SetVendorActive(ctx context.Context, sess *auth.Session, vendorID string, active bool) (*models.Profile, error) {
	if err := auth.RequireRole(sess, models.RoleAdmin); err != nil {
		return nil, err
	}
	p, err := s.store.SetVendorActive(ctx, vendorID, active)
	if err != nil {
		return nil, apperr.Backend("failed to update vendor", err)
	}
	s.vendorChanged(ctx, p)
	return p, nil
}

// SetVendorApproval records the review outcome; only approved lifts the gate
func (s *AdminService) SetVendorApproval(ctx context.Context, sess *auth.Session, vendorID string, status models.ApprovalStatus) (*models.Profile, error) {
	if err := auth.RequireRole(sess, models.RoleAdmin); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, apperr.New(apperr.KindInvalidInput, "unknown approval status %q", status)
	}
	p, err := s.store.SetVendorApproval(ctx, vendorID, status)
	if err != nil {
		return nil, apperr.Backend("failed to update vendor", err)
	}
	s.vendorChanged(ctx, p)
	return p, nil
}

func (s *AdminService) vendorChanged(ctx context.Context, p *models.Profile) {
	s.logger.Info("Vendor status changed",
		zap.String("vendor_id", p.UserID),
		zap.Bool("is_active", p.IsActive),
		zap.String("approval_status", string(p.ApprovalStatus)))

	if err := s.events.PublishVendorStatusChanged(ctx, p); err != nil {
		s.logger.Error("Failed to publish VendorStatusChanged event", zap.String("vendor_id", p.UserID), zap.Error(err))
	}
	s.views.invalidate(ctx, vendorChangedViews())
}

var exportHeaders = []string{
	"Order ID", "Status", "Customer ID", "Vendor", "Store", "Items", "Total", "Delivery Address", "Created At", "Updated At",
}

// ExportOrders writes the filtered orders to w as an .xlsx workbook
func (s *AdminService) ExportOrders(ctx context.Context, sess *auth.Session, status string, w io.Writer) error {
	orders, err := s.OrdersFiltered(ctx, sess, status)
	if err != nil {
		return err
	}

	file := xlsx.NewFile()
	sheet, err := file.AddSheet("Orders")
	if err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}

	headerRow := sheet.AddRow()
	for _, h := range exportHeaders {
		headerRow.AddCell().SetValue(h)
	}

	for _, o := range orders {
		items := 0
		for _, item := range o.Items {
			items += item.Quantity
		}

		row := sheet.AddRow()
		row.AddCell().SetValue(o.ID)
		row.AddCell().SetValue(string(o.Status))
		row.AddCell().SetValue(o.UserID)
		row.AddCell().SetValue(o.VendorName)
		row.AddCell().SetValue(o.VendorStoreName)
		row.AddCell().SetValue(items)
		row.AddCell().SetValue(o.TotalAmount.StringFixed(2))
		row.AddCell().SetValue(o.DeliveryAddress)
		row.AddCell().SetValue(o.CreatedAt.Format("2006-01-02 15:04:05"))
		row.AddCell().SetValue(o.UpdatedAt.Format("2006-01-02 15:04:05"))
	}

	if err := file.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
