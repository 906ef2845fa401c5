package service

import (
	"context"
	"strings"
	"time"

	"marketplace-service/internal/models"
	"marketplace-service/internal/util"

	"go.uber.org/zap"
)

// Named views. Every mutation declares the set of views it makes stale and
// drops them synchronously after its write succeeds.
const (
	viewPublicProducts  = "public-products"
	viewDeliveryActive  = "delivery-active"
	viewDeliveryHistory = "delivery-history"
	viewAdminStats      = "admin-stats"
	viewAdminVendors    = "admin-vendors"
	viewAdminPending    = "admin-pending-vendors"
)

func userOrdersView(userID string) string     { return "user-orders:" + userID }
func vendorOrdersView(vendorID string) string { return "vendor-orders:" + vendorID }
func adminOrdersView(status string) string    { return "admin-orders:" + status }

func publicProductsView(filter models.ProductFilter) string {
	return viewPublicProducts + ":" + filter.Category + ":" + strings.ToLower(filter.Search)
}

// viewSet names the views a mutation invalidates
type viewSet struct {
	keys     []string
	patterns []string
}

func orderChangedViews(order *models.Order) viewSet {
	return viewSet{
		keys: []string{
			userOrdersView(order.UserID),
			vendorOrdersView(order.VendorID),
			viewDeliveryActive,
			viewDeliveryHistory,
			viewAdminStats,
			viewAdminVendors,
		},
		// placement moves stock, which the catalog shows
		patterns: []string{adminOrdersView("*"), viewPublicProducts + "*"},
	}
}

func catalogChangedViews() viewSet {
	return viewSet{
		keys:     []string{viewAdminVendors},
		patterns: []string{viewPublicProducts + "*"},
	}
}

func vendorChangedViews() viewSet {
	return viewSet{
		keys:     []string{viewAdminVendors, viewAdminPending, viewAdminStats},
		patterns: []string{viewPublicProducts + "*"},
	}
}

// storeProfileChangedViews also covers every order list, since orders carry
// the vendor's display names
func storeProfileChangedViews(vendorID string) viewSet {
	set := vendorChangedViews()
	set.keys = append(set.keys, vendorOrdersView(vendorID), viewDeliveryActive, viewDeliveryHistory)
	set.patterns = append(set.patterns, userOrdersView("*"), adminOrdersView("*"))
	return set
}

// views wraps the optional view cache. Cache failures are logged and
// treated as misses; they never fail the operation.
type views struct {
	cache  ViewCache
	ttl    time.Duration
	logger *zap.Logger
}

func newViews(cache ViewCache, ttl time.Duration) *views {
	return &views{cache: cache, ttl: ttl, logger: util.ComponentLogger("views")}
}

func (v *views) invalidate(ctx context.Context, set viewSet) {
	if v == nil || v.cache == nil {
		return
	}
	if err := v.cache.Delete(ctx, set.keys...); err != nil {
		v.logger.Warn("Failed to invalidate views", zap.Strings("views", set.keys), zap.Error(err))
	}
	for _, p := range set.patterns {
		if err := v.cache.DeletePattern(ctx, p); err != nil {
			v.logger.Warn("Failed to invalidate views", zap.String("pattern", p), zap.Error(err))
		}
	}
}

func (v *views) store(ctx context.Context, name string, value interface{}) {
	if v == nil || v.cache == nil {
		return
	}
	if err := v.cache.SetJSON(ctx, name, value, v.ttl); err != nil {
		v.logger.Warn("Failed to store view", zap.String("view", name), zap.Error(err))
	}
}

// metricName strips the per-user suffix so view labels stay bounded
func metricName(name string) string {
	if i := strings.IndexByte(name, ':'); i >= 0 {
		return name[:i]
	}
	return name
}

// cachedView returns the named view from the cache, or computes and stores it
func cachedView[T any](ctx context.Context, v *views, name string, load func(context.Context) (T, error)) (T, error) {
	if v != nil && v.cache != nil {
		var cached T
		hit, err := v.cache.GetJSON(ctx, name, &cached)
		if err != nil {
			v.logger.Warn("View cache read failed", zap.String("view", name), zap.Error(err))
		}
		if hit && err == nil {
			util.ViewCacheLookups.WithLabelValues(metricName(name), "hit").Inc()
			return cached, nil
		}
		util.ViewCacheLookups.WithLabelValues(metricName(name), "miss").Inc()
	}

	value, err := load(ctx)
	if err != nil {
		return value, err
	}
	v.store(ctx, name, value)
	return value, nil
}
