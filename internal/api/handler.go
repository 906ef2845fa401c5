package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"marketplace-service/internal/auth"
	"marketplace-service/internal/models"
	"marketplace-service/internal/service"
	"marketplace-service/internal/util"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SessionRevoker records logged-out token ids
type SessionRevoker interface {
	RevokeToken(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// NotificationFeed reads a user's recent notifications
type NotificationFeed interface {
	ListNotifications(ctx context.Context, userID string) ([]models.Notification, error)
}

// ReadinessCheck reports whether a dependency is reachable
type ReadinessCheck func(ctx context.Context) error

// Options control router-level behaviour
type Options struct {
	CORSOrigins []string
	MediaDir    string
}

// Handler contains HTTP handlers
type Handler struct {
	services *service.Services
	verifier *auth.TokenVerifier
	sessions SessionRevoker
	feed     NotificationFeed
	checks   map[string]ReadinessCheck
	logger   *zap.Logger
}

// NewHandler creates a new HTTP handler
func NewHandler(services *service.Services, verifier *auth.TokenVerifier, sessions SessionRevoker, feed NotificationFeed) *Handler {
	return &Handler{
		services: services,
		verifier: verifier,
		sessions: sessions,
		feed:     feed,
		checks:   make(map[string]ReadinessCheck),
		logger:   util.ComponentLogger("api"),
	}
}

// AddReadinessCheck registers a dependency probed by /ready
func (h *Handler) AddReadinessCheck(name string, check ReadinessCheck) {
	h.checks[name] = check
}

// SetupRoutes sets up HTTP routes
func (h *Handler) SetupRoutes(router *gin.Engine, opts Options) {
	router.Use(gin.Recovery())
	router.Use(corsMiddleware(opts.CORSOrigins))
	router.Use(prometheusMiddleware())
	router.Use(gin.Logger())

	router.GET("/health", h.healthCheck)
	router.GET("/ready", h.readinessCheck)

	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	if opts.MediaDir != "" {
		router.Static("/media", opts.MediaDir)
	}

	v1 := router.Group("/api/v1")
	{
		v1.GET("/products", h.listProducts)
		v1.GET("/products/:id", h.getProduct)
		v1.GET("/order-lifecycle", h.orderLifecycle)
	}

	authed := v1.Group("", h.authenticate())
	{
		authed.GET("/dashboard", h.dashboard)
		authed.GET("/notifications", h.notifications)
		authed.POST("/auth/logout", h.logout)
		authed.GET("/orders/:id", h.getOrder)
		authed.POST("/orders/:id/status", requireRole(models.RoleVendor, models.RoleDelivery), h.updateOrderStatus)
	}

	customer := authed.Group("", requireRole(models.RoleCustomer))
	{
		customer.GET("/cart", h.getCart)
		customer.DELETE("/cart", h.clearCart)
		customer.POST("/cart/items", h.addCartItem)
		customer.PATCH("/cart/items/:id", h.updateCartItem)
		customer.DELETE("/cart/items/:id", h.removeCartItem)
		customer.POST("/checkout", h.checkout)
		customer.POST("/orders", h.createOrder)
		customer.GET("/orders", h.listCustomerOrders)
	}

	vendor := authed.Group("/vendor", requireRole(models.RoleVendor))
	{
		vendor.GET("/profile", h.vendorProfile)
		vendor.PUT("/profile", h.updateVendorProfile)
		vendor.GET("/products", h.vendorProducts)
		vendor.POST("/products", h.createProduct)
		vendor.PUT("/products/:id", h.updateProduct)
		vendor.DELETE("/products/:id", h.deleteProduct)
		vendor.POST("/products/:id/toggle", h.toggleProduct)
		vendor.POST("/images", h.uploadImage)
		vendor.GET("/orders", h.vendorOrders)
	}

	delivery := authed.Group("/delivery", requireRole(models.RoleDelivery))
	{
		delivery.GET("/orders", h.deliveryOrders)
		delivery.GET("/history", h.deliveryHistory)
	}

	admin := authed.Group("/admin", requireRole(models.RoleAdmin))
	{
		admin.GET("/stats", h.adminStats)
		admin.GET("/vendors", h.adminVendors)
		admin.GET("/vendors/pending", h.adminPendingVendors)
		admin.PUT("/vendors/:id/active", h.setVendorActive)
		admin.PUT("/vendors/:id/approval", h.setVendorApproval)
		admin.GET("/users", h.adminUsers)
		admin.GET("/orders", h.adminOrders)
		admin.GET("/orders/export", h.exportOrders)
	}
}

// healthCheck handles health check requests
func (h *Handler) healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// readinessCheck probes every registered dependency
func (h *Handler) readinessCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	failed := gin.H{}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Warn("Readiness check failed", zap.String("dependency", name), zap.Error(err))
			failed[name] = err.Error()
		}
	}

	if len(failed) > 0 {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "not ready",
			"failed": failed,
			"time":   time.Now().Unix(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"time":   time.Now().Unix(),
	})
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", "Idempotency-Key"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition"},
		MaxAge:        12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" || o == "" {
			cfg.AllowAllOrigins = true
			break
		}
	}
	if !cfg.AllowAllOrigins {
		cfg.AllowOrigins = origins
		cfg.AllowCredentials = true
	}
	return cors.New(cfg)
}

// prometheusMiddleware collects HTTP metrics
func prometheusMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		util.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Observe(duration)

		util.HTTPRequestsTotal.WithLabelValues(
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()
	}
}
