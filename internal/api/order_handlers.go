package api

import (
	"net/http"
	"time"

	"marketplace-service/internal/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type updateStatusRequest struct {
	Status models.OrderStatus `json:"status" binding:"required"`
}

// dashboard returns the caller's role-specific dashboard
func (h *Handler) dashboard(c *gin.Context) {
	dash, err := h.services.Dashboards.For(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dash)
}

func (h *Handler) notifications(c *gin.Context) {
	if h.feed == nil {
		c.JSON(http.StatusOK, gin.H{"notifications": []models.Notification{}})
		return
	}

	items, err := h.feed.ListNotifications(c.Request.Context(), sessionFrom(c).UserID)
	if err != nil {
		respondError(c, err)
		return
	}
	if items == nil {
		items = []models.Notification{}
	}
	c.JSON(http.StatusOK, gin.H{"notifications": items})
}

// logout revokes the presented token until it would have expired anyway
func (h *Handler) logout(c *gin.Context) {
	sess := sessionFrom(c)
	if h.sessions != nil && sess.TokenID != "" {
		ttl := time.Until(sess.ExpiresAt)
		if sess.ExpiresAt.IsZero() {
			ttl = 24 * time.Hour
		}
		if ttl > 0 {
			if err := h.sessions.RevokeToken(c.Request.Context(), sess.TokenID, ttl); err != nil {
				respondError(c, err)
				return
			}
		}
	}

	h.logger.Info("Session signed out", zap.String("user_id", sess.UserID))
	c.JSON(http.StatusOK, gin.H{"status": "signed out"})
}

func (h *Handler) getOrder(c *gin.Context) {
	order, err := h.services.Orders.GetOrder(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

// updateOrderStatus applies one lifecycle transition
func (h *Handler) updateOrderStatus(c *gin.Context) {
	var req updateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	order, err := h.services.Orders.UpdateStatus(c.Request.Context(), sessionFrom(c), c.Param("id"), req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) deliveryOrders(c *gin.Context) {
	orders, err := h.services.Orders.ListForDelivery(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *Handler) deliveryHistory(c *gin.Context) {
	orders, err := h.services.Orders.ListDeliveryHistory(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
