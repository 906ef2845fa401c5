package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"marketplace-service/internal/models"

	"github.com/gin-gonic/gin"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type vendorActiveRequest struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

type vendorApprovalRequest struct {
	ApprovalStatus models.ApprovalStatus `json:"approval_status" binding:"required"`
}

func (h *Handler) adminStats(c *gin.Context) {
	stats, err := h.services.Admin.PlatformStats(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (h *Handler) adminVendors(c *gin.Context) {
	vendors, err := h.services.Admin.VendorRoster(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vendors": vendors})
}

func (h *Handler) adminPendingVendors(c *gin.Context) {
	vendors, err := h.services.Admin.PendingVendors(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"vendors": vendors})
}

func (h *Handler) setVendorActive(c *gin.Context) {
	var req vendorActiveRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	profile, err := h.services.Admin.SetVendorActive(c.Request.Context(), sessionFrom(c), c.Param("id"), *req.IsActive)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) setVendorApproval(c *gin.Context) {
	var req vendorApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	profile, err := h.services.Admin.SetVendorApproval(c.Request.Context(), sessionFrom(c), c.Param("id"), req.ApprovalStatus)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) adminUsers(c *gin.Context) {
	role := models.Role(c.DefaultQuery("role", string(models.RoleCustomer)))
	users, err := h.services.Admin.ListUsers(c.Request.Context(), sessionFrom(c), role)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

func (h *Handler) adminOrders(c *gin.Context) {
	orders, err := h.services.Admin.OrdersFiltered(c.Request.Context(), sessionFrom(c), c.Query("status"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

// exportOrders downloads the filtered orders as a spreadsheet
func (h *Handler) exportOrders(c *gin.Context) {
	status := c.DefaultQuery("status", "all")

	var buf bytes.Buffer
	if err := h.services.Admin.ExportOrders(c.Request.Context(), sessionFrom(c), status, &buf); err != nil {
		respondError(c, err)
		return
	}

	fileName := fmt.Sprintf("orders-%s-%s.xlsx", status, time.Now().Format("20060102"))
	c.Header("Content-Disposition", "attachment; filename="+fileName)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}
