package api

import (
	"io"
	"net/http"

	"marketplace-service/internal/apperr"
	"marketplace-service/internal/models"
	"marketplace-service/internal/service"

	"github.com/gin-gonic/gin"
)

func (h *Handler) vendorProfile(c *gin.Context) {
	profile, err := h.services.Vendors.Profile(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"profile": profile,
		"access":  service.AccessFor(profile),
	})
}

func (h *Handler) updateVendorProfile(c *gin.Context) {
	var req models.StoreProfileUpdate
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	profile, err := h.services.Vendors.UpdateStoreProfile(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) vendorProducts(c *gin.Context) {
	products, err := h.services.Vendors.ListProducts(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) createProduct(c *gin.Context) {
	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	product, err := h.services.Vendors.CreateProduct(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

func (h *Handler) updateProduct(c *gin.Context) {
	var req service.ProductInput
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	product, err := h.services.Vendors.UpdateProduct(c.Request.Context(), sessionFrom(c), c.Param("id"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) toggleProduct(c *gin.Context) {
	product, err := h.services.Vendors.ToggleProductActive(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

func (h *Handler) deleteProduct(c *gin.Context) {
	if err := h.services.Vendors.DeleteProduct(c.Request.Context(), sessionFrom(c), c.Param("id")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// uploadImage accepts a multipart "file" field and returns its public URL
func (h *Handler) uploadImage(c *gin.Context) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondError(c, apperr.New(apperr.KindInvalidInput, "image file is required"))
		return
	}
	if fileHeader.Size > service.MaxImageBytes {
		respondError(c, apperr.New(apperr.KindInvalidInput, "image exceeds %d bytes", service.MaxImageBytes))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respondError(c, apperr.Backend("failed to open upload", err))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, service.MaxImageBytes+1))
	if err != nil {
		respondError(c, apperr.Backend("failed to read upload", err))
		return
	}

	url, err := h.services.Vendors.UploadProductImage(c.Request.Context(), sessionFrom(c), fileHeader.Filename, data)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"url": url})
}

func (h *Handler) vendorOrders(c *gin.Context) {
	orders, err := h.services.Orders.ListForVendor(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
