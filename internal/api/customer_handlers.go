package api

import (
	"net/http"

	"marketplace-service/internal/lifecycle"
	"marketplace-service/internal/models"
	"marketplace-service/internal/service"

	"github.com/gin-gonic/gin"
)

type addCartItemRequest struct {
	ProductID string `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity"`
}

type updateCartItemRequest struct {
	Quantity *int `json:"quantity" binding:"required"`
}

type checkoutRequest struct {
	DeliveryAddress string `json:"delivery_address" binding:"required"`
	IdempotencyKey  string `json:"idempotency_key"`
}

// listProducts serves the public catalog
func (h *Handler) listProducts(c *gin.Context) {
	products, err := h.services.Catalog.ListProducts(c.Request.Context(), models.ProductFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"products": products})
}

func (h *Handler) getProduct(c *gin.Context) {
	product, err := h.services.Catalog.GetProduct(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, product)
}

// orderLifecycle documents the statuses and who may move an order between them
func (h *Handler) orderLifecycle(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"statuses":    models.AllOrderStatuses,
		"transitions": lifecycle.Transitions(),
	})
}

func (h *Handler) getCart(c *gin.Context) {
	cart, err := h.services.Cart.Get(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) clearCart(c *gin.Context) {
	cart, err := h.services.Cart.Clear(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) addCartItem(c *gin.Context) {
	var req addCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	cart, err := h.services.Cart.AddItem(c.Request.Context(), sessionFrom(c), req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// updateCartItem sets a line's quantity; zero removes the line
func (h *Handler) updateCartItem(c *gin.Context) {
	var req updateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	var (
		cart *service.Cart
		err  error
	)
	if *req.Quantity == 0 {
		cart, err = h.services.Cart.RemoveItem(c.Request.Context(), sessionFrom(c), c.Param("id"))
	} else {
		cart, err = h.services.Cart.UpdateQuantity(c.Request.Context(), sessionFrom(c), c.Param("id"), *req.Quantity)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) removeCartItem(c *gin.Context) {
	cart, err := h.services.Cart.RemoveItem(c.Request.Context(), sessionFrom(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

// checkout turns the cart into a pending order
func (h *Handler) checkout(c *gin.Context) {
	var req checkoutRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.services.Cart.Checkout(c.Request.Context(), sessionFrom(c), req.DeliveryAddress, req.IdempotencyKey)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

// createOrder places an order from an explicit item list
func (h *Handler) createOrder(c *gin.Context) {
	var req service.PlaceOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, invalidBody(err))
		return
	}

	if req.IdempotencyKey == "" {
		req.IdempotencyKey = c.GetHeader("Idempotency-Key")
	}

	order, err := h.services.Orders.PlaceOrder(c.Request.Context(), sessionFrom(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) listCustomerOrders(c *gin.Context) {
	orders, err := h.services.Orders.ListForCustomer(c.Request.Context(), sessionFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}
