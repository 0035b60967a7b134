package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-pos-engine/internal/catalog"
	"go-pos-engine/internal/middleware"
	"go-pos-engine/internal/models"
	"go-pos-engine/internal/sales"
)

// --- GET: List all products ---
func (h *Handler) GetProducts(c *gin.Context) {
	products, err := h.Store.ListProducts(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, products)
}

func (h *Handler) GetProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	product, err := h.Store.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"product":       product,
		"below_minimum": product.BelowMinimum(product.StockQuantity),
	})
}

// GetProductPrice shows the price a sale would charge right now.
func (h *Handler) GetProductPrice(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	product, err := h.Store.GetProduct(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.Pricing.ResolvePrice(c.Request.Context(), product.ID, product.Price))
}

// --- POST: Add a new product ---
func (h *Handler) AddProduct(c *gin.Context) {
	var input catalog.ProductInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	product, err := h.Catalog.CreateProduct(c.Request.Context(), input, middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, product)
}

// --- PUT: Update price, minimum stock or details. Stock goes through movements. ---
func (h *Handler) UpdateProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var input catalog.ProductUpdate
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	product, err := h.Catalog.UpdateProduct(c.Request.Context(), id, input, middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product updated successfully", "product": product})
}

// --- DELETE: Remove a product ---
func (h *Handler) DeleteProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.Catalog.DeleteProduct(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product deleted successfully"})
}

type stockMovementBody struct {
	Type     models.MovementType `json:"movement_type" binding:"required"`
	Quantity int                 `json:"quantity" binding:"required"`
	Reason   string              `json:"reason"`
}

func (h *Handler) RegisterStockMovement(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body stockMovementBody
	if err := c.ShouldBindJSON(&body); err != nil {
		bindError(c, err)
		return
	}
	receipt, err := h.Sales.RegisterStockMovement(c.Request.Context(), sales.StockMovementRequest{
		ProductID: id,
		Type:      body.Type,
		Quantity:  body.Quantity,
		Reason:    body.Reason,
		ActorID:   middleware.UserID(c),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *Handler) ListStockMovements(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	movements, err := h.Store.ListMovements(c.Request.Context(), id, queryLimit(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, movements)
}
