package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"go-pos-engine/internal/middleware"
	"go-pos-engine/internal/sales"
)

// SaleRequest defines what the Frontend sends us
type SaleRequest struct {
	ProductID uint                 `json:"product_id" binding:"required"`
	Quantity  int                  `json:"quantity" binding:"required"`
	Payment   sales.PaymentDetails `json:"payment"`
	SaleDate  *time.Time           `json:"sale_date"`
}

func (h *Handler) CreateSale(c *gin.Context) {
	var req SaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		bindError(c, err)
		return
	}

	in := sales.CreateSaleRequest{
		ProductID:       req.ProductID,
		AdministratorID: middleware.UserID(c),
		Quantity:        req.Quantity,
		Payment:         req.Payment,
	}
	if req.SaleDate != nil {
		in.SaleDate = *req.SaleDate
	}

	receipt, err := h.Sales.CreateSale(c.Request.Context(), in)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, receipt)
}

func (h *Handler) ListSales(c *gin.Context) {
	list, err := h.Store.ListSales(c.Request.Context(), queryLimit(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *Handler) GetSale(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	sale, err := h.Store.GetSale(c.Request.Context(), id)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sale)
}

func (h *Handler) DeleteSale(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	report, err := h.Sales.DeleteSale(c.Request.Context(), id, middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
