package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"go-pos-engine/internal/catalog"
	"go-pos-engine/internal/middleware"
)

func (h *Handler) ListPromotions(c *gin.Context) {
	promos, err := h.Store.ListPromotions(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, promos)
}

func (h *Handler) CreatePromotion(c *gin.Context) {
	var input catalog.PromotionInput
	if err := c.ShouldBindJSON(&input); err != nil {
		bindError(c, err)
		return
	}
	promo, err := h.Catalog.CreatePromotion(c.Request.Context(), input, middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, promo)
}

type promotionActiveBody struct {
	IsActive *bool `json:"is_active" binding:"required"`
}

func (h *Handler) SetPromotionActive(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	var body promotionActiveBody
	if err := c.ShouldBindJSON(&body); err != nil {
		bindError(c, err)
		return
	}
	promo, err := h.Catalog.SetPromotionActive(c.Request.Context(), id, *body.IsActive, middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, promo)
}

func (h *Handler) DeletePromotion(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	if err := h.Catalog.DeletePromotion(c.Request.Context(), id, middleware.UserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Promotion deleted successfully"})
}

func (h *Handler) LinkPromotionProduct(c *gin.Context) {
	promoID, ok := parseID(c, "id")
	if !ok {
		return
	}
	productID, ok := parseID(c, "productId")
	if !ok {
		return
	}
	if err := h.Catalog.LinkProduct(c.Request.Context(), promoID, productID, middleware.UserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product linked"})
}

func (h *Handler) UnlinkPromotionProduct(c *gin.Context) {
	promoID, ok := parseID(c, "id")
	if !ok {
		return
	}
	productID, ok := parseID(c, "productId")
	if !ok {
		return
	}
	if err := h.Catalog.UnlinkProduct(c.Request.Context(), promoID, productID, middleware.UserID(c)); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Product unlinked"})
}
