package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"go-pos-engine/internal/auth"
	"go-pos-engine/internal/config"
	"go-pos-engine/internal/middleware"
	"go-pos-engine/internal/models"
)

// NewRouter wires every route. Registration is only opened when the config allows it.
func NewRouter(h *Handler, tokens *auth.TokenIssuer, cfg *config.Config) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(h.Log))

	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Request-ID"},
		ExposeHeaders:    []string{"Content-Length", "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "online"}) })
	r.POST("/login", h.Login)

	if cfg.AllowRegistration {
		r.POST("/register", h.Register)
		h.Log.Warn("registration route is OPEN, disable this in production")
	}

	api := r.Group("/api")
	api.Use(middleware.AuthMiddleware(tokens))
	{
		// staff and admin
		api.GET("/products", h.GetProducts)
		api.GET("/products/:id", h.GetProduct)
		api.GET("/products/:id/price", h.GetProductPrice)
		api.GET("/promotions", h.ListPromotions)
		api.POST("/sales", h.CreateSale)
		api.GET("/sales", h.ListSales)
		api.GET("/sales/:id", h.GetSale)

		admin := api.Group("/")
		admin.Use(middleware.RequireRole(models.RoleAdmin))
		{
			admin.POST("/products", h.AddProduct)
			admin.PUT("/products/:id", h.UpdateProduct)
			admin.DELETE("/products/:id", h.DeleteProduct)
			admin.POST("/products/:id/stock-movements", h.RegisterStockMovement)
			admin.GET("/products/:id/stock-movements", h.ListStockMovements)

			admin.POST("/promotions", h.CreatePromotion)
			admin.PUT("/promotions/:id/active", h.SetPromotionActive)
			admin.DELETE("/promotions/:id", h.DeletePromotion)
			admin.POST("/promotions/:id/products/:productId", h.LinkPromotionProduct)
			admin.DELETE("/promotions/:id/products/:productId", h.UnlinkPromotionProduct)

			admin.DELETE("/sales/:id", h.DeleteSale)

			admin.GET("/audit-logs", h.ListAuditLogs)
			admin.POST("/audit-logs/purge", h.PurgeAuditLogs)
			admin.GET("/incidents", h.ListIncidents)
		}
	}
	return r
}
