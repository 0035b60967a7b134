// Package store defines the storage contracts the sale engine depends on.
//
// Every method is a single round trip against the backing store. Nothing here
// spans more than one table in one call, so callers cannot rely on multi-step
// atomicity and must compensate explicitly.
package store

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"go-pos-engine/internal/models"
)

type ProductStore interface {
	CreateProduct(ctx context.Context, p *models.Product) error
	GetProduct(ctx context.Context, id uint) (*models.Product, error)
	ListProducts(ctx context.Context) ([]models.Product, error)
	UpdateProduct(ctx context.Context, id uint, patch ProductPatch) (*models.Product, error)
	DeleteProduct(ctx context.Context, id uint) error
	// CompareAndSetStock writes next only if the stored stock still equals expected.
	// It returns false when the row changed in between.
	CompareAndSetStock(ctx context.Context, id uint, expected, next int) (bool, error)
}

// ProductPatch carries the admin-editable fields. Nil fields are left untouched.
type ProductPatch struct {
	Name         *string
	Category     *string
	Price        *decimal.Decimal
	MinimumStock *int
	ImageURL     *string
}

type PromotionStore interface {
	CreatePromotion(ctx context.Context, p *models.Promotion) error
	GetPromotion(ctx context.Context, id uint) (*models.Promotion, error)
	ListPromotions(ctx context.Context) ([]models.Promotion, error)
	SetPromotionActive(ctx context.Context, id uint, active bool) error
	DeletePromotion(ctx context.Context, id uint) error
	LinkProduct(ctx context.Context, promotionID, productID uint) error
	UnlinkProduct(ctx context.Context, promotionID, productID uint) error
	// ActivePromotionsForProduct returns promotions linked to the product that are
	// active and whose window contains at, ordered by id ascending.
	ActivePromotionsForProduct(ctx context.Context, productID uint, at time.Time) ([]models.Promotion, error)
}

type SaleStore interface {
	CreateSale(ctx context.Context, s *models.Sale) error
	GetSale(ctx context.Context, id uint) (*models.Sale, error)
	ListSales(ctx context.Context, limit int) ([]models.Sale, error)
	DeleteSale(ctx context.Context, id uint) error
}

type MovementStore interface {
	CreateMovement(ctx context.Context, m *models.StockMovement) error
	ListMovements(ctx context.Context, productID uint, limit int) ([]models.StockMovement, error)
	// FindMovementByReference returns apperr.ErrNotFound when no movement matches.
	FindMovementByReference(ctx context.Context, refType string, refID uint, movementType models.MovementType) (*models.StockMovement, error)
}

type AuditStore interface {
	CreateAuditLog(ctx context.Context, entry *models.AuditLog) error
	ListAuditLogs(ctx context.Context, limit int) ([]models.AuditLog, error)
	// DeleteAuditLogsExcept removes every entry but keepID and returns how many went.
	DeleteAuditLogsExcept(ctx context.Context, keepID uint) (int64, error)
}

type IncidentStore interface {
	CreateIncident(ctx context.Context, inc *models.Incident) error
	ListIncidents(ctx context.Context, limit int) ([]models.Incident, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	FindUserByUsername(ctx context.Context, username string) (*models.User, error)
}

// Store is the full backing store selected once at startup.
type Store interface {
	ProductStore
	PromotionStore
	SaleStore
	MovementStore
	AuditStore
	IncidentStore
	UserStore
}

const DefaultListLimit = 100

// ClampLimit keeps list sizes within [1, 500].
func ClampLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > 500 {
		return 500
	}
	return limit
}
