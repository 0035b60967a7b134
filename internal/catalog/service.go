// Package catalog handles admin edits to products and promotions. Stock is
// never written here; initial stock goes through the ledger like any entry.
package catalog

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"go-pos-engine/internal/apperr"
	"go-pos-engine/internal/audit"
	"go-pos-engine/internal/ledger"
	"go-pos-engine/internal/models"
	"go-pos-engine/internal/store"
	"go-pos-engine/internal/validation"
)

type ProductInput struct {
	Name         string          `json:"name" validate:"required,max=255"`
	Category     string          `json:"category" validate:"max=100"`
	Price        decimal.Decimal `json:"price"`
	InitialStock int             `json:"initial_stock" validate:"min=0,max=1000000"`
	MinimumStock int             `json:"minimum_stock" validate:"min=0,max=1000000"`
	ImageURL     string          `json:"image_url" validate:"omitempty,url"`
}

type ProductUpdate struct {
	Name         *string          `json:"name" validate:"omitempty,min=1,max=255"`
	Category     *string          `json:"category" validate:"omitempty,max=100"`
	Price        *decimal.Decimal `json:"price"`
	MinimumStock *int             `json:"minimum_stock" validate:"omitempty,min=0,max=1000000"`
	ImageURL     *string          `json:"image_url" validate:"omitempty,url"`
}

type PromotionInput struct {
	Name          string              `json:"name" validate:"required,max=255"`
	Description   string              `json:"description"`
	DiscountType  models.DiscountType `json:"discount_type" validate:"required,oneof=percentage fixed_amount"`
	DiscountValue decimal.Decimal     `json:"discount_value"`
	StartDate     time.Time           `json:"start_date" validate:"required"`
	EndDate       time.Time           `json:"end_date" validate:"required"`
	IsActive      *bool               `json:"is_active"`
	ProductIDs    []uint              `json:"product_ids"`
}

func (in PromotionInput) validate() error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	if !in.DiscountValue.IsPositive() {
		return apperr.Invalid("discount_value", "must be greater than 0")
	}
	if in.DiscountType == models.DiscountPercentage && in.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return apperr.Invalid("discount_value", "must be at most 100 for a percentage")
	}
	if !in.StartDate.Before(in.EndDate) {
		return apperr.Invalid("end_date", "must be after start_date")
	}
	return nil
}

type Service struct {
	products   store.ProductStore
	promotions store.PromotionStore
	ledger     *ledger.Ledger
	audit      *audit.Recorder
	log        logrus.FieldLogger
}

func NewService(st store.Store, ldg *ledger.Ledger, recorder *audit.Recorder, log logrus.FieldLogger) *Service {
	return &Service{
		products:   st,
		promotions: st,
		ledger:     ldg,
		audit:      recorder,
		log:        log.WithField("module", "catalog"),
	}
}

// record writes an admin change to the audit trail. The change already
// happened, so a failure is only logged.
func (s *Service) record(ctx context.Context, e audit.Entry) {
	if _, err := s.audit.Record(ctx, e); err != nil {
		s.log.WithError(err).WithFields(logrus.Fields{
			"table_name": e.Resource,
			"record_id":  e.RecordID,
		}).Warn("admin change not audited")
	}
}

func (s *Service) CreateProduct(ctx context.Context, in ProductInput, actorID uint) (*models.Product, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Price.IsNegative() {
		return nil, apperr.Invalid("price", "must not be negative")
	}
	p := &models.Product{
		Name:         in.Name,
		Category:     in.Category,
		Price:        in.Price.Round(2),
		MinimumStock: in.MinimumStock,
		ImageURL:     in.ImageURL,
	}
	if err := s.products.CreateProduct(ctx, p); err != nil {
		return nil, err
	}
	s.record(ctx, audit.Entry{
		ActionType: models.ActionCreate,
		Resource:   "products",
		RecordID:   audit.RecordID(p.ID),
		After:      p,
		ActorID:    actorID,
	})

	if in.InitialStock > 0 {
		res, err := s.ledger.Release(ctx, ledger.Change{
			ProductID:     p.ID,
			Quantity:      in.InitialStock,
			Reason:        "initial stock",
			ReferenceType: models.ReferenceManual,
			ActorID:       actorID,
		})
		if err != nil {
			return nil, err
		}
		p.StockQuantity = res.NewStock
	}
	return p, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id uint, in ProductUpdate, actorID uint) (*models.Product, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	if in.Price != nil && in.Price.IsNegative() {
		return nil, apperr.Invalid("price", "must not be negative")
	}
	before, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	patch := store.ProductPatch{
		Name:         in.Name,
		Category:     in.Category,
		MinimumStock: in.MinimumStock,
		ImageURL:     in.ImageURL,
	}
	if in.Price != nil {
		rounded := in.Price.Round(2)
		patch.Price = &rounded
	}
	after, err := s.products.UpdateProduct(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.record(ctx, audit.Entry{
		ActionType: models.ActionUpdate,
		Resource:   "products",
		RecordID:   audit.RecordID(id),
		Before:     before,
		After:      after,
		ActorID:    actorID,
	})
	return after, nil
}

func (s *Service) DeleteProduct(ctx context.Context, id, actorID uint) error {
	before, err := s.products.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if err := s.products.DeleteProduct(ctx, id); err != nil {
		return err
	}
	s.record(ctx, audit.Entry{
		ActionType: models.ActionDelete,
		Resource:   "products",
		RecordID:   audit.RecordID(id),
		Before:     before,
		ActorID:    actorID,
	})
	return nil
}

func (s *Service) CreatePromotion(ctx context.Context, in PromotionInput, actorID uint) (*models.Promotion, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	for _, productID := range in.ProductIDs {
		if _, err := s.products.GetProduct(ctx, productID); err != nil {
			return nil, errors.Wrapf(err, "link product %d", productID)
		}
	}
	active := true
	if in.IsActive != nil {
		active = *in.IsActive
	}
	p := &models.Promotion{
		Name:          in.Name,
		Description:   in.Description,
		DiscountType:  in.DiscountType,
		DiscountValue: in.DiscountValue.Round(2),
		StartDate:     in.StartDate.UTC(),
		EndDate:       in.EndDate.UTC(),
		IsActive:      active,
	}
	if err := s.promotions.CreatePromotion(ctx, p); err != nil {
		return nil, err
	}
	for _, productID := range in.ProductIDs {
		if err := s.promotions.LinkProduct(ctx, p.ID, productID); err != nil {
			// a product removed since the check; drop the half-linked promotion
			if delErr := s.promotions.DeletePromotion(ctx, p.ID); delErr != nil {
				s.log.WithError(delErr).WithField("promotion_id", p.ID).Error("half-linked promotion left behind")
			}
			return nil, errors.Wrapf(err, "link product %d", productID)
		}
	}
	s.record(ctx, audit.Entry{
		ActionType: models.ActionCreate,
		Resource:   "promotions",
		RecordID:   audit.RecordID(p.ID),
		After:      p,
		Details:    map[string]any{"product_ids": in.ProductIDs},
		ActorID:    actorID,
	})
	return p, nil
}

func (s *Service) SetPromotionActive(ctx context.Context, id uint, active bool, actorID uint) (*models.Promotion, error) {
	before, err := s.promotions.GetPromotion(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.promotions.SetPromotionActive(ctx, id, active); err != nil {
		return nil, err
	}
	after := *before
	after.IsActive = active
	s.record(ctx, audit.Entry{
		ActionType: models.ActionUpdate,
		Resource:   "promotions",
		RecordID:   audit.RecordID(id),
		Before:     map[string]any{"is_active": before.IsActive},
		After:      map[string]any{"is_active": active},
		ActorID:    actorID,
	})
	return &after, nil
}

// DeletePromotion removes the promotion and its links. Sales keep their snapshot.
func (s *Service) DeletePromotion(ctx context.Context, id, actorID uint) error {
	before, err := s.promotions.GetPromotion(ctx, id)
	if err != nil {
		return err
	}
	if err := s.promotions.DeletePromotion(ctx, id); err != nil {
		return err
	}
	s.record(ctx, audit.Entry{
		ActionType: models.ActionDelete,
		Resource:   "promotions",
		RecordID:   audit.RecordID(id),
		Before:     before,
		ActorID:    actorID,
	})
	return nil
}

func (s *Service) LinkProduct(ctx context.Context, promotionID, productID, actorID uint) error {
	if err := s.promotions.LinkProduct(ctx, promotionID, productID); err != nil {
		return err
	}
	s.record(ctx, audit.Entry{
		ActionType: models.ActionCreate,
		Resource:   "product_promotions",
		RecordID:   audit.RecordID(promotionID) + ":" + audit.RecordID(productID),
		After:      models.ProductPromotion{ProductID: productID, PromotionID: promotionID},
		ActorID:    actorID,
	})
	return nil
}

func (s *Service) UnlinkProduct(ctx context.Context, promotionID, productID, actorID uint) error {
	if err := s.promotions.UnlinkProduct(ctx, promotionID, productID); err != nil {
		return err
	}
	s.record(ctx, audit.Entry{
		ActionType: models.ActionDelete,
		Resource:   "product_promotions",
		RecordID:   audit.RecordID(promotionID) + ":" + audit.RecordID(productID),
		Before:     models.ProductPromotion{ProductID: productID, PromotionID: promotionID},
		ActorID:    actorID,
	})
	return nil
}
