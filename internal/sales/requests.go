package sales

import (
	"time"

	"github.com/shopspring/decimal"

	"go-pos-engine/internal/apperr"
	"go-pos-engine/internal/ledger"
	"go-pos-engine/internal/models"
	"go-pos-engine/internal/pricing"
	"go-pos-engine/internal/validation"
)

type PaymentDetails struct {
	Method           models.PaymentMethod `json:"payment_method" validate:"required,oneof=cash debit_card credit_card transfer"`
	InstallmentCount int                  `json:"installment_count" validate:"min=0,max=48"`
}

type CreateSaleRequest struct {
	ProductID       uint           `json:"product_id" validate:"required"`
	AdministratorID uint           `json:"administrator_id" validate:"required"`
	Quantity        int            `json:"quantity" validate:"min=1,max=1000000"`
	Payment         PaymentDetails `json:"payment"`
	// SaleDate is the client's clock. It is only checked against the server
	// clock; the sale is recorded and priced at the server time.
	SaleDate time.Time `json:"sale_date"`
}

func (r CreateSaleRequest) validate() error {
	if err := validation.Struct(r); err != nil {
		return err
	}
	if r.Payment.InstallmentCount > 1 && r.Payment.Method != models.PaymentCreditCard {
		return apperr.Invalid("installment_count", "installments are only allowed for credit_card")
	}
	return nil
}

// Receipt is what a successful CreateSale returns.
type Receipt struct {
	Sale           *models.Sale       `json:"sale"`
	Pricing        pricing.Resolution `json:"pricing"`
	RemainingStock int                `json:"remaining_stock"`
	BelowMinimum   bool               `json:"below_minimum"`
	AuditRecorded  bool               `json:"audit_recorded"`
	Warnings       []string           `json:"warnings,omitempty"`
}

// DeletionReport describes what a DeleteSale actually did.
type DeletionReport struct {
	SaleID uint `json:"sale_id"`
	// StockRestored is false only when the product no longer exists.
	StockRestored bool `json:"stock_restored"`
	// AlreadyReleased is set when an earlier attempt had returned the stock.
	AlreadyReleased bool     `json:"already_released"`
	NewStock        *int     `json:"new_stock,omitempty"`
	AuditRecorded   bool     `json:"audit_recorded"`
	Warnings        []string `json:"warnings,omitempty"`
}

type StockMovementRequest struct {
	ProductID uint                `json:"product_id" validate:"required"`
	Type      models.MovementType `json:"movement_type" validate:"required,oneof=entry exit"`
	Quantity  int                 `json:"quantity" validate:"min=1,max=1000000"`
	Reason    string              `json:"reason" validate:"max=255"`
	ActorID   uint                `json:"-"`
}

type MovementReceipt struct {
	Movement         *models.StockMovement `json:"movement"`
	NewStock         int                   `json:"new_stock"`
	BelowMinimum     bool                  `json:"below_minimum"`
	MovementRecorded bool                  `json:"movement_recorded"`
	AuditRecorded    bool                  `json:"audit_recorded"`
	Warnings         []string              `json:"warnings,omitempty"`
}

func movementReceipt(r *ledger.Result) *MovementReceipt {
	return &MovementReceipt{
		Movement:         r.Movement,
		NewStock:         r.NewStock,
		BelowMinimum:     r.Product.BelowMinimum(r.NewStock),
		MovementRecorded: r.MovementRecorded,
	}
}

// deletedSnapshot keeps what an operator needs once the sale row is gone.
type deletedSnapshot struct {
	SaleID          uint                     `json:"sale_id"`
	ProductID       uint                     `json:"product_id"`
	ProductName     string                   `json:"product_name"`
	AdministratorID uint                     `json:"administrator_id"`
	Quantity        int                      `json:"quantity"`
	UnitPrice       decimal.Decimal          `json:"unit_price"`
	TotalPrice      decimal.Decimal          `json:"total_price"`
	PromotionID     *uint                    `json:"promotion_id,omitempty"`
	Promotion       models.PromotionSnapshot `json:"promotion"`
	PaymentMethod   models.PaymentMethod     `json:"payment_method"`
	SaleDate        time.Time                `json:"sale_date"`
}

func snapshotOf(s *models.Sale) deletedSnapshot {
	return deletedSnapshot{
		SaleID:          s.ID,
		ProductID:       s.ProductID,
		ProductName:     s.ProductName,
		AdministratorID: s.AdministratorID,
		Quantity:        s.Quantity,
		UnitPrice:       s.UnitPrice,
		TotalPrice:      s.TotalPrice,
		PromotionID:     s.PromotionID,
		Promotion:       s.PromotionSnapshot,
		PaymentMethod:   s.PaymentMethod,
		SaleDate:        s.SaleDate,
	}
}
