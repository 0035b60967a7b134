package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type DiscountType string

const (
	DiscountPercentage  DiscountType = "percentage"
	DiscountFixedAmount DiscountType = "fixed_amount"
)

var hundred = decimal.NewFromInt(100)

// Promotion - A discount rule applied to the products linked through ProductPromotion
type Promotion struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	Description   string          `gorm:"type:text" json:"description"`
	DiscountType  DiscountType    `gorm:"size:20;not null" json:"discount_type"`
	DiscountValue decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"discount_value"`
	StartDate     time.Time       `gorm:"index;not null" json:"start_date"`
	EndDate       time.Time       `gorm:"index;not null" json:"end_date"`
	IsActive      bool            `gorm:"not null;default:true" json:"is_active"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ProductPromotion - many-to-many link, no attributes beyond the two keys
type ProductPromotion struct {
	ProductID   uint `gorm:"primaryKey" json:"product_id"`
	PromotionID uint `gorm:"primaryKey;index" json:"promotion_id"`
}

// EffectiveAt is true only when the toggle is on and t falls inside [StartDate, EndDate].
func (p Promotion) EffectiveAt(t time.Time) bool {
	return p.IsActive && !t.Before(p.StartDate) && !t.After(p.EndDate)
}

// Apply returns the unit price this promotion yields for the given original price.
// Results are rounded to cents and never negative.
func (p Promotion) Apply(original decimal.Decimal) decimal.Decimal {
	var price decimal.Decimal
	switch p.DiscountType {
	case DiscountPercentage:
		factor := decimal.NewFromInt(1).Sub(p.DiscountValue.Div(hundred))
		price = original.Mul(factor).Round(2)
	case DiscountFixedAmount:
		price = original.Sub(p.DiscountValue)
	default:
		return original
	}
	if price.IsNegative() {
		return decimal.Zero
	}
	return price
}

// Snapshot captures the fields a Sale keeps after the promotion is gone.
func (p Promotion) Snapshot() PromotionSnapshot {
	return PromotionSnapshot{
		Name:          p.Name,
		DiscountType:  p.DiscountType,
		DiscountValue: p.DiscountValue,
	}
}
