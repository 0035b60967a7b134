package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// User - The administrator or staff member operating the panel
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"uniqueIndex;size:50" json:"username"`
	PasswordHash string    `json:"-"`    // Never return this in JSON
	Role         string    `json:"role"` // 'admin', 'staff'
	CreatedAt    time.Time `json:"created_at"`
}

const (
	RoleAdmin = "admin"
	RoleStaff = "staff"
)

// Product - The Inventory. StockQuantity is only written by the stock ledger.
type Product struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	Name          string          `gorm:"size:255;not null" json:"name"`
	Category      string          `gorm:"size:100" json:"category"`
	Price         decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	StockQuantity int             `gorm:"not null;default:0" json:"stock_quantity"`
	MinimumStock  int             `gorm:"not null;default:0" json:"minimum_stock"`
	ImageURL      string          `json:"image_url"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// BelowMinimum reports whether the given stock level is at or under the advisory threshold.
func (p Product) BelowMinimum(stock int) bool {
	return p.MinimumStock > 0 && stock <= p.MinimumStock
}

// PromotionSnapshot is copied onto a Sale when it is created so the sale stays
// readable after the promotion is changed or deleted.
type PromotionSnapshot struct {
	Name          string          `gorm:"size:255" json:"name,omitempty"`
	DiscountType  DiscountType    `gorm:"size:20" json:"discount_type,omitempty"`
	DiscountValue decimal.Decimal `gorm:"type:decimal(12,2)" json:"discount_value"`
}

// Sale - One stock-decrementing event. Immutable once created except for deletion.
type Sale struct {
	ID                uint              `gorm:"primaryKey" json:"id"`
	ProductID         uint              `gorm:"index;not null" json:"product_id"`
	ProductName       string            `gorm:"size:255" json:"product_name"` // Snapshot of the product name at time of sale
	AdministratorID   uint              `gorm:"index;not null" json:"administrator_id"`
	Quantity          int               `gorm:"not null" json:"quantity"`
	OriginalPrice     decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"original_price"`
	UnitPrice         decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"unit_price"` // Resolved price actually charged
	DiscountAmount    decimal.Decimal   `gorm:"type:decimal(12,2);not null" json:"discount_amount"`
	TotalPrice        decimal.Decimal   `gorm:"type:decimal(14,2);not null" json:"total_price"`
	PromotionID       *uint             `gorm:"index" json:"promotion_id"`
	PromotionSnapshot PromotionSnapshot `gorm:"embedded;embeddedPrefix:promotion_" json:"promotion"`
	PaymentMethod     PaymentMethod     `gorm:"size:30;not null" json:"payment_method"`
	InstallmentCount  int               `gorm:"not null;default:0" json:"installment_count"`
	SaleDate          time.Time         `gorm:"index;not null" json:"sale_date"`
	CreatedAt         time.Time         `json:"created_at"`
}

// HasPromotion reports whether a promotion produced the unit price.
func (s Sale) HasPromotion() bool {
	return s.PromotionID != nil
}

type PaymentMethod string

const (
	PaymentCash       PaymentMethod = "cash"
	PaymentDebitCard  PaymentMethod = "debit_card"
	PaymentCreditCard PaymentMethod = "credit_card"
	PaymentTransfer   PaymentMethod = "transfer"
)
