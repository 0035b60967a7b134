package models

import "time"

type MovementType string

const (
	MovementEntry MovementType = "entry"
	MovementExit  MovementType = "exit"
)

// Reference types recorded on stock movements
const (
	ReferenceSale       = "sale"
	ReferenceSaleDelete = "sale_reversal"
	ReferenceManual     = "manual"
	ReferenceCompensate = "compensation"
)

// StockMovement - append-only trail of every stock mutation
type StockMovement struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	ProductID     uint         `gorm:"index;not null" json:"product_id"`
	MovementType  MovementType `gorm:"size:10;not null" json:"movement_type"`
	Quantity      int          `gorm:"not null" json:"quantity"`
	PreviousStock int          `gorm:"not null" json:"previous_stock"`
	NewStock      int          `gorm:"not null" json:"new_stock"`
	Reason        string       `gorm:"size:255" json:"reason"`
	ReferenceType string       `gorm:"size:30;index:idx_movement_reference" json:"reference_type,omitempty"`
	ReferenceID   *uint        `gorm:"index:idx_movement_reference" json:"reference_id,omitempty"`
	CreatedBy     uint         `json:"created_by"`
	CreatedAt     time.Time    `json:"created_at"`
}
