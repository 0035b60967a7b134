package models

import "time"

const (
	ActionCreate = "CREATE"
	ActionUpdate = "UPDATE"
	ActionDelete = "DELETE"
	ActionLogin  = "LOGIN"
	ActionPurge  = "PURGE"
)

// AuditLog - Who changed what, and when. Rows are never updated.
type AuditLog struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	ActionType string    `gorm:"size:20;not null;index" json:"action_type"`
	Resource   string    `gorm:"column:table_name;size:64;not null" json:"table_name"`
	RecordID   string    `gorm:"size:64;index" json:"record_id"`
	Details    string    `gorm:"type:text" json:"details"` // JSON payload with before/after values
	UserID     uint      `gorm:"index" json:"user_id"`
	CreatedAt  time.Time `gorm:"index" json:"created_at"`
}

// Incident kinds
const (
	IncidentPartialFailure   = "partial_failure"
	IncidentStockNotRestored = "stock_not_restored"
	IncidentAuditMissing     = "audit_missing"
	IncidentMovementMissing  = "movement_missing"
)

// Incident - durable record of something an operator has to reconcile by hand
type Incident struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	Kind        string    `gorm:"size:40;not null;index" json:"kind"`
	Operation   string    `gorm:"size:40;not null" json:"operation"`
	Step        string    `gorm:"size:40" json:"step"`
	SaleID      *uint     `gorm:"index" json:"sale_id,omitempty"`
	ProductID   *uint     `gorm:"index" json:"product_id,omitempty"`
	Quantity    int       `json:"quantity"`
	Compensated bool      `json:"compensated"`
	Detail      string    `gorm:"type:text" json:"detail"`
	CreatedAt   time.Time `gorm:"index" json:"created_at"`
}
