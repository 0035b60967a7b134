// Package notify emits advisory change notifications after an operation is done.
// Nothing in the engine waits on them or reads them back.
package notify

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	EventSaleCreated  = "SaleCreated"
	EventSaleDeleted  = "SaleDeleted"
	EventStockChanged = "StockChanged"
)

const (
	TopicSaleCreated  = "sale.created"
	TopicSaleDeleted  = "sale.deleted"
	TopicStockChanged = "stock.changed"
)

// Envelope wraps every payload on the wire.
type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	CorrelationID string          `json:"correlation_id,omitempty"` // sale or product id
	Payload       json.RawMessage `json:"payload"`
}

type SaleCreatedPayload struct {
	SaleID       uint            `json:"sale_id"`
	ProductID    uint            `json:"product_id"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	TotalPrice   decimal.Decimal `json:"total_price"`
	PromotionID  *uint           `json:"promotion_id,omitempty"`
	NewStock     int             `json:"new_stock"`
	BelowMinimum bool            `json:"below_minimum"`
}

type SaleDeletedPayload struct {
	SaleID        uint `json:"sale_id"`
	ProductID     uint `json:"product_id"`
	Quantity      int  `json:"quantity"`
	StockRestored bool `json:"stock_restored"`
}

type StockChangedPayload struct {
	ProductID     uint   `json:"product_id"`
	MovementType  string `json:"movement_type"`
	Quantity      int    `json:"quantity"`
	PreviousStock int    `json:"previous_stock"`
	NewStock      int    `json:"new_stock"`
	BelowMinimum  bool   `json:"below_minimum"`
}

// Event is what the engine hands to a Publisher.
type Event struct {
	Topic    string
	Key      string
	Envelope Envelope
}

// NewEvent builds an envelope with a fresh id. key is also used as the
// partition key so events for one record stay ordered.
func NewEvent(topic, eventType, producer string, id uint, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, err
	}
	key := strconv.FormatUint(uint64(id), 10)
	return Event{
		Topic: topic,
		Key:   key,
		Envelope: Envelope{
			EventID:       uuid.NewString(),
			EventType:     eventType,
			EventVersion:  1,
			OccurredAt:    time.Now().UTC(),
			Producer:      producer,
			CorrelationID: key,
			Payload:       raw,
		},
	}, nil
}
