package inventory

import (
	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Aggregate type constants
const (
	AggregateTypeDamageRecord  = "DamageRecord"
	AggregateTypePendingDamage = "PendingDamage"
)

// Event type constants
const (
	EventTypeDamageRecorded       = "inventory.damage.recorded"
	EventTypeReturnOrderRequested = "inventory.return_order.requested"
)

// DamageRecordedEvent is raised when damage is recorded by receiving, stock-take or a serial report
type DamageRecordedEvent struct {
	shared.BaseDomainEvent
	DamageRecordID int64           `json:"damage_record_id"`
	ProductID      int64           `json:"product_id"`
	PartnerID      *int64          `json:"partner_id,omitempty"`
	LotID          *int64          `json:"lot_id,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	Reason         string          `json:"reason,omitempty"`
	SourceType     DamageSource    `json:"source_type"`
	SourceID       int64           `json:"source_id"`
}

// NewDamageRecordedEvent creates a DamageRecordedEvent from a stored record
func NewDamageRecordedEvent(rec *DamageRecord) *DamageRecordedEvent {
	return &DamageRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeDamageRecorded, AggregateTypeDamageRecord, rec.ID),
		DamageRecordID:  rec.ID,
		ProductID:       rec.ProductID,
		PartnerID:       rec.PartnerID,
		LotID:           rec.LotID,
		Quantity:        rec.Quantity,
		Reason:          rec.Reason,
		SourceType:      rec.SourceType,
		SourceID:        rec.SourceID,
	}
}

// EventType returns the event type name
func (e *DamageRecordedEvent) EventType() string {
	return EventTypeDamageRecorded
}

// ReturnOrderRequestedEvent is raised when the damage accumulated for a
// (product, partner) pair crosses the configured threshold
type ReturnOrderRequestedEvent struct {
	shared.BaseDomainEvent
	ProductID int64           `json:"product_id"`
	PartnerID int64           `json:"partner_id"`
	Quantity  decimal.Decimal `json:"quantity"`
	Threshold decimal.Decimal `json:"threshold"`
}

// NewReturnOrderRequestedEvent creates a ReturnOrderRequestedEvent
func NewReturnOrderRequestedEvent(pending *PendingDamage, quantity, threshold decimal.Decimal) *ReturnOrderRequestedEvent {
	return &ReturnOrderRequestedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeReturnOrderRequested, AggregateTypePendingDamage, pending.ID),
		ProductID:       pending.ProductID,
		PartnerID:       pending.PartnerID,
		Quantity:        quantity,
		Threshold:       threshold,
	}
}

// EventType returns the event type name
func (e *ReturnOrderRequestedEvent) EventType() string {
	return EventTypeReturnOrderRequested
}
