package inventory

import (
	"strings"
	"time"

	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// DamageSource tells which workflow recorded a damage
type DamageSource string

const (
	DamageSourceReceiving    DamageSource = "RECEIVING"
	DamageSourceStockTake    DamageSource = "STOCK_TAKE"
	DamageSourceSerialReport DamageSource = "SERIAL_REPORT"
)

// DamageRecord is a damaged quantity reported to the damage subsystem
type DamageRecord struct {
	ID           int64
	ProductID    int64
	PartnerID    *int64
	LotID        *int64
	SerialNumber string
	Quantity     decimal.Decimal
	Reason       string
	SourceType   DamageSource
	SourceID     int64
	RecordedBy   string
	RecordedAt   time.Time
}

// NewDamageRecord validates and creates a damage record
func NewDamageRecord(productID int64, partnerID, lotID *int64, quantity decimal.Decimal, reason string, source DamageSource, sourceID int64, recordedBy string) (*DamageRecord, error) {
	if productID <= 0 {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID must be positive")
	}
	if !quantity.IsPositive() {
		return nil, NewInvalidQuantityError("damage quantity", quantity, "must be positive")
	}
	switch source {
	case DamageSourceReceiving, DamageSourceStockTake, DamageSourceSerialReport:
	default:
		return nil, shared.NewDomainError("INVALID_SOURCE", "Unknown damage source "+string(source))
	}
	return &DamageRecord{
		ProductID:  productID,
		PartnerID:  partnerID,
		LotID:      lotID,
		Quantity:   quantity,
		Reason:     strings.TrimSpace(reason),
		SourceType: source,
		SourceID:   sourceID,
		RecordedBy: recordedBy,
		RecordedAt: time.Now().UTC(),
	}, nil
}

// PendingDamage accumulates damaged quantities of one product from one partner
// until they are worth a return-to-supplier order
type PendingDamage struct {
	ID        int64
	ProductID int64
	PartnerID int64
	Quantity  decimal.Decimal
	Version   int
	UpdatedAt time.Time
}

// NewPendingDamage creates an empty accumulator
func NewPendingDamage(productID, partnerID int64) *PendingDamage {
	return &PendingDamage{
		ProductID: productID,
		PartnerID: partnerID,
		Quantity:  decimal.Zero,
		Version:   1,
		UpdatedAt: time.Now().UTC(),
	}
}

// Accumulate adds a damaged quantity. When the total reaches the threshold the
// whole accumulated quantity is returned for a return order and the accumulator resets.
func (p *PendingDamage) Accumulate(quantity, threshold decimal.Decimal) (returnQuantity decimal.Decimal, triggered bool) {
	p.Quantity = p.Quantity.Add(quantity)
	p.UpdatedAt = time.Now().UTC()
	if threshold.IsPositive() && p.Quantity.GreaterThanOrEqual(threshold) {
		returnQuantity = p.Quantity
		p.Quantity = decimal.Zero
		return returnQuantity, true
	}
	return decimal.Zero, false
}
