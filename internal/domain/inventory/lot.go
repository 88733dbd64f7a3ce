package inventory

import (
	"time"

	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// WriteOffKind tells where written-off lot units are accounted
type WriteOffKind string

const (
	WriteOffDamaged WriteOffKind = "DAMAGED"
	WriteOffLost    WriteOffKind = "LOST"
)

// Lot is one inbound batch of a product.
// QuantityRemaining stays within [0, QuantityIn] after every operation.
type Lot struct {
	shared.BaseEntity
	ProductID         int64
	SourceDetailID    *int64 // nil for surplus lots created by stock-takes
	QuantityIn        decimal.Decimal
	QuantityRemaining decimal.Decimal
	QuantityDamaged   decimal.Decimal
	QuantityLost      decimal.Decimal
	Unit              string
	UnitPrice         decimal.Decimal
	ReceivedDate      time.Time
	Version           int
}

// NewLot creates a lot holding the accepted quantity of a receiving detail
func NewLot(productID int64, sourceDetailID *int64, quantity, unitPrice decimal.Decimal, unit string, receivedAt time.Time) (*Lot, error) {
	if productID <= 0 {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID must be positive")
	}
	if !quantity.IsPositive() {
		return nil, NewInvalidQuantityError("lot quantity", quantity, "must be positive")
	}
	if unitPrice.IsNegative() {
		return nil, NewInvalidQuantityError("unit price", unitPrice, "cannot be negative")
	}

	base := shared.NewBaseEntity()
	return &Lot{
		BaseEntity:        base,
		ProductID:         productID,
		SourceDetailID:    sourceDetailID,
		QuantityIn:        quantity,
		QuantityRemaining: quantity,
		QuantityDamaged:   decimal.Zero,
		QuantityLost:      decimal.Zero,
		Unit:              unit,
		UnitPrice:         unitPrice,
		ReceivedDate:      receivedAt.UTC(),
		Version:           1,
	}, nil
}

// NewSurplusLot creates a synthetic lot absorbing a positive stock-take variance
func NewSurplusLot(productID int64, quantity, unitPrice decimal.Decimal, unit string, at time.Time) (*Lot, error) {
	return NewLot(productID, nil, quantity, unitPrice, unit, at)
}

// IsSurplus reports whether the lot was created by a stock-take rather than a receiving
func (l *Lot) IsSurplus() bool {
	return l.SourceDetailID == nil
}

// IsAvailable reports whether the lot still has units to allocate
func (l *Lot) IsAvailable() bool {
	return l.QuantityRemaining.IsPositive()
}

// Take removes quantity from the lot
func (l *Lot) Take(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return NewInvalidQuantityError("take quantity", quantity, "must be positive")
	}
	if quantity.GreaterThan(l.QuantityRemaining) {
		return &InsufficientStockError{ProductID: l.ProductID, Requested: quantity, Available: l.QuantityRemaining}
	}
	l.QuantityRemaining = l.QuantityRemaining.Sub(quantity)
	l.Touch(time.Now().UTC())
	return nil
}

// Restore puts previously taken quantity back into the lot
func (l *Lot) Restore(quantity decimal.Decimal) error {
	if !quantity.IsPositive() {
		return NewInvalidQuantityError("restore quantity", quantity, "must be positive")
	}
	restored := l.QuantityRemaining.Add(quantity)
	if restored.GreaterThan(l.QuantityIn) {
		return &ConsistencyViolationError{
			ProductID: l.ProductID,
			Check:     "lot restore exceeds quantity in",
			Expected:  l.QuantityIn,
			Actual:    restored,
		}
	}
	l.QuantityRemaining = restored
	l.Touch(time.Now().UTC())
	return nil
}

// WriteOff removes quantity from the lot and books it as damaged or lost
func (l *Lot) WriteOff(quantity decimal.Decimal, kind WriteOffKind) error {
	if err := l.Take(quantity); err != nil {
		return err
	}
	switch kind {
	case WriteOffDamaged:
		l.QuantityDamaged = l.QuantityDamaged.Add(quantity)
	default:
		l.QuantityLost = l.QuantityLost.Add(quantity)
	}
	return nil
}

// CheckInvariant verifies 0 <= remaining <= in
func (l *Lot) CheckInvariant() error {
	if l.QuantityRemaining.IsNegative() {
		return &ConsistencyViolationError{ProductID: l.ProductID, Check: "lot remaining below zero", Expected: decimal.Zero, Actual: l.QuantityRemaining}
	}
	if l.QuantityRemaining.GreaterThan(l.QuantityIn) {
		return &ConsistencyViolationError{ProductID: l.ProductID, Check: "lot remaining above quantity in", Expected: l.QuantityIn, Actual: l.QuantityRemaining}
	}
	return nil
}
