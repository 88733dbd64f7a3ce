package inventory

import (
	"time"

	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// ReceivingStatus is the lifecycle state of a receiving document
type ReceivingStatus string

const (
	ReceivingStatusPending   ReceivingStatus = "PENDING"
	ReceivingStatusCompleted ReceivingStatus = "COMPLETED"
)

// ReceivingDetailStatus is the lifecycle state of one receiving line
type ReceivingDetailStatus string

const (
	ReceivingDetailProvisional ReceivingDetailStatus = "PROVISIONAL"
	ReceivingDetailFinalized   ReceivingDetailStatus = "FINALIZED"
)

// Receiving is an inbound document from a supplier
type Receiving struct {
	shared.BaseAggregateRoot
	PartnerID   int64
	Status      ReceivingStatus
	Note        string
	CreatedBy   string
	CompletedAt *time.Time
	Details     []ReceivingDetail
}

// ReceivingDetail is one expected product line of a receiving
type ReceivingDetail struct {
	shared.BaseEntity
	ReceivingID         int64
	ProductID           int64
	OrderedQuantity     decimal.Decimal
	ProvisionalQuantity *decimal.Decimal
	AcceptedQuantity    decimal.Decimal
	DamageQuantity      decimal.Decimal
	DamageReason        string
	UnitPrice           decimal.Decimal
	Status              ReceivingDetailStatus
	LotID               *int64
	FinalizedAt         *time.Time
}

// ReceivingLine is the input for one receiving detail
type ReceivingLine struct {
	ProductID       int64
	OrderedQuantity decimal.Decimal
	UnitPrice       decimal.Decimal
}

// NewReceiving creates a pending receiving with provisional details
func NewReceiving(partnerID int64, note, createdBy string, lines []ReceivingLine) (*Receiving, error) {
	if partnerID <= 0 {
		return nil, shared.NewDomainError("INVALID_PARTNER", "Partner ID must be positive")
	}
	if len(lines) == 0 {
		return nil, shared.NewDomainError("INVALID_LINES", "Receiving requires at least one line")
	}

	r := &Receiving{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PartnerID:         partnerID,
		Status:            ReceivingStatusPending,
		Note:              note,
		CreatedBy:         createdBy,
		Details:           make([]ReceivingDetail, 0, len(lines)),
	}
	for _, line := range lines {
		if line.ProductID <= 0 {
			return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID must be positive")
		}
		if !line.OrderedQuantity.IsPositive() {
			return nil, NewInvalidQuantityError("ordered quantity", line.OrderedQuantity, "must be positive")
		}
		if line.UnitPrice.IsNegative() {
			return nil, NewInvalidQuantityError("unit price", line.UnitPrice, "cannot be negative")
		}
		r.Details = append(r.Details, ReceivingDetail{
			BaseEntity:       shared.NewBaseEntity(),
			ProductID:        line.ProductID,
			OrderedQuantity:  line.OrderedQuantity,
			AcceptedQuantity: decimal.Zero,
			DamageQuantity:   decimal.Zero,
			UnitPrice:        line.UnitPrice,
			Status:           ReceivingDetailProvisional,
		})
	}
	return r, nil
}

// Detail returns the detail with the given id
func (r *Receiving) Detail(detailID int64) (*ReceivingDetail, error) {
	for i := range r.Details {
		if r.Details[i].ID == detailID {
			return &r.Details[i], nil
		}
	}
	return nil, shared.ErrNotFound
}

// RefreshStatus completes the receiving once every detail is finalized
func (r *Receiving) RefreshStatus(at time.Time) {
	if r.Status == ReceivingStatusCompleted {
		return
	}
	for _, d := range r.Details {
		if d.Status != ReceivingDetailFinalized {
			return
		}
	}
	at = at.UTC()
	r.Status = ReceivingStatusCompleted
	r.CompletedAt = &at
	r.Touch(at)
}

// RecordProvisional stores a preliminary count; it has no stock effect
func (d *ReceivingDetail) RecordProvisional(quantity decimal.Decimal) error {
	if d.Status != ReceivingDetailProvisional {
		return &InvalidStateError{Entity: "receiving detail", ID: d.ID, State: string(d.Status), Action: "record provisional quantity of"}
	}
	if quantity.IsNegative() {
		return NewInvalidQuantityError("provisional quantity", quantity, "cannot be negative")
	}
	d.ProvisionalQuantity = &quantity
	d.Touch(time.Now().UTC())
	return nil
}

// Finalize confirms the accepted and damaged quantities of the detail.
// When enforceOrdered is set, accepted + damage may not exceed the ordered quantity.
func (d *ReceivingDetail) Finalize(accepted, damage decimal.Decimal, reason string, enforceOrdered bool, at time.Time) error {
	if d.Status != ReceivingDetailProvisional {
		return &InvalidStateError{Entity: "receiving detail", ID: d.ID, State: string(d.Status), Action: "finalize"}
	}
	if accepted.IsNegative() {
		return NewInvalidQuantityError("accepted quantity", accepted, "cannot be negative")
	}
	if damage.IsNegative() {
		return NewInvalidQuantityError("damage quantity", damage, "cannot be negative")
	}
	if accepted.IsZero() && damage.IsZero() {
		return NewInvalidQuantityError("accepted quantity", accepted, "accepted and damage cannot both be zero")
	}
	if enforceOrdered && accepted.Add(damage).GreaterThan(d.OrderedQuantity) {
		return NewInvalidQuantityError("accepted + damage", accepted.Add(damage), "exceeds ordered quantity "+d.OrderedQuantity.String())
	}

	at = at.UTC()
	d.AcceptedQuantity = accepted
	d.DamageQuantity = damage
	d.DamageReason = reason
	d.Status = ReceivingDetailFinalized
	d.FinalizedAt = &at
	d.Touch(at)
	return nil
}

// AttachLot records the lot created from the accepted quantity
func (d *ReceivingDetail) AttachLot(lotID int64) {
	d.LotID = &lotID
}
