package inventory

import (
	"time"

	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// PickingStatus is the lifecycle state of a picking order
type PickingStatus string

const (
	PickingStatusPending   PickingStatus = "PENDING"
	PickingStatusCompleted PickingStatus = "COMPLETED"
	PickingStatusCancelled PickingStatus = "CANCELLED"
)

// PickingPurpose tells why stock leaves the warehouse
type PickingPurpose string

const (
	PickingPurposeOutbound         PickingPurpose = "OUTBOUND"
	PickingPurposeReturnToSupplier PickingPurpose = "RETURN_TO_SUPPLIER"
)

// IsValid checks if the purpose is valid
func (p PickingPurpose) IsValid() bool {
	return p == PickingPurposeOutbound || p == PickingPurposeReturnToSupplier
}

// PickingOrder is an outbound document made of picking details
type PickingOrder struct {
	shared.BaseAggregateRoot
	PartnerID   *int64
	Purpose     PickingPurpose
	Status      PickingStatus
	Note        string
	CreatedBy   string
	CompletedAt *time.Time
	CancelledAt *time.Time
	Details     []PickingDetail
}

// PickingDetail is one outbound line. Allocations keep the lots it consumed
// so that a reversal restores exactly those lots.
type PickingDetail struct {
	shared.BaseEntity
	PickingOrderID int64
	ProductID      int64
	QuantityPicked decimal.Decimal
	UnitPrice      decimal.Decimal
	Allocations    []PickingAllocation
	SerialNumbers  []string
}

// PickingAllocation records the quantity a detail took from one lot and the
// OUT ledger entry that recorded it
type PickingAllocation struct {
	ID              int64
	PickingDetailID int64
	LotID           int64
	Quantity        decimal.Decimal
	UnitPrice       decimal.Decimal
	LedgerEntryID   int64
}

// NewPickingOrder creates a pending picking order
func NewPickingOrder(partnerID *int64, purpose PickingPurpose, note, createdBy string) (*PickingOrder, error) {
	if purpose == "" {
		purpose = PickingPurposeOutbound
	}
	if !purpose.IsValid() {
		return nil, shared.NewDomainError("INVALID_PURPOSE", "Unknown picking purpose "+string(purpose))
	}
	if purpose == PickingPurposeReturnToSupplier && partnerID == nil {
		return nil, shared.NewDomainError("INVALID_PARTNER", "A return to supplier requires a partner")
	}
	if len(note) > 500 {
		return nil, shared.NewDomainError("INVALID_NOTE", "Note cannot exceed 500 characters")
	}
	return &PickingOrder{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		PartnerID:         partnerID,
		Purpose:           purpose,
		Status:            PickingStatusPending,
		Note:              note,
		CreatedBy:         createdBy,
		Details:           make([]PickingDetail, 0),
	}, nil
}

// EnsureEditable returns an InvalidStateError unless details can still change
func (o *PickingOrder) EnsureEditable(action string) error {
	if o.Status != PickingStatusPending {
		return &InvalidStateError{Entity: "picking order", ID: o.ID, State: string(o.Status), Action: action}
	}
	return nil
}

// Detail returns the detail with the given id
func (o *PickingOrder) Detail(detailID int64) (*PickingDetail, error) {
	for i := range o.Details {
		if o.Details[i].ID == detailID {
			return &o.Details[i], nil
		}
	}
	return nil, shared.ErrNotFound
}

// Complete makes the order terminal; its ledger entries can no longer be reversed
func (o *PickingOrder) Complete(at time.Time) error {
	if err := o.EnsureEditable("complete"); err != nil {
		return err
	}
	if len(o.Details) == 0 {
		return &InvalidStateError{Entity: "picking order", ID: o.ID, State: "EMPTY", Action: "complete"}
	}
	at = at.UTC()
	o.Status = PickingStatusCompleted
	o.CompletedAt = &at
	o.Touch(at)
	return nil
}

// Cancel makes the order terminal. The caller reverses every detail before saving.
func (o *PickingOrder) Cancel(at time.Time) error {
	if err := o.EnsureEditable("cancel"); err != nil {
		return err
	}
	at = at.UTC()
	o.Status = PickingStatusCancelled
	o.CancelledAt = &at
	o.Touch(at)
	return nil
}

// TotalAmount returns sum(quantity * unit price) over the details
func (o *PickingOrder) TotalAmount() decimal.Decimal {
	total := decimal.Zero
	for _, d := range o.Details {
		total = total.Add(d.QuantityPicked.Mul(d.UnitPrice))
	}
	return total
}

// NewPickingDetail builds a detail from an allocation plan
func NewPickingDetail(orderID int64, plan *AllocationPlan) *PickingDetail {
	detail := &PickingDetail{
		BaseEntity:     shared.NewBaseEntity(),
		PickingOrderID: orderID,
		ProductID:      plan.ProductID,
		Allocations:    make([]PickingAllocation, 0, len(plan.Lines)),
	}
	detail.ApplyPlan(plan)
	return detail
}

// ApplyPlan replaces the detail quantity, price and allocations with a new plan
func (d *PickingDetail) ApplyPlan(plan *AllocationPlan) {
	d.QuantityPicked = plan.Requested
	d.UnitPrice = plan.UnitPrice
	d.Allocations = make([]PickingAllocation, 0, len(plan.Lines))
	for _, line := range plan.Lines {
		d.Allocations = append(d.Allocations, PickingAllocation{
			PickingDetailID: d.ID,
			LotID:           line.LotID,
			Quantity:        line.Quantity,
			UnitPrice:       line.UnitPrice,
		})
	}
	d.Touch(time.Now().UTC())
}
