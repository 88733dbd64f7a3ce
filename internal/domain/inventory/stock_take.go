package inventory

import (
	"fmt"
	"time"

	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// StockTakeStatus is the lifecycle state of a stock-take
type StockTakeStatus string

const (
	StockTakeStatusDraft     StockTakeStatus = "DRAFT"
	StockTakeStatusPending   StockTakeStatus = "PENDING"
	StockTakeStatusApproved  StockTakeStatus = "APPROVED"
	StockTakeStatusCompleted StockTakeStatus = "COMPLETED"
	StockTakeStatusCancelled StockTakeStatus = "CANCELLED"
)

// IsTerminal reports whether the stock-take can no longer change
func (s StockTakeStatus) IsTerminal() bool {
	return s == StockTakeStatusCompleted || s == StockTakeStatusCancelled
}

// StockTake reconciles counted quantities with the system balance
type StockTake struct {
	shared.BaseAggregateRoot
	Status      StockTakeStatus
	Note        string
	CreatedBy   string
	SubmittedAt *time.Time
	ReviewedBy  string
	ReviewNote  string
	ReviewedAt  *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	Details     []StockTakeDetail
}

// StockTakeDetail is one counted product.
// SerialNumbers lists the new serials of a surplus on a serial-tracked product.
type StockTakeDetail struct {
	shared.BaseEntity
	StockTakeID    int64
	ProductID      int64
	SystemQuantity decimal.Decimal
	ActualQuantity decimal.Decimal
	DamageQuantity decimal.Decimal
	Variance       decimal.Decimal
	SerialNumbers  []string
}

// StockTakeLine is the input for one counted product
type StockTakeLine struct {
	ProductID      int64
	ActualQuantity decimal.Decimal
	DamageQuantity decimal.Decimal
	SerialNumbers  []string
}

// NewStockTake creates a draft stock-take
func NewStockTake(note, createdBy string, lines []StockTakeLine) (*StockTake, error) {
	if len(lines) == 0 {
		return nil, shared.NewDomainError("INVALID_LINES", "Stock-take requires at least one line")
	}
	seen := make(map[int64]bool, len(lines))
	st := &StockTake{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Status:            StockTakeStatusDraft,
		Note:              note,
		CreatedBy:         createdBy,
		Details:           make([]StockTakeDetail, 0, len(lines)),
	}
	for _, line := range lines {
		if line.ProductID <= 0 {
			return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID must be positive")
		}
		if seen[line.ProductID] {
			return nil, shared.NewDomainError("DUPLICATE_PRODUCT", "A product can be counted only once per stock-take")
		}
		seen[line.ProductID] = true
		if line.ActualQuantity.IsNegative() {
			return nil, NewInvalidQuantityError("actual quantity", line.ActualQuantity, "cannot be negative")
		}
		if line.DamageQuantity.IsNegative() {
			return nil, NewInvalidQuantityError("damage quantity", line.DamageQuantity, "cannot be negative")
		}
		st.Details = append(st.Details, StockTakeDetail{
			BaseEntity:     shared.NewBaseEntity(),
			ProductID:      line.ProductID,
			SystemQuantity: decimal.Zero,
			ActualQuantity: line.ActualQuantity,
			DamageQuantity: line.DamageQuantity,
			Variance:       decimal.Zero,
			SerialNumbers:  line.SerialNumbers,
		})
	}
	return st, nil
}

func (s *StockTake) stateError(action string) error {
	return &InvalidStateError{Entity: "stock-take", ID: s.ID, State: string(s.Status), Action: action}
}

// ProductIDs returns the counted products
func (s *StockTake) ProductIDs() []int64 {
	ids := make([]int64, 0, len(s.Details))
	for _, d := range s.Details {
		ids = append(ids, d.ProductID)
	}
	return ids
}

// Submit snapshots the system quantity of every counted product and computes variances.
// serialTracked tells which products are counted in whole units and need serial numbers for a surplus.
func (s *StockTake) Submit(systemQuantities map[int64]decimal.Decimal, serialTracked map[int64]bool, at time.Time) error {
	if s.Status != StockTakeStatusDraft {
		return s.stateError("submit")
	}
	for i := range s.Details {
		d := &s.Details[i]
		system := systemQuantities[d.ProductID]
		variance := d.ActualQuantity.Sub(system)

		shortage := decimal.Max(decimal.Zero, variance.Neg())
		if d.DamageQuantity.GreaterThan(shortage) {
			return NewInvalidQuantityError("damage quantity", d.DamageQuantity, "exceeds counted shortage "+shortage.String())
		}
		if serialTracked[d.ProductID] {
			if !d.ActualQuantity.IsInteger() {
				return NewInvalidQuantityError("actual quantity", d.ActualQuantity, "serial-tracked quantities must be whole units")
			}
			if !d.DamageQuantity.IsInteger() {
				return NewInvalidQuantityError("damage quantity", d.DamageQuantity, "serial-tracked quantities must be whole units")
			}
			if variance.IsPositive() {
				if !variance.IsInteger() || int64(len(d.SerialNumbers)) != variance.IntPart() {
					return NewInvalidQuantityError("serial count", decimal.NewFromInt(int64(len(d.SerialNumbers))), "surplus of "+variance.String()+" requires as many new serial numbers")
				}
			} else if len(d.SerialNumbers) > 0 {
				return NewInvalidQuantityError("serial count", decimal.NewFromInt(int64(len(d.SerialNumbers))), "serial numbers are only accepted for a surplus")
			}
		}

		d.SystemQuantity = system
		d.Variance = variance
		d.Touch(at.UTC())
	}

	at = at.UTC()
	s.Status = StockTakeStatusPending
	s.SubmittedAt = &at
	s.Touch(at)
	return nil
}

// CheckSnapshot rejects applying the counted variances when stock of a counted
// product moved after submission. current holds the present lot totals.
func (s *StockTake) CheckSnapshot(current map[int64]decimal.Decimal) error {
	for _, d := range s.Details {
		if now := current[d.ProductID]; !now.Equal(d.SystemQuantity) {
			return &InvalidStateError{
				Entity: "stock-take",
				ID:     s.ID,
				State:  fmt.Sprintf("%s (product %d changed from %s to %s since submit)", s.Status, d.ProductID, d.SystemQuantity.String(), now.String()),
				Action: "complete",
			}
		}
	}
	return nil
}

// Review approves or rejects a submitted stock-take; rejecting cancels it
func (s *StockTake) Review(approve bool, reviewer, note string, at time.Time) error {
	if s.Status != StockTakeStatusPending {
		return s.stateError("review")
	}
	at = at.UTC()
	s.ReviewedBy = reviewer
	s.ReviewNote = note
	s.ReviewedAt = &at
	if approve {
		s.Status = StockTakeStatusApproved
	} else {
		s.Status = StockTakeStatusCancelled
		s.CancelledAt = &at
	}
	s.Touch(at)
	return nil
}

// Complete marks the stock-take as applied. Without mandatory review a
// pending stock-take can be completed directly.
func (s *StockTake) Complete(requiresReview bool, at time.Time) error {
	switch {
	case s.Status == StockTakeStatusApproved:
	case s.Status == StockTakeStatusPending && !requiresReview:
	default:
		return s.stateError("complete")
	}
	at = at.UTC()
	s.Status = StockTakeStatusCompleted
	s.CompletedAt = &at
	s.Touch(at)
	return nil
}

// Cancel cancels a stock-take that was not applied yet
func (s *StockTake) Cancel(at time.Time) error {
	if s.Status.IsTerminal() {
		return s.stateError("cancel")
	}
	at = at.UTC()
	s.Status = StockTakeStatusCancelled
	s.CancelledAt = &at
	s.Touch(at)
	return nil
}

// Shortage returns the damaged and lost parts of a negative variance
func (d *StockTakeDetail) Shortage() (damaged, lost decimal.Decimal) {
	if !d.Variance.IsNegative() {
		return decimal.Zero, decimal.Zero
	}
	damaged = d.DamageQuantity
	lost = d.Variance.Neg().Sub(damaged)
	return damaged, lost
}

// Surplus returns the positive part of the variance
func (d *StockTakeDetail) Surplus() decimal.Decimal {
	return decimal.Max(decimal.Zero, d.Variance)
}
