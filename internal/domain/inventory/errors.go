package inventory

import (
	"fmt"

	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/shopspring/decimal"
)

// Error codes carried by the typed inventory errors
const (
	CodeInsufficientStock    = "INSUFFICIENT_STOCK"
	CodeInvalidQuantity      = "INVALID_QUANTITY"
	CodeSerialNotAvailable   = "SERIAL_NOT_AVAILABLE"
	CodeInvalidState         = "INVALID_STATE"
	CodeConsistencyViolation = "CONSISTENCY_VIOLATION"
)

// InsufficientStockError is returned when the lots of a product cannot cover a request.
// Nothing has been mutated when it is returned.
type InsufficientStockError struct {
	ProductID int64
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %s, available %s",
		e.ProductID, e.Requested.String(), e.Available.String())
}

// Unwrap exposes the error code to errors.As / errors.Is
func (e *InsufficientStockError) Unwrap() error {
	return shared.NewDomainError(CodeInsufficientStock, e.Error())
}

// Shortfall returns how much is missing to satisfy the request
func (e *InsufficientStockError) Shortfall() decimal.Decimal {
	return e.Requested.Sub(e.Available)
}

// InvalidQuantityError reports a negative or inconsistent quantity
type InvalidQuantityError struct {
	Field  string
	Value  decimal.Decimal
	Reason string
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("invalid %s %s: %s", e.Field, e.Value.String(), e.Reason)
}

func (e *InvalidQuantityError) Unwrap() error {
	return shared.NewDomainError(CodeInvalidQuantity, e.Error())
}

// NewInvalidQuantityError creates an InvalidQuantityError
func NewInvalidQuantityError(field string, value decimal.Decimal, reason string) *InvalidQuantityError {
	return &InvalidQuantityError{Field: field, Value: value, Reason: reason}
}

// SerialNotAvailableError reports a serial that cannot be used for the requested operation
type SerialNotAvailableError struct {
	SerialNumber string
	Reason       string
}

func (e *SerialNotAvailableError) Error() string {
	return fmt.Sprintf("serial %q not available: %s", e.SerialNumber, e.Reason)
}

func (e *SerialNotAvailableError) Unwrap() error {
	return shared.NewDomainError(CodeSerialNotAvailable, e.Error())
}

// InvalidStateError reports an operation attempted in the wrong lifecycle state
type InvalidStateError struct {
	Entity string
	ID     int64
	State  string
	Action string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s %s %d in state %s", e.Action, e.Entity, e.ID, e.State)
}

func (e *InvalidStateError) Unwrap() error {
	return shared.NewDomainError(CodeInvalidState, e.Error())
}

// ConsistencyViolationError signals that stored state broke an inventory invariant.
// It always indicates a bug and must abort the surrounding transaction.
type ConsistencyViolationError struct {
	ProductID int64
	Check     string
	Expected  decimal.Decimal
	Actual    decimal.Decimal
}

func (e *ConsistencyViolationError) Error() string {
	return fmt.Sprintf("consistency violation on product %d (%s): expected %s, got %s",
		e.ProductID, e.Check, e.Expected.String(), e.Actual.String())
}

func (e *ConsistencyViolationError) Unwrap() error {
	return shared.NewDomainError(CodeConsistencyViolation, e.Error())
}
