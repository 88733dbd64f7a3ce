package inventory

import (
	"strings"
	"time"

	"github.com/erp/warehouse/internal/domain/shared"
)

// SerialStatus is the lifecycle state of a serial number
type SerialStatus string

const (
	SerialStatusInStock SerialStatus = "IN_STOCK"
	SerialStatusPicked  SerialStatus = "PICKED"
	SerialStatusDamaged SerialStatus = "DAMAGED"
	SerialStatusLost    SerialStatus = "LOST"
)

// IsValid checks if the status is valid
func (s SerialStatus) IsValid() bool {
	switch s {
	case SerialStatusInStock, SerialStatusPicked, SerialStatusDamaged, SerialStatusLost:
		return true
	}
	return false
}

// IsTerminal reports whether no further transition is allowed
func (s SerialStatus) IsTerminal() bool {
	return s == SerialStatusDamaged || s == SerialStatusLost
}

// Serial is a unique per-unit identifier bound to exactly one lot
type Serial struct {
	shared.BaseEntity
	SerialNumber    string
	ProductID       int64
	LotID           int64
	PickingDetailID *int64
	Status          SerialStatus
	PickedAt        *time.Time
}

// NewSerial registers a serial number for a unit of the given lot
func NewSerial(serialNumber string, lot *Lot) (*Serial, error) {
	serialNumber = strings.TrimSpace(serialNumber)
	if serialNumber == "" {
		return nil, shared.NewDomainError("INVALID_SERIAL", "Serial number cannot be empty")
	}
	if len(serialNumber) > 100 {
		return nil, shared.NewDomainError("INVALID_SERIAL", "Serial number cannot exceed 100 characters")
	}
	if lot == nil || lot.ID == 0 {
		return nil, shared.NewDomainError("INVALID_LOT", "Serial must be bound to a stored lot")
	}
	return &Serial{
		BaseEntity:   shared.NewBaseEntity(),
		SerialNumber: serialNumber,
		ProductID:    lot.ProductID,
		LotID:        lot.ID,
		Status:       SerialStatusInStock,
	}, nil
}

// Pick binds the serial to an outbound detail
func (s *Serial) Pick(pickingDetailID int64, at time.Time) error {
	if s.Status != SerialStatusInStock {
		return &SerialNotAvailableError{SerialNumber: s.SerialNumber, Reason: "status is " + string(s.Status)}
	}
	at = at.UTC()
	s.Status = SerialStatusPicked
	s.PickingDetailID = &pickingDetailID
	s.PickedAt = &at
	s.Touch(at)
	return nil
}

// Release returns a picked serial to stock and clears its outbound binding
func (s *Serial) Release() error {
	if s.Status != SerialStatusPicked {
		return &InvalidStateError{Entity: "serial", ID: s.ID, State: string(s.Status), Action: "release"}
	}
	s.Status = SerialStatusInStock
	s.PickingDetailID = nil
	s.PickedAt = nil
	s.Touch(time.Now().UTC())
	return nil
}

// MarkIssue moves the serial into a terminal Damaged or Lost state
func (s *Serial) MarkIssue(status SerialStatus) error {
	if status != SerialStatusDamaged && status != SerialStatusLost {
		return shared.NewDomainError("INVALID_STATUS", "Serial issue must be DAMAGED or LOST")
	}
	if s.Status.IsTerminal() {
		return &SerialNotAvailableError{SerialNumber: s.SerialNumber, Reason: "status is " + string(s.Status)}
	}
	s.Status = status
	s.Touch(time.Now().UTC())
	return nil
}
