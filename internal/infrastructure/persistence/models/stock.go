package models

import (
	"fmt"
	"time"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// LotModel is the persistence model for a lot
type LotModel struct {
	BaseModel
	ProductID         int64           `gorm:"not null;index:idx_lot_product_fifo,priority:1"`
	SourceDetailID    *int64          `gorm:"index"`
	QuantityIn        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QuantityRemaining decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	QuantityDamaged   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	QuantityLost      decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Unit              string          `gorm:"type:varchar(20);not null"`
	UnitPrice         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ReceivedDate      time.Time       `gorm:"not null;index:idx_lot_product_fifo,priority:2"`
	Version           int             `gorm:"not null;default:1"`
}

// TableName returns the table name for GORM
func (LotModel) TableName() string {
	return "lots"
}

// ToDomain converts the persistence model to a domain Lot
func (m *LotModel) ToDomain() *inventory.Lot {
	return &inventory.Lot{
		BaseEntity:        m.BaseModel.ToDomain(),
		ProductID:         m.ProductID,
		SourceDetailID:    m.SourceDetailID,
		QuantityIn:        m.QuantityIn,
		QuantityRemaining: m.QuantityRemaining,
		QuantityDamaged:   m.QuantityDamaged,
		QuantityLost:      m.QuantityLost,
		Unit:              m.Unit,
		UnitPrice:         m.UnitPrice,
		ReceivedDate:      m.ReceivedDate,
		Version:           m.Version,
	}
}

// FromDomain populates the persistence model from a domain Lot
func (m *LotModel) FromDomain(l *inventory.Lot) {
	m.FromDomainBaseEntity(l.BaseEntity)
	m.ProductID = l.ProductID
	m.SourceDetailID = l.SourceDetailID
	m.QuantityIn = l.QuantityIn
	m.QuantityRemaining = l.QuantityRemaining
	m.QuantityDamaged = l.QuantityDamaged
	m.QuantityLost = l.QuantityLost
	m.Unit = l.Unit
	m.UnitPrice = l.UnitPrice
	m.ReceivedDate = l.ReceivedDate
	m.Version = l.Version
}

// LotModelFromDomain creates a new persistence model from a domain Lot
func LotModelFromDomain(l *inventory.Lot) *LotModel {
	m := &LotModel{}
	m.FromDomain(l)
	return m
}

// SerialModel is the persistence model for a serial number
type SerialModel struct {
	BaseModel
	SerialNumber    string                 `gorm:"type:varchar(100);not null;uniqueIndex:idx_serial_number"`
	ProductID       int64                  `gorm:"not null;index"`
	LotID           int64                  `gorm:"not null;index:idx_serial_lot_status,priority:1"`
	PickingDetailID *int64                 `gorm:"index"`
	Status          inventory.SerialStatus `gorm:"type:varchar(20);not null;index:idx_serial_lot_status,priority:2"`
	PickedAt        *time.Time
}

// TableName returns the table name for GORM
func (SerialModel) TableName() string {
	return "serials"
}

// ToDomain converts the persistence model to a domain Serial
func (m *SerialModel) ToDomain() *inventory.Serial {
	return &inventory.Serial{
		BaseEntity:      m.BaseModel.ToDomain(),
		SerialNumber:    m.SerialNumber,
		ProductID:       m.ProductID,
		LotID:           m.LotID,
		PickingDetailID: m.PickingDetailID,
		Status:          m.Status,
		PickedAt:        m.PickedAt,
	}
}

// FromDomain populates the persistence model from a domain Serial
func (m *SerialModel) FromDomain(s *inventory.Serial) {
	m.FromDomainBaseEntity(s.BaseEntity)
	m.SerialNumber = s.SerialNumber
	m.ProductID = s.ProductID
	m.LotID = s.LotID
	m.PickingDetailID = s.PickingDetailID
	m.Status = s.Status
	m.PickedAt = s.PickedAt
}

// SerialModelFromDomain creates a new persistence model from a domain Serial
func SerialModelFromDomain(s *inventory.Serial) *SerialModel {
	m := &SerialModel{}
	m.FromDomain(s)
	return m
}

// LedgerEntryModel is the persistence model for a ledger entry.
// Rows are only ever inserted.
type LedgerEntryModel struct {
	ID              int64                     `gorm:"primaryKey;autoIncrement"`
	ProductID       int64                     `gorm:"not null;uniqueIndex:idx_ledger_product_sequence,priority:1;index:idx_ledger_product_date,priority:1"`
	LotID           *int64                    `gorm:"index"`
	Sequence        int64                     `gorm:"not null;uniqueIndex:idx_ledger_product_sequence,priority:2"`
	TransactionDate time.Time                 `gorm:"not null;index:idx_ledger_product_date,priority:2"`
	Type            inventory.TransactionType `gorm:"type:varchar(10);not null"`
	QuantityChange  decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	BalanceAfter    decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	UnitPrice       decimal.Decimal           `gorm:"type:decimal(18,4);not null;default:0"`
	ReferenceKind   string                    `gorm:"type:varchar(20);not null"`
	ReferenceID     *int64                    `gorm:"index"`
	ReversalOf      *int64                    `gorm:"index"`
	UserID          string                    `gorm:"type:varchar(100)"`
	Note            string                    `gorm:"type:text"`
	CreatedAt       time.Time                 `gorm:"not null"`
}

// TableName returns the table name for GORM
func (LedgerEntryModel) TableName() string {
	return "ledger_entries"
}

// ToDomain converts the persistence model to a domain LedgerEntry
func (m *LedgerEntryModel) ToDomain() (inventory.LedgerEntry, error) {
	ref, err := inventory.ParseReference(m.ReferenceKind, m.ReferenceID)
	if err != nil {
		return inventory.LedgerEntry{}, fmt.Errorf("ledger entry %d: %w", m.ID, err)
	}
	return inventory.LedgerEntry{
		ID:              m.ID,
		ProductID:       m.ProductID,
		LotID:           m.LotID,
		Sequence:        m.Sequence,
		TransactionDate: m.TransactionDate,
		Type:            m.Type,
		QuantityChange:  m.QuantityChange,
		BalanceAfter:    m.BalanceAfter,
		UnitPrice:       m.UnitPrice,
		Reference:       ref,
		ReversalOf:      m.ReversalOf,
		UserID:          m.UserID,
		Note:            m.Note,
		CreatedAt:       m.CreatedAt,
	}, nil
}

// FromDomain populates the persistence model from a domain LedgerEntry
func (m *LedgerEntryModel) FromDomain(e *inventory.LedgerEntry) {
	m.ID = e.ID
	m.ProductID = e.ProductID
	m.LotID = e.LotID
	m.Sequence = e.Sequence
	m.TransactionDate = e.TransactionDate
	m.Type = e.Type
	m.QuantityChange = e.QuantityChange
	m.BalanceAfter = e.BalanceAfter
	m.UnitPrice = e.UnitPrice
	m.ReferenceKind = string(e.Reference.Kind())
	m.ReferenceID = nil
	if id, ok := e.Reference.ID(); ok {
		m.ReferenceID = &id
	}
	m.ReversalOf = e.ReversalOf
	m.UserID = e.UserID
	m.Note = e.Note
	m.CreatedAt = e.CreatedAt
}

// LedgerEntryModelFromDomain creates a new persistence model from a domain LedgerEntry
func LedgerEntryModelFromDomain(e *inventory.LedgerEntry) *LedgerEntryModel {
	m := &LedgerEntryModel{}
	m.FromDomain(e)
	return m
}

// LedgerEntriesToDomain converts a slice of models, failing on the first corrupt row
func LedgerEntriesToDomain(rows []LedgerEntryModel) ([]inventory.LedgerEntry, error) {
	entries := make([]inventory.LedgerEntry, 0, len(rows))
	for i := range rows {
		e, err := rows[i].ToDomain()
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}
