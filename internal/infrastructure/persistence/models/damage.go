package models

import (
	"time"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// DamageRecordModel is the persistence model for a damage record
type DamageRecordModel struct {
	ID           int64                  `gorm:"primaryKey;autoIncrement"`
	ProductID    int64                  `gorm:"not null;index"`
	PartnerID    *int64                 `gorm:"index"`
	LotID        *int64                 `gorm:"index"`
	SerialNumber string                 `gorm:"type:varchar(100)"`
	Quantity     decimal.Decimal        `gorm:"type:decimal(18,4);not null"`
	Reason       string                 `gorm:"type:varchar(500)"`
	SourceType   inventory.DamageSource `gorm:"type:varchar(20);not null;index:idx_damage_source,priority:1"`
	SourceID     int64                  `gorm:"not null;index:idx_damage_source,priority:2"`
	RecordedBy   string                 `gorm:"type:varchar(100)"`
	RecordedAt   time.Time              `gorm:"not null"`
}

// TableName returns the table name for GORM
func (DamageRecordModel) TableName() string {
	return "damage_records"
}

// ToDomain converts the persistence model to a domain DamageRecord
func (m *DamageRecordModel) ToDomain() inventory.DamageRecord {
	return inventory.DamageRecord{
		ID:           m.ID,
		ProductID:    m.ProductID,
		PartnerID:    m.PartnerID,
		LotID:        m.LotID,
		SerialNumber: m.SerialNumber,
		Quantity:     m.Quantity,
		Reason:       m.Reason,
		SourceType:   m.SourceType,
		SourceID:     m.SourceID,
		RecordedBy:   m.RecordedBy,
		RecordedAt:   m.RecordedAt,
	}
}

// FromDomain populates the persistence model from a domain DamageRecord
func (m *DamageRecordModel) FromDomain(r *inventory.DamageRecord) {
	m.ID = r.ID
	m.ProductID = r.ProductID
	m.PartnerID = r.PartnerID
	m.LotID = r.LotID
	m.SerialNumber = r.SerialNumber
	m.Quantity = r.Quantity
	m.Reason = r.Reason
	m.SourceType = r.SourceType
	m.SourceID = r.SourceID
	m.RecordedBy = r.RecordedBy
	m.RecordedAt = r.RecordedAt
}

// PendingDamageModel is the persistence model for a damage accumulator
type PendingDamageModel struct {
	ID        int64           `gorm:"primaryKey;autoIncrement"`
	ProductID int64           `gorm:"not null;uniqueIndex:idx_pending_damage_pair,priority:1"`
	PartnerID int64           `gorm:"not null;uniqueIndex:idx_pending_damage_pair,priority:2"`
	Quantity  decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Version   int             `gorm:"not null;default:1"`
	UpdatedAt time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PendingDamageModel) TableName() string {
	return "pending_damages"
}

// ToDomain converts the persistence model to a domain PendingDamage
func (m *PendingDamageModel) ToDomain() *inventory.PendingDamage {
	return &inventory.PendingDamage{
		ID:        m.ID,
		ProductID: m.ProductID,
		PartnerID: m.PartnerID,
		Quantity:  m.Quantity,
		Version:   m.Version,
		UpdatedAt: m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain PendingDamage
func (m *PendingDamageModel) FromDomain(p *inventory.PendingDamage) {
	m.ID = p.ID
	m.ProductID = p.ProductID
	m.PartnerID = p.PartnerID
	m.Quantity = p.Quantity
	m.Version = p.Version
	m.UpdatedAt = p.UpdatedAt
}
