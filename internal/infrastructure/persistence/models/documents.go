package models

import (
	"time"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// ReceivingModel is the persistence model for the Receiving aggregate root
type ReceivingModel struct {
	AggregateModel
	PartnerID   int64                     `gorm:"not null;index"`
	Status      inventory.ReceivingStatus `gorm:"type:varchar(20);not null"`
	Note        string                    `gorm:"type:varchar(500)"`
	CreatedBy   string                    `gorm:"type:varchar(100)"`
	CompletedAt *time.Time
	Details     []ReceivingDetailModel `gorm:"foreignKey:ReceivingID;references:ID"`
}

// TableName returns the table name for GORM
func (ReceivingModel) TableName() string {
	return "receivings"
}

// ToDomain converts the persistence model to a domain Receiving
func (m *ReceivingModel) ToDomain() *inventory.Receiving {
	r := &inventory.Receiving{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		PartnerID:         m.PartnerID,
		Status:            m.Status,
		Note:              m.Note,
		CreatedBy:         m.CreatedBy,
		CompletedAt:       m.CompletedAt,
		Details:           make([]inventory.ReceivingDetail, len(m.Details)),
	}
	for i := range m.Details {
		r.Details[i] = *m.Details[i].ToDomain()
	}
	return r
}

// FromDomain populates the persistence model from a domain Receiving
func (m *ReceivingModel) FromDomain(r *inventory.Receiving) {
	m.FromDomainAggregateRoot(r.BaseAggregateRoot)
	m.PartnerID = r.PartnerID
	m.Status = r.Status
	m.Note = r.Note
	m.CreatedBy = r.CreatedBy
	m.CompletedAt = r.CompletedAt
	m.Details = make([]ReceivingDetailModel, len(r.Details))
	for i := range r.Details {
		m.Details[i].FromDomain(&r.Details[i])
	}
}

// ReceivingModelFromDomain creates a new persistence model from a domain Receiving
func ReceivingModelFromDomain(r *inventory.Receiving) *ReceivingModel {
	m := &ReceivingModel{}
	m.FromDomain(r)
	return m
}

// ReceivingDetailModel is the persistence model for a receiving line
type ReceivingDetailModel struct {
	BaseModel
	ReceivingID         int64                           `gorm:"not null;index"`
	ProductID           int64                           `gorm:"not null;index"`
	OrderedQuantity     decimal.Decimal                 `gorm:"type:decimal(18,4);not null"`
	ProvisionalQuantity *decimal.Decimal                `gorm:"type:decimal(18,4)"`
	AcceptedQuantity    decimal.Decimal                 `gorm:"type:decimal(18,4);not null;default:0"`
	DamageQuantity      decimal.Decimal                 `gorm:"type:decimal(18,4);not null;default:0"`
	DamageReason        string                          `gorm:"type:varchar(500)"`
	UnitPrice           decimal.Decimal                 `gorm:"type:decimal(18,4);not null;default:0"`
	Status              inventory.ReceivingDetailStatus `gorm:"type:varchar(20);not null"`
	LotID               *int64                          `gorm:"index"`
	FinalizedAt         *time.Time
}

// TableName returns the table name for GORM
func (ReceivingDetailModel) TableName() string {
	return "receiving_details"
}

// ToDomain converts the persistence model to a domain ReceivingDetail
func (m *ReceivingDetailModel) ToDomain() *inventory.ReceivingDetail {
	return &inventory.ReceivingDetail{
		BaseEntity:          m.BaseModel.ToDomain(),
		ReceivingID:         m.ReceivingID,
		ProductID:           m.ProductID,
		OrderedQuantity:     m.OrderedQuantity,
		ProvisionalQuantity: m.ProvisionalQuantity,
		AcceptedQuantity:    m.AcceptedQuantity,
		DamageQuantity:      m.DamageQuantity,
		DamageReason:        m.DamageReason,
		UnitPrice:           m.UnitPrice,
		Status:              m.Status,
		LotID:               m.LotID,
		FinalizedAt:         m.FinalizedAt,
	}
}

// FromDomain populates the persistence model from a domain ReceivingDetail
func (m *ReceivingDetailModel) FromDomain(d *inventory.ReceivingDetail) {
	m.FromDomainBaseEntity(d.BaseEntity)
	m.ReceivingID = d.ReceivingID
	m.ProductID = d.ProductID
	m.OrderedQuantity = d.OrderedQuantity
	m.ProvisionalQuantity = d.ProvisionalQuantity
	m.AcceptedQuantity = d.AcceptedQuantity
	m.DamageQuantity = d.DamageQuantity
	m.DamageReason = d.DamageReason
	m.UnitPrice = d.UnitPrice
	m.Status = d.Status
	m.LotID = d.LotID
	m.FinalizedAt = d.FinalizedAt
}

// PickingOrderModel is the persistence model for the PickingOrder aggregate root
type PickingOrderModel struct {
	AggregateModel
	PartnerID   *int64                   `gorm:"index"`
	Purpose     inventory.PickingPurpose `gorm:"type:varchar(30);not null"`
	Status      inventory.PickingStatus  `gorm:"type:varchar(20);not null"`
	Note        string                   `gorm:"type:varchar(500)"`
	CreatedBy   string                   `gorm:"type:varchar(100)"`
	CompletedAt *time.Time
	CancelledAt *time.Time
	Details     []PickingDetailModel `gorm:"foreignKey:PickingOrderID;references:ID"`
}

// TableName returns the table name for GORM
func (PickingOrderModel) TableName() string {
	return "picking_orders"
}

// ToDomain converts the persistence model to a domain PickingOrder.
// Serial numbers of the details are not stored here and must be attached by the caller.
func (m *PickingOrderModel) ToDomain() *inventory.PickingOrder {
	o := &inventory.PickingOrder{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		PartnerID:         m.PartnerID,
		Purpose:           m.Purpose,
		Status:            m.Status,
		Note:              m.Note,
		CreatedBy:         m.CreatedBy,
		CompletedAt:       m.CompletedAt,
		CancelledAt:       m.CancelledAt,
		Details:           make([]inventory.PickingDetail, len(m.Details)),
	}
	for i := range m.Details {
		o.Details[i] = *m.Details[i].ToDomain()
	}
	return o
}

// FromDomain populates the header fields from a domain PickingOrder
func (m *PickingOrderModel) FromDomain(o *inventory.PickingOrder) {
	m.FromDomainAggregateRoot(o.BaseAggregateRoot)
	m.PartnerID = o.PartnerID
	m.Purpose = o.Purpose
	m.Status = o.Status
	m.Note = o.Note
	m.CreatedBy = o.CreatedBy
	m.CompletedAt = o.CompletedAt
	m.CancelledAt = o.CancelledAt
}

// PickingOrderModelFromDomain creates a new persistence model from a domain PickingOrder
func PickingOrderModelFromDomain(o *inventory.PickingOrder) *PickingOrderModel {
	m := &PickingOrderModel{}
	m.FromDomain(o)
	return m
}

// PickingDetailModel is the persistence model for a picking line
type PickingDetailModel struct {
	BaseModel
	PickingOrderID int64                    `gorm:"not null;index"`
	ProductID      int64                    `gorm:"not null;index"`
	QuantityPicked decimal.Decimal          `gorm:"type:decimal(18,4);not null"`
	UnitPrice      decimal.Decimal          `gorm:"type:decimal(18,4);not null;default:0"`
	Allocations    []PickingAllocationModel `gorm:"foreignKey:PickingDetailID;references:ID"`
}

// TableName returns the table name for GORM
func (PickingDetailModel) TableName() string {
	return "picking_details"
}

// ToDomain converts the persistence model to a domain PickingDetail
func (m *PickingDetailModel) ToDomain() *inventory.PickingDetail {
	d := &inventory.PickingDetail{
		BaseEntity:     m.BaseModel.ToDomain(),
		PickingOrderID: m.PickingOrderID,
		ProductID:      m.ProductID,
		QuantityPicked: m.QuantityPicked,
		UnitPrice:      m.UnitPrice,
		Allocations:    make([]inventory.PickingAllocation, len(m.Allocations)),
	}
	for i, a := range m.Allocations {
		d.Allocations[i] = a.ToDomain()
	}
	return d
}

// FromDomain populates the persistence model from a domain PickingDetail, allocations included
func (m *PickingDetailModel) FromDomain(d *inventory.PickingDetail) {
	m.FromDomainBaseEntity(d.BaseEntity)
	m.PickingOrderID = d.PickingOrderID
	m.ProductID = d.ProductID
	m.QuantityPicked = d.QuantityPicked
	m.UnitPrice = d.UnitPrice
	m.Allocations = make([]PickingAllocationModel, len(d.Allocations))
	for i := range d.Allocations {
		m.Allocations[i].FromDomain(&d.Allocations[i])
	}
}

// PickingAllocationModel is the persistence model for the quantity a picking line took from a lot
type PickingAllocationModel struct {
	ID              int64           `gorm:"primaryKey;autoIncrement"`
	PickingDetailID int64           `gorm:"not null;index"`
	LotID           int64           `gorm:"not null;index"`
	Quantity        decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	LedgerEntryID   int64           `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PickingAllocationModel) TableName() string {
	return "picking_allocations"
}

// ToDomain converts the persistence model to a domain PickingAllocation
func (m PickingAllocationModel) ToDomain() inventory.PickingAllocation {
	return inventory.PickingAllocation{
		ID:              m.ID,
		PickingDetailID: m.PickingDetailID,
		LotID:           m.LotID,
		Quantity:        m.Quantity,
		UnitPrice:       m.UnitPrice,
		LedgerEntryID:   m.LedgerEntryID,
	}
}

// FromDomain populates the persistence model from a domain PickingAllocation
func (m *PickingAllocationModel) FromDomain(a *inventory.PickingAllocation) {
	m.ID = a.ID
	m.PickingDetailID = a.PickingDetailID
	m.LotID = a.LotID
	m.Quantity = a.Quantity
	m.UnitPrice = a.UnitPrice
	m.LedgerEntryID = a.LedgerEntryID
}

// StockTakeModel is the persistence model for the StockTake aggregate root
type StockTakeModel struct {
	AggregateModel
	Status      inventory.StockTakeStatus `gorm:"type:varchar(20);not null"`
	Note        string                    `gorm:"type:varchar(500)"`
	CreatedBy   string                    `gorm:"type:varchar(100)"`
	SubmittedAt *time.Time
	ReviewedBy  string `gorm:"type:varchar(100)"`
	ReviewNote  string `gorm:"type:varchar(500)"`
	ReviewedAt  *time.Time
	CompletedAt *time.Time
	CancelledAt *time.Time
	Details     []StockTakeDetailModel `gorm:"foreignKey:StockTakeID;references:ID"`
}

// TableName returns the table name for GORM
func (StockTakeModel) TableName() string {
	return "stock_takes"
}

// ToDomain converts the persistence model to a domain StockTake
func (m *StockTakeModel) ToDomain() *inventory.StockTake {
	st := &inventory.StockTake{
		BaseAggregateRoot: m.ToDomainAggregateRoot(),
		Status:            m.Status,
		Note:              m.Note,
		CreatedBy:         m.CreatedBy,
		SubmittedAt:       m.SubmittedAt,
		ReviewedBy:        m.ReviewedBy,
		ReviewNote:        m.ReviewNote,
		ReviewedAt:        m.ReviewedAt,
		CompletedAt:       m.CompletedAt,
		CancelledAt:       m.CancelledAt,
		Details:           make([]inventory.StockTakeDetail, len(m.Details)),
	}
	for i := range m.Details {
		st.Details[i] = *m.Details[i].ToDomain()
	}
	return st
}

// FromDomain populates the persistence model from a domain StockTake
func (m *StockTakeModel) FromDomain(st *inventory.StockTake) {
	m.FromDomainAggregateRoot(st.BaseAggregateRoot)
	m.Status = st.Status
	m.Note = st.Note
	m.CreatedBy = st.CreatedBy
	m.SubmittedAt = st.SubmittedAt
	m.ReviewedBy = st.ReviewedBy
	m.ReviewNote = st.ReviewNote
	m.ReviewedAt = st.ReviewedAt
	m.CompletedAt = st.CompletedAt
	m.CancelledAt = st.CancelledAt
	m.Details = make([]StockTakeDetailModel, len(st.Details))
	for i := range st.Details {
		m.Details[i].FromDomain(&st.Details[i])
	}
}

// StockTakeModelFromDomain creates a new persistence model from a domain StockTake
func StockTakeModelFromDomain(st *inventory.StockTake) *StockTakeModel {
	m := &StockTakeModel{}
	m.FromDomain(st)
	return m
}

// StockTakeDetailModel is the persistence model for a counted product
type StockTakeDetailModel struct {
	BaseModel
	StockTakeID    int64           `gorm:"not null;uniqueIndex:idx_stock_take_product,priority:1"`
	ProductID      int64           `gorm:"not null;uniqueIndex:idx_stock_take_product,priority:2"`
	SystemQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	ActualQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	DamageQuantity decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Variance       decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	SerialNumbers  []string        `gorm:"type:text;serializer:json"`
}

// TableName returns the table name for GORM
func (StockTakeDetailModel) TableName() string {
	return "stock_take_details"
}

// ToDomain converts the persistence model to a domain StockTakeDetail
func (m *StockTakeDetailModel) ToDomain() *inventory.StockTakeDetail {
	return &inventory.StockTakeDetail{
		BaseEntity:     m.BaseModel.ToDomain(),
		StockTakeID:    m.StockTakeID,
		ProductID:      m.ProductID,
		SystemQuantity: m.SystemQuantity,
		ActualQuantity: m.ActualQuantity,
		DamageQuantity: m.DamageQuantity,
		Variance:       m.Variance,
		SerialNumbers:  m.SerialNumbers,
	}
}

// FromDomain populates the persistence model from a domain StockTakeDetail
func (m *StockTakeDetailModel) FromDomain(d *inventory.StockTakeDetail) {
	m.FromDomainBaseEntity(d.BaseEntity)
	m.StockTakeID = d.StockTakeID
	m.ProductID = d.ProductID
	m.SystemQuantity = d.SystemQuantity
	m.ActualQuantity = d.ActualQuantity
	m.DamageQuantity = d.DamageQuantity
	m.Variance = d.Variance
	m.SerialNumbers = d.SerialNumbers
}
