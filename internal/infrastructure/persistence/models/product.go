package models

import (
	"time"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/domain/shared"
)

// ProductModel is the persistence model for the local product reference.
// The id is assigned by the catalog, not generated.
type ProductModel struct {
	ID             int64     `gorm:"primaryKey;autoIncrement:false"`
	Code           string    `gorm:"type:varchar(50);not null;uniqueIndex:idx_product_code"`
	Name           string    `gorm:"type:varchar(200);not null"`
	Category       string    `gorm:"type:varchar(100)"`
	Unit           string    `gorm:"type:varchar(20);not null"`
	WarrantyMonths int       `gorm:"not null;default:0"`
	SerialTracked  bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"not null"`
	UpdatedAt      time.Time `gorm:"not null"`
}

// TableName returns the table name for GORM
func (ProductModel) TableName() string {
	return "products"
}

// ToDomain converts the persistence model to a domain Product
func (m *ProductModel) ToDomain() *inventory.Product {
	return &inventory.Product{
		BaseEntity: shared.BaseEntity{
			ID:        m.ID,
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		Code:           m.Code,
		Name:           m.Name,
		Category:       m.Category,
		Unit:           m.Unit,
		WarrantyMonths: m.WarrantyMonths,
		SerialTracked:  m.SerialTracked,
	}
}

// FromDomain populates the persistence model from a domain Product
func (m *ProductModel) FromDomain(p *inventory.Product) {
	m.ID = p.ID
	m.Code = p.Code
	m.Name = p.Name
	m.Category = p.Category
	m.Unit = p.Unit
	m.WarrantyMonths = p.WarrantyMonths
	m.SerialTracked = p.SerialTracked
	m.CreatedAt = p.CreatedAt
	m.UpdatedAt = p.UpdatedAt
}

// ProductModelFromDomain creates a new persistence model from a domain Product
func ProductModelFromDomain(p *inventory.Product) *ProductModel {
	m := &ProductModel{}
	m.FromDomain(p)
	return m
}
