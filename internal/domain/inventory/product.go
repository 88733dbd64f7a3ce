package inventory

import (
	"strings"
	"time"

	"github.com/erp/warehouse/internal/domain/shared"
)

// Product is the local reference row of a catalog product.
// The catalog owns the identifier; the inventory core only mirrors what it needs.
type Product struct {
	shared.BaseEntity
	Code           string
	Name           string
	Category       string
	Unit           string
	WarrantyMonths int
	SerialTracked  bool
}

// NewProduct validates and creates a product reference
func NewProduct(id int64, code, name, category, unit string, warrantyMonths int, serialTracked bool) (*Product, error) {
	if id <= 0 {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID must be positive")
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, shared.NewDomainError("INVALID_CODE", "Product code cannot be empty")
	}
	if len(code) > 50 {
		return nil, shared.NewDomainError("INVALID_CODE", "Product code cannot exceed 50 characters")
	}
	if strings.TrimSpace(name) == "" {
		return nil, shared.NewDomainError("INVALID_NAME", "Product name cannot be empty")
	}
	if strings.TrimSpace(unit) == "" {
		return nil, shared.NewDomainError("INVALID_UNIT", "Product unit cannot be empty")
	}
	if warrantyMonths < 0 {
		return nil, shared.NewDomainError("INVALID_WARRANTY", "Warranty months cannot be negative")
	}

	base := shared.NewBaseEntity()
	base.ID = id
	return &Product{
		BaseEntity:     base,
		Code:           code,
		Name:           strings.TrimSpace(name),
		Category:       strings.TrimSpace(category),
		Unit:           strings.TrimSpace(unit),
		WarrantyMonths: warrantyMonths,
		SerialTracked:  serialTracked,
	}, nil
}

// ApplyCatalogUpdate copies catalog fields from an incoming product.
// hasLots tells whether stock was already received for the product, in which
// case the serial tracking mode is frozen.
func (p *Product) ApplyCatalogUpdate(in *Product, hasLots bool) error {
	if hasLots && in.SerialTracked != p.SerialTracked {
		return &InvalidStateError{Entity: "product", ID: p.ID, State: "HAS_LOTS", Action: "change serial tracking of"}
	}
	p.Code = in.Code
	p.Name = in.Name
	p.Category = in.Category
	p.Unit = in.Unit
	p.WarrantyMonths = in.WarrantyMonths
	p.SerialTracked = in.SerialTracked
	p.Touch(time.Now().UTC())
	return nil
}
