package inventory

import (
	"time"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// UpsertProductRequest mirrors a catalog product into the inventory core
type UpsertProductRequest struct {
	Code           string `json:"code" binding:"required,max=50"`
	Name           string `json:"name" binding:"required,max=200"`
	Category       string `json:"category" binding:"max=100"`
	Unit           string `json:"unit" binding:"required,max=20"`
	WarrantyMonths int    `json:"warranty_months" binding:"min=0"`
	SerialTracked  bool   `json:"serial_tracked"`
}

// ProductResponse represents a product reference in API responses
type ProductResponse struct {
	ID             int64     `json:"id"`
	Code           string    `json:"code"`
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Unit           string    `json:"unit"`
	WarrantyMonths int       `json:"warranty_months"`
	SerialTracked  bool      `json:"serial_tracked"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ToProductResponse converts a domain product to a response
func ToProductResponse(p *inventory.Product) ProductResponse {
	return ProductResponse{
		ID:             p.ID,
		Code:           p.Code,
		Name:           p.Name,
		Category:       p.Category,
		Unit:           p.Unit,
		WarrantyMonths: p.WarrantyMonths,
		SerialTracked:  p.SerialTracked,
		UpdatedAt:      p.UpdatedAt,
	}
}

// LotResponse represents a lot in API responses
type LotResponse struct {
	ID                int64           `json:"id"`
	ProductID         int64           `json:"product_id"`
	SourceDetailID    *int64          `json:"source_detail_id,omitempty"`
	QuantityIn        decimal.Decimal `json:"quantity_in"`
	QuantityRemaining decimal.Decimal `json:"quantity_remaining"`
	QuantityDamaged   decimal.Decimal `json:"quantity_damaged"`
	QuantityLost      decimal.Decimal `json:"quantity_lost"`
	Unit              string          `json:"unit"`
	UnitPrice         decimal.Decimal `json:"unit_price"`
	ReceivedDate      time.Time       `json:"received_date"`
}

// ToLotResponse converts a domain lot to a response
func ToLotResponse(l *inventory.Lot) LotResponse {
	return LotResponse{
		ID:                l.ID,
		ProductID:         l.ProductID,
		SourceDetailID:    l.SourceDetailID,
		QuantityIn:        l.QuantityIn,
		QuantityRemaining: l.QuantityRemaining,
		QuantityDamaged:   l.QuantityDamaged,
		QuantityLost:      l.QuantityLost,
		Unit:              l.Unit,
		UnitPrice:         l.UnitPrice,
		ReceivedDate:      l.ReceivedDate,
	}
}

// LedgerEntryResponse represents one movement in API responses
type LedgerEntryResponse struct {
	ID              int64               `json:"id"`
	ProductID       int64               `json:"product_id"`
	LotID           *int64              `json:"lot_id,omitempty"`
	Sequence        int64               `json:"sequence"`
	TransactionDate time.Time           `json:"transaction_date"`
	TransactionType string              `json:"transaction_type"`
	QuantityChange  decimal.Decimal     `json:"quantity_change"`
	BalanceAfter    decimal.Decimal     `json:"balance_after"`
	UnitPrice       decimal.Decimal     `json:"unit_price"`
	Reference       inventory.Reference `json:"reference"`
	ReversalOf      *int64              `json:"reversal_of,omitempty"`
	UserID          string              `json:"user_id,omitempty"`
	Note            string              `json:"note,omitempty"`
}

// ToLedgerEntryResponse converts a ledger entry to a response
func ToLedgerEntryResponse(e *inventory.LedgerEntry) LedgerEntryResponse {
	return LedgerEntryResponse{
		ID:              e.ID,
		ProductID:       e.ProductID,
		LotID:           e.LotID,
		Sequence:        e.Sequence,
		TransactionDate: e.TransactionDate,
		TransactionType: string(e.Type),
		QuantityChange:  e.QuantityChange,
		BalanceAfter:    e.BalanceAfter,
		UnitPrice:       e.UnitPrice,
		Reference:       e.Reference,
		ReversalOf:      e.ReversalOf,
		UserID:          e.UserID,
		Note:            e.Note,
	}
}

// CreateReceivingRequest creates a receiving with provisional details
type CreateReceivingRequest struct {
	PartnerID int64                  `json:"partner_id" binding:"required,gt=0"`
	Note      string                 `json:"note" binding:"max=500"`
	Lines     []ReceivingLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// ReceivingLineRequest is one expected product of a receiving
type ReceivingLineRequest struct {
	ProductID       int64           `json:"product_id" binding:"required,gt=0"`
	OrderedQuantity decimal.Decimal `json:"ordered_quantity" binding:"required,decimal_gt=0"`
	UnitPrice       decimal.Decimal `json:"unit_price" binding:"decimal_gte=0"`
}

// RecordProvisionalRequest records a preliminary count
type RecordProvisionalRequest struct {
	Quantity decimal.Decimal `json:"quantity" binding:"decimal_gte=0"`
}

// FinalizeReceivingDetailRequest confirms what was accepted and damaged
type FinalizeReceivingDetailRequest struct {
	AcceptedQuantity decimal.Decimal `json:"accepted_quantity" binding:"decimal_gte=0"`
	DamageQuantity   decimal.Decimal `json:"damage_quantity" binding:"decimal_gte=0"`
	DamageReason     string          `json:"damage_reason" binding:"max=500"`
	SerialNumbers    []string        `json:"serial_numbers" binding:"omitempty,dive,required,max=100"`
}

// ReceivingResponse represents a receiving in API responses
type ReceivingResponse struct {
	ID          int64                     `json:"id"`
	PartnerID   int64                     `json:"partner_id"`
	Status      string                    `json:"status"`
	Note        string                    `json:"note,omitempty"`
	CreatedBy   string                    `json:"created_by,omitempty"`
	CompletedAt *time.Time                `json:"completed_at,omitempty"`
	Details     []ReceivingDetailResponse `json:"details"`
	CreatedAt   time.Time                 `json:"created_at"`
	Version     int                       `json:"version"`
}

// ReceivingDetailResponse represents a receiving line in API responses
type ReceivingDetailResponse struct {
	ID                  int64            `json:"id"`
	ProductID           int64            `json:"product_id"`
	OrderedQuantity     decimal.Decimal  `json:"ordered_quantity"`
	ProvisionalQuantity *decimal.Decimal `json:"provisional_quantity,omitempty"`
	AcceptedQuantity    decimal.Decimal  `json:"accepted_quantity"`
	DamageQuantity      decimal.Decimal  `json:"damage_quantity"`
	DamageReason        string           `json:"damage_reason,omitempty"`
	UnitPrice           decimal.Decimal  `json:"unit_price"`
	Status              string           `json:"status"`
	LotID               *int64           `json:"lot_id,omitempty"`
	FinalizedAt         *time.Time       `json:"finalized_at,omitempty"`
}

// ToReceivingResponse converts a domain receiving to a response
func ToReceivingResponse(r *inventory.Receiving) ReceivingResponse {
	resp := ReceivingResponse{
		ID:          r.ID,
		PartnerID:   r.PartnerID,
		Status:      string(r.Status),
		Note:        r.Note,
		CreatedBy:   r.CreatedBy,
		CompletedAt: r.CompletedAt,
		Details:     make([]ReceivingDetailResponse, 0, len(r.Details)),
		CreatedAt:   r.CreatedAt,
		Version:     r.Version,
	}
	for _, d := range r.Details {
		resp.Details = append(resp.Details, ReceivingDetailResponse{
			ID:                  d.ID,
			ProductID:           d.ProductID,
			OrderedQuantity:     d.OrderedQuantity,
			ProvisionalQuantity: d.ProvisionalQuantity,
			AcceptedQuantity:    d.AcceptedQuantity,
			DamageQuantity:      d.DamageQuantity,
			DamageReason:        d.DamageReason,
			UnitPrice:           d.UnitPrice,
			Status:              string(d.Status),
			LotID:               d.LotID,
			FinalizedAt:         d.FinalizedAt,
		})
	}
	return resp
}

// FinalizeReceivingDetailResponse is the outcome of finalizing a receiving detail
type FinalizeReceivingDetailResponse struct {
	Receiving     ReceivingResponse    `json:"receiving"`
	Lot           *LotResponse         `json:"lot,omitempty"`
	LedgerEntry   *LedgerEntryResponse `json:"ledger_entry,omitempty"`
	SerialNumbers []string             `json:"serial_numbers,omitempty"`
	DamageRecord  *int64               `json:"damage_record_id,omitempty"`
}

// CreatePickingOrderRequest creates an empty picking order
type CreatePickingOrderRequest struct {
	PartnerID *int64 `json:"partner_id" binding:"omitempty,gt=0"`
	Purpose   string `json:"purpose" binding:"omitempty,oneof=OUTBOUND RETURN_TO_SUPPLIER"`
	Note      string `json:"note" binding:"max=500"`
}

// AddPickingItemRequest picks a quantity of a product
type AddPickingItemRequest struct {
	ProductID     int64           `json:"product_id" binding:"required,gt=0"`
	Quantity      decimal.Decimal `json:"quantity" binding:"required,decimal_gt=0"`
	SerialNumbers []string        `json:"serial_numbers" binding:"omitempty,dive,required,max=100"`
}

// UpdatePickingItemRequest changes the picked quantity of a detail
type UpdatePickingItemRequest struct {
	Quantity      decimal.Decimal `json:"quantity" binding:"required,decimal_gt=0"`
	SerialNumbers []string        `json:"serial_numbers" binding:"omitempty,dive,required,max=100"`
}

// PickingOrderResponse represents a picking order in API responses
type PickingOrderResponse struct {
	ID          int64                   `json:"id"`
	PartnerID   *int64                  `json:"partner_id,omitempty"`
	Purpose     string                  `json:"purpose"`
	Status      string                  `json:"status"`
	Note        string                  `json:"note,omitempty"`
	CreatedBy   string                  `json:"created_by,omitempty"`
	TotalAmount decimal.Decimal         `json:"total_amount"`
	CompletedAt *time.Time              `json:"completed_at,omitempty"`
	CancelledAt *time.Time              `json:"cancelled_at,omitempty"`
	Details     []PickingDetailResponse `json:"details"`
	CreatedAt   time.Time               `json:"created_at"`
	Version     int                     `json:"version"`
}

// PickingDetailResponse represents a picking line in API responses
type PickingDetailResponse struct {
	ID             int64                       `json:"id"`
	ProductID      int64                       `json:"product_id"`
	QuantityPicked decimal.Decimal             `json:"quantity_picked"`
	UnitPrice      decimal.Decimal             `json:"unit_price"`
	Allocations    []PickingAllocationResponse `json:"allocations"`
	SerialNumbers  []string                    `json:"serial_numbers,omitempty"`
}

// PickingAllocationResponse is the quantity a detail took from one lot
type PickingAllocationResponse struct {
	LotID         int64           `json:"lot_id"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	LedgerEntryID int64           `json:"ledger_entry_id"`
}

// ToPickingDetailResponse converts a picking detail to a response
func ToPickingDetailResponse(d *inventory.PickingDetail) PickingDetailResponse {
	resp := PickingDetailResponse{
		ID:             d.ID,
		ProductID:      d.ProductID,
		QuantityPicked: d.QuantityPicked,
		UnitPrice:      d.UnitPrice,
		Allocations:    make([]PickingAllocationResponse, 0, len(d.Allocations)),
		SerialNumbers:  d.SerialNumbers,
	}
	for _, a := range d.Allocations {
		resp.Allocations = append(resp.Allocations, PickingAllocationResponse{
			LotID:         a.LotID,
			Quantity:      a.Quantity,
			UnitPrice:     a.UnitPrice,
			LedgerEntryID: a.LedgerEntryID,
		})
	}
	return resp
}

// ToPickingOrderResponse converts a picking order to a response
func ToPickingOrderResponse(o *inventory.PickingOrder) PickingOrderResponse {
	resp := PickingOrderResponse{
		ID:          o.ID,
		PartnerID:   o.PartnerID,
		Purpose:     string(o.Purpose),
		Status:      string(o.Status),
		Note:        o.Note,
		CreatedBy:   o.CreatedBy,
		TotalAmount: o.TotalAmount(),
		CompletedAt: o.CompletedAt,
		CancelledAt: o.CancelledAt,
		Details:     make([]PickingDetailResponse, 0, len(o.Details)),
		CreatedAt:   o.CreatedAt,
		Version:     o.Version,
	}
	for i := range o.Details {
		resp.Details = append(resp.Details, ToPickingDetailResponse(&o.Details[i]))
	}
	return resp
}

// CreateStockTakeRequest creates a draft stock-take
type CreateStockTakeRequest struct {
	Note  string                 `json:"note" binding:"max=500"`
	Lines []StockTakeLineRequest `json:"lines" binding:"required,min=1,dive"`
}

// StockTakeLineRequest is one counted product
type StockTakeLineRequest struct {
	ProductID      int64           `json:"product_id" binding:"required,gt=0"`
	ActualQuantity decimal.Decimal `json:"actual_quantity" binding:"decimal_gte=0"`
	DamageQuantity decimal.Decimal `json:"damage_quantity" binding:"decimal_gte=0"`
	SerialNumbers  []string        `json:"serial_numbers" binding:"omitempty,dive,required,max=100"`
}

// ReviewStockTakeRequest approves or rejects a submitted stock-take
type ReviewStockTakeRequest struct {
	Approve bool   `json:"approve"`
	Note    string `json:"note" binding:"max=500"`
}

// StockTakeResponse represents a stock-take in API responses
type StockTakeResponse struct {
	ID          int64                     `json:"id"`
	Status      string                    `json:"status"`
	Note        string                    `json:"note,omitempty"`
	CreatedBy   string                    `json:"created_by,omitempty"`
	SubmittedAt *time.Time                `json:"submitted_at,omitempty"`
	ReviewedBy  string                    `json:"reviewed_by,omitempty"`
	ReviewNote  string                    `json:"review_note,omitempty"`
	ReviewedAt  *time.Time                `json:"reviewed_at,omitempty"`
	CompletedAt *time.Time                `json:"completed_at,omitempty"`
	CancelledAt *time.Time                `json:"cancelled_at,omitempty"`
	Details     []StockTakeDetailResponse `json:"details"`
	CreatedAt   time.Time                 `json:"created_at"`
	Version     int                       `json:"version"`
}

// StockTakeDetailResponse represents a counted product in API responses
type StockTakeDetailResponse struct {
	ID             int64           `json:"id"`
	ProductID      int64           `json:"product_id"`
	SystemQuantity decimal.Decimal `json:"system_quantity"`
	ActualQuantity decimal.Decimal `json:"actual_quantity"`
	DamageQuantity decimal.Decimal `json:"damage_quantity"`
	Variance       decimal.Decimal `json:"variance"`
	SerialNumbers  []string        `json:"serial_numbers,omitempty"`
}

// ToStockTakeResponse converts a stock-take to a response
func ToStockTakeResponse(s *inventory.StockTake) StockTakeResponse {
	resp := StockTakeResponse{
		ID:          s.ID,
		Status:      string(s.Status),
		Note:        s.Note,
		CreatedBy:   s.CreatedBy,
		SubmittedAt: s.SubmittedAt,
		ReviewedBy:  s.ReviewedBy,
		ReviewNote:  s.ReviewNote,
		ReviewedAt:  s.ReviewedAt,
		CompletedAt: s.CompletedAt,
		CancelledAt: s.CancelledAt,
		Details:     make([]StockTakeDetailResponse, 0, len(s.Details)),
		CreatedAt:   s.CreatedAt,
		Version:     s.Version,
	}
	for _, d := range s.Details {
		resp.Details = append(resp.Details, StockTakeDetailResponse{
			ID:             d.ID,
			ProductID:      d.ProductID,
			SystemQuantity: d.SystemQuantity,
			ActualQuantity: d.ActualQuantity,
			DamageQuantity: d.DamageQuantity,
			Variance:       d.Variance,
			SerialNumbers:  d.SerialNumbers,
		})
	}
	return resp
}

// ReportSerialIssueRequest reports a picked serial as damaged or lost
type ReportSerialIssueRequest struct {
	Status string `json:"status" binding:"required,oneof=DAMAGED LOST"`
	Reason string `json:"reason" binding:"max=500"`
}

// SerialResponse represents a serial number in API responses
type SerialResponse struct {
	SerialNumber    string     `json:"serial_number"`
	ProductID       int64      `json:"product_id"`
	LotID           int64      `json:"lot_id"`
	PickingDetailID *int64     `json:"picking_detail_id,omitempty"`
	Status          string     `json:"status"`
	PickedAt        *time.Time `json:"picked_at,omitempty"`
}

// ToSerialResponse converts a serial to a response
func ToSerialResponse(s *inventory.Serial) SerialResponse {
	return SerialResponse{
		SerialNumber:    s.SerialNumber,
		ProductID:       s.ProductID,
		LotID:           s.LotID,
		PickingDetailID: s.PickingDetailID,
		Status:          string(s.Status),
		PickedAt:        s.PickedAt,
	}
}

// SummaryFilter selects the products and period of a summary
type SummaryFilter struct {
	ProductID *int64     `form:"product_id"`
	From      *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To        *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
}

// SummaryResponse is the period balance of one product
type SummaryResponse struct {
	ProductID        int64           `json:"product_id"`
	BeginningBalance decimal.Decimal `json:"beginning_balance"`
	TotalIn          decimal.Decimal `json:"total_in"`
	TotalOut         decimal.Decimal `json:"total_out"`
	TotalAdjust      decimal.Decimal `json:"total_adjust"`
	TotalDamage      decimal.Decimal `json:"total_damage"`
	EndingBalance    decimal.Decimal `json:"ending_balance"`
}

// MovementFilter selects ledger entries
type MovementFilter struct {
	ProductID *int64     `form:"product_id"`
	From      *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To        *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Type      string     `form:"type" binding:"omitempty,oneof=IN OUT ADJUST DAMAGE"`
	Limit     int        `form:"limit" binding:"omitempty,min=1,max=1000"`
}

// ConsistencyReport is the outcome of a full consistency verification of one product
type ConsistencyReport struct {
	ProductID     int64           `json:"product_id"`
	Consistent    bool            `json:"consistent"`
	EntryCount    int             `json:"entry_count"`
	LotCount      int             `json:"lot_count"`
	LedgerBalance decimal.Decimal `json:"ledger_balance"`
	LotRemaining  decimal.Decimal `json:"lot_remaining"`
	Violations    []string        `json:"violations,omitempty"`
}
