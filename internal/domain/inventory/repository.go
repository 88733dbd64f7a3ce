package inventory

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ProductRepository persists product reference rows
type ProductRepository interface {
	// FindByID finds a product by its catalog ID
	FindByID(ctx context.Context, id int64) (*Product, error)

	// LockByIDs locks the product rows in ascending id order and returns them.
	// The product row is the serialization point of every stock movement of that product.
	LockByIDs(ctx context.Context, ids []int64) ([]*Product, error)

	// Save creates or updates a product
	Save(ctx context.Context, product *Product) error
}

// LotRepository persists lots
type LotRepository interface {
	FindByID(ctx context.Context, id int64) (*Lot, error)

	// FindByProduct returns the lots of a product in FIFO order
	FindByProduct(ctx context.Context, productID int64, includeDepleted bool) ([]*Lot, error)

	// FindAvailableForUpdate locks and returns the lots with remaining stock, in FIFO order
	FindAvailableForUpdate(ctx context.Context, productID int64) ([]*Lot, error)

	// FindByIDsForUpdate locks and returns the given lots
	FindByIDsForUpdate(ctx context.Context, ids []int64) ([]*Lot, error)

	// Create inserts a new lot and assigns its ID
	Create(ctx context.Context, lot *Lot) error

	// Save updates a lot with optimistic locking; a stale version yields a concurrency conflict
	Save(ctx context.Context, lot *Lot) error

	// SumRemaining sums the remaining quantity of a product's lots
	SumRemaining(ctx context.Context, productID int64) (decimal.Decimal, error)

	// ExistsForProduct reports whether any lot was ever created for the product
	ExistsForProduct(ctx context.Context, productID int64) (bool, error)

	// LatestUnitPrice returns the unit price of the most recently received lot
	LatestUnitPrice(ctx context.Context, productID int64) (decimal.Decimal, bool, error)
}

// SerialRepository persists serial numbers
type SerialRepository interface {
	FindByNumber(ctx context.Context, serialNumber string) (*Serial, error)

	// FindByNumbers returns the serials that exist among the given numbers
	FindByNumbers(ctx context.Context, serialNumbers []string) ([]*Serial, error)

	// FindInStockByLot returns up to limit InStock serials of a lot, oldest registration first
	FindInStockByLot(ctx context.Context, lotID int64, limit int) ([]*Serial, error)

	// FindByPickingDetail returns the serials bound to a picking detail
	FindByPickingDetail(ctx context.Context, pickingDetailID int64) ([]*Serial, error)

	// CountInStockByLot counts InStock serials per lot of a product
	CountInStockByLot(ctx context.Context, productID int64) (map[int64]int64, error)

	// CreateBatch inserts serials and assigns their IDs
	CreateBatch(ctx context.Context, serials []*Serial) error

	Save(ctx context.Context, serial *Serial) error
}

// MovementFilter selects ledger entries
type MovementFilter struct {
	ProductID *int64
	From      *time.Time
	To        *time.Time
	Type      *TransactionType
	Limit     int
}

// LedgerTotals are the signed quantity sums of a product's entries in a period
type LedgerTotals struct {
	ProductID int64
	In        decimal.Decimal
	Out       decimal.Decimal
	Adjust    decimal.Decimal
	Damage    decimal.Decimal
}

// LedgerRepository appends to and reads the ledger. Entries are never updated or deleted.
type LedgerRepository interface {
	// Append inserts entries and assigns their IDs
	Append(ctx context.Context, entries ...*LedgerEntry) error

	// Position returns the tail of a product's chain
	Position(ctx context.Context, productID int64) (LedgerPosition, error)

	// FindByProduct returns all entries of a product ordered by sequence
	FindByProduct(ctx context.Context, productID int64) ([]LedgerEntry, error)

	// FindByIDs returns the given entries
	FindByIDs(ctx context.Context, ids []int64) ([]LedgerEntry, error)

	// FindMovements returns entries ordered by product then sequence
	FindMovements(ctx context.Context, filter MovementFilter) ([]LedgerEntry, error)

	// Totals sums quantity changes per product and transaction type within [from, to]
	Totals(ctx context.Context, productID *int64, from, to *time.Time) ([]LedgerTotals, error)

	// LastBefore returns the last entry of a product dated strictly before t
	LastBefore(ctx context.Context, productID int64, t time.Time) (*LedgerEntry, error)

	// LastUpTo returns the last entry of a product dated at or before t (nil t means latest)
	LastUpTo(ctx context.Context, productID int64, t *time.Time) (*LedgerEntry, error)

	// ProductIDs returns the products that have ledger entries, ascending
	ProductIDs(ctx context.Context) ([]int64, error)
}

// ReceivingRepository persists receivings with their details
type ReceivingRepository interface {
	Create(ctx context.Context, receiving *Receiving) error
	FindByID(ctx context.Context, id int64) (*Receiving, error)

	// FindByDetailIDForUpdate locks and returns the receiving owning a detail
	FindByDetailIDForUpdate(ctx context.Context, detailID int64) (*Receiving, error)

	// Save updates the receiving header and its details with optimistic locking
	Save(ctx context.Context, receiving *Receiving) error

	// PartnerForDetail returns the partner of the receiving owning a detail
	PartnerForDetail(ctx context.Context, detailID int64) (int64, error)
}

// PickingOrderRepository persists picking orders, details and allocations
type PickingOrderRepository interface {
	Create(ctx context.Context, order *PickingOrder) error
	FindByID(ctx context.Context, id int64) (*PickingOrder, error)

	// FindByIDForUpdate locks and returns the order with its details and allocations
	FindByIDForUpdate(ctx context.Context, id int64) (*PickingOrder, error)

	// FindByDetailIDForUpdate locks and returns the order owning a picking detail
	FindByDetailIDForUpdate(ctx context.Context, detailID int64) (*PickingOrder, error)

	// Save updates the order header with optimistic locking
	Save(ctx context.Context, order *PickingOrder) error

	// CreateDetail inserts a detail with its allocations
	CreateDetail(ctx context.Context, detail *PickingDetail) error

	// UpdateDetail updates a detail and replaces its allocations
	UpdateDetail(ctx context.Context, detail *PickingDetail) error

	// DeleteDetail removes a detail and its allocations
	DeleteDetail(ctx context.Context, detailID int64) error
}

// StockTakeRepository persists stock-takes with their details
type StockTakeRepository interface {
	Create(ctx context.Context, stockTake *StockTake) error
	FindByID(ctx context.Context, id int64) (*StockTake, error)
	FindByIDForUpdate(ctx context.Context, id int64) (*StockTake, error)

	// Save updates the stock-take header and details with optimistic locking
	Save(ctx context.Context, stockTake *StockTake) error
}

// DamageRepository persists damage records and pending damage accumulators
type DamageRepository interface {
	Create(ctx context.Context, record *DamageRecord) error
	FindBySource(ctx context.Context, source DamageSource, sourceID int64) ([]DamageRecord, error)

	// LockPending locks the accumulator of a (product, partner) pair, creating it when missing
	LockPending(ctx context.Context, productID, partnerID int64) (*PendingDamage, error)

	SavePending(ctx context.Context, pending *PendingDamage) error
}
