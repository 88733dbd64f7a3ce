package persistence

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormLedgerRepository implements LedgerRepository using GORM.
// It only ever inserts rows.
type GormLedgerRepository struct {
	db *gorm.DB
}

// NewGormLedgerRepository creates a new GormLedgerRepository
func NewGormLedgerRepository(db *gorm.DB) *GormLedgerRepository {
	return &GormLedgerRepository{db: db}
}

// Append inserts entries and assigns their IDs.
// A duplicate (product, sequence) pair surfaces as a concurrency conflict.
func (r *GormLedgerRepository) Append(ctx context.Context, entries ...*inventory.LedgerEntry) error {
	for _, e := range entries {
		model := models.LedgerEntryModelFromDomain(e)
		if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
			return translateError(err, "ledger entry of product", e.ProductID)
		}
		e.ID = model.ID
	}
	return nil
}

// Position returns the tail of a product's chain
func (r *GormLedgerRepository) Position(ctx context.Context, productID int64) (inventory.LedgerPosition, error) {
	last, err := r.last(r.db.WithContext(ctx).Where("product_id = ?", productID))
	if err != nil {
		return inventory.LedgerPosition{}, err
	}
	if last == nil {
		return inventory.StartPosition(productID), nil
	}
	return inventory.LedgerPosition{
		ProductID: productID,
		Sequence:  last.Sequence,
		Balance:   last.BalanceAfter,
		LastDate:  last.TransactionDate,
	}, nil
}

// FindByProduct returns all entries of a product ordered by sequence
func (r *GormLedgerRepository) FindByProduct(ctx context.Context, productID int64) ([]inventory.LedgerEntry, error) {
	return r.find(r.db.WithContext(ctx).Where("product_id = ?", productID).Order("sequence ASC"))
}

// FindByIDs returns the given entries ordered by id
func (r *GormLedgerRepository) FindByIDs(ctx context.Context, ids []int64) ([]inventory.LedgerEntry, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.find(r.db.WithContext(ctx).Where("id IN ?", ids).Order("id ASC"))
}

// FindMovements returns entries ordered by product then sequence
func (r *GormLedgerRepository) FindMovements(ctx context.Context, filter inventory.MovementFilter) ([]inventory.LedgerEntry, error) {
	query := r.period(r.db.WithContext(ctx), filter.ProductID, filter.From, filter.To)
	if filter.Type != nil {
		query = query.Where("type = ?", string(*filter.Type))
	}
	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	return r.find(query.Order("product_id ASC, sequence ASC"))
}

// Totals sums quantity changes per product and transaction type within [from, to]
func (r *GormLedgerRepository) Totals(ctx context.Context, productID *int64, from, to *time.Time) ([]inventory.LedgerTotals, error) {
	var rows []struct {
		ProductID int64
		Type      string
		Total     decimal.Decimal
	}
	if err := r.period(r.db.WithContext(ctx).Model(&models.LedgerEntryModel{}), productID, from, to).
		Select("product_id, type, COALESCE(SUM(quantity_change), 0) as total").
		Group("product_id, type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	byProduct := make(map[int64]*inventory.LedgerTotals)
	for _, row := range rows {
		t, ok := byProduct[row.ProductID]
		if !ok {
			t = &inventory.LedgerTotals{ProductID: row.ProductID}
			byProduct[row.ProductID] = t
		}
		switch inventory.TransactionType(row.Type) {
		case inventory.TransactionTypeIn:
			t.In = row.Total
		case inventory.TransactionTypeOut:
			t.Out = row.Total
		case inventory.TransactionTypeAdjust:
			t.Adjust = row.Total
		case inventory.TransactionTypeDamage:
			t.Damage = row.Total
		}
	}

	totals := make([]inventory.LedgerTotals, 0, len(byProduct))
	for _, t := range byProduct {
		totals = append(totals, *t)
	}
	sort.Slice(totals, func(i, j int) bool { return totals[i].ProductID < totals[j].ProductID })
	return totals, nil
}

// LastBefore returns the last entry of a product dated strictly before t
func (r *GormLedgerRepository) LastBefore(ctx context.Context, productID int64, t time.Time) (*inventory.LedgerEntry, error) {
	return r.last(r.db.WithContext(ctx).Where("product_id = ? AND transaction_date < ?", productID, t.UTC()))
}

// LastUpTo returns the last entry of a product dated at or before t; nil t means the latest
func (r *GormLedgerRepository) LastUpTo(ctx context.Context, productID int64, t *time.Time) (*inventory.LedgerEntry, error) {
	query := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if t != nil {
		query = query.Where("transaction_date <= ?", t.UTC())
	}
	return r.last(query)
}

// ProductIDs returns the products that have ledger entries, ascending
func (r *GormLedgerRepository) ProductIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	if err := r.db.WithContext(ctx).
		Model(&models.LedgerEntryModel{}).
		Distinct("product_id").
		Order("product_id ASC").
		Pluck("product_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

func (r *GormLedgerRepository) period(query *gorm.DB, productID *int64, from, to *time.Time) *gorm.DB {
	if productID != nil {
		query = query.Where("product_id = ?", *productID)
	}
	if from != nil {
		query = query.Where("transaction_date >= ?", from.UTC())
	}
	if to != nil {
		query = query.Where("transaction_date <= ?", to.UTC())
	}
	return query
}

func (r *GormLedgerRepository) last(query *gorm.DB) (*inventory.LedgerEntry, error) {
	var model models.LedgerEntryModel
	err := query.Order("sequence DESC").First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry, err := model.ToDomain()
	if err != nil {
		return nil, err
	}
	return &entry, nil
}

func (r *GormLedgerRepository) find(query *gorm.DB) ([]inventory.LedgerEntry, error) {
	var rows []models.LedgerEntryModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return models.LedgerEntriesToDomain(rows)
}

var _ inventory.LedgerRepository = (*GormLedgerRepository)(nil)
