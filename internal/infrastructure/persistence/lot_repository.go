package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// fifoOrder is the order in which lots are consumed
const fifoOrder = "received_date ASC, id ASC"

// GormLotRepository implements LotRepository using GORM
type GormLotRepository struct {
	db *gorm.DB
}

// NewGormLotRepository creates a new GormLotRepository
func NewGormLotRepository(db *gorm.DB) *GormLotRepository {
	return &GormLotRepository{db: db}
}

// FindByID finds a lot by its ID
func (r *GormLotRepository) FindByID(ctx context.Context, id int64) (*inventory.Lot, error) {
	var model models.LotModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "lot", id)
	}
	return model.ToDomain(), nil
}

// FindByProduct returns the lots of a product in FIFO order
func (r *GormLotRepository) FindByProduct(ctx context.Context, productID int64, includeDepleted bool) ([]*inventory.Lot, error) {
	query := r.db.WithContext(ctx).Where("product_id = ?", productID)
	if !includeDepleted {
		query = query.Where("quantity_remaining > 0")
	}
	return r.find(query.Order(fifoOrder))
}

// FindAvailableForUpdate locks and returns the lots with remaining stock, in FIFO order
func (r *GormLotRepository) FindAvailableForUpdate(ctx context.Context, productID int64) ([]*inventory.Lot, error) {
	return r.find(forUpdate(r.db.WithContext(ctx)).
		Where("product_id = ? AND quantity_remaining > 0", productID).
		Order(fifoOrder))
}

// FindByIDsForUpdate locks and returns the given lots in id order
func (r *GormLotRepository) FindByIDsForUpdate(ctx context.Context, ids []int64) ([]*inventory.Lot, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	return r.find(forUpdate(r.db.WithContext(ctx)).Where("id IN ?", ids).Order("id ASC"))
}

func (r *GormLotRepository) find(query *gorm.DB) ([]*inventory.Lot, error) {
	var rows []models.LotModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	lots := make([]*inventory.Lot, len(rows))
	for i := range rows {
		lots[i] = rows[i].ToDomain()
	}
	return lots, nil
}

// Create inserts a new lot and assigns its ID
func (r *GormLotRepository) Create(ctx context.Context, lot *inventory.Lot) error {
	model := models.LotModelFromDomain(lot)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err, "lot", lot.ID)
	}
	lot.ID = model.ID
	return nil
}

// Save updates the quantities of a lot if nobody changed it since it was read
func (r *GormLotRepository) Save(ctx context.Context, lot *inventory.Lot) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("id = ? AND version = ?", lot.ID, lot.Version).
		Updates(map[string]any{
			"quantity_remaining": lot.QuantityRemaining,
			"quantity_damaged":   lot.QuantityDamaged,
			"quantity_lost":      lot.QuantityLost,
			"version":            lot.Version + 1,
			"updated_at":         now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return staleVersion("lot", lot.ID)
	}
	lot.Version++
	lot.UpdatedAt = now
	return nil
}

// SumRemaining sums the remaining quantity of a product's lots
func (r *GormLotRepository) SumRemaining(ctx context.Context, productID int64) (decimal.Decimal, error) {
	var result struct {
		Total decimal.Decimal
	}
	if err := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Select("COALESCE(SUM(quantity_remaining), 0) as total").
		Where("product_id = ?", productID).
		Scan(&result).Error; err != nil {
		return decimal.Zero, err
	}
	return result.Total, nil
}

// ExistsForProduct reports whether any lot was ever created for the product
func (r *GormLotRepository) ExistsForProduct(ctx context.Context, productID int64) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.LotModel{}).
		Where("product_id = ?", productID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// LatestUnitPrice returns the unit price of the most recently received lot
func (r *GormLotRepository) LatestUnitPrice(ctx context.Context, productID int64) (decimal.Decimal, bool, error) {
	var model models.LotModel
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("received_date DESC, id DESC").
		First(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, false, nil
	}
	if err != nil {
		return decimal.Zero, false, err
	}
	return model.UnitPrice, true, nil
}

var _ inventory.LotRepository = (*GormLotRepository)(nil)
