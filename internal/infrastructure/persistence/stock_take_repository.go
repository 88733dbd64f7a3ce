package persistence

import (
	"context"
	"time"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormStockTakeRepository implements StockTakeRepository using GORM
type GormStockTakeRepository struct {
	db *gorm.DB
}

// NewGormStockTakeRepository creates a new GormStockTakeRepository
func NewGormStockTakeRepository(db *gorm.DB) *GormStockTakeRepository {
	return &GormStockTakeRepository{db: db}
}

// Create inserts a stock-take with its details and assigns their IDs
func (r *GormStockTakeRepository) Create(ctx context.Context, st *inventory.StockTake) error {
	model := models.StockTakeModelFromDomain(st)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err, "stock-take", st.ID)
	}
	st.ID = model.ID
	for i := range st.Details {
		st.Details[i].ID = model.Details[i].ID
		st.Details[i].StockTakeID = model.ID
	}
	return nil
}

// FindByID finds a stock-take with its details
func (r *GormStockTakeRepository) FindByID(ctx context.Context, id int64) (*inventory.StockTake, error) {
	return r.load(r.db.WithContext(ctx), id)
}

// FindByIDForUpdate locks and returns a stock-take with its details
func (r *GormStockTakeRepository) FindByIDForUpdate(ctx context.Context, id int64) (*inventory.StockTake, error) {
	return r.load(forUpdate(r.db.WithContext(ctx)), id)
}

func (r *GormStockTakeRepository) load(query *gorm.DB, id int64) (*inventory.StockTake, error) {
	var model models.StockTakeModel
	if err := query.
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "stock-take", id)
	}
	return model.ToDomain(), nil
}

// Save updates the stock-take header with optimistic locking and rewrites its details
func (r *GormStockTakeRepository) Save(ctx context.Context, st *inventory.StockTake) error {
	model := models.StockTakeModelFromDomain(st)
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.StockTakeModel{}).
		Where("id = ? AND version = ?", st.ID, st.Version).
		Updates(map[string]any{
			"status":       model.Status,
			"note":         model.Note,
			"submitted_at": model.SubmittedAt,
			"reviewed_by":  model.ReviewedBy,
			"review_note":  model.ReviewNote,
			"reviewed_at":  model.ReviewedAt,
			"completed_at": model.CompletedAt,
			"cancelled_at": model.CancelledAt,
			"version":      st.Version + 1,
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return staleVersion("stock-take", st.ID)
	}
	for i := range model.Details {
		if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(&model.Details[i]).Error; err != nil {
			return translateError(err, "stock-take detail", model.Details[i].ID)
		}
	}
	st.IncrementVersion()
	st.UpdatedAt = now
	return nil
}

var _ inventory.StockTakeRepository = (*GormStockTakeRepository)(nil)
