package persistence

import (
	"context"
	"time"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormDamageRepository implements DamageRepository using GORM
type GormDamageRepository struct {
	db *gorm.DB
}

// NewGormDamageRepository creates a new GormDamageRepository
func NewGormDamageRepository(db *gorm.DB) *GormDamageRepository {
	return &GormDamageRepository{db: db}
}

// Create inserts a damage record and assigns its ID
func (r *GormDamageRepository) Create(ctx context.Context, record *inventory.DamageRecord) error {
	model := &models.DamageRecordModel{}
	model.FromDomain(record)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err, "damage record", record.ID)
	}
	record.ID = model.ID
	return nil
}

// FindBySource returns the damage records produced by one document
func (r *GormDamageRepository) FindBySource(ctx context.Context, source inventory.DamageSource, sourceID int64) ([]inventory.DamageRecord, error) {
	var rows []models.DamageRecordModel
	if err := r.db.WithContext(ctx).
		Where("source_type = ? AND source_id = ?", source, sourceID).
		Order("id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]inventory.DamageRecord, len(rows))
	for i := range rows {
		records[i] = rows[i].ToDomain()
	}
	return records, nil
}

// LockPending locks the accumulator of a (product, partner) pair, creating it when missing
func (r *GormDamageRepository) LockPending(ctx context.Context, productID, partnerID int64) (*inventory.PendingDamage, error) {
	db := r.db.WithContext(ctx)
	seed := &models.PendingDamageModel{}
	seed.FromDomain(inventory.NewPendingDamage(productID, partnerID))
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(seed).Error; err != nil {
		return nil, err
	}

	var model models.PendingDamageModel
	if err := forUpdate(db).
		Where("product_id = ? AND partner_id = ?", productID, partnerID).
		First(&model).Error; err != nil {
		return nil, translateError(err, "pending damage of product", productID)
	}
	return model.ToDomain(), nil
}

// SavePending updates an accumulator with optimistic locking
func (r *GormDamageRepository) SavePending(ctx context.Context, pending *inventory.PendingDamage) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.PendingDamageModel{}).
		Where("id = ? AND version = ?", pending.ID, pending.Version).
		Updates(map[string]any{
			"quantity":   pending.Quantity,
			"version":    pending.Version + 1,
			"updated_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return staleVersion("pending damage", pending.ID)
	}
	pending.Version++
	pending.UpdatedAt = now
	return nil
}

var _ inventory.DamageRepository = (*GormDamageRepository)(nil)
