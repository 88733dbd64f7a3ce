package persistence

import (
	"context"
	"time"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormReceivingRepository implements ReceivingRepository using GORM
type GormReceivingRepository struct {
	db *gorm.DB
}

// NewGormReceivingRepository creates a new GormReceivingRepository
func NewGormReceivingRepository(db *gorm.DB) *GormReceivingRepository {
	return &GormReceivingRepository{db: db}
}

// Create inserts a receiving with its details and assigns their IDs
func (r *GormReceivingRepository) Create(ctx context.Context, receiving *inventory.Receiving) error {
	model := models.ReceivingModelFromDomain(receiving)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err, "receiving", receiving.ID)
	}
	receiving.ID = model.ID
	for i := range receiving.Details {
		receiving.Details[i].ID = model.Details[i].ID
		receiving.Details[i].ReceivingID = model.ID
	}
	return nil
}

// FindByID finds a receiving with its details
func (r *GormReceivingRepository) FindByID(ctx context.Context, id int64) (*inventory.Receiving, error) {
	return r.load(r.db.WithContext(ctx), id)
}

// FindByDetailIDForUpdate locks and returns the receiving owning a detail
func (r *GormReceivingRepository) FindByDetailIDForUpdate(ctx context.Context, detailID int64) (*inventory.Receiving, error) {
	var detail models.ReceivingDetailModel
	if err := r.db.WithContext(ctx).Select("id", "receiving_id").First(&detail, "id = ?", detailID).Error; err != nil {
		return nil, translateError(err, "receiving detail", detailID)
	}
	return r.load(forUpdate(r.db.WithContext(ctx)), detail.ReceivingID)
}

func (r *GormReceivingRepository) load(query *gorm.DB, id int64) (*inventory.Receiving, error) {
	var model models.ReceivingModel
	if err := query.
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "receiving", id)
	}
	return model.ToDomain(), nil
}

// Save updates the receiving header with optimistic locking and rewrites its details
func (r *GormReceivingRepository) Save(ctx context.Context, receiving *inventory.Receiving) error {
	model := models.ReceivingModelFromDomain(receiving)
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.ReceivingModel{}).
		Where("id = ? AND version = ?", receiving.ID, receiving.Version).
		Updates(map[string]any{
			"status":       model.Status,
			"note":         model.Note,
			"completed_at": model.CompletedAt,
			"version":      receiving.Version + 1,
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return staleVersion("receiving", receiving.ID)
	}
	for i := range model.Details {
		if err := r.db.WithContext(ctx).Omit(clause.Associations).Save(&model.Details[i]).Error; err != nil {
			return translateError(err, "receiving detail", model.Details[i].ID)
		}
	}
	receiving.IncrementVersion()
	receiving.UpdatedAt = now
	return nil
}

// PartnerForDetail returns the partner of the receiving owning a detail
func (r *GormReceivingRepository) PartnerForDetail(ctx context.Context, detailID int64) (int64, error) {
	var partnerID int64
	err := r.db.WithContext(ctx).
		Table(models.ReceivingModel{}.TableName()+" AS r").
		Select("r.partner_id").
		Joins("JOIN "+models.ReceivingDetailModel{}.TableName()+" AS d ON d.receiving_id = r.id").
		Where("d.id = ?", detailID).
		Limit(1).
		Scan(&partnerID).Error
	if err != nil {
		return 0, err
	}
	if partnerID == 0 {
		return 0, translateError(gorm.ErrRecordNotFound, "receiving detail", detailID)
	}
	return partnerID, nil
}

var _ inventory.ReceivingRepository = (*GormReceivingRepository)(nil)
