package persistence

import (
	"context"
	"time"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GormPickingOrderRepository implements PickingOrderRepository using GORM
type GormPickingOrderRepository struct {
	db *gorm.DB
}

// NewGormPickingOrderRepository creates a new GormPickingOrderRepository
func NewGormPickingOrderRepository(db *gorm.DB) *GormPickingOrderRepository {
	return &GormPickingOrderRepository{db: db}
}

// Create inserts the order header and assigns its ID
func (r *GormPickingOrderRepository) Create(ctx context.Context, order *inventory.PickingOrder) error {
	model := models.PickingOrderModelFromDomain(order)
	if err := r.db.WithContext(ctx).Omit(clause.Associations).Create(model).Error; err != nil {
		return translateError(err, "picking order", order.ID)
	}
	order.ID = model.ID
	return nil
}

// FindByID returns the order with details, allocations and bound serials
func (r *GormPickingOrderRepository) FindByID(ctx context.Context, id int64) (*inventory.PickingOrder, error) {
	return r.load(ctx, r.db.WithContext(ctx), id)
}

// FindByIDForUpdate locks and returns the order with details, allocations and bound serials
func (r *GormPickingOrderRepository) FindByIDForUpdate(ctx context.Context, id int64) (*inventory.PickingOrder, error) {
	return r.load(ctx, forUpdate(r.db.WithContext(ctx)), id)
}

// FindByDetailIDForUpdate locks and returns the order owning the detail
func (r *GormPickingOrderRepository) FindByDetailIDForUpdate(ctx context.Context, detailID int64) (*inventory.PickingOrder, error) {
	var detail models.PickingDetailModel
	if err := r.db.WithContext(ctx).Select("picking_order_id").First(&detail, "id = ?", detailID).Error; err != nil {
		return nil, translateError(err, "picking detail", detailID)
	}
	return r.FindByIDForUpdate(ctx, detail.PickingOrderID)
}

func (r *GormPickingOrderRepository) load(ctx context.Context, query *gorm.DB, id int64) (*inventory.PickingOrder, error) {
	var model models.PickingOrderModel
	if err := query.
		Preload("Details", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Details.Allocations", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&model, "id = ?", id).Error; err != nil {
		return nil, translateError(err, "picking order", id)
	}
	order := model.ToDomain()
	if len(order.Details) == 0 {
		return order, nil
	}

	detailIDs := make([]int64, len(order.Details))
	for i, d := range order.Details {
		detailIDs[i] = d.ID
	}
	var serials []models.SerialModel
	if err := r.db.WithContext(ctx).
		Where("picking_detail_id IN ?", detailIDs).
		Order("id ASC").
		Find(&serials).Error; err != nil {
		return nil, err
	}
	byDetail := make(map[int64][]string, len(order.Details))
	for _, s := range serials {
		byDetail[*s.PickingDetailID] = append(byDetail[*s.PickingDetailID], s.SerialNumber)
	}
	for i := range order.Details {
		order.Details[i].SerialNumbers = byDetail[order.Details[i].ID]
	}
	return order, nil
}

// Save updates the order header with optimistic locking
func (r *GormPickingOrderRepository) Save(ctx context.Context, order *inventory.PickingOrder) error {
	now := time.Now().UTC()
	result := r.db.WithContext(ctx).
		Model(&models.PickingOrderModel{}).
		Where("id = ? AND version = ?", order.ID, order.Version).
		Updates(map[string]any{
			"status":       order.Status,
			"note":         order.Note,
			"completed_at": order.CompletedAt,
			"cancelled_at": order.CancelledAt,
			"version":      order.Version + 1,
			"updated_at":   now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return staleVersion("picking order", order.ID)
	}
	order.IncrementVersion()
	order.UpdatedAt = now
	return nil
}

// CreateDetail inserts a detail with its allocations and assigns their IDs
func (r *GormPickingOrderRepository) CreateDetail(ctx context.Context, detail *inventory.PickingDetail) error {
	model := &models.PickingDetailModel{}
	model.FromDomain(detail)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err, "picking detail", detail.ID)
	}
	detail.ID = model.ID
	for i := range detail.Allocations {
		detail.Allocations[i].ID = model.Allocations[i].ID
		detail.Allocations[i].PickingDetailID = model.ID
	}
	return nil
}

// UpdateDetail updates a detail and replaces its allocations
func (r *GormPickingOrderRepository) UpdateDetail(ctx context.Context, detail *inventory.PickingDetail) error {
	db := r.db.WithContext(ctx)
	if err := db.Model(&models.PickingDetailModel{}).
		Where("id = ?", detail.ID).
		Updates(map[string]any{
			"quantity_picked": detail.QuantityPicked,
			"unit_price":      detail.UnitPrice,
			"updated_at":      time.Now().UTC(),
		}).Error; err != nil {
		return err
	}
	if err := db.Where("picking_detail_id = ?", detail.ID).Delete(&models.PickingAllocationModel{}).Error; err != nil {
		return err
	}
	if len(detail.Allocations) == 0 {
		return nil
	}
	rows := make([]models.PickingAllocationModel, len(detail.Allocations))
	for i := range detail.Allocations {
		detail.Allocations[i].ID = 0
		detail.Allocations[i].PickingDetailID = detail.ID
		rows[i].FromDomain(&detail.Allocations[i])
	}
	if err := db.Create(&rows).Error; err != nil {
		return err
	}
	for i := range rows {
		detail.Allocations[i].ID = rows[i].ID
	}
	return nil
}

// DeleteDetail removes a detail and its allocations
func (r *GormPickingOrderRepository) DeleteDetail(ctx context.Context, detailID int64) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("picking_detail_id = ?", detailID).Delete(&models.PickingAllocationModel{}).Error; err != nil {
		return err
	}
	result := db.Delete(&models.PickingDetailModel{}, detailID)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return translateError(gorm.ErrRecordNotFound, "picking detail", detailID)
	}
	return nil
}

var _ inventory.PickingOrderRepository = (*GormPickingOrderRepository)(nil)
