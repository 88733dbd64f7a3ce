package persistence

import (
	"context"
	"time"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

// GormSerialRepository implements SerialRepository using GORM
type GormSerialRepository struct {
	db *gorm.DB
}

// NewGormSerialRepository creates a new GormSerialRepository
func NewGormSerialRepository(db *gorm.DB) *GormSerialRepository {
	return &GormSerialRepository{db: db}
}

// FindByNumber finds a serial by its number
func (r *GormSerialRepository) FindByNumber(ctx context.Context, serialNumber string) (*inventory.Serial, error) {
	var model models.SerialModel
	if err := r.db.WithContext(ctx).First(&model, "serial_number = ?", serialNumber).Error; err != nil {
		return nil, translateError(err, "serial", serialNumber)
	}
	return model.ToDomain(), nil
}

// FindByNumbers returns the serials that exist among the given numbers
func (r *GormSerialRepository) FindByNumbers(ctx context.Context, serialNumbers []string) ([]*inventory.Serial, error) {
	if len(serialNumbers) == 0 {
		return nil, nil
	}
	return r.find(r.db.WithContext(ctx).Where("serial_number IN ?", serialNumbers).Order("id ASC"))
}

// FindInStockByLot locks and returns up to limit InStock serials of a lot
func (r *GormSerialRepository) FindInStockByLot(ctx context.Context, lotID int64, limit int) ([]*inventory.Serial, error) {
	if limit <= 0 {
		return nil, nil
	}
	return r.find(forUpdate(r.db.WithContext(ctx)).
		Where("lot_id = ? AND status = ?", lotID, inventory.SerialStatusInStock).
		Order("id ASC").
		Limit(limit))
}

// FindByPickingDetail returns the serials bound to a picking detail
func (r *GormSerialRepository) FindByPickingDetail(ctx context.Context, pickingDetailID int64) ([]*inventory.Serial, error) {
	return r.find(r.db.WithContext(ctx).Where("picking_detail_id = ?", pickingDetailID).Order("id ASC"))
}

func (r *GormSerialRepository) find(query *gorm.DB) ([]*inventory.Serial, error) {
	var rows []models.SerialModel
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	serials := make([]*inventory.Serial, len(rows))
	for i := range rows {
		serials[i] = rows[i].ToDomain()
	}
	return serials, nil
}

// CountInStockByLot counts InStock serials per lot of a product
func (r *GormSerialRepository) CountInStockByLot(ctx context.Context, productID int64) (map[int64]int64, error) {
	var rows []struct {
		LotID int64
		Total int64
	}
	if err := r.db.WithContext(ctx).
		Model(&models.SerialModel{}).
		Select("lot_id, COUNT(*) as total").
		Where("product_id = ? AND status = ?", productID, inventory.SerialStatusInStock).
		Group("lot_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	counts := make(map[int64]int64, len(rows))
	for _, row := range rows {
		counts[row.LotID] = row.Total
	}
	return counts, nil
}

// CreateBatch inserts serials and assigns their IDs
func (r *GormSerialRepository) CreateBatch(ctx context.Context, serials []*inventory.Serial) error {
	if len(serials) == 0 {
		return nil
	}
	rows := make([]*models.SerialModel, len(serials))
	for i, s := range serials {
		rows[i] = models.SerialModelFromDomain(s)
	}
	if err := r.db.WithContext(ctx).Create(&rows).Error; err != nil {
		return translateError(err, "serial", serials[0].SerialNumber)
	}
	for i := range rows {
		serials[i].ID = rows[i].ID
	}
	return nil
}

// Save updates the lifecycle fields of a serial
func (r *GormSerialRepository) Save(ctx context.Context, serial *inventory.Serial) error {
	return r.db.WithContext(ctx).
		Model(&models.SerialModel{}).
		Where("id = ?", serial.ID).
		Updates(map[string]any{
			"status":            serial.Status,
			"picking_detail_id": serial.PickingDetailID,
			"picked_at":         serial.PickedAt,
			"updated_at":        time.Now().UTC(),
		}).Error
}

var _ inventory.SerialRepository = (*GormSerialRepository)(nil)
