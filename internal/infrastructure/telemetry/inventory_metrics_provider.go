package telemetry

import (
	"context"

	"github.com/erp/warehouse/internal/infrastructure/persistence/models"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// GormStockLevelProvider implements StockLevelProvider with aggregate queries
type GormStockLevelProvider struct {
	db *gorm.DB
}

// NewGormStockLevelProvider creates a new GormStockLevelProvider
func NewGormStockLevelProvider(db *gorm.DB) *GormStockLevelProvider {
	return &GormStockLevelProvider{db: db}
}

type productQuantity struct {
	ProductID int64
	Total     decimal.Decimal
}

// OnHandByProduct returns the remaining lot quantity per product
func (p *GormStockLevelProvider) OnHandByProduct(ctx context.Context) (map[int64]decimal.Decimal, error) {
	return p.sum(ctx, &models.LotModel{}, "quantity_remaining")
}

// PendingDamageByProduct returns the accumulated damage per product over all partners
func (p *GormStockLevelProvider) PendingDamageByProduct(ctx context.Context) (map[int64]decimal.Decimal, error) {
	return p.sum(ctx, &models.PendingDamageModel{}, "quantity")
}

func (p *GormStockLevelProvider) sum(ctx context.Context, model any, column string) (map[int64]decimal.Decimal, error) {
	var rows []productQuantity
	if err := p.db.WithContext(ctx).
		Model(model).
		Select("product_id, COALESCE(SUM(" + column + "), 0) as total").
		Group("product_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}
	totals := make(map[int64]decimal.Decimal, len(rows))
	for _, r := range rows {
		totals[r.ProductID] = r.Total
	}
	return totals, nil
}
