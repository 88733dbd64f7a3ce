// Package models contains GORM-specific persistence models that map to database tables.
// These models are separate from domain entities to keep the domain layer pure and free
// from ORM concerns.
//
// Key Principles:
// 1. Domain entities should be free of GORM tags and infrastructure concerns
// 2. Persistence models contain all GORM annotations and table mappings
// 3. Mappers convert between domain entities and persistence models
// 4. Repositories use persistence models for database operations
//
// Structure:
// - base.go: Base persistence models (BaseModel, AggregateModel)
// - product.go: Product reference rows
// - stock.go: Lots, serials and ledger entries
// - documents.go: Receivings, picking orders and stock-takes
// - damage.go: Damage records and pending damage accumulators
// - outbox.go: Outbox pattern model for event delivery
package models

// All returns every persistence model in dependency order. The SQL
// migrations define the production schema; AutoMigrate over this list is
// used for SQLite-backed tests.
func All() []any {
	return []any{
		&ProductModel{},
		&LotModel{},
		&SerialModel{},
		&LedgerEntryModel{},
		&ReceivingModel{},
		&ReceivingDetailModel{},
		&PickingOrderModel{},
		&PickingDetailModel{},
		&PickingAllocationModel{},
		&StockTakeModel{},
		&StockTakeDetailModel{},
		&DamageRecordModel{},
		&PendingDamageModel{},
		&OutboxEntryModel{},
	}
}
