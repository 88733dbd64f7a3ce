package persistence

import (
	"context"
	"database/sql"

	appinv "github.com/erp/warehouse/internal/application/inventory"
	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/erp/warehouse/internal/infrastructure/event"
	"github.com/erp/warehouse/internal/infrastructure/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"gorm.io/gorm"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Every repository handed to the callback shares one transaction, and
// domain events recorded through Events() land in the outbox of that
// same transaction.
type GormTransactionScope struct {
	db        *gorm.DB
	publisher *event.OutboxPublisher
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, publisher *event.OutboxPublisher) *GormTransactionScope {
	return &GormTransactionScope{db: db, publisher: publisher}
}

// Execute runs fn within a read-write transaction.
// If fn returns an error, the transaction is rolled back.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "inventory.transaction", attribute.Bool("db.read_only", false))
	defer func() { telemetry.EndSpan(span, err) }()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.repositories(tx))
	})
}

// Snapshot runs fn in a read-only transaction. On PostgreSQL the
// transaction is REPEATABLE READ so multi-statement reports see one
// consistent snapshot.
func (s *GormTransactionScope) Snapshot(ctx context.Context, fn func(repos appinv.TransactionalRepositories) error) (err error) {
	ctx, span := telemetry.StartSpan(ctx, "inventory.snapshot", attribute.Bool("db.read_only", true))
	defer func() { telemetry.EndSpan(span, err) }()

	var opts *sql.TxOptions
	if s.db.Dialector.Name() == "postgres" {
		opts = &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true}
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(s.repositories(tx))
	}, opts)
}

func (s *GormTransactionScope) repositories(tx *gorm.DB) *gormTransactionalRepositories {
	return &gormTransactionalRepositories{tx: tx, events: s.publisher.Recorder(tx)}
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx     *gorm.DB
	events shared.EventRecorder
}

func (r *gormTransactionalRepositories) Products() inventory.ProductRepository {
	return NewGormProductRepository(r.tx)
}

func (r *gormTransactionalRepositories) Lots() inventory.LotRepository {
	return NewGormLotRepository(r.tx)
}

func (r *gormTransactionalRepositories) Serials() inventory.SerialRepository {
	return NewGormSerialRepository(r.tx)
}

func (r *gormTransactionalRepositories) Ledger() inventory.LedgerRepository {
	return NewGormLedgerRepository(r.tx)
}

func (r *gormTransactionalRepositories) Receivings() inventory.ReceivingRepository {
	return NewGormReceivingRepository(r.tx)
}

func (r *gormTransactionalRepositories) Pickings() inventory.PickingOrderRepository {
	return NewGormPickingOrderRepository(r.tx)
}

func (r *gormTransactionalRepositories) StockTakes() inventory.StockTakeRepository {
	return NewGormStockTakeRepository(r.tx)
}

func (r *gormTransactionalRepositories) Damages() inventory.DamageRepository {
	return NewGormDamageRepository(r.tx)
}

func (r *gormTransactionalRepositories) Events() shared.EventRecorder {
	return r.events
}

var _ appinv.TransactionScope = (*GormTransactionScope)(nil)

var _ appinv.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
