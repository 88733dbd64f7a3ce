package inventory

import (
	"context"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/domain/shared"
)

// TransactionScope provides transactional access to inventory repositories.
// When a function is executed within a transaction scope, all repository operations
// will be part of the same database transaction and will be committed or rolled back atomically.
type TransactionScope interface {
	// Execute runs the given function within a database transaction.
	// If the function returns an error, the transaction is rolled back.
	// If the function succeeds, the transaction is committed.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error

	// Snapshot runs a read-only function against one consistent view of the store
	Snapshot(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all inventory repositories within a transaction.
// All repositories returned share the same underlying database transaction.
//
// Lock order inside a transaction: document row, then product rows by ascending id, then lots.
type TransactionalRepositories interface {
	Products() inventory.ProductRepository
	Lots() inventory.LotRepository
	Serials() inventory.SerialRepository
	Ledger() inventory.LedgerRepository
	Receivings() inventory.ReceivingRepository
	Pickings() inventory.PickingOrderRepository
	StockTakes() inventory.StockTakeRepository
	Damages() inventory.DamageRepository
	// Events records domain events in the outbox of the current transaction
	Events() shared.EventRecorder
}
