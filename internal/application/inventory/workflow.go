package inventory

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// workflow runs inventory operations inside one transaction, retrying on
// optimistic locking conflicts and checking the ledger/lot cross invariant
// of every touched product before commit.
type workflow struct {
	scope   TransactionScope
	opts    Options
	metrics Metrics
	logger  *zap.Logger
	now     func() time.Time
}

func newWorkflow(scope TransactionScope, opts Options, metrics Metrics, logger *zap.Logger) *workflow {
	if metrics == nil {
		metrics = NopMetrics()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &workflow{
		scope:   scope,
		opts:    opts,
		metrics: metrics,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// txContext is the state shared by the steps of one workflow transaction
type txContext struct {
	ctx    context.Context
	repos  TransactionalRepositories
	ledger *ledgerWriter
	now    time.Time
	actor  string
}

func (w *workflow) run(ctx context.Context, operation, actor string, fn func(tx *txContext) error) error {
	attempts := w.opts.MaxConflictRetries + 1
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		err = w.scope.Execute(ctx, func(repos TransactionalRepositories) error {
			tx := &txContext{
				ctx:    ctx,
				repos:  repos,
				ledger: newLedgerWriter(repos, w.metrics),
				now:    w.now(),
				actor:  actor,
			}
			if err := fn(tx); err != nil {
				return err
			}
			return tx.ledger.verify(ctx)
		})
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) || attempt == attempts {
			break
		}
		w.metrics.RecordConflictRetry(ctx, operation)
		w.logger.Warn("Retrying inventory operation after concurrency conflict",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}

	w.reportViolation(ctx, operation, err)
	var stockErr *inventory.InsufficientStockError
	if errors.As(err, &stockErr) {
		w.metrics.RecordInsufficientStock(ctx, stockErr.ProductID)
	}
	return err
}

// reportViolation logs and counts a consistency violation carried by err
func (w *workflow) reportViolation(ctx context.Context, operation string, err error) {
	var cv *inventory.ConsistencyViolationError
	if !errors.As(err, &cv) {
		return
	}
	w.metrics.RecordConsistencyViolation(ctx, cv.ProductID, cv.Check)
	w.logger.Error("Inventory consistency violation",
		zap.String("operation", operation),
		zap.Int64("product_id", cv.ProductID),
		zap.String("check", cv.Check),
		zap.String("expected", cv.Expected.String()),
		zap.String("actual", cv.Actual.String()))
}

// lockProducts locks the product rows in ascending id order and returns them by id.
// A missing product is reported as not found.
func (tx *txContext) lockProducts(ids ...int64) (map[int64]*inventory.Product, error) {
	unique := make([]int64, 0, len(ids))
	seen := make(map[int64]bool, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			unique = append(unique, id)
		}
	}
	sort.Slice(unique, func(i, j int) bool { return unique[i] < unique[j] })

	products, err := tx.repos.Products().LockByIDs(tx.ctx, unique)
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]*inventory.Product, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	for _, id := range unique {
		if _, ok := byID[id]; !ok {
			return nil, shared.NewDomainError(shared.ErrNotFound.Code, fmt.Sprintf("product %d not found", id))
		}
	}
	return byID, nil
}

// saveLots persists mutated lots
func (tx *txContext) saveLots(lots ...*inventory.Lot) error {
	for _, lot := range lots {
		if err := lot.CheckInvariant(); err != nil {
			return err
		}
		if err := tx.repos.Lots().Save(tx.ctx, lot); err != nil {
			return err
		}
	}
	return nil
}

// ledgerWriter appends postings while tracking the tail of each touched product's chain
type ledgerWriter struct {
	repos     TransactionalRepositories
	metrics   Metrics
	positions map[int64]*inventory.LedgerPosition
}

func newLedgerWriter(repos TransactionalRepositories, metrics Metrics) *ledgerWriter {
	return &ledgerWriter{
		repos:     repos,
		metrics:   metrics,
		positions: make(map[int64]*inventory.LedgerPosition),
	}
}

func (w *ledgerWriter) position(ctx context.Context, productID int64) (*inventory.LedgerPosition, error) {
	if pos, ok := w.positions[productID]; ok {
		return pos, nil
	}
	pos, err := w.repos.Ledger().Position(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("failed to load ledger position of product %d: %w", productID, err)
	}
	w.positions[productID] = &pos
	return &pos, nil
}

// balance returns the current ledger balance of a product
func (w *ledgerWriter) balance(ctx context.Context, productID int64) (decimal.Decimal, error) {
	pos, err := w.position(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return pos.Balance, nil
}

// post appends one entry and returns it with its assigned id
func (w *ledgerWriter) post(ctx context.Context, p inventory.Posting, at time.Time) (*inventory.LedgerEntry, error) {
	pos, err := w.position(ctx, p.ProductID)
	if err != nil {
		return nil, err
	}
	// work on a copy so a failed insert leaves the cached tail untouched
	next := *pos
	entry, err := next.Append(p, at)
	if err != nil {
		return nil, err
	}
	if err := w.repos.Ledger().Append(ctx, entry); err != nil {
		return nil, err
	}
	*pos = next
	w.metrics.RecordLedgerPosting(ctx, entry.Type, entry.QuantityChange)
	return entry, nil
}

// verify checks sum(lot remaining) == latest balance for every product posted to
func (w *ledgerWriter) verify(ctx context.Context) error {
	ids := make([]int64, 0, len(w.positions))
	for id := range w.positions {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		remaining, err := w.repos.Lots().SumRemaining(ctx, id)
		if err != nil {
			return err
		}
		if balance := w.positions[id].Balance; !remaining.Equal(balance) {
			return &inventory.ConsistencyViolationError{
				ProductID: id,
				Check:     "lot remaining vs ledger balance",
				Expected:  balance,
				Actual:    remaining,
			}
		}
	}
	return nil
}
