package inventory

import (
	"context"

	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/shopspring/decimal"
)

// Metrics receives inventory business measurements
type Metrics interface {
	RecordAllocation(ctx context.Context, productID int64, quantity decimal.Decimal, lotCount int)
	RecordInsufficientStock(ctx context.Context, productID int64)
	RecordLedgerPosting(ctx context.Context, txType inventory.TransactionType, quantity decimal.Decimal)
	RecordConsistencyViolation(ctx context.Context, productID int64, check string)
	RecordConflictRetry(ctx context.Context, operation string)
}

type nopMetrics struct{}

func (nopMetrics) RecordAllocation(context.Context, int64, decimal.Decimal, int) {}
func (nopMetrics) RecordInsufficientStock(context.Context, int64) {}
func (nopMetrics) RecordLedgerPosting(context.Context, inventory.TransactionType, decimal.Decimal) {}
func (nopMetrics) RecordConsistencyViolation(context.Context, int64, string) {}
func (nopMetrics) RecordConflictRetry(context.Context, string) {}

// NopMetrics returns a Metrics implementation that discards everything
func NopMetrics() Metrics { return nopMetrics{} }
