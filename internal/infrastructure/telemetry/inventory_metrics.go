package telemetry

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"time"

	appinv "github.com/erp/warehouse/internal/application/inventory"
	"github.com/erp/warehouse/internal/domain/inventory"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// Attribute keys of the inventory metrics
var (
	AttrProductID       = attribute.Key("product_id")
	AttrTransactionType = attribute.Key("transaction_type")
	AttrOperation       = attribute.Key("operation")
	AttrCheck           = attribute.Key("check")
)

// ErrMeterNil is returned when no meter is supplied
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// StockLevelProvider reads the current stock state for the periodic gauges
type StockLevelProvider interface {
	// OnHandByProduct returns the remaining lot quantity per product
	OnHandByProduct(ctx context.Context) (map[int64]decimal.Decimal, error)
	// PendingDamageByProduct returns the accumulated, not yet returned damage per product
	PendingDamageByProduct(ctx context.Context) (map[int64]decimal.Decimal, error)
}

// InventoryMetrics records inventory business metrics. It implements the
// application Metrics interface and optionally collects stock gauges.
type InventoryMetrics struct {
	logger *zap.Logger

	allocations       metric.Int64Counter
	allocatedQuantity metric.Float64Counter
	allocationLots    metric.Int64Histogram
	insufficientStock metric.Int64Counter
	postings          metric.Int64Counter
	postedQuantity    metric.Float64Counter
	violations        metric.Int64Counter
	conflictRetries   metric.Int64Counter
	onHand            metric.Float64Gauge
	pendingDamage     metric.Float64Gauge

	provider    StockLevelProvider
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once
}

// NewInventoryMetrics creates the inventory instruments on meter
func NewInventoryMetrics(meter metric.Meter, provider StockLevelProvider, logger *zap.Logger) (*InventoryMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &InventoryMetrics{logger: logger, provider: provider, stopChan: make(chan struct{})}

	var err error
	if m.allocations, err = meter.Int64Counter("warehouse_allocation_total",
		metric.WithDescription("FIFO allocations performed"), metric.WithUnit("{allocations}")); err != nil {
		return nil, err
	}
	if m.allocatedQuantity, err = meter.Float64Counter("warehouse_allocated_quantity_total",
		metric.WithDescription("Quantity allocated from lots"), metric.WithUnit("{units}")); err != nil {
		return nil, err
	}
	if m.allocationLots, err = meter.Int64Histogram("warehouse_allocation_lots",
		metric.WithDescription("Lots touched by one allocation"),
		metric.WithExplicitBucketBoundaries(1, 2, 3, 5, 8, 13)); err != nil {
		return nil, err
	}
	if m.insufficientStock, err = meter.Int64Counter("warehouse_insufficient_stock_total",
		metric.WithDescription("Allocations rejected for insufficient stock")); err != nil {
		return nil, err
	}
	if m.postings, err = meter.Int64Counter("warehouse_ledger_postings_total",
		metric.WithDescription("Ledger entries appended"), metric.WithUnit("{entries}")); err != nil {
		return nil, err
	}
	if m.postedQuantity, err = meter.Float64Counter("warehouse_ledger_quantity_total",
		metric.WithDescription("Absolute quantity posted to the ledger"), metric.WithUnit("{units}")); err != nil {
		return nil, err
	}
	if m.violations, err = meter.Int64Counter("warehouse_consistency_violations_total",
		metric.WithDescription("Ledger and lot consistency violations detected")); err != nil {
		return nil, err
	}
	if m.conflictRetries, err = meter.Int64Counter("warehouse_conflict_retries_total",
		metric.WithDescription("Operations retried after an optimistic locking conflict")); err != nil {
		return nil, err
	}
	if m.onHand, err = meter.Float64Gauge("warehouse_on_hand_quantity",
		metric.WithDescription("Remaining lot quantity per product"), metric.WithUnit("{units}")); err != nil {
		return nil, err
	}
	if m.pendingDamage, err = meter.Float64Gauge("warehouse_pending_damage_quantity",
		metric.WithDescription("Damage accumulated towards a return order per product"), metric.WithUnit("{units}")); err != nil {
		return nil, err
	}
	return m, nil
}

func productAttr(productID int64) attribute.KeyValue {
	return AttrProductID.String(strconv.FormatInt(productID, 10))
}

// RecordAllocation counts one FIFO allocation
func (m *InventoryMetrics) RecordAllocation(ctx context.Context, productID int64, quantity decimal.Decimal, lotCount int) {
	attrs := metric.WithAttributes(productAttr(productID))
	m.allocations.Add(ctx, 1, attrs)
	m.allocatedQuantity.Add(ctx, quantity.InexactFloat64(), attrs)
	m.allocationLots.Record(ctx, int64(lotCount))
}

// RecordInsufficientStock counts a rejected allocation
func (m *InventoryMetrics) RecordInsufficientStock(ctx context.Context, productID int64) {
	m.insufficientStock.Add(ctx, 1, metric.WithAttributes(productAttr(productID)))
}

// RecordLedgerPosting counts one appended ledger entry
func (m *InventoryMetrics) RecordLedgerPosting(ctx context.Context, txType inventory.TransactionType, quantity decimal.Decimal) {
	attrs := metric.WithAttributes(AttrTransactionType.String(string(txType)))
	m.postings.Add(ctx, 1, attrs)
	m.postedQuantity.Add(ctx, quantity.Abs().InexactFloat64(), attrs)
}

// RecordConsistencyViolation counts a violation and marks the active span
func (m *InventoryMetrics) RecordConsistencyViolation(ctx context.Context, productID int64, check string) {
	m.violations.Add(ctx, 1, metric.WithAttributes(productAttr(productID), AttrCheck.String(check)))
	AddEvent(ctx, "consistency_violation", productAttr(productID), AttrCheck.String(check))
}

// RecordConflictRetry counts a retried operation
func (m *InventoryMetrics) RecordConflictRetry(ctx context.Context, operation string) {
	m.conflictRetries.Add(ctx, 1, metric.WithAttributes(AttrOperation.String(operation)))
}

// StartPeriodicCollection samples the stock gauges every interval until Stop or ctx is done
func (m *InventoryMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	if m.provider == nil {
		return
	}
	m.collectOnce.Do(func() {
		if interval <= 0 {
			interval = 5 * time.Minute
		}
		go m.runPeriodicCollection(ctx, interval)
	})
}

func (m *InventoryMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	m.Collect(ctx)
	for {
		select {
		case <-m.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.Collect(ctx)
		}
	}
}

// Collect samples the stock gauges once
func (m *InventoryMetrics) Collect(ctx context.Context) {
	if m.provider == nil {
		return
	}
	onHand, err := m.provider.OnHandByProduct(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect on-hand quantities", zap.Error(err))
	}
	for productID, qty := range onHand {
		m.onHand.Record(ctx, qty.InexactFloat64(), metric.WithAttributes(productAttr(productID)))
	}

	pending, err := m.provider.PendingDamageByProduct(ctx)
	if err != nil {
		m.logger.Warn("Failed to collect pending damage", zap.Error(err))
	}
	for productID, qty := range pending {
		m.pendingDamage.Record(ctx, qty.InexactFloat64(), metric.WithAttributes(productAttr(productID)))
	}
}

// Stop stops the periodic collection
func (m *InventoryMetrics) Stop() {
	m.stopOnce.Do(func() { close(m.stopChan) })
}

var _ appinv.Metrics = (*InventoryMetrics)(nil)
