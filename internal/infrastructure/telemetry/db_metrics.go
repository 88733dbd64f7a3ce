package telemetry

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"gorm.io/gorm"
)

// DBMetrics records statement latency and connection pool usage
type DBMetrics struct {
	duration metric.Float64Histogram
	errors   metric.Int64Counter
}

// RegisterDBMetrics instruments every gorm statement and observes the pool statistics
func RegisterDBMetrics(db *gorm.DB, meter metric.Meter) (*DBMetrics, error) {
	duration, err := meter.Float64Histogram("db.query.duration",
		metric.WithDescription("Database statement latency"),
		metric.WithUnit("ms"),
		metric.WithExplicitBucketBoundaries(1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500))
	if err != nil {
		return nil, err
	}
	errCounter, err := meter.Int64Counter("db.query.errors",
		metric.WithDescription("Database statements that failed"))
	if err != nil {
		return nil, err
	}
	m := &DBMetrics{duration: duration, errors: errCounter}

	if err := registerPoolGauges(db, meter); err != nil {
		return nil, err
	}
	if err := registerAround(db, "metrics_timing", true, gormAnchor, markStart); err != nil {
		return nil, err
	}
	if err := registerAround(db, "metrics_record", false, gormAnchor, func(op string) func(*gorm.DB) {
		return func(db *gorm.DB) { m.record(db, op) }
	}); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *DBMetrics) record(db *gorm.DB, op string) {
	elapsed, ok := queryElapsed(db)
	if !ok {
		return
	}
	ctx := db.Statement.Context
	attrs := metric.WithAttributes(
		attribute.String("db.operation", op),
		attribute.String("db.sql.table", db.Statement.Table),
	)
	m.duration.Record(ctx, float64(elapsed.Microseconds())/1000, attrs)
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		m.errors.Add(ctx, 1, attrs)
	}
}

func registerPoolGauges(db *gorm.DB, meter metric.Meter) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	open, err := meter.Int64ObservableGauge("db.pool.open_connections")
	if err != nil {
		return err
	}
	inUse, err := meter.Int64ObservableGauge("db.pool.in_use")
	if err != nil {
		return err
	}
	waits, err := meter.Int64ObservableCounter("db.pool.wait_count")
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(_ context.Context, o metric.Observer) error {
		stats := sqlDB.Stats()
		o.ObserveInt64(open, int64(stats.OpenConnections))
		o.ObserveInt64(inUse, int64(stats.InUse))
		o.ObserveInt64(waits, stats.WaitCount)
		return nil
	}, open, inUse, waits)
	return err
}
