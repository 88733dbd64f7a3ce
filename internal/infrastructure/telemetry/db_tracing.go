package telemetry

import (
	"context"
	"errors"
	"time"

	"github.com/erp/warehouse/internal/infrastructure/config"
	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contextKey string

const queryStartKey contextKey = "db_query_start"

// operation places callbacks around one gorm callback chain
type operation struct {
	name     string
	register func(db *gorm.DB, before bool, anchor, name string, fn func(*gorm.DB)) error
}

var operations = []operation{
	{"create", func(db *gorm.DB, before bool, anchor, name string, fn func(*gorm.DB)) error {
		p := db.Callback().Create()
		if before {
			return p.Before(anchor).Register(name, fn)
		}
		return p.After(anchor).Register(name, fn)
	}},
	{"query", func(db *gorm.DB, before bool, anchor, name string, fn func(*gorm.DB)) error {
		p := db.Callback().Query()
		if before {
			return p.Before(anchor).Register(name, fn)
		}
		return p.After(anchor).Register(name, fn)
	}},
	{"update", func(db *gorm.DB, before bool, anchor, name string, fn func(*gorm.DB)) error {
		p := db.Callback().Update()
		if before {
			return p.Before(anchor).Register(name, fn)
		}
		return p.After(anchor).Register(name, fn)
	}},
	{"delete", func(db *gorm.DB, before bool, anchor, name string, fn func(*gorm.DB)) error {
		p := db.Callback().Delete()
		if before {
			return p.Before(anchor).Register(name, fn)
		}
		return p.After(anchor).Register(name, fn)
	}},
	{"row", func(db *gorm.DB, before bool, anchor, name string, fn func(*gorm.DB)) error {
		p := db.Callback().Row()
		if before {
			return p.Before(anchor).Register(name, fn)
		}
		return p.After(anchor).Register(name, fn)
	}},
	{"raw", func(db *gorm.DB, before bool, anchor, name string, fn func(*gorm.DB)) error {
		p := db.Callback().Raw()
		if before {
			return p.Before(anchor).Register(name, fn)
		}
		return p.After(anchor).Register(name, fn)
	}},
}

// registerAround installs fn before or after the anchor of every operation,
// named prefix:<operation>. anchor maps an operation name to its anchor callback.
func registerAround(db *gorm.DB, prefix string, before bool, anchor func(op string) string, fn func(op string) func(*gorm.DB)) error {
	for _, op := range operations {
		if err := op.register(db, before, anchor(op.name), prefix+":"+op.name, fn(op.name)); err != nil {
			return err
		}
	}
	return nil
}

func gormAnchor(op string) string { return "gorm:" + op }

// otelgorm ends its span in otel:after:<op>, so annotations must run first
func otelAfterAnchor(op string) string {
	if op == "query" {
		return "otel:after:select"
	}
	return "otel:after:" + op
}

// markStart stores the statement start time for the after callbacks
func markStart(string) func(*gorm.DB) {
	return func(db *gorm.DB) {
		if db.Statement.Context != nil {
			db.Statement.Context = context.WithValue(db.Statement.Context, queryStartKey, time.Now())
		}
	}
}

func queryElapsed(db *gorm.DB) (time.Duration, bool) {
	if db.Statement.Context == nil {
		return 0, false
	}
	start, ok := db.Statement.Context.Value(queryStartKey).(time.Time)
	if !ok {
		return 0, false
	}
	return time.Since(start), true
}

// RegisterDBTracing installs otelgorm and annotates its spans with the
// table, affected rows and a slow-query event above the configured threshold
func RegisterDBTracing(db *gorm.DB, cfg config.TelemetryConfig, logger *zap.Logger, extra ...otelgorm.Option) error {
	if !cfg.Enabled || !cfg.DBTraceEnabled {
		logger.Debug("Database tracing disabled")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName("warehouse")}
	if !cfg.DBLogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	opts = append(opts, extra...)
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}
	if err := registerAround(db, "otel_timing", true, gormAnchor, markStart); err != nil {
		return err
	}

	threshold := cfg.DBSlowQueryThresh
	if err := registerAround(db, "otel_annotate", true, otelAfterAnchor, func(string) func(*gorm.DB) {
		return func(db *gorm.DB) { annotateSpan(db, threshold) }
	}); err != nil {
		return err
	}

	logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", cfg.DBLogFullSQL),
		zap.Duration("slow_query_threshold", threshold))
	return nil
}

func annotateSpan(db *gorm.DB, threshold time.Duration) {
	if db.Statement.Context == nil {
		return
	}
	span := trace.SpanFromContext(db.Statement.Context)
	if !span.IsRecording() {
		return
	}

	span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}
	if db.Error != nil && !errors.Is(db.Error, gorm.ErrRecordNotFound) {
		span.RecordError(db.Error)
	}
	if elapsed, ok := queryElapsed(db); ok && threshold > 0 && elapsed > threshold {
		span.AddEvent("slow_query", trace.WithAttributes(
			attribute.Int64("duration_ms", elapsed.Milliseconds()),
			attribute.Int64("threshold_ms", threshold.Milliseconds()),
		))
	}
}
