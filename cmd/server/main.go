package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	eventapp "github.com/erp/warehouse/internal/application/event"
	appinv "github.com/erp/warehouse/internal/application/inventory"
	"github.com/erp/warehouse/internal/domain/shared"
	"github.com/erp/warehouse/internal/infrastructure/cache"
	"github.com/erp/warehouse/internal/infrastructure/config"
	"github.com/erp/warehouse/internal/infrastructure/event"
	"github.com/erp/warehouse/internal/infrastructure/logger"
	"github.com/erp/warehouse/internal/infrastructure/messaging"
	"github.com/erp/warehouse/internal/infrastructure/persistence"
	"github.com/erp/warehouse/internal/infrastructure/telemetry"
	"github.com/erp/warehouse/internal/interfaces/http/handler"
	"github.com/erp/warehouse/internal/interfaces/http/middleware"
	"github.com/erp/warehouse/internal/interfaces/http/router"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	version         = "1.0.0"
	shutdownTimeout = 30 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log := logger.New(cfg.Log, cfg.App.Env)
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting warehouse service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	if err := run(cfg, log); err != nil {
		log.Fatal("Server terminated", zap.Error(err))
	}
	log.Info("Server exited gracefully")
}

func run(cfg *config.Config, log *zap.Logger) error {
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Telemetry providers fall back to no-ops when disabled
	tracerProvider, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}
	meterProvider, err := telemetry.NewMeterProvider(ctx, cfg.Telemetry, log)
	if err != nil {
		return err
	}
	defer shutdownTelemetry(log, tracerProvider, meterProvider)

	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	)
	db, err := persistence.NewDatabase(&cfg.Database, gormLog)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.RegisterDBTracing(db.DB, cfg.Telemetry, log); err != nil {
		return err
	}
	meter := meterProvider.Meter("warehouse")
	if _, err := telemetry.RegisterDBMetrics(db.DB, meter); err != nil {
		return err
	}

	var metrics appinv.Metrics = appinv.NopMetrics()
	if meterProvider.IsEnabled() {
		inventoryMetrics, err := telemetry.NewInventoryMetrics(meter, telemetry.NewGormStockLevelProvider(db.DB), log)
		if err != nil {
			return err
		}
		inventoryMetrics.StartPeriodicCollection(ctx, cfg.Telemetry.MetricsInterval)
		defer inventoryMetrics.Stop()
		metrics = inventoryMetrics
	}

	serializer := event.NewEventSerializer()
	event.RegisterAllEvents(serializer)
	scope := persistence.NewGormTransactionScope(db.DB, event.NewOutboxPublisher(serializer))
	opts := inventoryOptions(cfg.Inventory)

	productService := appinv.NewProductService(scope, opts, metrics, log)
	receivingService := appinv.NewReceivingService(scope, opts, metrics, log)
	pickingService := appinv.NewPickingService(scope, opts, metrics, log)
	stockTakeService := appinv.NewStockTakeService(scope, opts, metrics, log)
	damageService := appinv.NewDamageService(scope, opts, metrics, log)
	queryService := appinv.NewQueryService(scope, metrics, log)

	// Damage events flow: outbox -> processor -> bus -> accumulator (-> return order creator)
	store, err := cache.NewIdempotencyStore(ctx, cfg.Redis, log)
	if err != nil {
		return err
	}
	dedup := &event.IdempotencyMetrics{}
	handlerOpts := []event.IdempotentHandlerOption{
		event.WithIdempotencyConfig(shared.IdempotencyConfig{TTL: cfg.Event.IdempotencyTTL, Enabled: true}),
		event.WithIdempotencyMetrics(dedup),
	}
	defer func() {
		stats := dedup.Stats()
		log.Info("Damage event handling stats",
			zap.Int64("processed", stats.EventsProcessed),
			zap.Int64("duplicate", stats.EventsDuplicate),
			zap.Int64("failed", stats.EventsFailed),
		)
	}()
	bus := event.NewInMemoryEventBus(log)
	accumulator := appinv.NewDamageAccumulator(scope, opts, metrics, log)
	bus.Subscribe(event.NewIdempotentHandler(accumulator, store, log, handlerOpts...), accumulator.EventTypes()...)
	if opts.AutoCreateReturnOrders {
		creator := appinv.NewReturnOrderCreator(scope, opts, metrics, log)
		bus.Subscribe(event.NewIdempotentHandler(creator, store, log, handlerOpts...), creator.EventTypes()...)
	}
	if err := bus.Start(ctx); err != nil {
		return err
	}
	defer func() {
		_ = bus.Stop(context.Background())
	}()

	outboxRepo := event.NewGormOutboxRepository(db.DB)
	if cfg.Event.ProcessorEnabled {
		processor := event.NewOutboxProcessor(outboxRepo, bus, serializer, outboxProcessorConfig(cfg.Event), log)
		if cfg.Kafka.Enabled {
			forwarder := messaging.NewKafkaEventForwarder(cfg.Kafka, log)
			defer func() {
				if err := forwarder.Close(); err != nil {
					log.Error("Error closing kafka writer", zap.Error(err))
				}
			}()
			processor.WithForwarder(forwarder)
		}
		if err := processor.Start(ctx); err != nil {
			return err
		}
		defer func() {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := processor.Stop(stopCtx); err != nil {
				log.Error("Error stopping outbox processor", zap.Error(err))
			}
		}()
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}

	engine := gin.New()
	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	configureEngine(engine, cfg, log, r.BasePath()+"/health")
	router.RegisterWarehouseRoutes(r, router.Handlers{
		System:    handler.NewSystemHandler(cfg.App.Name, version, sqlDB),
		Product:   handler.NewProductHandler(productService),
		Receiving: handler.NewReceivingHandler(receivingService),
		Picking:   handler.NewPickingHandler(pickingService),
		StockTake: handler.NewStockTakeHandler(stockTakeService),
		Inventory: handler.NewInventoryHandler(queryService),
		Serial:    handler.NewSerialHandler(damageService),
		Outbox:    handler.NewOutboxHandler(eventapp.NewOutboxService(outboxRepo, log)),
	})
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// configureEngine installs the middleware chain. Tracing and metrics use the
// global providers installed by the telemetry package.
func configureEngine(engine *gin.Engine, cfg *config.Config, log *zap.Logger, healthPath string) {
	middleware.SetupValidator()

	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Warn("Invalid trusted proxies, trusting none", zap.Error(err))
		_ = engine.SetTrustedProxies(nil)
	}

	engine.Use(
		logger.Recovery(log),
		middleware.Tracing(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
			SkipPaths:   []string{healthPath},
		}),
		logger.GinMiddleware(log),
		middleware.Actor(),
		middleware.SpanAttributes(),
		middleware.Secure(),
		middleware.CORS(middleware.CORSConfigFrom(cfg.HTTP)),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
	)
}

func inventoryOptions(cfg config.InventoryConfig) appinv.Options {
	opts := appinv.DefaultOptions()
	if cfg.DamageThreshold.IsPositive() {
		opts.DamageThreshold = cfg.DamageThreshold
	}
	opts.EnforceOrderedQuantity = cfg.EnforceOrderedQuantity
	opts.StockTakeRequiresReview = cfg.StockTakeRequiresReview
	opts.AutoCreateReturnOrders = cfg.AutoCreateReturnOrders
	if cfg.MaxConflictRetries > 0 {
		opts.MaxConflictRetries = cfg.MaxConflictRetries
	}
	return opts
}

func outboxProcessorConfig(cfg config.EventConfig) event.OutboxProcessorConfig {
	pc := event.DefaultOutboxProcessorConfig()
	if cfg.BatchSize > 0 {
		pc.BatchSize = cfg.BatchSize
	}
	if cfg.PollInterval > 0 {
		pc.PollInterval = cfg.PollInterval
	}
	pc.CleanupEnabled = cfg.CleanupEnabled
	if cfg.CleanupRetention > 0 {
		pc.CleanupRetention = cfg.CleanupRetention
	}
	return pc
}

func shutdownTelemetry(log *zap.Logger, tp *telemetry.TracerProvider, mp *telemetry.MeterProvider) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := mp.Shutdown(ctx); err != nil {
		log.Warn("Meter provider shutdown failed", zap.Error(err))
	}
	if err := tp.Shutdown(ctx); err != nil {
		log.Warn("Tracer provider shutdown failed", zap.Error(err))
	}
}
