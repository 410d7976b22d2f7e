package main

import (
	"context"
	"fmt"

	regularizationapp "github.com/rentflow/backend/internal/application/regularization"
	"github.com/rentflow/backend/internal/domain/regularization"
	"github.com/rentflow/backend/internal/domain/shared"
	"github.com/rentflow/backend/internal/infrastructure/cache"
	"github.com/rentflow/backend/internal/infrastructure/config"
	"github.com/rentflow/backend/internal/infrastructure/delivery"
	"github.com/rentflow/backend/internal/infrastructure/event"
	"github.com/rentflow/backend/internal/infrastructure/logger"
	"github.com/rentflow/backend/internal/infrastructure/persistence"
	"github.com/rentflow/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const meterName = "rentflow/regularization"

// application holds the wired services and everything that must be released
// when the command ends.
type application struct {
	service *regularizationapp.Service
	sender  *regularizationapp.SendService
	logger  *zap.Logger

	closers []func(context.Context) error
}

func (a *application) Close(ctx context.Context) {
	// reverse order: the bus drains before the database closes and
	// telemetry flushes last
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			a.logger.Warn("Error during shutdown", zap.Error(err))
		}
	}
}

func (a *application) onClose(fn func(context.Context) error) {
	a.closers = append(a.closers, fn)
}

func newApplication(ctx context.Context, cfg *config.Config, log *zap.Logger, outputDir string) (app *application, err error) {
	app = &application{logger: log}
	defer func() {
		if err != nil {
			app.Close(context.Background())
		}
	}()

	// Telemetry
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		Metrics:           cfg.Telemetry.MetricsEnabled,
		Logs:              cfg.Telemetry.LogsEnabled,
	}, log)
	if err != nil {
		return app, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	app.onClose(providers.Shutdown)
	log = providers.Bridge(log, zapcore.InfoLevel)
	app.logger = log

	// Database
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithLogger(log, logger.MapGormLogLevel(cfg.Log.Level)),
		persistence.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
	)
	if err != nil {
		return app, fmt.Errorf("failed to connect to database: %w", err)
	}
	app.onClose(func(context.Context) error { return db.Close() })

	tracingCfg := telemetry.DefaultDBTracingConfig()
	tracingCfg.Enabled = cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled
	tracingCfg.LogFullSQL = cfg.Telemetry.DBLogFullSQL
	tracingCfg.DBName = cfg.Database.DBName
	if err := telemetry.RegisterDBTracing(db.DB, tracingCfg, log); err != nil {
		return app, fmt.Errorf("failed to register database tracing: %w", err)
	}

	meter := providers.Meter(meterName)
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meter)
	if err != nil {
		return app, fmt.Errorf("failed to register database metrics: %w", err)
	}
	app.onClose(func(context.Context) error { return dbMetrics.Stop() })

	regMetrics, err := telemetry.NewRegularizationMetrics(meter)
	if err != nil {
		return app, fmt.Errorf("failed to create regularization metrics: %w", err)
	}

	// Idempotency store and send lock
	coordination, err := cache.NewFactory(cfg.Event, cfg.Redis, cache.WithLogger(log)).Create(ctx)
	if err != nil {
		return app, err
	}
	app.onClose(func(context.Context) error { return coordination.Close() })

	// Events
	bus := event.NewInMemoryEventBus(log)
	projection := event.NewIdempotentHandler(
		regularizationapp.NewLedgerProjection(persistence.NewGormLedgerWriter(db.DB), log),
		coordination.Store,
		log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{
			TTL:     cfg.Event.IdempotencyTTL,
			Enabled: cfg.Event.IdempotencyEnabled,
		}),
	)
	bus.Subscribe(projection, projection.EventTypes()...)
	if err := bus.Start(ctx); err != nil {
		return app, fmt.Errorf("failed to start event bus: %w", err)
	}
	app.onClose(func(ctx context.Context) error {
		stats := projection.Stats()
		log.Debug("Ledger projection stats",
			zap.Int64("processed", stats.Processed),
			zap.Int64("duplicate", stats.Duplicate),
			zap.Int64("failed", stats.Failed),
		)
		return bus.Stop(ctx)
	})

	// Services
	policy := regularization.FiscalYearPolicy{
		Min: cfg.Regularization.MinFiscalYear,
		Max: cfg.Regularization.MaxFiscalYear,
	}
	store := persistence.NewGormEventStore(db.DB, event.NewRegularizationSerializer())

	app.service = regularizationapp.NewService(regularizationapp.ServiceDeps{
		Repository:   persistence.NewEventSourcedRegularizationRepository(store, regularization.WithFiscalYearPolicy(policy)),
		Charges:      persistence.NewGormAnnualChargesFinder(db.DB),
		Leases:       persistence.NewGormLeaseFinder(db.DB),
		BillingLines: persistence.NewGormBillingLineFinder(db.DB),
		Water:        persistence.NewGormWaterDistributionFinder(db.DB),
		Calculator:   regularization.NewCalculator(regularization.WithWaterMarkers(cfg.Regularization.WaterMarkers...)),
		Publisher:    bus,
		Metrics:      regMetrics,
		Logger:       log,
	}, regularizationapp.ServiceOptions{
		FiscalYearPolicy: policy,
		SaveRetries:      cfg.Regularization.SaveRetries,
	})

	var senderOpts []delivery.SenderOption
	if outputDir != "" {
		senderOpts = append(senderOpts, delivery.WithOutputDir(outputDir))
	}
	documents, err := delivery.NewLoggingSender(log, senderOpts...)
	if err != nil {
		return app, err
	}

	app.sender = regularizationapp.NewSendService(
		app.service,
		persistence.NewGormTenantFinder(db.DB),
		documents,
		regMetrics,
		log,
		regularizationapp.WithBatchLocker(coordination.Locker),
	)
	return app, nil
}
