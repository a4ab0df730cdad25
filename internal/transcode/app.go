package transcode

import (
	"context"
	"fmt"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"enzymeml/internal/blob"
	"enzymeml/internal/catalog"
	"enzymeml/internal/config"
	"enzymeml/internal/observability"
)

// App is a service and its background worker assembled from configuration.
type App struct {
	Service *Service
	Worker  *Worker
	Logger  *zap.Logger
	Metrics *observability.Recorder

	catalog catalog.Store
}

// NewFromConfig opens the archive store and run catalog named by cfg and
// builds the logger, metrics recorder, service and worker. A nil cfg means
// config.Default. The worker is not started.
func NewFromConfig(ctx context.Context, cfg *config.Config) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	logger, err := observability.NewLogger(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return nil, err
	}
	store, err := blob.Open(ctx, cfg.BlobConfig())
	if err != nil {
		return nil, fmt.Errorf("open archive store: %w", err)
	}
	cat, err := catalog.Open(ctx, cfg.CatalogConfig())
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	metrics := observability.NewRecorder(cfg.Metrics.Namespace)
	svc := NewService(store, cat, WithLogger(logger), WithMetrics(metrics), WithVerbose(cfg.Log.Verbose))

	logger.Info("transcoder configured",
		zap.Strings("sources", cfg.Sources),
		zap.String("blob", string(store.Driver())),
		zap.String("catalog", cfg.Catalog.Driver),
	)
	return &App{
		Service: svc,
		Worker:  NewWorker(svc, cfg.Worker.QueueSize, cfg.Worker.Workers),
		Logger:  logger,
		Metrics: metrics,
		catalog: cat,
	}, nil
}

// Close stops the worker, closes the catalog and flushes the logger.
func (a *App) Close(ctx context.Context) error {
	err := a.Worker.Stop(ctx)
	err = multierr.Append(err, a.catalog.Close())
	_ = a.Logger.Sync()
	return err
}
