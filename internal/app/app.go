package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"MetalsMonitor/internal/config"
	"MetalsMonitor/internal/infrastructure/feed"
	"MetalsMonitor/internal/infrastructure/perplexity"
	"MetalsMonitor/internal/infrastructure/scheduler"
	"MetalsMonitor/internal/infrastructure/storage"
	"MetalsMonitor/internal/logging"
	"MetalsMonitor/internal/normalize"
	"MetalsMonitor/internal/ports"
	"MetalsMonitor/internal/usecase"
)

// Application wires configuration to use cases and lifecycle orchestration.
type Application struct {
	cfg      config.Config
	logger   *slog.Logger
	store    ports.ArticleStore
	pipeline *usecase.Pipeline
}

// New validates configuration and builds a runnable application instance.
func New(cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	store, err := openStore(cfg, baseLogger)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", cfg.Store.Backend, err)
	}

	source := perplexity.NewClient(cfg.Search)
	writer := feed.NewGenerator(cfg.Feed, nil)

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:     source,
		Store:      store,
		Feed:       writer,
		Normalizer: normalize.New(nil),
		Logger:     baseLogger.With("component", "pipeline"),
		Queries:    cfg.Queries,
		Lookback:   time.Duration(cfg.Pipeline.LookbackHours) * time.Hour,
		QueryDelay: time.Duration(cfg.Pipeline.QueryDelaySeconds) * time.Second,
		FeedItems:  cfg.Feed.MaxItems,
	})

	return &Application{
		cfg:      cfg,
		logger:   baseLogger,
		store:    store,
		pipeline: pipeline,
	}, nil
}

func openStore(cfg config.Config, logger *slog.Logger) (ports.ArticleStore, error) {
	switch cfg.Store.Backend {
	case "postgres":
		return storage.NewPostgresStore(cfg.Store.DSN, cfg.Store.RetentionCap)
	default:
		return storage.NewCSVStore(cfg.Store.Path, cfg.Store.RetentionCap,
			logger.With("component", "store.csv")), nil
	}
}

// RunOnce executes a single pipeline pass.
func (a *Application) RunOnce(ctx context.Context) error {
	defer a.store.Close()

	_, err := a.pipeline.Run(ctx)
	return err
}

// RunScheduled executes the pipeline on the configured interval until the
// context is cancelled.
func (a *Application) RunScheduled(ctx context.Context) error {
	defer a.store.Close()

	interval := time.Duration(a.cfg.Scheduler.IntervalHours) * time.Hour
	driver := scheduler.NewIntervalScheduler(interval)
	runner := usecase.NewScheduler(driver, a.pipeline)

	if err := runner.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	return runner.Stop(context.Background())
}
