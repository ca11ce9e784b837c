// Package app initializes and holds long-lived services, acting as the
// dependency injection container for the CLI commands.
package app

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/tymekw/kotori-notify/internal/archive"
	"github.com/tymekw/kotori-notify/internal/clock/system"
	"github.com/tymekw/kotori-notify/internal/config"
	"github.com/tymekw/kotori-notify/internal/logging"
	"github.com/tymekw/kotori-notify/internal/mail"
	"github.com/tymekw/kotori-notify/internal/metrics"
	"github.com/tymekw/kotori-notify/internal/publish/pubsub"
	"github.com/tymekw/kotori-notify/internal/scrape"
	"github.com/tymekw/kotori-notify/internal/storage"
	"github.com/tymekw/kotori-notify/internal/tracker"
)

// App holds the shared, long-lived services for one process.
type App struct {
	Cfg      config.Config
	Logger   *zap.Logger
	Store    tracker.Store
	Runner   *tracker.Runner
	Registry *prometheus.Registry

	publisher *pubsub.Publisher
}

// New builds every service from config, failing fast on the first broken
// dependency. recipient is the notification address from the command line.
func New(ctx context.Context, cfg config.Config, recipient string) (*App, error) {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	store, err := storage.Open(ctx, cfg.Storage, logger.Named("storage"))
	if err != nil {
		logger.Error("storage init failed", zap.Error(err))
		return nil, fmt.Errorf("init storage: %w", err)
	}

	var publisher *pubsub.Publisher
	if cfg.Publish.Enabled() {
		publisher, err = pubsub.New(ctx, cfg.Publish.ProjectID, cfg.Publish.Topic)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("init publisher: %w", err)
		}
		logger.Info("change-event publishing enabled", zap.String("topic", cfg.Publish.Topic))
	}

	archiver, err := archive.Open(ctx, cfg.Archive)
	if err != nil {
		closePublisher(publisher)
		_ = store.Close()
		return nil, fmt.Errorf("init archive: %w", err)
	}

	clock := system.New()
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	source := scrape.New(scrape.Config{
		URL:       cfg.Source.URL,
		Titles:    cfg.Source.Titles,
		UserAgent: cfg.Source.UserAgent,
		Timeout:   cfg.Source.Timeout(),
	}, clock, logger.Named("scrape"))

	transport := mail.New(cfg.SMTP, logger.Named("mail"))
	detector := tracker.NewDetector(store, logger.Named("detector"))
	dispatcher := tracker.NewDispatcher(store, transport, tracker.DispatcherConfig{
		Recipient: recipient,
		PageURL:   cfg.Source.URL,
	}, logger.Named("dispatcher"))

	var pub tracker.Publisher
	if publisher != nil {
		pub = publisher
	}
	runner := tracker.NewRunner(
		source,
		store,
		detector,
		dispatcher,
		pub,
		archiver,
		m,
		tracker.RunnerConfig{
			Topic:         cfg.Publish.Topic,
			ArchivePrefix: cfg.Archive.Prefix,
		},
		logger.Named("runner"),
	)

	return &App{
		Cfg:       cfg,
		Logger:    logger,
		Store:     store,
		Runner:    runner,
		Registry:  registry,
		publisher: publisher,
	}, nil
}

// Close tears down services in reverse dependency order.
func (a *App) Close() {
	closePublisher(a.publisher)
	if err := a.Store.Close(); err != nil {
		a.Logger.Warn("store close failed", zap.Error(err))
	}
	// Best effort; stderr may be gone already on shutdown.
	_ = a.Logger.Sync()
}

func closePublisher(p *pubsub.Publisher) {
	if p != nil {
		_ = p.Close()
	}
}
