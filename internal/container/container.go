package container

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"go-flying-image/internal/capability"
	"go-flying-image/internal/config"
	"go-flying-image/internal/factory"
	"go-flying-image/internal/logger"
	"go-flying-image/internal/observer"
	"go-flying-image/internal/repository"
	"go-flying-image/internal/service"
	"go-flying-image/internal/storage"
	"go-flying-image/internal/transport"
	"go-flying-image/internal/worker"
	"go-flying-image/pkg/validation"
)

// Container holds all application dependencies
type Container struct {
	config     *config.Config
	registry   *prometheus.Registry
	pool       *worker.Pool
	events     *observer.EventPublisher
	generation service.GenerationService
	handler    http.Handler
	closers    []func() error
}

// NewContainer builds the dependency graph from configuration
func NewContainer(ctx context.Context, cfg *config.Config) (*Container, error) {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	events := observer.NewEventPublisher()
	events.Subscribe(observer.NewLoggingObserver(logger.Logger))
	events.Subscribe(observer.NewMetricsObserver(registry))

	platform, err := capability.NewPlatformClient(cfg.Platform.BaseURL, cfg.Platform.APIKey, cfg.Platform.Timeout)
	if err != nil {
		return nil, fmt.Errorf("failed to create platform client: %w", err)
	}

	auth, err := capability.NewJWTAuthenticator(cfg.Auth.SessionSecret, cfg.Auth.SignInURL, cfg.Auth.Issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to create authenticator: %w", err)
	}

	components := factory.NewComponentFactory(cfg, platform)

	transformer, err := components.TransformerFactory.CreateTransformer(ctx, cfg.Generation.Transformer)
	if err != nil {
		return nil, fmt.Errorf("failed to create transformer: %w", err)
	}

	store, closeStore, err := components.StorageFactory.CreateStore(ctx, cfg.History.Backend)
	if err != nil {
		return nil, fmt.Errorf("failed to create history store: %w", err)
	}

	pool := worker.NewPool(cfg.History.SyncWorkers)
	pool.Start()

	history := repository.NewSyncedHistoryRepository(store, pool)
	resultURLs := validation.NewURLValidator()
	images := repository.NewHTTPImageRepository(
		storage.NewHTTPImageFetcher(cfg.Generation.FetchTimeout,
			storage.WithRedirectGuard(resultURLs.ValidateResultURL),
			storage.WithDialGuard(validation.CheckIP),
		),
		resultURLs,
	)

	workspaces := service.NewWorkspaces()
	generation := service.NewGenerationService(workspaces, transformer, history, images, events, service.GenerationOptions{
		Model:         cfg.ModelName(),
		Prompt:        cfg.Generation.Prompt,
		Width:         cfg.Generation.Width,
		Height:        cfg.Generation.Height,
		Timeout:       cfg.Generation.Timeout,
		InlineResults: cfg.Generation.InlineResults,
	})

	handler, err := transport.NewHandler(transport.Dependencies{
		Auth:       auth,
		Accounts:   service.NewAccountService(platform),
		Workspace:  service.NewWorkspaceService(workspaces, service.NewIntake(validation.NewImageValidator(cfg.MaxUploadSize)), history),
		Generation: generation,
		Metrics:    promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}),
	}, cfg)
	if err != nil {
		pool.Close()
		_ = closeStore()
		return nil, err
	}

	return &Container{
		config:     cfg,
		registry:   registry,
		pool:       pool,
		events:     events,
		generation: generation,
		handler:    handler,
		closers:    []func() error{closeStore},
	}, nil
}

// Handler returns the HTTP handler
func (c *Container) Handler() http.Handler {
	return c.handler
}

// Config returns the configuration
func (c *Container) Config() *config.Config {
	return c.config
}

// Shutdown waits for running generations, flushes pending history syncs and
// releases backends. Call it after the HTTP server stopped accepting requests.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error
	if err := c.generation.Drain(ctx); err != nil {
		errs = append(errs, fmt.Errorf("drain generations: %w", err))
	}
	c.pool.Close()
	c.events.Wait()

	for _, closeFn := range c.closers {
		if err := closeFn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
