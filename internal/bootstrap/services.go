package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-items-api/config"
	"github.com/target/mmk-items-api/internal/core"
	"github.com/target/mmk-items-api/internal/data"
	httpx "github.com/target/mmk-items-api/internal/http"
	"github.com/target/mmk-items-api/internal/observability/notify/kafka"
	"github.com/target/mmk-items-api/internal/observability/notify/slack"
	"github.com/target/mmk-items-api/internal/observability/statsd"
	"github.com/target/mmk-items-api/internal/service"
	"github.com/target/mmk-items-api/internal/service/runnotifier"
	"github.com/target/mmk-items-api/internal/workerpool"
)

// ServiceContainer holds all application services.
type ServiceContainer struct {
	Items         *service.ItemService
	Engine        *service.ItemProcessingService
	BatchRuns     *service.BatchRunService
	Filter        *service.ItemFilterService
	Pool          *workerpool.Pool
	Observability ObservabilityContainer
}

// Close waits for in-flight batch runs and the worker pool, then releases
// observability clients.
func (c ServiceContainer) Close(ctx context.Context) error {
	var errs []error
	// Runs detached from their request still use the pool and the sinks.
	if c.Engine != nil {
		if err := c.Engine.Drain(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain batch runs: %w", err))
		}
	}
	if c.Pool != nil {
		if err := c.Pool.CloseContext(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close worker pool: %w", err))
		}
	}
	if err := c.Observability.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ObservabilityContainer groups shared observability dependencies.
type ObservabilityContainer struct {
	MetricsSink    statsd.Sink
	MetricsConfig  config.ObservabilityMetricsConfig
	RunNotifier    *runnotifier.Service
	NotifierConfig config.ObservabilityNotificationsConfig

	statsdClient   *statsd.Client
	kafkaPublisher *kafka.Publisher
}

// Close flushes and closes the statsd and Kafka clients.
func (o ObservabilityContainer) Close() error {
	var errs []error
	if o.kafkaPublisher != nil {
		if err := o.kafkaPublisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close kafka publisher: %w", err))
		}
	}
	if o.statsdClient != nil {
		if err := o.statsdClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close statsd client: %w", err))
		}
	}
	return errors.Join(errs...)
}

// ServiceDeps contains the infrastructure services are built on.
type ServiceDeps struct {
	DB          *sql.DB
	RedisClient redis.UniversalClient // Optional: enables the item cache
	Config      *config.AppConfig
	Logger      *slog.Logger
}

func buildObservability(logger *slog.Logger, cfg *config.AppConfig) ObservabilityContainer {
	obsLogger := logger
	if obsLogger == nil {
		obsLogger = slog.Default()
	}

	obs := ObservabilityContainer{
		MetricsConfig:  cfg.Observability.Metrics,
		NotifierConfig: cfg.Observability.Notifications,
	}

	if cfg.Observability.Metrics.IsEnabled() {
		client, err := statsd.NewClient(statsd.Config{
			Enabled: true,
			Address: cfg.Observability.Metrics.StatsdAddress,
			Prefix:  cfg.Observability.Metrics.Prefix,
			Logger:  obsLogger,
		})
		if err != nil {
			obsLogger.Error("failed to initialise statsd client", "error", err)
		} else {
			obs.statsdClient = client
			obs.MetricsSink = client
		}
	}

	var sinks []runnotifier.SinkRegistration
	sinks, obs.kafkaPublisher = buildKafkaSink(obsLogger, cfg.Kafka, sinks)
	sinks = buildSlackSink(obsLogger, cfg, sinks)

	obs.RunNotifier = runnotifier.NewService(runnotifier.Options{
		Logger: obsLogger,
		Sinks:  sinks,
		Metadata: map[string]string{
			"services": cfg.Services,
		},
	})
	return obs
}

func buildKafkaSink(
	logger *slog.Logger,
	cfg config.KafkaConfig,
	sinks []runnotifier.SinkRegistration,
) ([]runnotifier.SinkRegistration, *kafka.Publisher) {
	if !cfg.Enabled {
		return sinks, nil
	}
	publisher, err := kafka.NewPublisher(kafka.Config{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		WriteTimeout: cfg.WriteTimeout,
	})
	if err != nil {
		logger.Error("failed to initialise kafka publisher", "error", err)
		return sinks, nil
	}
	logger.Info("publishing batch runs to kafka", "topic", cfg.Topic, "brokers", len(cfg.Brokers))
	return append(sinks, runnotifier.SinkRegistration{Name: "kafka", Sink: publisher}), publisher
}

func buildSlackSink(
	logger *slog.Logger,
	cfg *config.AppConfig,
	sinks []runnotifier.SinkRegistration,
) []runnotifier.SinkRegistration {
	notifications := cfg.Observability.Notifications
	if !notifications.Enabled || !notifications.Slack.Enabled {
		return sinks
	}
	runURLPrefix := ""
	if cfg.HTTP.BaseURL != "" {
		runURLPrefix = cfg.HTTP.BaseURL + "/api/batch-runs/"
	}
	client, err := slack.NewClient(slack.Config{
		WebhookURL:   notifications.Slack.WebhookURL,
		Channel:      notifications.Slack.Channel,
		Username:     notifications.Slack.Username,
		Timeout:      notifications.Timeout,
		RetryLimit:   notifications.RetryLimit,
		RunURLPrefix: runURLPrefix,
		FailuresOnly: notifications.Slack.FailuresOnly,
	})
	if err != nil {
		logger.Error("failed to initialise slack notifier", "error", err)
		return sinks
	}
	return append(sinks, runnotifier.SinkRegistration{Name: "slack", Sink: client})
}

func buildItemStore(deps *ServiceDeps, logger *slog.Logger) (*core.CachedItemStore, error) {
	opts := core.CachedItemStoreOptions{
		Repo:   data.NewItemRepo(deps.DB),
		Config: core.ItemCacheConfig{TTL: deps.Config.Cache.ItemTTL},
		Logger: logger,
	}
	if deps.Config.Cache.Enabled && deps.RedisClient != nil {
		opts.Cache = data.NewRedisCacheRepo(deps.RedisClient)
	}
	return core.NewCachedItemStore(opts)
}

// NewServices builds the service container. The returned worker pool is
// already started; callers release it with ServiceContainer.Close.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service dependencies with config are required")
	}
	if deps.DB == nil {
		return ServiceContainer{}, errors.New("database is required")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config

	store, err := buildItemStore(deps, logger)
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build item store: %w", err)
	}
	items, err := service.NewItemService(service.ItemServiceOptions{Repo: store})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build item service: %w", err)
	}
	runsRepo := data.NewBatchRunRepo(deps.DB)
	batchRuns, err := service.NewBatchRunService(service.BatchRunServiceOptions{Repo: runsRepo})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build batch run service: %w", err)
	}

	mutator, err := service.NewItemMutator(service.ItemMutatorOptions{
		Store:        store,
		Delay:        cfg.Processor.ItemDelay,
		SaveAttempts: cfg.Processor.SaveAttempts,
		RetryBackoff: cfg.Processor.RetryBackoff,
		Logger:       logger,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build item mutator: %w", err)
	}

	pool := workerpool.New(workerpool.Options{
		Size:      cfg.Processor.Concurrency,
		QueueSize: cfg.Processor.QueueSize,
		Logger:    logger,
	})
	if err = pool.Start(context.Background()); err != nil {
		return ServiceContainer{}, fmt.Errorf("start worker pool: %w", err)
	}

	obs := buildObservability(logger, cfg)
	engineOpts := service.ItemProcessingServiceOptions{
		Store:     store,
		Processor: mutator,
		Pool:      pool,
		Runs:      runsRepo,
		Metrics:   obs.MetricsSink,
		Logger:    logger,
	}
	if obs.RunNotifier.Enabled() {
		engineOpts.Notifier = obs.RunNotifier
	}
	engine, err := service.NewItemProcessingService(engineOpts)
	if err != nil {
		closeErr := errors.Join(pool.Close(), obs.Close())
		return ServiceContainer{}, errors.Join(fmt.Errorf("build processing engine: %w", err), closeErr)
	}

	return ServiceContainer{
		Items:         items,
		Engine:        engine,
		BatchRuns:     batchRuns,
		Filter:        service.NewItemFilterService(nil),
		Pool:          pool,
		Observability: obs,
	}, nil
}

// ServiceOrchestrationConfig contains everything needed to run the enabled services.
type ServiceOrchestrationConfig struct {
	Config      *config.AppConfig
	Services    ServiceContainer
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

const (
	// shutdownWaitTimeout is the maximum time to wait for services to stop gracefully.
	shutdownWaitTimeout = 15 * time.Second
)

// serviceStartupDeps groups dependencies for service startup.
type serviceStartupDeps struct {
	ctx             context.Context
	cfg             *ServiceOrchestrationConfig
	logger          *slog.Logger
	enabledServices map[config.ServiceMode]bool
	errCh           chan error
}

// backgroundService describes a startable background component.
type backgroundService struct {
	mode  config.ServiceMode
	name  string
	start func(context.Context) error
}

// backgroundServiceHandle tracks a running background service.
type backgroundServiceHandle struct {
	mode config.ServiceMode
	name string
	done <-chan struct{}
}

// healthChecks reports the dependencies /healthz probes.
func healthChecks(cfg *ServiceOrchestrationConfig) []httpx.HealthCheck {
	var checks []httpx.HealthCheck
	if cfg.DB != nil {
		checks = append(checks, httpx.HealthCheck{Name: "database", Check: cfg.DB.PingContext})
	}
	if cfg.RedisClient != nil {
		cache := data.NewRedisCacheRepo(cfg.RedisClient)
		checks = append(checks, httpx.HealthCheck{Name: "redis", Check: cache.Health})
	}
	if pool := cfg.Services.Pool; pool != nil {
		checks = append(checks, httpx.HealthCheck{Name: "worker_pool", Check: func(context.Context) error {
			if pool.Stats().Closed {
				return workerpool.ErrPoolClosed
			}
			return nil
		}})
	}
	return checks
}

// startHTTPServerIfEnabled starts the HTTP server if enabled.
func startHTTPServerIfEnabled(deps *serviceStartupDeps) *http.Server {
	if deps == nil || deps.cfg == nil || !deps.enabledServices[config.ServiceModeHTTP] {
		return nil
	}
	return StartHTTPServer(&HTTPServerConfig{
		Config:   deps.cfg.Config,
		Services: deps.cfg.Services,
		Checks:   healthChecks(deps.cfg),
		Logger:   deps.logger,
	})
}

func launchBackground(ctx context.Context, deps *serviceStartupDeps, descriptor backgroundService) <-chan struct{} {
	if deps == nil || !deps.enabledServices[descriptor.mode] {
		return nil
	}
	logger := deps.logger
	if logger == nil {
		logger = slog.Default()
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := descriptor.start(ctx); err != nil {
			errMsg := fmt.Errorf("%s failed: %w", descriptor.name, err)
			select {
			case deps.errCh <- errMsg:
			case <-ctx.Done():
			default:
				logger.WarnContext(ctx, "dropping background service error",
					"service", descriptor.name,
					"error", errMsg,
				)
			}
		}
	}()

	logger.InfoContext(ctx, "background service started", "service", descriptor.name, "mode", descriptor.mode)
	return done
}

func startBackgroundServices(deps *serviceStartupDeps, services []backgroundService) []backgroundServiceHandle {
	if deps == nil {
		return nil
	}
	handles := make([]backgroundServiceHandle, 0, len(services))

	for _, svc := range services {
		done := launchBackground(deps.ctx, deps, svc)
		if done == nil {
			continue
		}

		handles = append(handles, backgroundServiceHandle{
			mode: svc.mode,
			name: svc.name,
			done: done,
		})
	}

	return handles
}

func newProcessorBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeProcessor,
		name: "batch processor",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil || deps.cfg.Config == nil {
				return nil
			}
			if deps.cfg.Services.Engine == nil {
				return errors.New("processing engine is not configured")
			}
			return RunProcessor(ctx, ProcessorConfig{
				Processor: deps.cfg.Services.Engine,
				Interval:  deps.cfg.Config.Processor.Interval,
				Logger:    deps.logger,
				Metrics:   deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func newReaperBackgroundService(deps *serviceStartupDeps) backgroundService {
	return backgroundService{
		mode: config.ServiceModeReaper,
		name: "reaper",
		start: func(ctx context.Context) error {
			if deps == nil || deps.cfg == nil {
				return nil
			}
			var reaperCfg config.ReaperConfig
			if deps.cfg.Config != nil {
				reaperCfg = deps.cfg.Config.Reaper
			}
			return RunReaper(ctx, ReaperConfig{
				DB:      deps.cfg.DB,
				Logger:  deps.logger,
				Config:  reaperCfg,
				Metrics: deps.cfg.Services.Observability.MetricsSink,
			})
		},
	}
}

func buildBackgroundServices(deps *serviceStartupDeps) []backgroundService {
	if deps == nil {
		return nil
	}
	return []backgroundService{
		newProcessorBackgroundService(deps),
		newReaperBackgroundService(deps),
	}
}

// ServiceStartupResult holds the results of starting all services.
type ServiceStartupResult struct {
	HTTPServer *http.Server
	Background []backgroundServiceHandle
}

// startServices starts all enabled services and returns their completion channels.
func startServices(deps *serviceStartupDeps) ServiceStartupResult {
	return ServiceStartupResult{
		HTTPServer: startHTTPServerIfEnabled(deps),
		Background: startBackgroundServices(deps, buildBackgroundServices(deps)),
	}
}

// RunServicesWithShutdown starts the enabled services and blocks until a
// signal or a service error, then stops everything.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil {
		return errors.New("service orchestration config is required")
	}
	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Config == nil {
		return errors.New("service orchestration config missing AppConfig")
	}

	enabledServices, err := cfg.Config.GetEnabledServices()
	if err != nil {
		return fmt.Errorf("determine enabled services: %w", err)
	}
	errCh := make(chan error, errorChannelBufferSize(enabledServices))

	result := startServices(&serviceStartupDeps{
		ctx:             serviceCtx,
		cfg:             cfg,
		logger:          logger,
		enabledServices: enabledServices,
		errCh:           errCh,
	})

	return waitForShutdown(shutdownConfig{
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  result.HTTPServer,
		services:    cfg.Services,
		logger:      logger,
		backgrounds: result.Background,
	})
}

func errorChannelCapacity(enabled map[config.ServiceMode]bool) int {
	count := 0
	for _, mode := range config.ValidServiceModes() {
		if enabled[mode] {
			count++
		}
	}
	return count
}

func errorChannelBufferSize(enabled map[config.ServiceMode]bool) int {
	size := errorChannelCapacity(enabled) + 1
	if size < 1 {
		return 1
	}
	return size
}

// shutdownConfig contains dependencies for graceful shutdown.
type shutdownConfig struct {
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	services    ServiceContainer
	logger      *slog.Logger
	backgrounds []backgroundServiceHandle
	// signals overrides os signal delivery in tests.
	signals <-chan os.Signal
}

// waitForShutdown waits for shutdown signal or service error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := cfg.signals
	if quit == nil {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
		quit = ch
	}

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel() // Cancel service context before waiting
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel() // Cancel service context before waiting
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

// gracefulStop stops intake first, then the loops, then drains in-flight batches.
func gracefulStop(cfg shutdownConfig) error {
	var errs []error

	if cfg.httpServer != nil {
		if err := ShutdownHTTPServer(ShutdownConfig{
			Context: context.Background(),
			Server:  cfg.httpServer,
			Logger:  cfg.logger,
		}); err != nil {
			errs = append(errs, err)
		}
	}

	for _, svc := range cfg.backgrounds {
		waitForService(svc.done, svc.name, cfg.logger)
	}

	closeCtx, cancel := context.WithTimeout(context.Background(), shutdownWaitTimeout)
	defer cancel()
	if err := cfg.services.Close(closeCtx); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// waitForService waits for a service to finish with timeout.
func waitForService(done <-chan struct{}, name string, logger *slog.Logger) {
	if done == nil {
		return
	}
	select {
	case <-done:
		logger.Info(name + " stopped")
	case <-time.After(shutdownWaitTimeout):
		logger.Warn("timeout waiting for " + name + " to stop")
	}
}
