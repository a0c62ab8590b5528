package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/api"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/archive"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/cache"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/config"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/ports"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/infrastructure/openweather"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/logger"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/orchestrator"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/producer"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/quota"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/retry"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/scheduler"
	"github.com/kpeis695/ithaca-weather-dashboard/internal/storage"
)

type Bootstrap struct {
	config *config.Config
	logger logger.Logger
}

func NewBootstrap() (*Bootstrap, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	log := logger.New(cfg.App.LogLevel, cfg.App.Env).WithField("service", cfg.App.Name)

	return &Bootstrap{
		config: cfg,
		logger: log,
	}, nil
}

func (b *Bootstrap) Run() error {
	b.logger.Infof("Starting %s service", b.config.App.Name)
	b.logger.Infof("Environment: %s", b.config.App.Env)
	b.logger.Infof("Monitoring %d locations every %v", len(b.config.Locations), b.config.Scheduler.Interval)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-signalChan
		b.logger.Infof("Received signal: %v. Shutting down...", sig)
		cancel()
	}()

	deps, err := b.initDependencies(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.close(b.logger)

	b.logger.Info("Performing initial health checks...")
	healthChecker := NewHealthChecker(
		b.config.HealthCheck.Timeout,
		b.config.HealthCheck.RetryInterval,
		b.config.HealthCheck.MaxRetries,
		b.logger,
	)
	healthChecker.Register("OpenWeather API", deps.fetcher.HealthCheck)
	healthChecker.Register("Store", deps.store.HealthCheck)
	if deps.publisher != nil {
		healthChecker.Register("Kafka", deps.publisher.HealthCheck)
	}

	if err := healthChecker.CheckAll(ctx); err != nil {
		return fmt.Errorf("initial health checks failed: %w", err)
	}

	orch := orchestrator.NewOrchestrator(
		deps.fetcher,
		retry.New(retry.Config{
			MaxAttempts: b.config.Retry.MaxAttempts,
			BaseDelay:   b.config.Retry.BaseDelay,
			MaxDelay:    b.config.Retry.MaxDelay,
		}, b.logger),
		deps.store,
		deps.quota,
		b.config.Locations,
		b.logger,
	)
	orch.WithShutdownGrace(b.config.App.ShutdownTimeout)
	if deps.cache != nil {
		orch.WithCache(deps.cache)
	}
	if deps.publisher != nil {
		orch.WithPublisher(deps.publisher)
	}
	if deps.archiver != nil {
		orch.WithArchiver(deps.archiver)
	}

	if err := orch.SeedLastSuccess(ctx); err != nil {
		b.logger.Warnf("Failed to seed staleness ranking from store: %v", err)
	}

	monitor := cron.New()
	if _, err := monitor.AddFunc(b.config.HealthCheck.MonitorSpec, func() {
		healthChecker.CheckOnce(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule health monitor: %w", err)
	}
	monitor.Start()
	defer monitor.Stop()

	apiServer := api.NewAPIServer(
		api.NewAPIHandler(deps.store, deps.cache, b.config.Locations, b.logger),
		api.NewMiddleware(b.config.API.RateLimit, b.config.API.RateWindow, b.logger),
		b.config,
		b.logger,
	)
	if err := apiServer.Start(); err != nil {
		return fmt.Errorf("failed to start API server: %w", err)
	}

	sched := scheduler.New(b.config.Scheduler.Interval, func(ctx context.Context) error {
		_, err := orch.RunCycle(ctx)
		return err
	}, b.logger)

	go sched.Run(ctx)

	<-ctx.Done()

	b.logger.Info("Stopping service...")
	if !waitWithTimeout(sched.Done(), b.config.App.ShutdownTimeout) {
		b.logger.Warn("Scheduler drain exceeded the shutdown timeout; abandoning the in-flight cycle")
	}

	if err := apiServer.Stop(context.Background()); err != nil {
		b.logger.Errorf("API server shutdown error: %v", err)
	}

	b.logger.Info("Service stopped gracefully")
	return nil
}

// waitWithTimeout reports whether done closed before the timeout elapsed.
func waitWithTimeout(done <-chan struct{}, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-done:
		return true
	case <-timer.C:
		return false
	}
}

type dependencies struct {
	fetcher   ports.Fetcher
	store     ports.Store
	quota     *quota.State
	cache     ports.Cache
	publisher ports.Publisher
	archiver  ports.Archiver
}

func (d *dependencies) close(log logger.Logger) {
	if d.cache != nil {
		if err := d.cache.Close(); err != nil {
			log.Errorf("Failed to close cache: %v", err)
		}
	}
	if d.publisher != nil {
		if err := d.publisher.Close(); err != nil {
			log.Errorf("Failed to close publisher: %v", err)
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			log.Errorf("Failed to close store: %v", err)
		}
	}
}

func (b *Bootstrap) initDependencies(ctx context.Context) (*dependencies, error) {
	b.logger.Info("Initializing dependencies...")

	deps := &dependencies{}

	deps.quota = quota.New(b.config.Quota.DailyLimit, b.config.Quota.PerMinuteLimit)

	// The first configured location doubles as the health probe target.
	deps.fetcher = openweather.NewClient(
		b.config.OpenWeather.BaseURL,
		b.config.OpenWeather.APIKey,
		b.config.OpenWeather.Units,
		deps.quota,
		b.config.Locations[0],
		b.logger,
	)
	b.logger.Info("OpenWeather client initialized")

	switch b.config.Database.Driver {
	case "postgres":
		store, err := storage.NewPostgresStore(ctx, b.config.Database.URL, b.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to create postgres store: %w", err)
		}
		deps.store = store
		b.logger.Info("Postgres store initialized")
	case "memory":
		deps.store = storage.NewMemoryStore()
		b.logger.Warn("Using in-memory store; readings will not survive a restart")
	default:
		return nil, fmt.Errorf("unknown database driver: %s", b.config.Database.Driver)
	}

	if b.config.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(
			b.config.Redis.Addr,
			b.config.Redis.Password,
			b.config.Redis.DB,
			b.config.Redis.TTL,
			b.logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis cache: %w", err)
		}
		deps.cache = redisCache
		b.logger.Info("Redis cache initialized")
	}

	if b.config.Kafka.Enabled {
		publisher, err := producer.NewKafkaPublisher(
			b.config.Kafka.Broker,
			b.config.Kafka.Topic,
			b.config.Kafka.RequiredAcks,
			b.config.Kafka.MaxRetries,
			b.logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka publisher: %w", err)
		}
		deps.publisher = publisher
		b.logger.Infof("Kafka publisher initialized for topic: %s", b.config.Kafka.Topic)
	}

	if b.config.Archive.Enabled {
		archiver, err := archive.NewMinioArchive(
			b.config.Archive.Endpoint,
			b.config.Archive.AccessKey,
			b.config.Archive.SecretKey,
			b.config.Archive.Bucket,
			b.config.Archive.UseSSL,
			b.logger,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to create archive storage: %w", err)
		}
		deps.archiver = archiver
		b.logger.Infof("Raw payload archive initialized for bucket: %s", b.config.Archive.Bucket)
	}

	return deps, nil
}
