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
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/target/clinic-portal/config"
	"github.com/target/clinic-portal/internal/adapters/memory"
	redisadapter "github.com/target/clinic-portal/internal/adapters/redis"
	"github.com/target/clinic-portal/internal/apiclient"
	"github.com/target/clinic-portal/internal/audit"
	"github.com/target/clinic-portal/internal/core"
	"github.com/target/clinic-portal/internal/data"
	"github.com/target/clinic-portal/internal/data/cryptoutil"
	httpx "github.com/target/clinic-portal/internal/http"
	"github.com/target/clinic-portal/internal/observability/statsd"
	"github.com/target/clinic-portal/internal/ports"
	"github.com/target/clinic-portal/internal/service"
)

const sessionSweepInterval = time.Minute

// ServiceContainer holds all application services.
type ServiceContainer struct {
	API           *apiclient.Client
	Sessions      ports.SessionStore
	Auth          *service.AuthService
	Guard         *service.RouteGuard
	Profile       *service.ProfileService
	Patients      *service.PatientService
	Prescriptions *service.PrescriptionService
	Diagnoses     *service.DiagnosisService
	Allergies     *service.AllergyService
	Catalog       *service.CatalogService
	Reports       *service.ReportService
	Analytics     *service.AnalyticsService
	Interactions  *service.InteractionService
	Health        map[string]httpx.HealthCheck
	MetricsSink   *statsd.Client
}

// ServiceDeps groups dependencies for service initialization.
// DB is nil unless auditing is enabled; RedisClient is nil unless a
// Redis-backed session store or cache is selected.
type ServiceDeps struct {
	Config      *config.AppConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient
	Logger      *slog.Logger
}

// NewServices wires the upstream client, session store, query cache, audit
// trail and the services built on them.
func NewServices(deps *ServiceDeps) (ServiceContainer, error) {
	if deps == nil || deps.Config == nil {
		return ServiceContainer{}, errors.New("service deps with config are required")
	}
	cfg := deps.Config
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	sink := buildMetricsSink(logger, cfg.Observability.Metrics)
	var metricsSink statsd.Sink
	if sink != nil {
		metricsSink = sink
	}

	client, err := apiclient.New(apiclient.Config{
		BaseURL:         cfg.Backend.BaseURL,
		AuthScheme:      cfg.Backend.AuthScheme,
		RefreshPath:     cfg.Backend.RefreshPath,
		RefreshCookies:  cfg.Backend.RefreshCookies,
		CoalesceRefresh: cfg.Backend.CoalesceRefresh,
		Timeout:         cfg.Backend.Timeout,
		Logger:          logger,
		Metrics:         metricsSink,
	})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build api client: %w", err)
	}

	sessions, err := newSessionStore(cfg.Session, deps.RedisClient)
	if err != nil {
		return ServiceContainer{}, err
	}
	cacheRepo, err := newCacheRepository(cfg.Cache, deps.RedisClient)
	if err != nil {
		return ServiceContainer{}, err
	}
	recorder := newAuditRecorder(cfg.Audit, deps.DB, logger)

	cache := core.NewQueryCache(core.QueryCacheOptions{
		Cache:  cacheRepo,
		Logger: logger,
		Prefix: cfg.Cache.KeyPrefix,
	})
	clinical := service.ClinicalServiceOptions{
		API:    client,
		Cache:  cache,
		Audit:  recorder,
		Logger: logger,
	}

	analytics, err := service.NewAnalyticsService(service.AnalyticsServiceOptions{Clinical: clinical})
	if err != nil {
		return ServiceContainer{}, fmt.Errorf("build analytics service: %w", err)
	}

	return ServiceContainer{
		API:      client,
		Sessions: sessions,
		Auth: service.MustNewAuthService(service.AuthServiceOptions{
			API:        client,
			Sessions:   sessions,
			Audit:      recorder,
			Logger:     logger,
			SessionTTL: cfg.Session.TTL,
		}),
		Guard: service.MustNewRouteGuard(service.RouteGuardOptions{
			Refresher: client.Refresher(),
			Skew:      cfg.Session.GuardSkew,
			Metrics:   metricsSink,
			Audit:     recorder,
			Logger:    logger,
		}),
		Profile:       service.MustNewProfileService(clinical),
		Patients:      service.MustNewPatientService(clinical),
		Prescriptions: service.MustNewPrescriptionService(clinical),
		Diagnoses:     service.MustNewDiagnosisService(clinical),
		Allergies:     service.MustNewAllergyService(clinical),
		Catalog:       service.MustNewCatalogService(clinical),
		Reports:       service.MustNewReportService(clinical),
		Analytics:     analytics,
		Interactions:  service.MustNewInteractionService(clinical),
		Health:        healthChecks(deps, cacheRepo),
		MetricsSink:   sink,
	}, nil
}

func buildMetricsSink(logger *slog.Logger, cfg config.ObservabilityMetricsConfig) *statsd.Client {
	if !cfg.IsEnabled() {
		return nil
	}
	client, err := statsd.NewClient(statsd.Config{
		Enabled: true,
		Address: cfg.StatsdAddress,
		Prefix:  cfg.Prefix,
		Logger:  logger,
	})
	if err != nil {
		logger.Error("failed to initialise statsd client", "error", err)
		return nil
	}
	return client
}

// sessionStore is the union of the store adapters' capabilities.
type sessionStore interface {
	ports.SessionStore
	ports.SessionLister
}

//nolint:ireturn // the store implementation is chosen by configuration.
func newSessionStore(cfg config.SessionConfig, client redis.UniversalClient) (sessionStore, error) {
	switch cfg.Store {
	case config.SessionStoreRedis:
		if client == nil {
			return nil, errors.New("redis session store requires a redis client")
		}
		store := redisadapter.NewSessionStoreWithPrefix(client, cfg.KeyPrefix)
		if strings.TrimSpace(cfg.EncryptionKey) == "" {
			return store, nil
		}
		sealer, err := newSessionSealer(cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		return store.WithSealer(sealer), nil
	default:
		return memory.NewSessionStore(), nil
	}
}

func newSessionSealer(encoded string) (*cryptoutil.AESGCM, error) {
	key, err := cryptoutil.ParseKey(encoded)
	if err != nil {
		return nil, fmt.Errorf("session encryption key: %w", err)
	}
	return cryptoutil.NewAESGCM(key)
}

//nolint:ireturn // the cache implementation is chosen by configuration.
func newCacheRepository(cfg config.CacheConfig, client redis.UniversalClient) (core.CacheRepository, error) {
	switch cfg.Backend {
	case config.CacheBackendNone:
		return nil, nil
	case config.CacheBackendRedis:
		if client == nil {
			return nil, errors.New("redis cache requires a redis client")
		}
		return data.NewRedisCacheRepo(client), nil
	default:
		return data.NewLocalCacheRepo(data.LocalCacheConfig{Capacity: cfg.LocalCapacity}), nil
	}
}

//nolint:ireturn // audit.Nop stands in when auditing is disabled.
func newAuditRecorder(cfg config.AuditConfig, db *sql.DB, logger *slog.Logger) core.AuditRecorder {
	if !cfg.Enabled || db == nil {
		return audit.Nop{}
	}
	return audit.NewLogger(audit.Options{
		Repo:   data.NewAuditRepo(db),
		Logger: logger,
	})
}

func healthChecks(deps *ServiceDeps, cache core.CacheRepository) map[string]httpx.HealthCheck {
	checks := make(map[string]httpx.HealthCheck)
	if deps.DB != nil {
		checks["database"] = deps.DB.PingContext
	}
	if deps.RedisClient != nil {
		client := deps.RedisClient
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}
	if cache != nil {
		checks["cache"] = cache.Health
	}
	return checks
}

// ServiceOrchestrationConfig contains configuration for running the portal.
type ServiceOrchestrationConfig struct {
	Config   *config.AppConfig
	Services ServiceContainer
	Logger   *slog.Logger
}

// RunServicesWithShutdown starts the HTTP server and the session sweeper and
// blocks until a shutdown signal is received or the server fails.
func RunServicesWithShutdown(cfg *ServiceOrchestrationConfig) error {
	if cfg == nil || cfg.Config == nil {
		return errors.New("service orchestration config is required")
	}
	serviceCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	errCh := make(chan error, 1)
	server := StartHTTPServer(&HTTPServerConfig{
		Config:   cfg.Config,
		Services: cfg.Services,
		Logger:   logger,
		ErrCh:    errCh,
	})

	var sweeperDone <-chan struct{}
	if sweeper, ok := cfg.Services.Sessions.(*memory.SessionStore); ok {
		sweeperDone = runSessionSweeper(serviceCtx, sweeper, sessionSweepInterval, logger)
	}

	return waitForShutdown(shutdownConfig{
		cancel:      cancel,
		errCh:       errCh,
		httpServer:  server,
		timeout:     cfg.Config.HTTP.ShutdownTimeout,
		sweeperDone: sweeperDone,
		logger:      logger,
	})
}

// runSessionSweeper drops expired in-memory sessions every interval until ctx ends.
func runSessionSweeper(
	ctx context.Context,
	store *memory.SessionStore,
	interval time.Duration,
	logger *slog.Logger,
) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := store.Sweep(); n > 0 {
					logger.DebugContext(ctx, "swept expired sessions", "count", n)
				}
			}
		}
	}()
	return done
}

type shutdownConfig struct {
	cancel      context.CancelFunc
	errCh       <-chan error
	httpServer  *http.Server
	timeout     time.Duration
	sweeperDone <-chan struct{}
	logger      *slog.Logger
}

// waitForShutdown waits for shutdown signal or server error.
func waitForShutdown(cfg shutdownConfig) error {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case <-quit:
		cfg.logger.Info("shutting down services...")
		cfg.cancel()
		return gracefulStop(cfg)
	case err := <-cfg.errCh:
		cfg.logger.Error("service error", "error", err)
		cfg.cancel()
		if stopErr := gracefulStop(cfg); stopErr != nil {
			cfg.logger.Error("graceful stop failed", "error", stopErr)
		}
		return err
	}
}

func gracefulStop(cfg shutdownConfig) error {
	err := ShutdownHTTPServer(ShutdownConfig{
		Context: context.Background(),
		Server:  cfg.httpServer,
		Timeout: cfg.timeout,
		Logger:  cfg.logger,
	})
	if cfg.sweeperDone != nil {
		<-cfg.sweeperDone
	}
	return err
}
