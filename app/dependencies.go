package app

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/upb/llm-cascade/config"
	"github.com/upb/llm-cascade/internal/observability"
	"github.com/upb/llm-cascade/middleware"
	"github.com/upb/llm-cascade/repositories"
	"github.com/upb/llm-cascade/repositories/postgres"
	"github.com/upb/llm-cascade/services/attempts"
	"github.com/upb/llm-cascade/services/cascade"
	"github.com/upb/llm-cascade/services/providers"
	"go.uber.org/zap"
)

// attemptFlushTimeout bounds how long Close waits for queued attempt records
const attemptFlushTimeout = 5 * time.Second

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	// Repository Factory, nil when persistence is disabled
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Attempts repositories.AttemptRepository

	// Cascade
	Catalog       *providers.Catalog
	Metrics       *observability.Metrics
	AttemptLogger *attempts.Logger
	Cascade       *cascade.Service

	// Auth, nil when AUTH_JWT_SECRET is unset
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	var factory *postgres.RepositoryFactory
	if cfg.PersistenceEnabled() {
		f, err := postgres.NewRepositoryFactory(*cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		factory = f
	} else {
		logger.Info("attempt persistence disabled, set DATABASE_URL or DB_HOST to enable")
	}

	deps, err := newDependencies(ctx, cfg, logger, factory)
	if err != nil {
		if factory != nil {
			_ = factory.Close()
		}
		return nil, err
	}
	return deps, nil
}

// newDependencies wires everything around an already opened repository factory
func newDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, factory *postgres.RepositoryFactory) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if factory != nil {
		if err := deps.initDatabase(ctx, factory); err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
	}

	if err := deps.initCatalog(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	if err := deps.initCascade(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize cascade: %w", err)
	}

	if err := deps.initAuth(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

// initDatabase bootstraps the schema and the attempt repository
func (d *Dependencies) initDatabase(ctx context.Context, factory *postgres.RepositoryFactory) error {
	if err := factory.InitSchema(ctx); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	d.RepoFactory = factory
	d.DB = factory.GetDB()
	d.Attempts = factory.NewRepositories().Attempts

	d.Logger.Info("attempt persistence enabled")
	return nil
}

// initCatalog loads the provider catalog from CASCADE_CATALOG_FILE or the built-in table
func (d *Dependencies) initCatalog(cfg *config.Config) error {
	if cfg.Cascade.CatalogFile == "" {
		d.Catalog = providers.DefaultCatalog()
	} else {
		catalog, err := providers.LoadCatalogFile(cfg.Cascade.CatalogFile)
		if err != nil {
			return err
		}
		d.Catalog = catalog
	}

	configured := 0
	for _, name := range d.Catalog.Names() {
		if _, ok := cfg.Credentials.Lookup(name); ok {
			configured++
		}
	}
	if configured == 0 {
		d.Logger.Warn("no provider credentials configured, requests must bring their own")
	}

	d.Logger.Info("provider catalog loaded",
		zap.Strings("providers", d.Catalog.Names()),
		zap.Int("with_credentials", configured))
	return nil
}

// initCascade builds the orchestrator and its attempt recorders
func (d *Dependencies) initCascade(cfg *config.Config) error {
	d.Metrics = observability.NewMetrics()
	recorders := cascade.MultiRecorder{d.Metrics}

	if d.Attempts != nil {
		d.AttemptLogger = attempts.NewLogger(d.Attempts, d.Logger, attempts.Config{
			BufferSize:  cfg.Cascade.AttemptBufferSize,
			WorkerCount: cfg.Cascade.AttemptWorkers,
		})
		if err := d.AttemptLogger.Start(); err != nil {
			return fmt.Errorf("failed to start attempt logger: %w", err)
		}
		recorders = append(recorders, d.AttemptLogger)
	}

	cascadeConfig := cascade.Config{
		Retry: cascade.RetryPolicy{
			MaxAttempts:    cfg.Cascade.MaxAttempts,
			InitialBackoff: cfg.Cascade.InitialBackoff,
			MaxJitter:      cfg.Cascade.MaxJitter,
		},
		Params:          cfg.Cascade.GenerationParams(),
		FallbackOnEmpty: cfg.Cascade.FallbackOnEmpty,
	}

	client := &http.Client{Timeout: cfg.Cascade.RequestTimeout}
	d.Cascade = cascade.NewService(cascadeConfig, d.Catalog, client, d.Logger, cascade.WithRecorder(recorders))
	return nil
}

// initAuth enables bearer-token protection when a signing secret is configured
func (d *Dependencies) initAuth(cfg *config.Config) error {
	if !cfg.Auth.Enabled() {
		d.Logger.Warn("AUTH_JWT_SECRET not set, API routes are unauthenticated")
		return nil
	}

	validator, err := middleware.NewHMACValidator(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	if err != nil {
		return err
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(validator, d.Logger)
	d.Logger.Info("bearer token authentication enabled")
	return nil
}

// SQLDB returns the raw pool for health checks, nil when persistence is disabled
func (d *Dependencies) SQLDB() *sql.DB {
	if d.DB == nil {
		return nil
	}
	return d.DB.DB
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	// Drain queued attempts before the pool goes away
	if d.AttemptLogger != nil {
		timeout := attemptFlushTimeout
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.AttemptLogger.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop attempt logger: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %v", errs)
	}

	return nil
}
