package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/upb/internship-placement/config"
	"github.com/upb/internship-placement/handlers"
	"github.com/upb/internship-placement/identity"
	"github.com/upb/internship-placement/internal/observability"
	"github.com/upb/internship-placement/middleware"
	"github.com/upb/internship-placement/repositories"
	"github.com/upb/internship-placement/repositories/memory"
	"github.com/upb/internship-placement/repositories/postgres"
	"github.com/upb/internship-placement/repositories/redisquota"
	"github.com/upb/internship-placement/services/applications"
	"github.com/upb/internship-placement/services/notification"
	"github.com/upb/internship-placement/services/quota"
	"go.uber.org/zap"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config  *config.Config
	Logger  *zap.Logger
	DB      *postgres.DB
	Metrics *observability.Metrics

	// Repository Factory (postgres storage only)
	RepoFactory *postgres.RepositoryFactory

	// Repositories
	Repos      *repositories.Repositories
	TxManager  repositories.TransactionManager
	RedisQuota *redisquota.Repository // set only for the redis quota backend

	// Services
	Ledger       *quota.Ledger
	Dispatcher   *notification.Dispatcher
	Applications *applications.Service

	// Auth
	AuthMiddleware *middleware.AuthMiddleware
}

// NewDependencies creates and wires up all application dependencies
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	if cfg.Observability.MetricsEnabled {
		deps.Metrics = observability.NewMetrics()
	}

	if err := deps.initStorage(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	if err := deps.initQuota(ctx, cfg); err != nil {
		deps.closeStores()
		return nil, fmt.Errorf("failed to initialize quota ledger: %w", err)
	}

	if err := deps.initNotifications(cfg); err != nil {
		deps.closeStores()
		return nil, fmt.Errorf("failed to initialize notifications: %w", err)
	}

	deps.Applications = applications.NewService(
		deps.Repos, deps.TxManager, deps.Ledger, deps.Dispatcher, deps.Metrics, logger)

	if err := deps.initAuth(cfg); err != nil {
		_ = deps.Close(ctx)
		return nil, fmt.Errorf("failed to initialize auth: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.String("storage", cfg.Storage.Backend),
		zap.String("quota", cfg.Quota.Backend))
	return deps, nil
}

// initStorage opens the application and notification store
func (d *Dependencies) initStorage(cfg *config.Config) error {
	if cfg.Storage.Backend == config.BackendMemory {
		d.Repos = memory.NewRepositories()
		d.TxManager = memory.NewTransactionManager()
		d.Logger.Warn("using in-memory storage, data is lost on restart")
		return nil
	}

	factory, err := postgres.NewRepositoryFactory(cfg, d.Logger)
	if err != nil {
		return fmt.Errorf("failed to create repository factory: %w", err)
	}
	d.RepoFactory = factory
	d.DB = factory.GetDB()

	if cfg.Database.AutoMigrate {
		if err := factory.RunMigrations(); err != nil {
			_ = factory.Close()
			return fmt.Errorf("failed to run migrations: %w", err)
		}
	}

	d.Repos = factory.NewRepositories()
	d.TxManager = factory.GetTransactionManager()

	d.Logger.Info("repositories initialized")
	return nil
}

// initQuota selects the quota backend and seeds the default cap
func (d *Dependencies) initQuota(ctx context.Context, cfg *config.Config) error {
	switch cfg.Quota.Backend {
	case config.BackendRedis:
		client, err := redisquota.NewClient(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		d.RedisQuota = redisquota.New(client, cfg.Redis.KeyPrefix, d.Logger)
		d.Repos.Quotas = d.RedisQuota
	case config.BackendMemory:
		if cfg.Storage.Backend != config.BackendMemory {
			d.Repos.Quotas = memory.NewQuotaRepository()
		}
	}

	d.Ledger = quota.NewLedger(d.Repos.Quotas, d.Logger)
	return d.Ledger.EnsureDefault(ctx, cfg.Quota.DefaultMaxApplications)
}

// initNotifications builds the mailer and starts the dispatcher workers
func (d *Dependencies) initNotifications(cfg *config.Config) error {
	var mailer notification.Mailer
	if cfg.Mail.Host != "" {
		mailer = notification.NewSMTPMailer(cfg.Mail)
		d.Logger.Info("smtp mailer configured", zap.String("addr", cfg.Mail.Address()))
	} else {
		mailer = notification.NewLogMailer(d.Logger)
		d.Logger.Warn("smtp not configured, emails are logged only")
	}

	d.Dispatcher = notification.NewDispatcher(
		d.Repos.Notifications,
		mailer,
		notification.StaticDirectory{Fallback: cfg.Mail.CompanyContactFallback},
		d.Metrics,
		d.Logger,
		notification.Config{
			Workers:         cfg.Notification.Workers,
			BufferSize:      cfg.Notification.BufferSize,
			DeliveryTimeout: cfg.Notification.Timeout,
		},
	)
	return d.Dispatcher.Start()
}

func (d *Dependencies) initAuth(cfg *config.Config) error {
	if cfg.Auth.JWTSecret == "" {
		d.Logger.Warn("auth secret not configured, protected endpoints reject all requests")
		// Use reject-all validator so protected routes return 401
		d.AuthMiddleware = middleware.NewAuthMiddleware(&rejectAllValidator{}, d.Logger)
		return nil
	}

	validator, err := identity.NewHMACValidator(identity.Config{
		Secret: cfg.Auth.JWTSecret,
		Issuer: cfg.Auth.JWTIssuer,
	})
	if err != nil {
		return err
	}
	d.AuthMiddleware = middleware.NewAuthMiddleware(&tokenValidatorAdapter{validator: validator}, d.Logger)
	return nil
}

// HealthChecks returns the readiness probes for the configured backends
func (d *Dependencies) HealthChecks() []handlers.Check {
	var checks []handlers.Check
	if d.DB != nil {
		checks = append(checks, handlers.DatabaseCheck(d.DB.DB))
	}
	if d.RedisQuota != nil {
		checks = append(checks, handlers.Check{Name: "redis", Probe: d.RedisQuota.HealthCheck})
	}
	if d.Dispatcher != nil {
		dispatcher := d.Dispatcher
		checks = append(checks, handlers.Check{
			Name: "notifications",
			Probe: func(context.Context) error {
				if !dispatcher.Stats().Started {
					return errors.New("dispatcher not running")
				}
				return nil
			},
		})
	}
	return checks
}

// tokenValidatorAdapter adapts identity.HMACValidator to middleware.TokenValidator
type tokenValidatorAdapter struct {
	validator *identity.HMACValidator
}

func (a *tokenValidatorAdapter) ValidateToken(ctx context.Context, token string) (*middleware.Claims, error) {
	parsed, err := a.validator.ValidateToken(ctx, token)
	if err != nil {
		return nil, err
	}
	return &middleware.Claims{
		Sub:   parsed.Sub,
		Email: parsed.Email,
		Role:  parsed.Role,
	}, nil
}

// rejectAllValidator rejects all tokens (used when no auth secret is configured)
type rejectAllValidator struct{}

func (*rejectAllValidator) ValidateToken(context.Context, string) (*middleware.Claims, error) {
	return nil, fmt.Errorf("authentication not configured")
}

// Close gracefully shuts down all dependencies.
// The dispatcher is drained first so queued notifications still reach the store.
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Dispatcher != nil {
		if err := d.Dispatcher.Stop(d.Config.Notification.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to drain notifications: %w", err))
		}
	}

	errs = append(errs, d.closeStores()...)

	// Sync logger
	if d.Logger != nil {
		_ = d.Logger.Sync()
	}

	if len(errs) > 0 {
		return fmt.Errorf("errors during shutdown: %w", errors.Join(errs...))
	}

	return nil
}

func (d *Dependencies) closeStores() []error {
	var errs []error
	if d.RedisQuota != nil {
		if err := d.RedisQuota.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis: %w", err))
		}
		d.RedisQuota = nil
	}
	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
		d.RepoFactory = nil
	}
	return errs
}
