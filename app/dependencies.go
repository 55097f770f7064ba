package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/upb/classroom/accounts"
	"github.com/upb/classroom/config"
	"github.com/upb/classroom/handlers"
	"github.com/upb/classroom/identity"
	"github.com/upb/classroom/middleware"
	"github.com/upb/classroom/repositories"
	"github.com/upb/classroom/repositories/postgres"
	"github.com/upb/classroom/services"
	"github.com/upb/classroom/services/audit"
	"github.com/upb/classroom/session"
)

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	DB     *postgres.DB
	Logger *zap.Logger

	RepoFactory  *postgres.RepositoryFactory
	Repositories *repositories.Repositories
	TxManager    repositories.TransactionManager

	// Identity and session
	KeySet    *identity.KeySet
	Verifier  *identity.Verifier
	Resolver  *accounts.Resolver
	Issuer    *session.Issuer
	Validator *session.Validator

	// Nil when auditing is disabled
	Audit *audit.Service

	LoginService   *services.LoginService
	AccountService *services.AccountService

	AuthMiddleware *middleware.AuthMiddleware
	AuthHandler    *handlers.AuthHandler
	ProfileHandler *handlers.ProfileHandler
	HealthHandler  *handlers.HealthHandler
}

// NewDependencies connects to the database, prepares the schema and wires every component
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Dependencies, error) {
	factory, err := postgres.NewRepositoryFactory(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	db := factory.GetDB()
	if err := db.PingContext(ctx); err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}
	if err := db.InitSchema(ctx); err != nil {
		_ = factory.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("database connection established",
		zap.String("connection", cfg.Database.LogString()))

	deps, err := NewDependenciesWithDB(cfg, factory, logger)
	if err != nil {
		_ = factory.Close()
		return nil, err
	}
	return deps, nil
}

// NewDependenciesWithDB wires every component on top of an existing repository factory
func NewDependenciesWithDB(cfg *config.Config, factory *postgres.RepositoryFactory, logger *zap.Logger) (*Dependencies, error) {
	deps := &Dependencies{
		Config:       cfg,
		DB:           factory.GetDB(),
		Logger:       logger,
		RepoFactory:  factory,
		Repositories: factory.NewRepositories(),
		TxManager:    factory.GetTransactionManager(),
	}

	if err := deps.initIdentity(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize identity verifier: %w", err)
	}
	if err := deps.initSession(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize session tokens: %w", err)
	}
	if err := deps.initAudit(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize audit trail: %w", err)
	}
	deps.initServices(cfg)
	deps.initHTTP(cfg)

	logger.Info("all dependencies initialized successfully")
	return deps, nil
}

func (d *Dependencies) initIdentity(cfg *config.Config) error {
	d.KeySet = identity.NewKeySet(identity.KeySetConfig{
		JWKSURL:            cfg.Identity.JWKSURL,
		Issuer:             cfg.Identity.Issuer,
		Discovery:          cfg.Identity.Discovery,
		RefreshInterval:    cfg.Identity.RefreshInterval,
		MinRefreshInterval: cfg.Identity.MinRefreshInterval,
		HTTPTimeout:        cfg.Identity.HTTPTimeout,
	}, d.Logger.Named("keyset"))

	verifier, err := identity.NewVerifier(identity.ConfigFrom(cfg.Identity), d.KeySet, d.Logger.Named("verifier"))
	if err != nil {
		return err
	}
	d.Verifier = verifier

	d.Resolver = accounts.NewResolver(d.Repositories.Accounts, cfg.Directory.LookupTimeout, d.Logger.Named("resolver"))
	return nil
}

func (d *Dependencies) initSession(cfg *config.Config) error {
	secret, err := session.NewSecret(cfg.Session.SigningKey)
	if err != nil {
		return fmt.Errorf("%w: %v", config.ErrConfiguration, err)
	}

	sessionCfg := session.ConfigFrom(cfg.Session)
	if d.Issuer, err = session.NewIssuer(secret, sessionCfg); err != nil {
		return err
	}
	if d.Validator, err = session.NewValidator(secret, sessionCfg); err != nil {
		return err
	}
	return nil
}

func (d *Dependencies) initAudit(cfg *config.Config) error {
	if !cfg.Audit.Enabled {
		d.Logger.Warn("auth event audit trail disabled")
		return nil
	}

	auditCfg := audit.DefaultConfig()
	if cfg.Audit.BufferSize > 0 {
		auditCfg.BufferSize = cfg.Audit.BufferSize
	}
	if cfg.Audit.WorkerCount > 0 {
		auditCfg.WorkerCount = cfg.Audit.WorkerCount
	}

	d.Audit = audit.NewService(d.Repositories.AuthEvents, d.Logger.Named("audit"), auditCfg)
	return d.Audit.Start()
}

func (d *Dependencies) initServices(cfg *config.Config) {
	var recorder services.EventRecorder
	if d.Audit != nil {
		recorder = d.Audit
	}

	d.LoginService = services.NewLoginService(
		d.Verifier,
		d.Resolver,
		d.Issuer,
		recorder,
		cfg.Identity.LoginAudience(),
		d.Logger.Named("login"),
	)
	d.AccountService = services.NewAccountService(d.TxManager, d.Repositories, d.Logger.Named("accounts"))
}

func (d *Dependencies) initHTTP(cfg *config.Config) {
	d.AuthMiddleware = middleware.NewAuthMiddleware(d.Validator, cfg.Session.CookieName, d.Logger)

	d.AuthHandler = handlers.NewAuthHandler(d.LoginService, handlers.CookieSettings{
		Name:   cfg.Session.CookieName,
		Secure: cfg.Session.CookieSecure,
	}, cfg.IsDevelopment(), d.Logger)

	var (
		events  handlers.EventLister = d.Repositories.AuthEvents
		auditor handlers.AuditStatus
	)
	if d.Audit != nil {
		events = d.Audit
		auditor = d.Audit
	}
	d.ProfileHandler = handlers.NewProfileHandler(events, d.Logger)
	d.HealthHandler = handlers.NewHealthHandler(d.DB, d.KeySet, auditor, d.Logger)
}

// Close gracefully shuts down all dependencies
func (d *Dependencies) Close(ctx context.Context) error {
	d.Logger.Info("shutting down dependencies")

	var errs []error

	if d.Audit != nil {
		timeout := 5 * time.Second
		if deadline, ok := ctx.Deadline(); ok {
			timeout = time.Until(deadline)
		}
		if err := d.Audit.Stop(timeout); err != nil {
			errs = append(errs, fmt.Errorf("failed to stop audit service: %w", err))
		}
	}

	if d.RepoFactory != nil {
		if err := d.RepoFactory.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		} else {
			d.Logger.Info("database connection closed")
		}
	}

	_ = d.Logger.Sync()

	return errors.Join(errs...)
}
