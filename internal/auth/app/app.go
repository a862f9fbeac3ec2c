package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/halcyonlabs/authcore/internal/auth/cache"
	"github.com/halcyonlabs/authcore/internal/auth/mail"
	"github.com/halcyonlabs/authcore/internal/auth/service"
	"github.com/halcyonlabs/authcore/internal/auth/store"
	"github.com/halcyonlabs/authcore/internal/auth/store/drivers/sqlite"
	"github.com/halcyonlabs/authcore/pkg/cryptox"
	"github.com/halcyonlabs/authcore/pkg/jwtx"
	"github.com/halcyonlabs/authcore/pkg/slogx"
)

const (
	// BuildVersion should be set at build time via ldflags. Later problem
	BuildVersion = "v0.1.0"
)

// Application wires the auth engine together: stores, cache, mailer and the
// services a transport layer would call.
type Application struct {
	cfg    Config
	logger *slog.Logger

	db     store.Store
	cache  cache.Cache
	mailer mail.Mailer

	// Services
	Auth         *service.AuthService
	Tokens       *service.TokenService
	MFA          *service.MFAService
	Audit        *service.AuditService
	housekeeping *service.HousekeepingService
}

// New creates an Application with all dependencies initialized.
func New(cfg Config) (*Application, error) {
	app := &Application{
		cfg: cfg,
		logger: slogx.New(slogx.Config{
			Service: "authcore",
			Version: BuildVersion,
			Env:     cfg.Env,
			Level:   cfg.LogLevel,
			Format:  cfg.LogFormat,
		}),
	}

	if cfg.AccessSecret == "" {
		return nil, errors.New("AUTH_ACCESS_SECRET must be set")
	}
	if cfg.MFASecretKey == "" {
		return nil, errors.New("AUTH_MFA_SECRET_KEY must be set")
	}

	if err := app.initDatabase(); err != nil {
		return nil, err
	}
	app.initCache()
	app.initMailer()

	if err := app.initServices(); err != nil {
		return nil, err
	}

	return app, nil
}

// Run starts the application and blocks until shutdown is requested.
func (app *Application) Run() error {
	app.housekeeping.Start()
	app.logger.Info("authcore started", "version", BuildVersion)

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
	sig := <-shutdown
	app.logger.Info("shutdown signal received", "signal", sig)

	return app.Shutdown()
}

// Shutdown stops background work and closes connections.
func (app *Application) Shutdown() error {
	app.logger.Info("shutting down authcore...")

	app.housekeeping.Stop()

	if err := app.cache.Close(); err != nil {
		app.logger.Error("error closing cache", "error", err)
	}
	if err := app.db.Close(); err != nil {
		app.logger.Error("error closing database", "error", err)
		return err
	}

	app.logger.Info("authcore stopped")
	return nil
}

func (app *Application) initDatabase() error {
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", app.cfg.DatabaseFile)
	db, err := sqlite.NewStore(dsn)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.ApplyMigrations(); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (app *Application) initCache() {
	app.cache = cache.DialRedis(app.cfg.RedisAddr, app.cfg.RedisPassword, app.cfg.RedisDB)
}

func (app *Application) initMailer() {
	if app.cfg.SMTPHost == "" {
		app.logger.Warn("no SMTP host configured, mail goes to the log")
		app.mailer = mail.NewLogMailer(app.logger)
		return
	}
	app.mailer = mail.NewSMTP(mail.SMTPConfig{
		Host:     app.cfg.SMTPHost,
		Port:     app.cfg.SMTPPort,
		Username: app.cfg.SMTPUsername,
		Password: app.cfg.SMTPPassword,
		From:     app.cfg.MailFrom,
		BaseURL:  app.cfg.MailBaseURL,
		SendRate: app.cfg.MailSendRate,
	})
}

func (app *Application) initServices() error {
	signer, err := jwtx.NewSigner([]byte(app.cfg.AccessSecret), app.cfg.Issuer)
	if err != nil {
		return err
	}

	box, err := cryptox.NewSecretBox([]byte(app.cfg.MFASecretKey))
	if err != nil {
		return err
	}

	refreshTTL, err := service.ParseTokenTTL(app.cfg.RefreshTokenTTL)
	if err != nil {
		return fmt.Errorf("invalid REFRESH_TOKEN_TTL: %w", err)
	}

	app.Audit = &service.AuditService{Store: app.db}
	app.Tokens = &service.TokenService{
		Signer:     signer,
		Store:      app.db,
		Cache:      app.cache,
		Issuer:     app.cfg.Issuer,
		AccessTTL:  app.cfg.AccessTokenTTL,
		RefreshTTL: refreshTTL,
	}
	app.MFA = &service.MFAService{
		Store:  app.db,
		Box:    box,
		Audit:  app.Audit,
		Issuer: app.cfg.Issuer,
	}
	app.Auth = &service.AuthService{
		Store:       app.db,
		RateLimit:   &service.RateLimitService{Cache: app.cache},
		Lockout:     &service.LockoutService{Store: app.db},
		Credentials: &service.CredentialService{Store: app.db, Audit: app.Audit},
		Suspicion:   &service.SuspicionService{Store: app.db, Audit: app.Audit},
		Tokens:      app.Tokens,
		Audit:       app.Audit,
		Mailer:      app.mailer,
	}
	app.housekeeping = service.NewHousekeepingService(app.db, app.logger, app.cfg.HousekeepingInterval)

	// Fail fast when the counter store is down rather than at first login.
	if err := app.cache.Ping(context.Background()); err != nil {
		app.logger.Warn("redis unreachable at startup", "error", err)
	}

	return nil
}
