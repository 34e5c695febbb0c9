package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/hireflow/internal/api"
	"github.com/charlesng35/hireflow/internal/app"
	"github.com/charlesng35/hireflow/internal/app/maintenance"
	iauth "github.com/charlesng35/hireflow/internal/auth"
	"github.com/charlesng35/hireflow/internal/database"
	"github.com/charlesng35/hireflow/internal/monitoring"
	"github.com/charlesng35/hireflow/internal/monitoring/checks"
	"github.com/charlesng35/hireflow/internal/security"
	"github.com/charlesng35/hireflow/internal/services"
	"github.com/charlesng35/hireflow/internal/storage"
	"github.com/charlesng35/hireflow/pkg/logger"
	"github.com/charlesng35/hireflow/pkg/mail"
)

// runtimeStack bundles long-lived services used by the HTTP server.
type runtimeStack struct {
	DB       *gorm.DB
	Docs     *storage.BlobStore
	Notifier *services.Notifier
	Cleaner  *maintenance.Cleaner
	Monitor  *monitoring.Module
	Services api.Services
	Router   *gin.Engine
}

// bootstrapRuntime opens the database and document store, wires services
// and background jobs, and builds the HTTP router.
func bootstrapRuntime(ctx context.Context, cfg *app.Config, log *zap.Logger) (*runtimeStack, error) {
	stack := &runtimeStack{}
	var err error
	success := false

	defer func() {
		if !success {
			stack.Shutdown(context.Background(), log)
		}
	}()

	if debug, _ := os.LookupEnv("GIN_DEBUG"); debug != "true" {
		gin.SetMode(gin.ReleaseMode)
	}

	stack.DB, err = initialiseDatabase(cfg)
	if err != nil {
		return nil, err
	}

	stack.Docs, err = storage.Open(ctx, cfg.Storage.StorageSettings())
	if err != nil {
		return nil, fmt.Errorf("open document storage: %w", err)
	}

	mailer, err := mail.NewSMTPMailer(cfg.Email.SMTPSettings())
	if err != nil {
		return nil, fmt.Errorf("initialise mailer: %w", err)
	}
	if !mailer.Enabled() {
		log.Warn("smtp disabled; outgoing email is dropped")
	}
	stack.Notifier = services.NewNotifier(mailer, cfg.NotifierOptions()...)

	wired, err := buildServices(cfg, stack.DB, stack.Docs, stack.Notifier)
	if err != nil {
		return nil, err
	}
	stack.Services = wired.api

	stack.Monitor, err = monitoring.NewModule(monitoring.Options{Environment: cfg.Server.Environment})
	if err != nil {
		return nil, fmt.Errorf("initialise monitoring: %w", err)
	}
	monitoring.SetModule(stack.Monitor)

	if cfg.Monitoring.Maintenance.Enabled {
		stack.Cleaner = newCleaner(cfg, wired)
		if err := stack.Cleaner.Start(); err != nil {
			return nil, fmt.Errorf("start maintenance jobs: %w", err)
		}
	}

	registerProbes(cfg, stack)

	stack.Services.Security = security.NewAuditService(stack.DB, cfg)
	logSecurityAudit(ctx, stack.Services.Security, log)

	stack.Router, err = api.NewRouter(cfg, stack.Services, stack.Monitor)
	if err != nil {
		return nil, fmt.Errorf("build api router: %w", err)
	}

	success = true
	return stack, nil
}

// serviceSet keeps the stores the maintenance jobs purge next to the
// services the router exposes.
type serviceSet struct {
	api         api.Services
	accounts    *services.AccountStore
	revocations *iauth.RevocationStore
}

func buildServices(cfg *app.Config, db *gorm.DB, docs *storage.BlobStore, notifier *services.Notifier) (*serviceSet, error) {
	var svc api.Services

	store, err := services.NewAccountStore(db, nil)
	if err != nil {
		return nil, fmt.Errorf("initialise account store: %w", err)
	}
	audit, err := services.NewAuditService(db)
	if err != nil {
		return nil, fmt.Errorf("initialise audit service: %w", err)
	}
	tokens, err := iauth.NewTokenService(cfg.Auth.TokenServiceConfig())
	if err != nil {
		return nil, fmt.Errorf("initialise token service: %w", err)
	}

	hashCost := cfg.Auth.PasswordHashCost()
	authOpts := []services.AuthOption{services.WithAuthHashCost(hashCost)}

	var revocations *iauth.RevocationStore
	if cfg.Auth.Revocation.Enabled {
		revocations, err = iauth.NewRevocationStore(db, nil)
		if err != nil {
			return nil, fmt.Errorf("initialise revocation store: %w", err)
		}
		authOpts = append(authOpts, services.WithAuthRevocations(revocations))
	}

	if svc.Auth, err = services.NewAuthService(store, tokens, audit, notifier, authOpts...); err != nil {
		return nil, fmt.Errorf("initialise auth service: %w", err)
	}
	if svc.Invites, err = services.NewInviteService(svc.Auth, audit, notifier); err != nil {
		return nil, fmt.Errorf("initialise invite service: %w", err)
	}
	if svc.Admin, err = services.NewAdminService(store, audit, hashCost); err != nil {
		return nil, fmt.Errorf("initialise admin service: %w", err)
	}
	if svc.Jobs, err = services.NewJobService(db); err != nil {
		return nil, fmt.Errorf("initialise job service: %w", err)
	}

	var appOpts []services.ApplicationOption
	if prefix := strings.TrimSpace(cfg.Uploads.KeyPrefix); prefix != "" {
		appOpts = append(appOpts, services.WithDocumentPrefix(prefix))
	}
	if svc.Applications, err = services.NewApplicationService(db, svc.Jobs, store, docs, notifier, appOpts...); err != nil {
		return nil, fmt.Errorf("initialise application service: %w", err)
	}

	return &serviceSet{api: svc, accounts: store, revocations: revocations}, nil
}

func newCleaner(cfg *app.Config, wired *serviceSet) *maintenance.Cleaner {
	opts := []maintenance.Option{
		maintenance.WithRevocationSchedule(cfg.Monitoring.Maintenance.RevocationSchedule),
		maintenance.WithInvitationSchedule(cfg.Monitoring.Maintenance.InvitationSchedule),
	}

	// A typed nil would defeat the purger nil checks.
	var revocationPurger maintenance.RevocationPurger
	if wired.revocations != nil {
		revocationPurger = wired.revocations
	}
	return maintenance.NewCleaner(revocationPurger, wired.accounts, opts...)
}

func registerProbes(cfg *app.Config, stack *runtimeStack) {
	health := stack.Monitor.Health()
	if cfg.Monitoring.Health.Timeout > 0 {
		health.SetTimeout(cfg.Monitoring.Health.Timeout)
	}

	health.RegisterReadiness(checks.Database(stack.DB))
	health.RegisterReadiness(checks.Storage(stack.Docs))
	if stack.Cleaner != nil {
		health.RegisterReadiness(checks.Maintenance(stack.Monitor, 0))
	}
}

func logSecurityAudit(ctx context.Context, audit *security.AuditService, log *zap.Logger) {
	result := audit.Run(ctx)
	for _, check := range result.Checks {
		fields := []zap.Field{zap.String("check", check.ID), zap.String("remediation", check.Remediation)}
		switch check.Status {
		case security.StatusFail:
			log.Error(check.Message, fields...)
		case security.StatusWarn:
			log.Warn(check.Message, fields...)
		}
	}
}

// Shutdown gracefully stops background jobs and releases resources.
func (s *runtimeStack) Shutdown(ctx context.Context, log *zap.Logger) {
	if s == nil {
		return
	}

	if s.Cleaner != nil {
		stopCtx := s.Cleaner.Stop()
		if stopCtx != nil {
			ctx = stopCtx
		}
		if err := s.Cleaner.RunOnce(ctx); err != nil {
			log.Warn("maintenance shutdown cleanup failed", zap.Error(err))
		}
	}

	s.Notifier.Wait()

	if s.Docs != nil {
		if err := s.Docs.Close(); err != nil {
			log.Warn("failed to close document storage", zap.Error(err))
		}
	}

	if s.DB != nil {
		if err := database.Close(s.DB); err != nil {
			log.Warn("failed to close database", zap.Error(err))
		}
	}
}

func initialiseDatabase(cfg *app.Config) (*gorm.DB, error) {
	dbCfg := cfg.Database.DatabaseSettings()
	db, err := database.Open(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := database.AutoMigrateAndSeed(db, cfg.Seed()); err != nil {
		_ = database.Close(db)
		return nil, fmt.Errorf("auto-migrate database: %w", err)
	}

	log := logger.WithModule("database")
	log.Info("database connected", zap.String("driver", strings.ToLower(strings.TrimSpace(dbCfg.Driver))))

	return db, nil
}
