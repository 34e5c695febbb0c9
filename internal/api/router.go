package api

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/hireflow/internal/app"
	iauth "github.com/charlesng35/hireflow/internal/auth"
	"github.com/charlesng35/hireflow/internal/handlers"
	"github.com/charlesng35/hireflow/internal/middleware"
	"github.com/charlesng35/hireflow/internal/models"
	"github.com/charlesng35/hireflow/internal/monitoring"
	"github.com/charlesng35/hireflow/internal/security"
	"github.com/charlesng35/hireflow/internal/services"
)

// Services bundles the domain services the HTTP layer exposes.
type Services struct {
	Auth         *services.AuthService
	Invites      *services.InviteService
	Admin        *services.AdminService
	Jobs         *services.JobService
	Applications *services.ApplicationService

	// Security is optional; the audit route is only registered when set.
	Security *security.AuditService
}

func (s Services) validate() error {
	switch {
	case s.Auth == nil:
		return errors.New("auth service must be provided")
	case s.Invites == nil:
		return errors.New("invite service must be provided")
	case s.Admin == nil:
		return errors.New("admin service must be provided")
	case s.Jobs == nil:
		return errors.New("job service must be provided")
	case s.Applications == nil:
		return errors.New("application service must be provided")
	}
	return nil
}

// NewRouter builds the Gin engine, wires middleware and registers all routes.
// mon may be nil, in which case health reports carry no probes and metrics
// are served from the default registry only.
func NewRouter(cfg *app.Config, svc Services, mon *monitoring.Module) (*gin.Engine, error) {
	if cfg == nil {
		return nil, errors.New("config must be provided")
	}
	if err := svc.validate(); err != nil {
		return nil, err
	}

	r := gin.New()
	cookie := cfg.CookieOptions()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.Logger())
	r.Use(middleware.Metrics())
	r.Use(middleware.SecurityHeaders(cookie.Secure))
	r.Use(middleware.CORS(cfg.Server.AllowedOrigins...))
	r.Use(middleware.RequestTimeout(cfg.Server.RequestTimeout))
	r.Use(middleware.RequestActor())
	if cfg.Server.CSRF.Enabled {
		r.Use(middleware.CSRF(middleware.CSRFOptions{Cookie: cookie}))
	}

	registerHealthRoutes(r, cfg, mon)

	requireSession := middleware.SessionAuth(svc.Auth, cookie)
	requireAdmin := []gin.HandlerFunc{requireSession, middleware.RequireRole(models.RoleAdmin)}
	limiter := middleware.NewRateLimiter(cfg.Server.RateLimit.Requests, cfg.Server.RateLimit.Window).Middleware()

	api := r.Group("/api")
	registerAuthRoutes(api, svc, cookie, requireSession, limiter)
	registerAdminRoutes(api.Group("/admin", requireAdmin...), svc, cookie)
	registerJobRoutes(api, svc, requireSession)

	r.NoRoute(middleware.NotFoundHandler)

	return r, nil
}

func registerAuthRoutes(api *gin.RouterGroup, svc Services, cookie iauth.CookieOptions, requireSession, limiter gin.HandlerFunc) {
	authHandler := handlers.NewAuthHandler(svc.Auth, cookie)
	invitationHandler := handlers.NewInvitationHandler(svc.Invites, cookie)

	auth := api.Group("/auth")
	{
		auth.POST("/register", authHandler.Register)
		auth.POST("/login", limiter, authHandler.Login)
		auth.POST("/forgot-password", limiter, authHandler.ForgotPassword)
		auth.POST("/reset-password", authHandler.ResetPassword)
		auth.POST("/verify-email", authHandler.VerifyEmail)
		auth.POST("/resend-verification", limiter, authHandler.ResendVerification)

		auth.GET("/invitations/verify", invitationHandler.Verify)
		auth.POST("/invitations/accept", invitationHandler.Accept)

		auth.POST("/logout", requireSession, authHandler.Logout)
		auth.GET("/session", requireSession, authHandler.Session)
		auth.POST("/change-password", requireSession, authHandler.ChangePassword)
	}
}

func registerAdminRoutes(admin *gin.RouterGroup, svc Services, cookie iauth.CookieOptions) {
	adminHandler := handlers.NewAdminHandler(svc.Admin)
	invitationHandler := handlers.NewInvitationHandler(svc.Invites, cookie)
	jobHandler := handlers.NewJobHandler(svc.Jobs)

	admin.POST("/invitations", invitationHandler.Create)

	accounts := admin.Group("/accounts")
	{
		accounts.GET("/:id", adminHandler.GetAccount)
		accounts.GET("/:id/audit", adminHandler.AuditTrail)
		accounts.POST("/:id/activate", adminHandler.Activate)
		accounts.POST("/:id/deactivate", adminHandler.Deactivate)
		accounts.POST("/:id/reset-password", adminHandler.ResetPassword)
		accounts.DELETE("/:id", adminHandler.Delete)
	}

	jobs := admin.Group("/jobs")
	{
		jobs.POST("", jobHandler.Create)
		jobs.PATCH("/:id/status", jobHandler.UpdateStatus)
	}

	if svc.Security != nil {
		admin.GET("/security/audit", handlers.NewSecurityHandler(svc.Security).Audit)
	}
}

func registerJobRoutes(api *gin.RouterGroup, svc Services, requireSession gin.HandlerFunc) {
	jobHandler := handlers.NewJobHandler(svc.Jobs)
	applicationHandler := handlers.NewApplicationHandler(svc.Applications)

	api.GET("/jobs/:id", jobHandler.Get)
	api.POST("/applications", requireSession, middleware.RequireRole(models.RoleApplicant), applicationHandler.Submit)
}

func registerHealthRoutes(r *gin.Engine, cfg *app.Config, mon *monitoring.Module) {
	if cfg.Monitoring.Health.Enabled {
		health := handlers.NewHealthHandler(mon.Health())
		r.GET("/health", health.Summary)
		r.GET("/health/live", health.Live)
		r.GET("/health/ready", health.Ready)
	}

	if cfg.Monitoring.Prometheus.Enabled {
		endpoint := strings.TrimSpace(cfg.Monitoring.Prometheus.Endpoint)
		if endpoint == "" {
			endpoint = "/metrics"
		}
		r.GET(endpoint, gin.WrapH(mon.Handler()))
	}
}
