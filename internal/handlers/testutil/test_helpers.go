package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"gocloud.dev/blob/memblob"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/charlesng35/hireflow/internal/api"
	"github.com/charlesng35/hireflow/internal/app"
	iauth "github.com/charlesng35/hireflow/internal/auth"
	"github.com/charlesng35/hireflow/internal/database"
	sharedtestutil "github.com/charlesng35/hireflow/internal/database/testutil"
	"github.com/charlesng35/hireflow/internal/middleware"
	"github.com/charlesng35/hireflow/internal/models"
	"github.com/charlesng35/hireflow/internal/monitoring"
	"github.com/charlesng35/hireflow/internal/security"
	"github.com/charlesng35/hireflow/internal/services"
	"github.com/charlesng35/hireflow/internal/storage"
	"github.com/charlesng35/hireflow/pkg/crypto"
	"github.com/charlesng35/hireflow/pkg/mail"
)

const (
	// AdminEmail and AdminPassword identify the seeded administrator.
	AdminEmail    = "admin@hireflow.test"
	AdminPassword = "Adm1n!Secret"
	// Password satisfies the password policy for accounts created by tests.
	Password = "Str0ng!Pass"

	publicBaseURL = "https://files.hireflow.test"
)

// Mailer records outgoing messages so tests can pull tokens out of links.
type Mailer struct {
	mu       sync.Mutex
	messages []mail.Message
}

func (m *Mailer) Send(_ context.Context, msg mail.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.messages = append(m.messages, msg)
	return nil
}

// Sent returns a copy of every message delivered so far.
func (m *Mailer) Sent() []mail.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]mail.Message(nil), m.messages...)
}

var linkToken = regexp.MustCompile(`token=([A-Za-z0-9._\-]+)`)

// LastToken returns the token embedded in the latest email sent to address.
func (m *Mailer) LastToken(t *testing.T, address string) string {
	t.Helper()
	messages := m.Sent()
	for i := len(messages) - 1; i >= 0; i-- {
		if len(messages[i].To) == 1 && messages[i].To[0] == address {
			match := linkToken.FindStringSubmatch(messages[i].HTML)
			require.Len(t, match, 2, "no token link in email to %s", address)
			return match[1]
		}
	}
	t.Fatalf("no email sent to %s", address)
	return ""
}

// Env encapsulates a fully-wired API instance backed by an in-memory database for handler tests.
type Env struct {
	T        *testing.T
	DB       *gorm.DB
	Router   *gin.Engine
	Config   *app.Config
	Mailer   *Mailer
	Docs     *storage.BlobStore
	Services api.Services
	Health   *monitoring.HealthManager

	session    *http.Cookie
	csrfToken  string
	csrfCookie *http.Cookie
}

// EnvOption adjusts the configuration before the router is built.
type EnvOption func(*app.Config)

// WithRateLimit overrides the auth endpoint rate limit.
func WithRateLimit(requests int, window time.Duration) EnvOption {
	return func(cfg *app.Config) {
		cfg.Server.RateLimit = app.RateLimitConfig{Requests: requests, Window: window}
	}
}

// NewEnv provisions a fresh handler test environment with migrations and the admin seed applied.
func NewEnv(t *testing.T, opts ...EnvOption) *Env {
	t.Helper()

	gin.SetMode(gin.TestMode)

	cfg := &app.Config{
		Server: app.ServerConfig{
			Environment:    app.EnvDevelopment,
			PublicURL:      "https://ats.hireflow.test",
			AllowedOrigins: []string{"https://ats.hireflow.test"},
			RequestTimeout: 5 * time.Second,
			CSRF:           app.CSRFConfig{Enabled: true},
			RateLimit:      app.RateLimitConfig{Requests: 1000, Window: time.Minute},
		},
		Auth: app.AuthConfig{
			JWT: app.JWTSettings{
				Secret:     "handler-suite-super-secret-key-32-bytes",
				Issuer:     "hireflow-test",
				SessionTTL: time.Hour,
			},
			Revocation: app.RevocationSettings{Enabled: true},
			HashCost:   bcrypt.MinCost,
		},
		Monitoring: app.MonitoringConfig{
			Prometheus: app.PrometheusConfig{Enabled: true, Endpoint: "/metrics"},
			Health:     app.HealthConfig{Enabled: true, Timeout: time.Second},
		},
		Bootstrap: app.BootstrapConfig{
			AdminEmail:    AdminEmail,
			AdminPassword: AdminPassword,
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db := sharedtestutil.NewDB(t, sharedtestutil.Options{
		Seed: &database.Seed{
			AdminEmail:    AdminEmail,
			AdminPassword: AdminPassword,
			FirstName:     "Ada",
			LastName:      "Admin",
			HashCost:      bcrypt.MinCost,
		},
	})

	env := &Env{T: t, DB: db, Config: cfg, Mailer: &Mailer{}}

	bucket := memblob.OpenBucket(nil)
	t.Cleanup(func() { _ = bucket.Close() })
	env.Docs = storage.NewBlobStore(bucket, publicBaseURL)

	env.Services = env.buildServices()
	env.Services.Security = security.NewAuditService(db, cfg)

	mon, err := monitoring.NewModule(monitoring.Options{})
	require.NoError(t, err)
	env.Health = mon.Health()

	router, err := api.NewRouter(cfg, env.Services, mon)
	require.NoError(t, err)
	env.Router = router

	return env
}

func (e *Env) buildServices() api.Services {
	t := e.T
	t.Helper()

	store, err := services.NewAccountStore(e.DB, nil)
	require.NoError(t, err)
	audit, err := services.NewAuditService(e.DB)
	require.NoError(t, err)
	tokens, err := iauth.NewTokenService(e.Config.Auth.TokenServiceConfig())
	require.NoError(t, err)
	revocations, err := iauth.NewRevocationStore(e.DB, nil)
	require.NoError(t, err)

	notifier := services.NewNotifier(e.Mailer, services.WithNotifierBaseURL(e.Config.Server.PublicURL))
	hashCost := e.Config.Auth.PasswordHashCost()

	authSvc, err := services.NewAuthService(store, tokens, audit, notifier,
		services.WithAuthHashCost(hashCost),
		services.WithAuthRevocations(revocations),
	)
	require.NoError(t, err)
	invites, err := services.NewInviteService(authSvc, audit, notifier)
	require.NoError(t, err)
	admin, err := services.NewAdminService(store, audit, hashCost)
	require.NoError(t, err)
	jobs, err := services.NewJobService(e.DB)
	require.NoError(t, err)
	applications, err := services.NewApplicationService(e.DB, jobs, store, e.Docs, notifier)
	require.NoError(t, err)

	return api.Services{
		Auth:         authSvc,
		Invites:      invites,
		Admin:        admin,
		Jobs:         jobs,
		Applications: applications,
	}
}

// CreateAccount inserts an account with the shared test password.
func (e *Env) CreateAccount(email string, role models.Role, active, verified bool) *models.Account {
	e.T.Helper()

	hashed, err := crypto.HashPasswordWithCost(Password, bcrypt.MinCost)
	require.NoError(e.T, err)

	account := &models.Account{
		Email:         email,
		PasswordHash:  hashed,
		Role:          role,
		FirstName:     "Test",
		LastName:      "User",
		IsActive:      active,
		EmailVerified: verified,
	}
	require.NoError(e.T, e.DB.Create(account).Error)
	return account
}

// CreateApplicant inserts an active, verified applicant.
func (e *Env) CreateApplicant(email string) *models.Account {
	e.T.Helper()
	return e.CreateAccount(email, models.RoleApplicant, true, true)
}

// Login signs in and keeps the session cookie for subsequent requests.
func (e *Env) Login(email, password string) Body {
	e.T.Helper()

	w := e.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    email,
		"password": password,
	})
	require.Equal(e.T, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(e.T, e.session, "login did not set a session cookie")
	return Decode(e.T, w)
}

// LoginAdmin signs in as the seeded administrator.
func (e *Env) LoginAdmin() Body {
	e.T.Helper()
	return e.Login(AdminEmail, AdminPassword)
}

// SessionCookie returns the stored session cookie, if any.
func (e *Env) SessionCookie() *http.Cookie {
	return e.session
}

// UseSession replaces the stored session cookie; nil drops it.
func (e *Env) UseSession(cookie *http.Cookie) {
	e.session = cookie
}

// Body is a decoded JSON response envelope.
type Body map[string]any

// Map returns the nested object stored under key.
func (b Body) Map(key string) Body {
	value, _ := b[key].(map[string]any)
	return Body(value)
}

// String returns the string stored under key.
func (b Body) String(key string) string {
	value, _ := b[key].(string)
	return value
}

// Bool returns the boolean stored under key.
func (b Body) Bool(key string) bool {
	value, _ := b[key].(bool)
	return value
}

// Decode parses the JSON envelope written to w.
func Decode(t *testing.T, w *httptest.ResponseRecorder) Body {
	t.Helper()
	var body Body
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body), w.Body.String())
	return body
}

// Request executes a JSON request against the router, attaching the stored
// session cookie and CSRF token.
func (e *Env) Request(method, path string, body any) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.T, json.NewEncoder(&buf).Encode(body))
	}

	req, err := http.NewRequest(method, path, &buf)
	require.NoError(e.T, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.do(req, false)
}

// File is a multipart file part.
type File struct {
	Name string
	Data []byte
}

// Multipart posts a multipart form with the given fields and files.
func (e *Env) Multipart(path string, fields map[string]string, files map[string]File) *httptest.ResponseRecorder {
	e.T.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for name, value := range fields {
		require.NoError(e.T, writer.WriteField(name, value))
	}
	for field, file := range files {
		part, err := writer.CreateFormFile(field, file.Name)
		require.NoError(e.T, err)
		_, err = part.Write(file.Data)
		require.NoError(e.T, err)
	}
	require.NoError(e.T, writer.Close())

	req, err := http.NewRequest(http.MethodPost, path, &buf)
	require.NoError(e.T, err)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return e.do(req, false)
}

func (e *Env) do(req *http.Request, skipCSRF bool) *httptest.ResponseRecorder {
	e.T.Helper()

	if e.session != nil {
		req.AddCookie(e.session)
	}
	if !skipCSRF && requiresCSRFAttestation(req.Method) {
		e.ensureCSRFToken()
		if e.csrfCookie != nil {
			req.AddCookie(e.csrfCookie)
		}
		if e.csrfToken != "" {
			req.Header.Set(middleware.CSRFHeaderName, e.csrfToken)
		}
	}

	w := httptest.NewRecorder()
	e.Router.ServeHTTP(w, req)

	e.captureCookies(w.Result())
	return w
}

func (e *Env) ensureCSRFToken() {
	if e.csrfToken != "" && e.csrfCookie != nil {
		return
	}
	req, err := http.NewRequest(http.MethodGet, "/health/live", nil)
	require.NoError(e.T, err)
	resp := e.do(req, true)
	require.Equal(e.T, http.StatusOK, resp.Code, resp.Body.String())
}

func (e *Env) captureCookies(resp *http.Response) {
	if resp == nil {
		return
	}
	defer resp.Body.Close()

	if token := resp.Header.Get(middleware.CSRFHeaderName); token != "" {
		e.csrfToken = token
	}
	for _, c := range resp.Cookies() {
		switch c.Name {
		case middleware.CSRFCookieName:
			e.csrfCookie = &http.Cookie{Name: c.Name, Value: c.Value}
		case iauth.SessionCookieName:
			if c.MaxAge < 0 || c.Value == "" {
				e.session = nil
				continue
			}
			e.session = &http.Cookie{Name: c.Name, Value: c.Value}
		}
	}
}

func requiresCSRFAttestation(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

// LastSetCookie returns the named cookie written by w, if any.
func LastSetCookie(w *httptest.ResponseRecorder, name string) *http.Cookie {
	var found *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			found = c
		}
	}
	return found
}
