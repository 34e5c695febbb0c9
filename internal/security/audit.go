// Package security inspects a running deployment for weak authentication
// settings: missing administrators, short signing secrets, insecure cookies
// and long-lived sessions.
package security

import (
	"context"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/charlesng35/hireflow/internal/app"
	"github.com/charlesng35/hireflow/internal/models"
)

type CheckStatus string

const (
	StatusPass CheckStatus = "pass"
	StatusWarn CheckStatus = "warn"
	StatusFail CheckStatus = "fail"
)

const (
	recommendedSecretBytes = 48
	maxRecommendedTTL      = 30 * 24 * time.Hour
)

// Check is one audit finding.
type Check struct {
	ID          string      `json:"id"`
	Status      CheckStatus `json:"status"`
	Message     string      `json:"message"`
	Remediation string      `json:"remediation,omitempty"`
	Details     any         `json:"details,omitempty"`
}

func (c Check) with(details any) Check {
	c.Details = details
	return c
}

func pass(message string) Check {
	return Check{Status: StatusPass, Message: message}
}

func warn(message, remediation string) Check {
	return Check{Status: StatusWarn, Message: message, Remediation: remediation}
}

func fail(message, remediation string) Check {
	return Check{Status: StatusFail, Message: message, Remediation: remediation}
}

// Result is the full audit. Status is the worst status among Checks.
type Result struct {
	CheckedAt time.Time      `json:"checkedAt"`
	Status    CheckStatus    `json:"status"`
	Checks    []Check        `json:"checks"`
	Summary   map[string]int `json:"summary"`
}

// Failed reports whether any check failed outright.
func (r Result) Failed() bool {
	return r.Summary[string(StatusFail)] > 0
}

// auditCheck produces one finding. Checks that read configuration are
// skipped with a warning when none was supplied.
type auditCheck struct {
	id        string
	needsDB   bool
	needsConf bool
	run       func(s *AuditService, ctx context.Context) Check
}

var auditChecks = []auditCheck{
	{id: "active_admin_present", needsDB: true, run: (*AuditService).activeAdmin},
	{id: "jwt_secret_strength", needsConf: true, run: (*AuditService).jwtSecret},
	{id: "session_cookie_secure", needsConf: true, run: (*AuditService).cookieSecure},
	{id: "session_ttl", needsConf: true, run: (*AuditService).sessionTTL},
	{id: "session_revocation", needsConf: true, run: (*AuditService).revocation},
}

// AuditService evaluates the deployment's authentication posture. Both
// dependencies are optional.
type AuditService struct {
	db  *gorm.DB
	cfg *app.Config
	now func() time.Time
}

func NewAuditService(db *gorm.DB, cfg *app.Config) *AuditService {
	return &AuditService{db: db, cfg: cfg, now: time.Now}
}

// WithClock fixes the CheckedAt timestamp; used by tests.
func (s *AuditService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

func (s *AuditService) Run(ctx context.Context) Result {
	if ctx == nil {
		ctx = context.Background()
	}

	result := Result{
		CheckedAt: s.now().UTC(),
		Status:    StatusPass,
		Checks:    make([]Check, 0, len(auditChecks)),
		Summary:   map[string]int{string(StatusPass): 0, string(StatusWarn): 0, string(StatusFail): 0},
	}
	for _, ac := range auditChecks {
		var check Check
		switch {
		case ac.needsDB && s.db == nil:
			check = warn("Database unavailable; check skipped.", "Run the audit with database connectivity.")
		case ac.needsConf && s.cfg == nil:
			check = warn("Configuration not loaded; check skipped.", "Load configuration before running the audit.")
		default:
			check = ac.run(s, ctx)
		}
		check.ID = ac.id

		result.Checks = append(result.Checks, check)
		result.Summary[string(check.Status)]++
		if check.Status == StatusFail || (check.Status == StatusWarn && result.Status == StatusPass) {
			result.Status = check.Status
		}
	}
	return result
}

func (s *AuditService) activeAdmin(ctx context.Context) Check {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Account{}).
		Where("role = ? AND is_active = ?", models.RoleAdmin, true).
		Count(&count).Error
	switch {
	case err != nil:
		return warn(fmt.Sprintf("Could not count administrators: %v", err), "Retry after resolving database errors.")
	case count == 0:
		return fail("No active administrator account found.",
			"Set bootstrap.admin_email and bootstrap.admin_password and restart.")
	}
	return pass("Active administrator present.").with(map[string]any{"count": count})
}

func (s *AuditService) jwtSecret(context.Context) Check {
	length := len(strings.TrimSpace(s.cfg.Auth.JWT.Secret))
	details := map[string]any{"length": length}
	switch {
	case length == 0:
		return fail("Missing JWT signing secret.",
			fmt.Sprintf("Set HIREFLOW_AUTH_JWT_SECRET to a random value of at least %d bytes.", app.MinJWTSecretLength))
	case length < app.MinJWTSecretLength:
		return fail(fmt.Sprintf("JWT signing secret is too short (%d bytes).", length),
			fmt.Sprintf("Use a randomly generated secret of at least %d bytes.", app.MinJWTSecretLength)).with(details)
	case length < recommendedSecretBytes:
		return warn(fmt.Sprintf("JWT signing secret is %d bytes; %d or more is recommended.", length, recommendedSecretBytes),
			"Rotate HIREFLOW_AUTH_JWT_SECRET to a longer random value.").with(details)
	}
	return pass(fmt.Sprintf("JWT signing secret length is %d bytes.", length)).with(details)
}

func (s *AuditService) cookieSecure(context.Context) Check {
	switch {
	case s.cfg.CookieOptions().Secure:
		return pass("Session cookie is marked Secure.")
	case s.cfg.Server.IsDevelopment():
		return warn("Session cookie is sent over plain HTTP in development mode.", "")
	}
	return fail("Session cookie is not marked Secure outside development.",
		"Remove auth.cookie.secure=false or serve the API over HTTPS.")
}

func (s *AuditService) sessionTTL(context.Context) Check {
	ttl := s.cfg.Auth.TokenServiceConfig().SessionTTL
	if ttl <= 0 {
		return pass("Session TTL uses the default of 7 days.")
	}
	details := map[string]any{"ttl": ttl.String()}
	if ttl > maxRecommendedTTL {
		return warn(fmt.Sprintf("Session TTL (%s) exceeds the recommended maximum (%s).", ttl, maxRecommendedTTL),
			"Reduce auth.jwt.session_ttl to 30 days or lower.").with(details)
	}
	return pass(fmt.Sprintf("Session TTL is %s.", ttl)).with(details)
}

func (s *AuditService) revocation(context.Context) Check {
	if s.cfg.Auth.Revocation.Enabled {
		return pass("Session revocation enabled.")
	}
	return warn("Signed-out session tokens stay valid until they expire.",
		"Set auth.revocation.enabled=true to reject tokens after sign-out.")
}
