package app

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/multierr"
	"golang.org/x/crypto/bcrypt"

	"github.com/charlesng35/hireflow/pkg/crypto"
)

const (
	generatedSecretBytes = 48
	// MinJWTSecretLength is enforced outside development.
	MinJWTSecretLength = 32
)

// ErrMissingJWTSecret aborts start-up outside development when no signing secret is configured.
var ErrMissingJWTSecret = errors.New("auth.jwt.secret is required outside development (set HIREFLOW_AUTH_JWT_SECRET)")

// ApplyRuntimeDefaults generates a JWT secret in development when none is
// configured, then validates the result. The returned set names generated
// keys so callers can log them without exposing values.
func ApplyRuntimeDefaults(cfg *Config) (map[string]bool, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	generated := make(map[string]bool)
	if strings.TrimSpace(cfg.Auth.JWT.Secret) == "" && cfg.Server.IsDevelopment() {
		secret, err := crypto.GenerateToken(generatedSecretBytes)
		if err != nil {
			return nil, fmt.Errorf("generate jwt secret: %w", err)
		}
		cfg.Auth.JWT.Secret = secret
		generated["auth.jwt.secret"] = true
	}
	cfg.Server.PublicURL = strings.TrimRight(strings.TrimSpace(cfg.Server.PublicURL), "/")

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return generated, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs error

	secret := strings.TrimSpace(c.Auth.JWT.Secret)
	switch {
	case secret == "":
		errs = multierr.Append(errs, ErrMissingJWTSecret)
	case !c.Server.IsDevelopment() && len(secret) < MinJWTSecretLength:
		errs = multierr.Append(errs, fmt.Errorf("auth.jwt.secret must be at least %d bytes outside development", MinJWTSecretLength))
	}

	if cost := c.Auth.HashCost; cost != 0 && (cost < bcrypt.MinCost || cost > bcrypt.MaxCost) {
		errs = multierr.Append(errs, fmt.Errorf("auth.hash_cost must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}

	if raw := c.Server.PublicURL; raw != "" {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
			errs = multierr.Append(errs, fmt.Errorf("server.public_url %q must be an absolute http(s) URL", raw))
		}
	}

	switch strings.ToLower(strings.TrimSpace(c.Database.Driver)) {
	case "", "sqlite", "postgres", "postgresql", "mysql", "mariadb":
	default:
		errs = multierr.Append(errs, fmt.Errorf("database.driver %q is not supported", c.Database.Driver))
	}

	if c.Server.RateLimit.Requests < 0 {
		errs = multierr.Append(errs, errors.New("server.rate_limit.requests cannot be negative"))
	}
	return errs
}
