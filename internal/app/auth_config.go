package app

import (
	"github.com/charlesng35/hireflow/internal/auth"
	"github.com/charlesng35/hireflow/pkg/crypto"
)

// TokenServiceConfig converts AuthConfig into the parameters expected by the token service.
func (c AuthConfig) TokenServiceConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret:               c.JWT.Secret,
		Issuer:               c.JWT.Issuer,
		SessionTTL:           c.JWT.SessionTTL,
		PasswordResetTTL:     c.JWT.PasswordResetTTL,
		EmailVerificationTTL: c.JWT.EmailVerificationTTL,
		InvitationTTL:        c.JWT.InvitationTTL,
	}
}

// CookieOptions derives session cookie attributes. Cookies are Secure unless
// the server runs in development or the config explicitly disables it.
func (c Config) CookieOptions() auth.CookieOptions {
	secure := !c.Server.IsDevelopment()
	if c.Auth.Cookie.Secure != nil {
		secure = *c.Auth.Cookie.Secure
	}
	ttl := c.Auth.JWT.SessionTTL
	if ttl <= 0 {
		ttl = auth.DefaultSessionTTL
	}
	return auth.CookieOptions{
		Secure: secure,
		Domain: c.Auth.Cookie.Domain,
		MaxAge: ttl,
	}
}

// PasswordHashCost returns the configured bcrypt cost, defaulting to crypto.PasswordCost.
func (c AuthConfig) PasswordHashCost() int {
	if c.HashCost <= 0 {
		return crypto.PasswordCost
	}
	return c.HashCost
}
