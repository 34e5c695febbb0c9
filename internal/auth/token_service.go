package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/charlesng35/hireflow/internal/models"
)

// Purpose tags what a signed token may be used for.
type Purpose string

const (
	PurposeSession           Purpose = "session"
	PurposeEmailVerification Purpose = "email_verification"
	PurposePasswordReset     Purpose = "password_reset"
	PurposeInvitation        Purpose = "invitation"
)

// Default token lifetimes.
const (
	DefaultSessionTTL           = 7 * 24 * time.Hour
	DefaultPasswordResetTTL     = time.Hour
	DefaultEmailVerificationTTL = 24 * time.Hour
	DefaultInvitationTTL        = 72 * time.Hour
)

// Verification failures. All of them mean "unauthenticated"; callers only
// branch on them to pick user-facing wording.
var (
	ErrInvalidSignature = errors.New("token: invalid signature")
	ErrExpired          = errors.New("token: expired")
	ErrMalformedToken   = errors.New("token: malformed")
	ErrWrongPurpose     = errors.New("token: wrong purpose")
)

// TokenConfig bundles the configuration required to build a TokenService.
type TokenConfig struct {
	Secret               string
	Issuer               string
	SessionTTL           time.Duration
	PasswordResetTTL     time.Duration
	EmailVerificationTTL time.Duration
	InvitationTTL        time.Duration
	Clock                func() time.Time
}

// Claims represents the custom claims embedded in issued tokens. Type is
// omitted for session tokens.
type Claims struct {
	AccountID string      `json:"userId"`
	Email     string      `json:"email"`
	Role      models.Role `json:"role,omitempty"`
	Type      Purpose     `json:"type,omitempty"`
	jwt.RegisteredClaims
}

// Purpose reports the purpose tag carried by the token.
func (c *Claims) Purpose() Purpose {
	if c.Type == "" {
		return PurposeSession
	}
	return c.Type
}

// TokenInput holds the parameters used when issuing a token. A zero TTL
// selects the configured lifetime for the purpose.
type TokenInput struct {
	AccountID string
	Email     string
	Role      models.Role
	Purpose   Purpose
	TTL       time.Duration
}

// TokenService issues and verifies signed, purpose-tagged tokens. It keeps no
// server-side state.
type TokenService struct {
	secret []byte
	issuer string
	ttls   map[Purpose]time.Duration
	now    func() time.Time
}

// NewTokenService constructs a TokenService. A missing secret is a
// configuration error and must abort start-up.
func NewTokenService(cfg TokenConfig) (*TokenService, error) {
	if strings.TrimSpace(cfg.Secret) == "" {
		return nil, errors.New("token: secret must be provided")
	}

	now := time.Now
	if cfg.Clock != nil {
		now = cfg.Clock
	}

	return &TokenService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
		ttls: map[Purpose]time.Duration{
			PurposeSession:           orDefault(cfg.SessionTTL, DefaultSessionTTL),
			PurposePasswordReset:     orDefault(cfg.PasswordResetTTL, DefaultPasswordResetTTL),
			PurposeEmailVerification: orDefault(cfg.EmailVerificationTTL, DefaultEmailVerificationTTL),
			PurposeInvitation:        orDefault(cfg.InvitationTTL, DefaultInvitationTTL),
		},
		now: now,
	}, nil
}

// Issue signs a token for the supplied subject.
func (s *TokenService) Issue(input TokenInput) (string, error) {
	signed, _, err := s.IssueWithExpiry(input)
	return signed, err
}

// IssueWithExpiry signs a token and also returns the expiry carried in its
// exp claim, truncated to the claim's precision.
func (s *TokenService) IssueWithExpiry(input TokenInput) (string, time.Time, error) {
	if input.AccountID == "" {
		return "", time.Time{}, errors.New("token: account id is required")
	}

	purpose := input.Purpose
	if purpose == "" {
		purpose = PurposeSession
	}
	ttl, ok := s.ttls[purpose]
	if !ok {
		return "", time.Time{}, fmt.Errorf("token: unknown purpose %q", purpose)
	}
	if input.TTL > 0 {
		ttl = input.TTL
	}

	now := s.now()
	claims := &Claims{
		AccountID: input.AccountID,
		Email:     models.NormalizeEmail(input.Email),
		Role:      input.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   input.AccountID,
			Issuer:    s.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}
	if purpose != PurposeSession {
		claims.Type = purpose
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("token: sign: %w", err)
	}

	return signed, claims.ExpiresAt.Time, nil
}

// Verify parses and validates a signed token. Errors wrap ErrInvalidSignature,
// ErrExpired or ErrMalformedToken.
func (s *TokenService) Verify(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, fmt.Errorf("%w: empty token", ErrMalformedToken)
	}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)

	var claims Claims
	_, err := parser.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		return s.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return nil, fmt.Errorf("%w: unexpected issuer", ErrMalformedToken)
	}

	if claims.AccountID == "" || claims.Email == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrMalformedToken)
	}

	return &claims, nil
}

// VerifyPurpose verifies the token and requires the given purpose tag.
func (s *TokenService) VerifyPurpose(tokenString string, purpose Purpose) (*Claims, error) {
	claims, err := s.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Purpose() != purpose {
		return nil, fmt.Errorf("%w: got %s, want %s", ErrWrongPurpose, claims.Purpose(), purpose)
	}
	return claims, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	case errors.Is(err, jwt.ErrTokenExpired), errors.Is(err, jwt.ErrTokenNotValidYet):
		return fmt.Errorf("%w: %w", ErrExpired, err)
	default:
		return fmt.Errorf("%w: %w", ErrMalformedToken, err)
	}
}

func orDefault(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}
