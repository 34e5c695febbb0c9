package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/charlesng35/hireflow/internal/auth"
	"github.com/charlesng35/hireflow/internal/models"
	apperrors "github.com/charlesng35/hireflow/pkg/errors"
	"github.com/charlesng35/hireflow/pkg/crypto"
	"github.com/charlesng35/hireflow/pkg/logger"
	"github.com/charlesng35/hireflow/pkg/metrics"
)

// Identity is the normalised view of an authenticated account.
type Identity struct {
	ID    string      `json:"id"`
	Email string      `json:"email"`
	Name  string      `json:"name"`
	Role  models.Role `json:"role"`

	TokenID        string    `json:"-"`
	TokenExpiresAt time.Time `json:"-"`
}

// IsAdmin reports whether the identity belongs to the admin class.
func (i *Identity) IsAdmin() bool {
	return i != nil && i.Role == models.RoleAdmin
}

// Session is a freshly issued session token and its owner.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  Identity
}

// RegisterInput captures the fields of an applicant self-registration.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// VerifyEmailResult reports the outcome of an email verification.
type VerifyEmailResult struct {
	Identity        Identity
	AlreadyVerified bool
	// Session is nil when the account is not active.
	Session *Session
}

// AuthOption customises AuthService behaviour.
type AuthOption func(*AuthService)

// WithAuthRevocations enables the server-side token blocklist.
func WithAuthRevocations(store *auth.RevocationStore) AuthOption {
	return func(s *AuthService) {
		s.revocations = store
	}
}

// WithAuthHashCost overrides the bcrypt cost used for new hashes.
func WithAuthHashCost(cost int) AuthOption {
	return func(s *AuthService) {
		if cost > 0 {
			s.hashCost = cost
		}
	}
}

// WithAuthClock injects a custom time source.
func WithAuthClock(clock func() time.Time) AuthOption {
	return func(s *AuthService) {
		if clock != nil {
			s.now = clock
		}
	}
}

// AuthService implements sign-in, session verification and the token based
// account flows (registration, email verification, password reset).
type AuthService struct {
	store       *AccountStore
	tokens      *auth.TokenService
	audit       *AuditService
	notifier    *Notifier
	revocations *auth.RevocationStore
	hashCost    int
	dummyHash   string
	now         func() time.Time
}

// NewAuthService wires the auth gateway.
func NewAuthService(store *AccountStore, tokens *auth.TokenService, audit *AuditService, notifier *Notifier, opts ...AuthOption) (*AuthService, error) {
	if store == nil {
		return nil, errors.New("auth service: account store is required")
	}
	if tokens == nil {
		return nil, errors.New("auth service: token service is required")
	}

	svc := &AuthService{
		store:    store,
		tokens:   tokens,
		audit:    audit,
		notifier: notifier,
		hashCost: crypto.PasswordCost,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}

	// Compared against on unknown emails so both failure paths cost one bcrypt run.
	dummy, err := crypto.HashPasswordWithCost("hireflow-unknown-account", svc.hashCost)
	if err != nil {
		return nil, err
	}
	svc.dummyHash = dummy

	return svc, nil
}

// Tokens exposes the token service for collaborators such as the invite flow.
func (s *AuthService) Tokens() *auth.TokenService {
	return s.tokens
}

// SignIn verifies credentials and issues a session. Unknown emails, wrong
// passwords and inactive accounts all yield ErrInvalidCredentials.
func (s *AuthService) SignIn(ctx context.Context, email, password string) (*Session, error) {
	ctx = ensureContext(ctx)

	account, err := s.store.FindByEmail(ctx, email)
	if errors.Is(err, ErrAccountNotFound) {
		crypto.VerifyPassword(s.dummyHash, password)
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}
	if err != nil {
		return nil, apperrors.NewDependency("database", err)
	}

	if !crypto.VerifyPassword(account.PasswordHash, password) || !account.IsActive {
		metrics.AuthAttempts.WithLabelValues("failure").Inc()
		return nil, apperrors.ErrInvalidCredentials
	}

	if !account.CanSignIn() {
		metrics.AuthAttempts.WithLabelValues("unverified").Inc()
		return nil, apperrors.ErrEmailNotVerified
	}

	s.upgradeHash(ctx, account, password)

	session, err := s.IssueSession(account)
	if err != nil {
		return nil, err
	}

	if err := s.store.RecordLogin(ctx, account.ID); err != nil {
		logger.WithModule("auth").Warn("failed to record login time", zap.String("account_id", account.ID), zap.Error(err))
	}
	recordAudit(s.audit, ctx, AuditEntry{AccountID: account.ID, Action: models.AuditActionLogin})
	metrics.AuthAttempts.WithLabelValues("success").Inc()

	return session, nil
}

// upgradeHash re-hashes passwords stored with a weaker bcrypt cost.
func (s *AuthService) upgradeHash(ctx context.Context, account *models.Account, password string) {
	if !crypto.NeedsRehash(account.PasswordHash, s.hashCost) {
		return
	}
	hash, err := crypto.HashPasswordWithCost(password, s.hashCost)
	if err != nil {
		return
	}
	if _, err := s.store.RehashPassword(ctx, account.ID, account.PasswordHash, hash); err != nil {
		logger.WithModule("auth").Warn("failed to upgrade password hash", zap.String("account_id", account.ID), zap.Error(err))
		return
	}
	account.PasswordHash = hash
}

// VerifySession resolves a session token to the current account state.
func (s *AuthService) VerifySession(ctx context.Context, token string) (*Identity, error) {
	ctx = ensureContext(ctx)

	identity, err := s.verifySession(ctx, token)
	if err != nil {
		metrics.SessionVerifications.WithLabelValues("invalid").Inc()
		return nil, err
	}
	metrics.SessionVerifications.WithLabelValues("valid").Inc()
	return identity, nil
}

func (s *AuthService) verifySession(ctx context.Context, token string) (*Identity, error) {
	if strings.TrimSpace(token) == "" {
		return nil, apperrors.ErrUnauthorized
	}

	claims, err := s.tokens.VerifyPurpose(token, auth.PurposeSession)
	if err != nil {
		return nil, unauthenticated(err)
	}

	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, apperrors.NewDependency("database", err)
		}
		if revoked {
			return nil, apperrors.ErrUnauthorized.WithDetails("session has been revoked")
		}
	}

	account, err := s.store.FindByIDAndEmail(ctx, claims.AccountID, claims.Email)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, apperrors.ErrUnauthorized.WithDetails("account no longer exists")
	}
	if err != nil {
		return nil, apperrors.NewDependency("database", err)
	}

	if !account.CanSignIn() {
		return nil, apperrors.ErrUnauthorized.WithDetails("account is not permitted to sign in")
	}

	identity := identityOf(account)
	identity.TokenID = claims.ID
	if claims.ExpiresAt != nil {
		identity.TokenExpiresAt = claims.ExpiresAt.Time
	}
	return &identity, nil
}

// SignOut records the logout and, when revocation is enabled, blocks the
// session token until it expires.
func (s *AuthService) SignOut(ctx context.Context, identity *Identity) error {
	ctx = ensureContext(ctx)
	if identity == nil {
		return nil
	}

	if s.revocations != nil && identity.TokenID != "" {
		if err := s.revocations.Revoke(ctx, identity.TokenID, identity.ID, identity.TokenExpiresAt); err != nil {
			return apperrors.NewDependency("database", err)
		}
	}

	recordAudit(s.audit, ctx, AuditEntry{AccountID: identity.ID, Action: models.AuditActionLogout})
	return nil
}

// ChangePassword replaces the password of the signed-in account and returns a
// fresh session. A wrong current password leaves the account untouched.
func (s *AuthService) ChangePassword(ctx context.Context, identity *Identity, current, next string) (*Session, error) {
	ctx = ensureContext(ctx)
	if identity == nil {
		return nil, apperrors.ErrUnauthorized
	}

	account, err := s.store.FindByID(ctx, identity.ID)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, apperrors.ErrUnauthorized
	}
	if err != nil {
		return nil, apperrors.NewDependency("database", err)
	}

	if !crypto.VerifyPassword(account.PasswordHash, current) {
		return nil, apperrors.NewValidation("Current password is incorrect")
	}
	if err := auth.PolicyFor(account.Role).Validate(next); err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}

	hash, err := crypto.HashPasswordWithCost(next, s.hashCost)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash password")
	}

	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.store.WithTx(tx).UpdatePassword(ctx, account.ID, hash); err != nil {
			return err
		}
		return s.logTx(ctx, tx, AuditEntry{
			AccountID: account.ID,
			Action:    models.AuditActionPasswordSet,
			Details:   map[string]any{"via": "change_password"},
		})
	})
	if err != nil {
		return nil, apperrors.NewDependency("database", err)
	}

	if s.revocations != nil && identity.TokenID != "" {
		if err := s.revocations.Revoke(ctx, identity.TokenID, identity.ID, identity.TokenExpiresAt); err != nil {
			logger.WithModule("auth").Warn("failed to revoke previous session", zap.String("account_id", account.ID), zap.Error(err))
		}
	}

	return s.IssueSession(account)
}

// RegisterApplicant creates an unverified applicant account and mails a
// verification link.
func (s *AuthService) RegisterApplicant(ctx context.Context, input RegisterInput) (*Identity, error) {
	ctx = ensureContext(ctx)

	email := models.NormalizeEmail(input.Email)
	if email == "" {
		return nil, apperrors.NewValidation("Email is required")
	}
	if err := auth.BasicPasswordPolicy.Validate(input.Password); err != nil {
		return nil, apperrors.NewValidation(err.Error())
	}

	hash, err := crypto.HashPasswordWithCost(input.Password, s.hashCost)
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to hash password")
	}

	account := &models.Account{
		Email:        email,
		PasswordHash: hash,
		Role:         models.RoleApplicant,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		IsActive:     true,
	}
	if err := s.store.Create(ctx, account); err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return nil, apperrors.NewConflict("An account with this email already exists")
		}
		return nil, apperrors.NewDependency("database", err)
	}

	s.sendVerification(ctx, account)

	identity := identityOf(account)
	return &identity, nil
}

// ResendVerification mails a new verification link when the email belongs to
// an unverified applicant. The caller sees the same result either way.
func (s *AuthService) ResendVerification(ctx context.Context, email string) {
	ctx = ensureContext(ctx)

	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			logger.WithModule("auth").Error("resend verification lookup failed", zap.Error(err))
		}
		return
	}
	if account.EmailVerified || account.IsAdmin() || !account.IsActive {
		return
	}
	s.sendVerification(ctx, account)
}

func (s *AuthService) sendVerification(ctx context.Context, account *models.Account) {
	token, err := s.tokens.Issue(auth.TokenInput{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
		Purpose:   auth.PurposeEmailVerification,
	})
	if err != nil {
		logger.WithModule("auth").Error("issue verification token", zap.String("account_id", account.ID), zap.Error(err))
		return
	}
	s.notifier.SendEmailVerification(ctx, account, token)
}

// RequestPasswordReset mails a one hour reset link to verified accounts. It
// never reports whether the email exists.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) {
	ctx = ensureContext(ctx)
	log := logger.WithModule("auth")

	account, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrAccountNotFound) {
			log.Error("password reset lookup failed", zap.Error(err))
		}
		return
	}
	if !account.IsAdmin() && !account.EmailVerified {
		return
	}

	token, err := s.tokens.Issue(auth.TokenInput{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
		Purpose:   auth.PurposePasswordReset,
	})
	if err != nil {
		log.Error("issue password reset token", zap.String("account_id", account.ID), zap.Error(err))
		return
	}

	recordAudit(s.audit, ctx, AuditEntry{AccountID: account.ID, Action: models.AuditActionPasswordResetRequested})
	s.notifier.SendPasswordReset(ctx, account, token)
}

// CompletePasswordReset sets a new password from a password_reset token.
// Reset tokens are single use only within their short lifetime unless
// revocation is enabled, in which case the token is blocked after use.
func (s *AuthService) CompletePasswordReset(ctx context.Context, token, password string) error {
	ctx = ensureContext(ctx)

	claims, err := s.tokens.VerifyPurpose(token, auth.PurposePasswordReset)
	if err != nil {
		return invalidToken(err)
	}

	if s.revocations != nil {
		revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
		if err != nil {
			return apperrors.NewDependency("database", err)
		}
		if revoked {
			return apperrors.ErrInvalidToken
		}
	}

	account, err := s.store.FindByIDAndEmail(ctx, claims.AccountID, claims.Email)
	if errors.Is(err, ErrAccountNotFound) {
		return apperrors.ErrInvalidToken
	}
	if err != nil {
		return apperrors.NewDependency("database", err)
	}

	if err := auth.PolicyFor(account.Role).Validate(password); err != nil {
		return apperrors.NewValidation(err.Error())
	}

	hash, err := crypto.HashPasswordWithCost(password, s.hashCost)
	if err != nil {
		return apperrors.Wrap(err, "failed to hash password")
	}

	err = s.store.Transaction(ctx, func(tx *gorm.DB) error {
		if err := s.store.WithTx(tx).UpdatePassword(ctx, account.ID, hash); err != nil {
			return err
		}
		return s.logTx(ctx, tx, AuditEntry{
			AccountID: account.ID,
			Action:    models.AuditActionPasswordSet,
			Details:   map[string]any{"via": "password_reset"},
		})
	})
	if err != nil {
		return apperrors.NewDependency("database", err)
	}

	if s.revocations != nil && claims.ExpiresAt != nil {
		if err := s.revocations.Revoke(ctx, claims.ID, account.ID, claims.ExpiresAt.Time); err != nil {
			logger.WithModule("auth").Warn("failed to revoke reset token", zap.String("account_id", account.ID), zap.Error(err))
		}
	}
	return nil
}

// VerifyEmail marks the account verified and signs it in. Verifying an
// already verified account succeeds without changing it.
func (s *AuthService) VerifyEmail(ctx context.Context, token string) (*VerifyEmailResult, error) {
	ctx = ensureContext(ctx)

	claims, err := s.tokens.VerifyPurpose(token, auth.PurposeEmailVerification)
	if err != nil {
		return nil, invalidToken(err)
	}

	account, err := s.store.FindByIDAndEmail(ctx, claims.AccountID, claims.Email)
	if errors.Is(err, ErrAccountNotFound) {
		return nil, apperrors.ErrInvalidToken
	}
	if err != nil {
		return nil, apperrors.NewDependency("database", err)
	}

	changed, err := s.store.MarkEmailVerified(ctx, account.ID)
	if err != nil {
		return nil, apperrors.NewDependency("database", err)
	}
	if changed {
		account.EmailVerified = true
		recordAudit(s.audit, ctx, AuditEntry{AccountID: account.ID, Action: models.AuditActionEmailVerified})
	}

	result := &VerifyEmailResult{
		Identity:        identityOf(account),
		AlreadyVerified: !changed,
	}
	if account.IsActive {
		session, err := s.IssueSession(account)
		if err != nil {
			return nil, err
		}
		result.Session = session
	}
	return result, nil
}

// IssueSession signs a session token for account.
func (s *AuthService) IssueSession(account *models.Account) (*Session, error) {
	token, expiresAt, err := s.tokens.IssueWithExpiry(auth.TokenInput{
		AccountID: account.ID,
		Email:     account.Email,
		Role:      account.Role,
		Purpose:   auth.PurposeSession,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, "failed to issue session")
	}

	return &Session{
		Token:     token,
		ExpiresAt: expiresAt,
		Identity:  identityOf(account),
	}, nil
}

// logTx writes entry inside tx. Without an audit service it is a no-op.
func (s *AuthService) logTx(ctx context.Context, tx *gorm.DB, entry AuditEntry) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.WithTx(tx).Log(ctx, entry)
}

func identityOf(account *models.Account) Identity {
	return Identity{
		ID:    account.ID,
		Email: account.Email,
		Name:  account.FullName(),
		Role:  account.Role,
	}
}

// unauthenticated maps token failures onto the 401 used for sessions. The
// specific failure is kept as a development detail only.
func unauthenticated(err error) error {
	return apperrors.ErrUnauthorized.WithDetails(err.Error()).WithInternal(err)
}

func invalidToken(err error) error {
	appErr := apperrors.ErrInvalidToken.WithDetails(err.Error()).WithInternal(err)
	if errors.Is(err, auth.ErrExpired) {
		return appErr.WithField("expired", true)
	}
	return appErr
}
