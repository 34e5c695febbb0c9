package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/charlesng35/hireflow/internal/auth"
	"github.com/charlesng35/hireflow/internal/models"
	"github.com/charlesng35/hireflow/pkg/crypto"
	apperrors "github.com/charlesng35/hireflow/pkg/errors"
)

func TestSignInIssuesSessionAndAudits(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.createAccount(t, accountFixture{email: "jane@example.com", role: models.RoleApplicant, active: true, verified: true})

	session, err := h.auth.SignIn(ctx, " Jane@Example.com ", testPassword)
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)
	require.Equal(t, account.ID, session.Identity.ID)
	require.Equal(t, "Test User", session.Identity.Name)
	require.True(t, session.ExpiresAt.Equal(h.now.Add(7*24*time.Hour)))

	claims, err := h.tokens.VerifyPurpose(session.Token, auth.PurposeSession)
	require.NoError(t, err)
	require.Equal(t, account.ID, claims.AccountID)

	reloaded, err := h.store.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotNil(t, reloaded.LastLoginAt)
	require.Equal(t, []models.AuditAction{models.AuditActionLogin}, h.actions(t, account.ID))
}

func TestSignInFailuresAreIndistinguishable(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createAccount(t, accountFixture{email: "jane@example.com", role: models.RoleApplicant, active: true, verified: true})
	h.createAccount(t, accountFixture{email: "off@example.com", role: models.RoleAdmin, active: false, verified: true})

	_, unknown := h.auth.SignIn(ctx, "nobody@example.com", testPassword)
	_, wrong := h.auth.SignIn(ctx, "jane@example.com", "wrong-password")
	_, inactive := h.auth.SignIn(ctx, "off@example.com", testPassword)

	for _, err := range []error{unknown, wrong, inactive} {
		require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
		appErr := apperrors.FromError(err)
		require.Equal(t, 401, appErr.StatusCode)
		require.Equal(t, "Invalid email or password", appErr.Message)
		require.Empty(t, appErr.Fields)
	}
}

func TestSignInUnverifiedApplicant(t *testing.T) {
	h := newHarness(t)
	h.createAccount(t, accountFixture{email: "new@example.com", role: models.RoleApplicant, active: true})

	_, err := h.auth.SignIn(context.Background(), "new@example.com", testPassword)
	require.ErrorIs(t, err, apperrors.ErrEmailNotVerified)
	appErr := apperrors.FromError(err)
	require.Equal(t, 401, appErr.StatusCode)
	require.Equal(t, true, appErr.Fields["requiresVerification"])
}

func TestSignInAdminDoesNotNeedVerification(t *testing.T) {
	h := newHarness(t)
	h.createAccount(t, accountFixture{email: "legacy-admin@example.com", role: models.RoleAdmin, active: true})

	session, err := h.auth.SignIn(context.Background(), "legacy-admin@example.com", testPassword)
	require.NoError(t, err)
	require.Equal(t, models.RoleAdmin, session.Identity.Role)
}

func TestSignInUpgradesWeakHash(t *testing.T) {
	h := newHarness(t, withHashCost(bcrypt.MinCost+1))
	ctx := context.Background()
	account := h.createAccount(t, accountFixture{email: "jane@example.com", role: models.RoleApplicant, active: true, verified: true, cost: bcrypt.MinCost})

	_, err := h.auth.SignIn(ctx, "jane@example.com", testPassword)
	require.NoError(t, err)

	reloaded, err := h.store.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.NotEqual(t, account.PasswordHash, reloaded.PasswordHash)
	require.False(t, crypto.NeedsRehash(reloaded.PasswordHash, bcrypt.MinCost+1))
	require.True(t, crypto.VerifyPassword(reloaded.PasswordHash, testPassword))
}

func TestVerifySessionReflectsCurrentAccountState(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.createAccount(t, accountFixture{email: "jane@example.com", role: models.RoleApplicant, active: true, verified: true})

	session, err := h.auth.SignIn(ctx, "jane@example.com", testPassword)
	require.NoError(t, err)

	identity, err := h.auth.VerifySession(ctx, session.Token)
	require.NoError(t, err)
	require.Equal(t, account.ID, identity.ID)
	require.Equal(t, models.RoleApplicant, identity.Role)
	require.NotEmpty(t, identity.TokenID)

	_, err = h.store.SetActive(ctx, account.ID, false)
	require.NoError(t, err)

	_, err = h.auth.VerifySession(ctx, session.Token)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestVerifySessionRejectsBadTokens(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.createAccount(t, accountFixture{email: "jane@example.com", role: models.RoleApplicant, active: true, verified: true})

	reset, err := h.tokens.Issue(auth.TokenInput{AccountID: account.ID, Email: account.Email, Purpose: auth.PurposePasswordReset})
	require.NoError(t, err)

	session, err := h.auth.SignIn(ctx, "jane@example.com", testPassword)
	require.NoError(t, err)

	for name, token := range map[string]string{
		"empty":         "",
		"garbage":       "not-a-token",
		"wrong purpose": reset,
		"tampered":      session.Token + "x",
	} {
		_, err := h.auth.VerifySession(ctx, token)
		require.ErrorIsf(t, err, apperrors.ErrUnauthorized, name)
	}

	h.now = h.now.Add(8 * 24 * time.Hour)
	_, err = h.auth.VerifySession(ctx, session.Token)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestVerifySessionRejectsDeletedAccount(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.createAccount(t, accountFixture{email: "jane@example.com", role: models.RoleApplicant, active: true, verified: true})

	session, err := h.auth.SignIn(ctx, "jane@example.com", testPassword)
	require.NoError(t, err)
	require.NoError(t, h.store.Delete(ctx, account.ID))

	_, err = h.auth.VerifySession(ctx, session.Token)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestSignOutRevokesWhenEnabled(t *testing.T) {
	h := newHarness(t, withRevocation())
	ctx := context.Background()
	account := h.createAccount(t, accountFixture{email: "jane@example.com", role: models.RoleApplicant, active: true, verified: true})

	session, err := h.auth.SignIn(ctx, "jane@example.com", testPassword)
	require.NoError(t, err)
	identity, err := h.auth.VerifySession(ctx, session.Token)
	require.NoError(t, err)

	require.NoError(t, h.auth.SignOut(ctx, identity))

	_, err = h.auth.VerifySession(ctx, session.Token)
	require.ErrorIs(t, err, apperrors.ErrUnauthorized)
	require.Equal(t, []models.AuditAction{models.AuditActionLogin, models.AuditActionLogout}, h.actions(t, account.ID))
}

func TestSignOutWithoutRevocationKeepsTokenValid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createAccount(t, accountFixture{email: "jane@example.com", role: models.RoleApplicant, active: true, verified: true})

	session, err := h.auth.SignIn(ctx, "jane@example.com", testPassword)
	require.NoError(t, err)
	identity, err := h.auth.VerifySession(ctx, session.Token)
	require.NoError(t, err)

	require.NoError(t, h.auth.SignOut(ctx, identity))
	_, err = h.auth.VerifySession(ctx, session.Token)
	require.NoError(t, err)
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.createAccount(t, accountFixture{email: "jane@example.com", role: models.RoleApplicant, active: true, verified: true})
	identity := identityOf(account)

	_, err := h.auth.ChangePassword(ctx, &identity, "not-current", "another-pass")
	require.Error(t, err)
	require.Equal(t, 400, apperrors.FromError(err).StatusCode)

	unchanged, err := h.store.FindByID(ctx, account.ID)
	require.NoError(t, err)
	require.Equal(t, account.PasswordHash, unchanged.PasswordHash)
	require.Empty(t, h.actions(t, account.ID))

	_, err = h.auth.ChangePassword(ctx, &identity, testPassword, "short")
	require.Error(t, err)
	require.Equal(t, "VALIDATION_ERROR", apperrors.FromError(err).Code)

	session, err := h.auth.ChangePassword(ctx, &identity, testPassword, "another-pass")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	_, err = h.auth.SignIn(ctx, "jane@example.com", testPassword)
	require.ErrorIs(t, err, apperrors.ErrInvalidCredentials)
	_, err = h.auth.SignIn(ctx, "jane@example.com", "another-pass")
	require.NoError(t, err)
	require.Contains(t, h.actions(t, account.ID), models.AuditActionPasswordSet)
}

func TestChangePasswordAppliesAdminPolicy(t *testing.T) {
	h := newHarness(t)
	admin := h.adminIdentity(t)

	_, err := h.auth.ChangePassword(context.Background(), admin, testPassword, "alllowercase")
	require.Error(t, err)
	require.Equal(t, "VALIDATION_ERROR", apperrors.FromError(err).Code)
}

func TestRegisterApplicantAndVerifyEmail(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	identity, err := h.auth.RegisterApplicant(ctx, RegisterInput{
		Email:     "New.Person@Example.com",
		Password:  "password1",
		FirstName: "New",
		LastName:  "Person",
	})
	require.NoError(t, err)
	require.Equal(t, "new.person@example.com", identity.Email)
	require.Equal(t, models.RoleApplicant, identity.Role)

	_, err = h.auth.SignIn(ctx, "new.person@example.com", "password1")
	require.ErrorIs(t, err, apperrors.ErrEmailNotVerified)

	_, err = h.auth.RegisterApplicant(ctx, RegisterInput{Email: "new.person@example.com", Password: "password1"})
	require.Error(t, err)
	require.Equal(t, 409, apperrors.FromError(err).StatusCode)

	token := h.mailer.lastToken(t, "new.person@example.com")

	result, err := h.auth.VerifyEmail(ctx, token)
	require.NoError(t, err)
	require.False(t, result.AlreadyVerified)
	require.NotNil(t, result.Session)

	verified, err := h.store.FindByID(ctx, identity.ID)
	require.NoError(t, err)
	require.True(t, verified.EmailVerified)
	require.NotNil(t, verified.EmailVerifiedAt)
	firstVerifiedAt := *verified.EmailVerifiedAt

	h.now = h.now.Add(time.Hour)
	again, err := h.auth.VerifyEmail(ctx, token)
	require.NoError(t, err)
	require.True(t, again.AlreadyVerified)

	verified, err = h.store.FindByID(ctx, identity.ID)
	require.NoError(t, err)
	require.True(t, verified.EmailVerifiedAt.Equal(firstVerifiedAt))
	require.Equal(t, []models.AuditAction{models.AuditActionEmailVerified}, h.actions(t, identity.ID))

	_, err = h.auth.SignIn(ctx, "new.person@example.com", "password1")
	require.NoError(t, err)
}

func TestRegisterApplicantValidatesInput(t *testing.T) {
	h := newHarness(t)

	_, err := h.auth.RegisterApplicant(context.Background(), RegisterInput{Email: " ", Password: "password1"})
	require.Equal(t, "VALIDATION_ERROR", apperrors.FromError(err).Code)

	_, err = h.auth.RegisterApplicant(context.Background(), RegisterInput{Email: "a@example.com", Password: "short"})
	require.Equal(t, "VALIDATION_ERROR", apperrors.FromError(err).Code)
	require.Empty(t, h.mailer.sent())
}

func TestVerifyEmailRejectsWrongPurposeAndExpiry(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.createAccount(t, accountFixture{email: "jane@example.com", role: models.RoleApplicant, active: true})

	reset, err := h.tokens.Issue(auth.TokenInput{AccountID: account.ID, Email: account.Email, Purpose: auth.PurposePasswordReset})
	require.NoError(t, err)
	_, err = h.auth.VerifyEmail(ctx, reset)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)

	verification, err := h.tokens.Issue(auth.TokenInput{AccountID: account.ID, Email: account.Email, Purpose: auth.PurposeEmailVerification})
	require.NoError(t, err)
	h.now = h.now.Add(25 * time.Hour)

	_, err = h.auth.VerifyEmail(ctx, verification)
	require.ErrorIs(t, err, apperrors.ErrInvalidToken)
	require.Equal(t, true, apperrors.FromError(err).Fields["expired"])
}

func TestResendVerificationOnlyMailsUnverifiedApplicants(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createAccount(t, accountFixture{email: "pending@example.com", role: models.RoleApplicant, active: true})
	h.createAccount(t, accountFixture{email: "done@example.com", role: models.RoleApplicant, active: true, verified: true})

	h.auth.ResendVerification(ctx, "nobody@example.com")
	h.auth.ResendVerification(ctx, "done@example.com")
	require.Empty(t, h.mailer.sent())

	h.auth.ResendVerification(ctx, "PENDING@example.com")
	require.Len(t, h.mailer.sent(), 1)
	require.Equal(t, []string{"pending@example.com"}, h.mailer.sent()[0].To)
}

func TestPasswordResetFlow(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.createAccount(t, accountFixture{email: "jane@example.com", role: models.RoleApplicant, active: true, verified: true})

	h.auth.RequestPasswordReset(ctx, "jane@example.com")
	token := h.mailer.lastToken(t, "jane@example.com")

	claims, err := h.tokens.VerifyPurpose(token, auth.PurposePasswordReset)
	require.NoError(t, err)
	require.True(t, claims.ExpiresAt.Time.Equal(h.now.Add(time.Hour)))

	require.NoError(t, h.auth.CompletePasswordReset(ctx, token, "brand-new-pass"))

	_, err = h.auth.SignIn(ctx, "jane@example.com", "brand-new-pass")
	require.NoError(t, err)
	require.Equal(t, []models.AuditAction{
		models.AuditActionPasswordResetRequested,
		models.AuditActionPasswordSet,
		models.AuditActionLogin,
	}, h.actions(t, account.ID))
}

func TestRequestPasswordResetIsSilentForIneligibleAccounts(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.createAccount(t, accountFixture{email: "pending@example.com", role: models.RoleApplicant, active: true})
	h.createAccount(t, accountFixture{email: "admin@example.com", role: models.RoleAdmin, active: true})

	h.auth.RequestPasswordReset(ctx, "nobody@example.com")
	h.auth.RequestPasswordReset(ctx, "pending@example.com")
	require.Empty(t, h.mailer.sent())

	h.auth.RequestPasswordReset(ctx, "admin@example.com")
	require.Len(t, h.mailer.sent(), 1, "admins count as verified")
}

func TestCompletePasswordResetRejections(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	admin := h.createAccount(t, accountFixture{email: "admin@example.com", role: models.RoleAdmin, active: true, verified: true})

	session, err := h.tokens.Issue(auth.TokenInput{AccountID: admin.ID, Email: admin.Email})
	require.NoError(t, err)
	require.ErrorIs(t, h.auth.CompletePasswordReset(ctx, session, "Whatever1!"), apperrors.ErrInvalidToken)

	reset, err := h.tokens.Issue(auth.TokenInput{AccountID: admin.ID, Email: admin.Email, Purpose: auth.PurposePasswordReset})
	require.NoError(t, err)

	err = h.auth.CompletePasswordReset(ctx, reset, "simplepassword")
	require.Equal(t, "VALIDATION_ERROR", apperrors.FromError(err).Code, "admins need a complex password")

	h.now = h.now.Add(2 * time.Hour)
	require.ErrorIs(t, h.auth.CompletePasswordReset(ctx, reset, "Compl3x!pass"), apperrors.ErrInvalidToken)
}

func TestCompletePasswordResetIsSingleUseWithRevocation(t *testing.T) {
	h := newHarness(t, withRevocation())
	ctx := context.Background()
	h.createAccount(t, accountFixture{email: "jane@example.com", role: models.RoleApplicant, active: true, verified: true})

	h.auth.RequestPasswordReset(ctx, "jane@example.com")
	token := h.mailer.lastToken(t, "jane@example.com")

	require.NoError(t, h.auth.CompletePasswordReset(ctx, token, "brand-new-pass"))
	require.ErrorIs(t, h.auth.CompletePasswordReset(ctx, token, "another-pass"), apperrors.ErrInvalidToken)
}

func TestChangePasswordWithoutAuditService(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	account := h.createAccount(t, accountFixture{email: "jane@example.com", role: models.RoleApplicant, active: true, verified: true})
	identity := identityOf(account)

	svc, err := NewAuthService(h.store, h.tokens, nil, h.notifier, WithAuthHashCost(bcrypt.MinCost))
	require.NoError(t, err)

	session, err := svc.ChangePassword(ctx, &identity, testPassword, "another-pass")
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	_, err = svc.SignIn(ctx, "jane@example.com", "another-pass")
	require.NoError(t, err)
	require.Empty(t, h.actions(t, account.ID))
}

func TestIssueSessionExpiryMatchesSignedToken(t *testing.T) {
	h := newHarness(t)
	account := h.createAccount(t, accountFixture{email: "jane@example.com", role: models.RoleApplicant, active: true, verified: true})

	skewed := func() time.Time { return h.now.Add(90 * time.Minute) }
	svc, err := NewAuthService(h.store, h.tokens, h.audit, h.notifier, WithAuthClock(skewed))
	require.NoError(t, err)

	session, err := svc.IssueSession(account)
	require.NoError(t, err)

	claims, err := h.tokens.VerifyPurpose(session.Token, auth.PurposeSession)
	require.NoError(t, err)
	require.True(t, session.ExpiresAt.Equal(claims.ExpiresAt.Time))
	require.True(t, session.ExpiresAt.Equal(h.now.Add(auth.DefaultSessionTTL)))
}
