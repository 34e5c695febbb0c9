package handlers_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	iauth "github.com/charlesng35/hireflow/internal/auth"
	"github.com/charlesng35/hireflow/internal/handlers/testutil"
	"github.com/charlesng35/hireflow/internal/models"
)

func TestRegisterVerifyAndLogin(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"email":     "jane@example.com",
		"password":  testutil.Password,
		"firstName": "Jane",
		"lastName":  "Doe",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := testutil.Decode(t, w)
	require.True(t, body.Bool("success"))
	require.True(t, body.Bool("requiresVerification"))
	require.Equal(t, "applicant", body.Map("user").String("role"))
	require.Nil(t, testutil.LastSetCookie(w, iauth.SessionCookieName), "registration must not start a session")

	w = env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "jane@example.com",
		"password": testutil.Password,
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	body = testutil.Decode(t, w)
	require.Equal(t, "EMAIL_NOT_VERIFIED", body.String("code"))
	require.True(t, body.Bool("requiresVerification"))

	token := env.Mailer.LastToken(t, "jane@example.com")
	w = env.Request(http.MethodPost, "/api/auth/verify-email", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = testutil.Decode(t, w)
	require.False(t, body.Bool("alreadyVerified"))
	require.NotEmpty(t, body.String("expiresAt"))
	require.NotNil(t, env.SessionCookie())

	// Clicking the link again is not an error.
	w = env.Request(http.MethodPost, "/api/auth/verify-email", map[string]string{"token": token})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.True(t, testutil.Decode(t, w).Bool("alreadyVerified"))

	env.UseSession(nil)
	body = env.Login("JANE@example.com", testutil.Password)
	require.Equal(t, "jane@example.com", body.Map("user").String("email"))
	require.Equal(t, "Jane Doe", body.Map("user").String("name"))
}

func TestRegisterRejectsWeakPasswordAndDuplicates(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateApplicant("taken@example.com")

	w := env.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "weak@example.com",
		"password": "password",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "VALIDATION_ERROR", testutil.Decode(t, w).String("code"))

	w = env.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "not-an-email",
		"password": testutil.Password,
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	w = env.Request(http.MethodPost, "/api/auth/register", map[string]string{
		"email":    "Taken@Example.com",
		"password": testutil.Password,
	})
	require.Equal(t, http.StatusConflict, w.Code, w.Body.String())
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateApplicant("jane@example.com")
	env.CreateAccount("inactive@example.com", models.RoleApplicant, false, true)

	attempts := []map[string]string{
		{"email": "jane@example.com", "password": "Wr0ng!Pass"},
		{"email": "nobody@example.com", "password": testutil.Password},
		{"email": "inactive@example.com", "password": testutil.Password},
	}

	var bodies []string
	for _, attempt := range attempts {
		w := env.Request(http.MethodPost, "/api/auth/login", attempt)
		require.Equal(t, http.StatusUnauthorized, w.Code)
		require.Nil(t, testutil.LastSetCookie(w, iauth.SessionCookieName))
		bodies = append(bodies, w.Body.String())
	}
	require.Equal(t, bodies[0], bodies[1])
	require.Equal(t, bodies[0], bodies[2])
}

func TestSessionCookieLifecycle(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateApplicant("jane@example.com")

	w := env.Request(http.MethodPost, "/api/auth/login", map[string]string{
		"email":    "jane@example.com",
		"password": testutil.Password,
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	cookie := testutil.LastSetCookie(w, iauth.SessionCookieName)
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)
	require.Equal(t, "/", cookie.Path)
	require.False(t, cookie.Secure, "development cookies are not Secure")

	issued := env.SessionCookie()

	w = env.Request(http.MethodGet, "/api/auth/session", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Equal(t, "jane@example.com", testutil.Decode(t, w).Map("user").String("email"))

	w = env.Request(http.MethodPost, "/api/auth/logout", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	cleared := testutil.LastSetCookie(w, iauth.SessionCookieName)
	require.NotNil(t, cleared)
	require.Less(t, cleared.MaxAge, 0)
	require.Nil(t, env.SessionCookie())

	w = env.Request(http.MethodGet, "/api/auth/session", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)

	// The revoked token stays dead even if the client replays it.
	env.UseSession(issued)
	w = env.Request(http.MethodGet, "/api/auth/session", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestForgotPasswordResponsesMatch(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateApplicant("jane@example.com")

	known := env.Request(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "jane@example.com"})
	unknown := env.Request(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ghost@example.com"})

	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, known.Code, unknown.Code)
	require.Equal(t, known.Body.String(), unknown.Body.String())
	require.Len(t, env.Mailer.Sent(), 1)

	token := env.Mailer.LastToken(t, "jane@example.com")
	w := env.Request(http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token":    token,
		"password": "N3w!Secret",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	// Reset tokens are single use.
	w = env.Request(http.MethodPost, "/api/auth/reset-password", map[string]string{
		"token":    token,
		"password": "An0ther!Secret",
	})
	require.Equal(t, http.StatusUnauthorized, w.Code)

	env.Login("jane@example.com", "N3w!Secret")
}

func TestResendVerificationResponsesMatch(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateAccount("pending@example.com", models.RoleApplicant, true, false)
	env.CreateApplicant("done@example.com")

	pending := env.Request(http.MethodPost, "/api/auth/resend-verification", map[string]string{"email": "pending@example.com"})
	verified := env.Request(http.MethodPost, "/api/auth/resend-verification", map[string]string{"email": "done@example.com"})
	missing := env.Request(http.MethodPost, "/api/auth/resend-verification", map[string]string{"email": "ghost@example.com"})

	require.Equal(t, pending.Body.String(), verified.Body.String())
	require.Equal(t, pending.Body.String(), missing.Body.String())
	require.Len(t, env.Mailer.Sent(), 1)
	require.NotEmpty(t, env.Mailer.LastToken(t, "pending@example.com"))
}

func TestChangePasswordReissuesSession(t *testing.T) {
	env := testutil.NewEnv(t)
	env.CreateApplicant("jane@example.com")
	env.Login("jane@example.com", testutil.Password)
	before := env.SessionCookie()

	w := env.Request(http.MethodPost, "/api/auth/change-password", map[string]string{
		"currentPassword": "Wr0ng!Pass",
		"newPassword":     "N3w!Secret",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, before.Value, env.SessionCookie().Value)

	w = env.Request(http.MethodPost, "/api/auth/change-password", map[string]string{
		"currentPassword": testutil.Password,
		"newPassword":     "N3w!Secret",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NotNil(t, testutil.LastSetCookie(w, iauth.SessionCookieName))
	require.NotEqual(t, before.Value, env.SessionCookie().Value)

	w = env.Request(http.MethodGet, "/api/auth/session", nil)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestProtectedRoutesRequireSession(t *testing.T) {
	env := testutil.NewEnv(t)

	w := env.Request(http.MethodGet, "/api/auth/session", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "UNAUTHORIZED", testutil.Decode(t, w).String("code"))

	env.UseSession(&http.Cookie{Name: iauth.SessionCookieName, Value: "garbage"})
	w = env.Request(http.MethodGet, "/api/auth/session", nil)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	cleared := testutil.LastSetCookie(w, iauth.SessionCookieName)
	require.NotNil(t, cleared, "invalid cookies are cleared")
	require.Less(t, cleared.MaxAge, 0)
}

func TestUnsafeRequestsRequireCSRFToken(t *testing.T) {
	env := testutil.NewEnv(t)

	req, err := http.NewRequest(http.MethodPost, "/api/auth/forgot-password", nil)
	require.NoError(t, err)
	w := serve(env, req)
	require.Equal(t, http.StatusForbidden, w.Code)
	require.Equal(t, "CSRF_INVALID", testutil.Decode(t, w).String("code"))
}

func TestLoginIsRateLimited(t *testing.T) {
	limited := testutil.NewEnv(t, testutil.WithRateLimit(2, time.Minute))
	payload := map[string]string{"email": "ghost@example.com", "password": "Wr0ng!Pass"}
	for i := 0; i < 2; i++ {
		w := limited.Request(http.MethodPost, "/api/auth/login", payload)
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}
	w := limited.Request(http.MethodPost, "/api/auth/login", payload)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NotEmpty(t, w.Header().Get("Retry-After"))

	// Other endpoints keep their own budget.
	w = limited.Request(http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "ghost@example.com"})
	require.Equal(t, http.StatusOK, w.Code)
}

func serve(env *testutil.Env, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	env.Router.ServeHTTP(w, req)
	return w
}
