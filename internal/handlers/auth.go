package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/hireflow/internal/auth"
	"github.com/charlesng35/hireflow/internal/services"
	"github.com/charlesng35/hireflow/pkg/response"
)

// Anti-enumeration: these bodies never depend on whether the address exists.
const (
	passwordResetRequestedMessage = "If an account exists for that email, a password reset link has been sent"
	verificationResentMessage     = "If an account exists for that email and still needs verification, a new link has been sent"
)

// AuthHandler manages the session lifecycle (register/login/logout/session)
// and the token driven email and password flows.
type AuthHandler struct {
	auth   *services.AuthService
	cookie iauth.CookieOptions
}

func NewAuthHandler(auth *services.AuthService, cookie iauth.CookieOptions) *AuthHandler {
	return &AuthHandler{auth: auth, cookie: cookie}
}

type registerRequest struct {
	Email     string `json:"email" validate:"required,email,max=320"`
	Password  string `json:"password" validate:"required"`
	FirstName string `json:"firstName" validate:"omitempty,max=128"`
	LastName  string `json:"lastName" validate:"omitempty,max=128"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" validate:"required"`
}

type emailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type tokenPasswordRequest struct {
	Token    string `json:"token" validate:"required,token"`
	Password string `json:"password" validate:"required"`
}

type tokenRequest struct {
	Token string `json:"token" validate:"required,token"`
}

// POST /api/auth/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if !bindAndValidate(c, &req) {
		return
	}

	identity, err := h.auth.RegisterApplicant(requestContext(c), services.RegisterInput{
		Email:     req.Email,
		Password:  req.Password,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"message":              "Account created. Please check your email to verify your address",
		"user":                 toUserDTO(identity),
		"requiresVerification": true,
	})
}

// POST /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.auth.SignIn(requestContext(c), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.startSession(c, session)
	response.Success(c, http.StatusOK, sessionPayload(session))
}

// POST /api/auth/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	if err := h.auth.SignOut(requestContext(c), identity); err != nil {
		response.Error(c, err)
		return
	}

	iauth.ClearSessionCookie(c.Writer, h.cookie)
	response.Success(c, http.StatusOK, gin.H{"message": "Signed out"})
}

// GET /api/auth/session
func (h *AuthHandler) Session(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	payload := gin.H{"user": toUserDTO(identity)}
	if !identity.TokenExpiresAt.IsZero() {
		payload["expiresAt"] = identity.TokenExpiresAt.UTC().Format(time.RFC3339)
	}
	response.Success(c, http.StatusOK, payload)
}

// POST /api/auth/change-password
func (h *AuthHandler) ChangePassword(c *gin.Context) {
	identity, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req changePasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.auth.ChangePassword(requestContext(c), identity, req.CurrentPassword, req.NewPassword)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.startSession(c, session)
	payload := sessionPayload(session)
	payload["message"] = "Password updated"
	response.Success(c, http.StatusOK, payload)
}

// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	h.auth.RequestPasswordReset(requestContext(c), req.Email)
	response.Success(c, http.StatusOK, gin.H{"message": passwordResetRequestedMessage})
}

// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req tokenPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.auth.CompletePasswordReset(requestContext(c), req.Token, req.Password); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"message": "Password has been reset. You can now sign in"})
}

// POST /api/auth/verify-email
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req tokenRequest
	if !bindAndValidate(c, &req) {
		return
	}

	result, err := h.auth.VerifyEmail(requestContext(c), req.Token)
	if err != nil {
		response.Error(c, err)
		return
	}

	payload := gin.H{
		"user":            toUserDTO(&result.Identity),
		"alreadyVerified": result.AlreadyVerified,
	}
	if result.AlreadyVerified {
		payload["message"] = "Email address already verified"
	} else {
		payload["message"] = "Email address verified"
	}
	if result.Session != nil {
		h.startSession(c, result.Session)
		payload["expiresAt"] = result.Session.ExpiresAt.UTC().Format(time.RFC3339)
	}
	response.Success(c, http.StatusOK, payload)
}

// POST /api/auth/resend-verification
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	var req emailRequest
	if !bindAndValidate(c, &req) {
		return
	}

	h.auth.ResendVerification(requestContext(c), req.Email)
	response.Success(c, http.StatusOK, gin.H{"message": verificationResentMessage})
}

func (h *AuthHandler) startSession(c *gin.Context, session *services.Session) {
	iauth.SetSessionCookie(c.Writer, session.Token, h.cookie)
}

func sessionPayload(session *services.Session) gin.H {
	return gin.H{
		"user":      toUserDTO(&session.Identity),
		"expiresAt": session.ExpiresAt.UTC().Format(time.RFC3339),
	}
}
