package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	iauth "github.com/charlesng35/hireflow/internal/auth"
	"github.com/charlesng35/hireflow/internal/services"
	appErrors "github.com/charlesng35/hireflow/pkg/errors"
	"github.com/charlesng35/hireflow/pkg/response"
)

// InvitationHandler serves admin invitations and their public acceptance flow.
type InvitationHandler struct {
	invites *services.InviteService
	cookie  iauth.CookieOptions
}

func NewInvitationHandler(invites *services.InviteService, cookie iauth.CookieOptions) *InvitationHandler {
	return &InvitationHandler{invites: invites, cookie: cookie}
}

type createInvitationRequest struct {
	Email     string `json:"email" validate:"required,email,max=320"`
	FirstName string `json:"firstName" validate:"omitempty,max=128"`
	LastName  string `json:"lastName" validate:"omitempty,max=128"`
}

type invitationDTO struct {
	User      userDTO   `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
	Link      string    `json:"link,omitempty"`
}

// POST /api/admin/invitations
func (h *InvitationHandler) Create(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}

	var req createInvitationRequest
	if !bindAndValidate(c, &req) {
		return
	}

	invitation, err := h.invites.CreateInvitation(requestContext(c), actor, services.InvitationInput{
		Email:     req.Email,
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"invitation": invitationDTO{
			User:      toUserDTO(&invitation.Account),
			ExpiresAt: invitation.ExpiresAt,
			Link:      invitation.Link,
		},
	})
}

// GET /api/auth/invitations/verify?token=
func (h *InvitationHandler) Verify(c *gin.Context) {
	token := strings.TrimSpace(c.Query("token"))
	if token == "" {
		response.Error(c, appErrors.NewValidation("token is required"))
		return
	}

	details, err := h.invites.VerifyInvitation(requestContext(c), token)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"invitation": details})
}

// POST /api/auth/invitations/accept
func (h *InvitationHandler) Accept(c *gin.Context) {
	var req tokenPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	session, err := h.invites.SetPassword(requestContext(c), req.Token, req.Password)
	if err != nil {
		response.Error(c, err)
		return
	}

	iauth.SetSessionCookie(c.Writer, session.Token, h.cookie)
	payload := sessionPayload(session)
	payload["message"] = "Account activated"
	response.Success(c, http.StatusOK, payload)
}
