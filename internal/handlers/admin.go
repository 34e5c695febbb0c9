package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/hireflow/internal/models"
	"github.com/charlesng35/hireflow/internal/services"
	"github.com/charlesng35/hireflow/pkg/response"
)

// AdminHandler exposes account administration to admins.
type AdminHandler struct {
	admin *services.AdminService
}

func NewAdminHandler(admin *services.AdminService) *AdminHandler {
	return &AdminHandler{admin: admin}
}

type adminResetPasswordRequest struct {
	Password string `json:"password" validate:"required"`
}

type accountChange func(ctx context.Context, actor *services.Identity, id string) (*models.Account, error)

// changeAccount runs fn for the signed-in admin against the :id account and
// renders the updated account.
func (h *AdminHandler) changeAccount(c *gin.Context, fn accountChange) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "account")
	if !ok {
		return
	}
	account, err := fn(requestContext(c), actor, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"account": toAccountDTO(account)})
}

// GET /api/admin/accounts/:id
func (h *AdminHandler) GetAccount(c *gin.Context) {
	id, ok := pathID(c, "account")
	if !ok {
		return
	}
	account, err := h.admin.Get(requestContext(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"account": toAccountDTO(account)})
}

// POST /api/admin/accounts/:id/activate
func (h *AdminHandler) Activate(c *gin.Context) { h.changeAccount(c, h.admin.Activate) }

// POST /api/admin/accounts/:id/deactivate
func (h *AdminHandler) Deactivate(c *gin.Context) { h.changeAccount(c, h.admin.Deactivate) }

// DELETE /api/admin/accounts/:id
func (h *AdminHandler) Delete(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "account")
	if !ok {
		return
	}
	if err := h.admin.Delete(requestContext(c), actor, id); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"deleted": true})
}

// POST /api/admin/accounts/:id/reset-password
func (h *AdminHandler) ResetPassword(c *gin.Context) {
	actor, ok := currentIdentity(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "account")
	if !ok {
		return
	}
	var req adminResetPasswordRequest
	if !bindAndValidate(c, &req) {
		return
	}

	if err := h.admin.ResetPassword(requestContext(c), actor, id, req.Password); err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"message": "Password updated"})
}

// GET /api/admin/accounts/:id/audit?limit=
func (h *AdminHandler) AuditTrail(c *gin.Context) {
	id, ok := pathID(c, "account")
	if !ok {
		return
	}
	entries, err := h.admin.AuditTrail(requestContext(c), id, parseIntQuery(c, "limit", 0))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"entries": toAuditDTOs(entries)})
}
