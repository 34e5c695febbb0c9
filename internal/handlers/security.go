package handlers

import (
	"net/http"
	"slices"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/hireflow/internal/security"
	appErrors "github.com/charlesng35/hireflow/pkg/errors"
	"github.com/charlesng35/hireflow/pkg/response"
)

type SecurityHandler struct {
	audit *security.AuditService
}

func NewSecurityHandler(audit *security.AuditService) *SecurityHandler {
	return &SecurityHandler{audit: audit}
}

// GET /api/admin/security/audit?status=fail
//
// The optional status narrows the returned checks; the summary and overall
// status always describe the full audit.
func (h *SecurityHandler) Audit(c *gin.Context) {
	filter := security.CheckStatus(c.Query("status"))
	switch filter {
	case "", security.StatusPass, security.StatusWarn, security.StatusFail:
	default:
		response.Error(c, appErrors.NewBadRequest("status must be one of: pass, warn, fail"))
		return
	}

	result := h.audit.Run(requestContext(c))
	if filter != "" {
		result.Checks = slices.DeleteFunc(result.Checks, func(check security.Check) bool {
			return check.Status != filter
		})
	}
	response.Success(c, http.StatusOK, gin.H{"audit": result})
}
