package middleware

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/hireflow/internal/models"
	apperrors "github.com/charlesng35/hireflow/pkg/errors"
	"github.com/charlesng35/hireflow/pkg/metrics"
	"github.com/charlesng35/hireflow/pkg/response"
)

// RequireRole admits only identities holding role. It must run after
// SessionAuth, which already rejects inactive accounts. An undeclared role is
// a wiring mistake and panics when the route is built.
func RequireRole(role models.Role) gin.HandlerFunc {
	if !role.Valid() {
		panic("middleware: RequireRole with undeclared role " + strconv.Quote(role.String()))
	}
	return func(c *gin.Context) {
		identity, ok := IdentityFrom(c)
		if !ok {
			response.Error(c, apperrors.ErrUnauthorized)
			return
		}
		if identity.Role != role {
			metrics.RoleChecks.WithLabelValues(role.String(), "deny").Inc()
			response.Error(c, apperrors.ErrForbidden)
			return
		}
		metrics.RoleChecks.WithLabelValues(role.String(), "allow").Inc()
		c.Next()
	}
}
