package handlers

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/charlesng35/hireflow/internal/middleware"
	"github.com/charlesng35/hireflow/internal/services"
	appErrors "github.com/charlesng35/hireflow/pkg/errors"
	"github.com/charlesng35/hireflow/pkg/response"
)

func requestContext(c *gin.Context) context.Context {
	if c != nil && c.Request != nil {
		return c.Request.Context()
	}
	return context.Background()
}

// currentIdentity returns the session identity or writes a 401.
func currentIdentity(c *gin.Context) (*services.Identity, bool) {
	if identity, ok := middleware.IdentityFrom(c); ok {
		return identity, true
	}
	response.Error(c, appErrors.ErrUnauthorized)
	return nil, false
}

// pathID returns the :id segment. Anything that is not a UUID cannot name a
// stored row, so it is answered with a 404 for resource without a lookup.
func pathID(c *gin.Context, resource string) (string, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if err := uuid.Validate(id); err != nil {
		response.Error(c, appErrors.NewNotFound(resource))
		return "", false
	}
	return id, true
}
