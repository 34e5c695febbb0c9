package middleware

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/charlesng35/hireflow/internal/auditctx"
	iauth "github.com/charlesng35/hireflow/internal/auth"
	"github.com/charlesng35/hireflow/internal/services"
	apperrors "github.com/charlesng35/hireflow/pkg/errors"
	"github.com/charlesng35/hireflow/pkg/response"
)

const (
	CtxIdentityKey  = "identity"
	CtxAccountIDKey = "accountID"
)

// SessionVerifier resolves a session token into the identity it belongs to.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*services.Identity, error)
}

// SessionAuth requires a valid session from the auth-token cookie or a
// bearer token. Rejected sessions get their cookie cleared.
func SessionAuth(verifier SessionVerifier, cookie iauth.CookieOptions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := iauth.TokenFromRequest(c.Request)
		if token == "" {
			response.Error(c, apperrors.ErrUnauthorized)
			return
		}

		identity, err := verifier.VerifySession(c.Request.Context(), token)
		if err != nil {
			// Dependency failures say nothing about the session itself.
			if appErr := apperrors.FromError(err); appErr.StatusCode == http.StatusUnauthorized {
				iauth.ClearSessionCookie(c.Writer, cookie)
				c.Header("WWW-Authenticate", "Bearer")
			}
			response.Error(c, err)
			return
		}

		c.Set(CtxIdentityKey, identity)
		c.Set(CtxAccountIDKey, identity.ID)

		ctx := c.Request.Context()
		if _, ok := auditctx.FromContext(ctx); !ok {
			ctx = auditctx.WithActor(ctx, requestActor(c))
		}
		c.Request = c.Request.WithContext(auditctx.WithAccount(ctx, identity.ID, identity.Email))

		c.Next()
	}
}

// RequestActor records the client address and request id for audit entries
// written before (or without) a session.
func RequestActor() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, ok := auditctx.FromContext(c.Request.Context()); !ok {
			c.Request = c.Request.WithContext(auditctx.WithActor(c.Request.Context(), requestActor(c)))
		}
		c.Next()
	}
}

func requestActor(c *gin.Context) auditctx.Actor {
	return auditctx.Actor{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		RequestID: c.GetString(CtxRequestIDKey),
	}
}

// IdentityFrom returns the identity stored by SessionAuth.
func IdentityFrom(c *gin.Context) (*services.Identity, bool) {
	value, ok := c.Get(CtxIdentityKey)
	if !ok {
		return nil, false
	}
	identity, ok := value.(*services.Identity)
	return identity, ok && identity != nil
}
