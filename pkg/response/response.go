package response

import (
	"net/http"
	"sync/atomic"

	appErrors "github.com/charlesng35/hireflow/pkg/errors"
	"github.com/charlesng35/hireflow/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var exposeDetails atomic.Bool

// ExposeDetails toggles whether error details are rendered to clients. It is
// enabled only when the server runs in development mode.
func ExposeDetails(enabled bool) {
	exposeDetails.Store(enabled)
}

// DetailsExposed reports whether error details are currently rendered.
func DetailsExposed() bool {
	return exposeDetails.Load()
}

// Success writes `{"success": true, ...payload}`.
func Success(c *gin.Context, statusCode int, payload gin.H) {
	body := make(gin.H, len(payload)+1)
	for k, v := range payload {
		body[k] = v
	}
	body["success"] = true
	c.JSON(statusCode, body)
}

// Error writes `{"success": false, "error": message, "code": code}` derived
// from an AppError. Extra fields on the AppError are merged into the body and
// details are only included when ExposeDetails is enabled.
func Error(c *gin.Context, err error) {
	if err == nil {
		err = appErrors.ErrInternalServer
	}

	appErr := appErrors.FromError(err)
	status := appErr.StatusCode
	if status == 0 {
		status = http.StatusInternalServerError
	}

	if status >= http.StatusInternalServerError {
		logger.WithModule("http").Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("code", appErr.Code),
			zap.Error(err),
		)
	}

	c.AbortWithStatusJSON(status, Body(appErr))
}

// Body renders the error envelope for an AppError.
func Body(appErr *appErrors.AppError) gin.H {
	body := gin.H{}
	for k, v := range appErr.Fields {
		body[k] = v
	}
	body["success"] = false
	body["error"] = appErr.Message
	body["code"] = appErr.Code

	if DetailsExposed() {
		details := appErr.Details
		if details == "" && appErr.Internal != nil {
			details = appErr.Internal.Error()
		}
		if details != "" {
			body["details"] = details
		}
	}
	return body
}
