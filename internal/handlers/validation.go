package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/charlesng35/hireflow/internal/models"
	appErrors "github.com/charlesng35/hireflow/pkg/errors"
	"github.com/charlesng35/hireflow/pkg/response"
	appValidator "github.com/charlesng35/hireflow/pkg/validator"
)

func init() {
	// jobstatus accepts any historical status string NormalizeJobStatus understands.
	if err := appValidator.RegisterValidation("jobstatus", func(fl validator.FieldLevel) bool {
		_, ok := models.NormalizeJobStatus(fl.Field().String())
		return ok
	}); err != nil {
		panic(err)
	}
}

// bindAndValidate decodes the JSON body into dest and applies its validate tags.
// On failure the 400 envelope is already written and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewValidation("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewValidation(validationMessage(err)))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var failures appValidator.FieldErrors
	if errors.As(err, &failures) && len(failures) > 0 {
		return failures.Error()
	}
	return "invalid request payload"
}

func parseIntQuery(c *gin.Context, key string, fallback int) int {
	value := strings.TrimSpace(c.Query(key))
	if value == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(value)
	if err != nil || parsed < 0 {
		return fallback
	}
	return parsed
}
