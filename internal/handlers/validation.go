package handlers

import (
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/entrelaunch/platform/pkg/errors"
	"github.com/entrelaunch/platform/pkg/response"
	appValidator "github.com/entrelaunch/platform/pkg/validator"
)

// bindAndValidate binds the JSON payload into dest and runs struct validation
// rules. When validation fails, an error response is automatically written
// and false is returned.
func bindAndValidate[T any](c *gin.Context, dest *T) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest("invalid JSON payload"))
		return false
	}

	if err := appValidator.ValidateStruct(dest); err != nil {
		response.Error(c, appErrors.NewBadRequest(formatValidationError(err)))
		return false
	}
	return true
}

func formatValidationError(err error) string {
	if err == nil {
		return "invalid request payload"
	}

	if ve, ok := err.(appValidator.ValidationErrors); ok {
		if len(ve) == 0 {
			return "invalid request payload"
		}

		messages := make([]string, 0, len(ve))
		for _, failure := range ve {
			switch failure.Tag {
			case "required":
				messages = append(messages, fmt.Sprintf("%s is required", failure.Field))
			case "email":
				messages = append(messages, fmt.Sprintf("%s must be a valid email address", failure.Field))
			case "min":
				messages = append(messages, fmt.Sprintf("%s must be at least %s characters", failure.Field, failure.Param))
			case "max":
				messages = append(messages, fmt.Sprintf("%s must be at most %s characters", failure.Field, failure.Param))
			case "gt":
				messages = append(messages, fmt.Sprintf("%s must be greater than %s", failure.Field, failure.Param))
			default:
				messages = append(messages, fmt.Sprintf("%s is invalid", failure.Field))
			}
		}
		return strings.Join(messages, "; ")
	}
	return "invalid request payload"
}
