package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/entrelaunch/platform/pkg/errors"
	"github.com/entrelaunch/platform/pkg/metrics"
	"github.com/entrelaunch/platform/pkg/response"
)

// PermissionChecker evaluates whether a user holds a permission. Both the
// direct and the cached checker satisfy it.
type PermissionChecker interface {
	Check(ctx context.Context, userID, permissionID string) (bool, error)
}

// RequirePermission checks that the authenticated user has the provided
// permission ID. Denials name the missing permission in the response body.
func RequirePermission(checker PermissionChecker, permissionID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := UserID(c)
		if !ok {
			response.Error(c, errors.ErrUnauthorized)
			c.Abort()
			return
		}

		allowed, err := checker.Check(c.Request.Context(), userID, permissionID)
		if err != nil {
			metrics.PermissionChecks.WithLabelValues(permissionID, "error").Inc()
			response.Error(c, errors.ErrInternalServer.WithInternal(err))
			c.Abort()
			return
		}
		if !allowed {
			metrics.PermissionChecks.WithLabelValues(permissionID, "denied").Inc()
			response.Error(c, errors.NewForbiddenPermission(permissionID))
			c.Abort()
			return
		}

		metrics.PermissionChecks.WithLabelValues(permissionID, "allowed").Inc()
		c.Next()
	}
}
