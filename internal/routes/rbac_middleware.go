package routes

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"informatik-booking/internal/access"
)

const rbacKey = "rbac"

// InjectRBAC makes r available to RequirePermission.
func InjectRBAC(r *access.RBAC) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(rbacKey, r)
		c.Next()
	}
}

// RequirePermission creates middleware that checks for specific permission.
// Requests without a verified identity are checked against the default role.
func RequirePermission(resource, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, err := GetUser(c)
		if err != nil && !errors.Is(err, ErrUserNotFound) {
			AbortWithError(c, err)
			return
		}

		rbac, ok := c.Get(rbacKey)
		if !ok {
			AbortWithError(c, ErrInternalServer)
			return
		}
		if !rbac.(*access.RBAC).Can(userID, resource, action) {
			slog.Warn("Permission denied",
				"userID", userID,
				"resource", resource,
				"action", action)
			AbortWithError(c, ErrInsufficientPermissions)
			return
		}

		slog.Debug("Permission granted",
			"userID", userID,
			"resource", resource,
			"action", action)

		c.Next()
	}
}
