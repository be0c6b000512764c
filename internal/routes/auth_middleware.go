// Authentication middleware
// Checks for a valid admin bearer token in the Authorization header.
// If valid, sets the verified identity in the context.
// If missing or invalid, aborts with denied, or with the token error (401)
// when denied is nil.
package routes

import (
	"errors"
	"log/slog"
	"strings"

	"github.com/gin-gonic/gin"

	"informatik-booking/internal/jwt"
)

const userIDKey = "userID"

var (
	ErrUserNotFound  = errors.New("user not found in context")
	ErrUserNotString = errors.New("user ID in context is not a string")
)

// GetUser returns the verified identity set by AuthMiddleware.
func GetUser(c *gin.Context) (string, error) {
	uid, exists := c.Get(userIDKey)
	if !exists {
		return "", ErrUserNotFound
	}
	userIdStr, ok := uid.(string)
	if !ok {
		slog.Warn("GetUser: User ID in context is not a string")
		return "", ErrUserNotString
	}
	return userIdStr, nil
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

func AuthMiddleware(denied error) gin.HandlerFunc {
	reject := func(c *gin.Context, err error) {
		if denied != nil {
			err = denied
		}
		AbortWithError(c, err)
	}

	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			reject(c, ErrUnauthorized)
			return
		}

		claims, err := jwt.DecodeAdminJWT(token)
		if err != nil {
			slog.Warn("AuthMiddleware: Invalid auth token", "error", err)
			reject(c, err)
			return
		}

		c.Set(userIDKey, claims.Email)
		c.Next()
	}
}
