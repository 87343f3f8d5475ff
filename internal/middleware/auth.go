package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/taskmate/backend/internal/utils"
	"github.com/taskmate/backend/pkg/response"
)

const (
	ContextUserID   = "user_id"
	ContextUsername = "username"
	ContextRole     = "role"
)

// AuthRequired verifies the bearer token issued by the identity provider.
func AuthRequired() gin.HandlerFunc {
	return authenticate(false)
}

// StreamAuthRequired is AuthRequired for SSE and WebSocket endpoints, which
// browsers cannot attach headers to. It also accepts ?token=.
func StreamAuthRequired() gin.HandlerFunc {
	return authenticate(true)
}

func authenticate(allowQuery bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, msg := bearerToken(c, allowQuery)
		if msg != "" {
			response.Unauthorized(c, msg)
			c.Abort()
			return
		}

		claims, err := utils.ParseToken(tokenString)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextUsername, claims.Username)
		c.Set(ContextRole, claims.Role)

		c.Next()
	}
}

func bearerToken(c *gin.Context, allowQuery bool) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if allowQuery {
			if token := c.Query("token"); token != "" {
				return token, ""
			}
		}
		return "", "authorization header required"
	}

	// "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", "invalid authorization header format"
	}
	return parts[1], ""
}

// AdminRequired admits only callers whose token carries the admin role.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if GetRole(c) != "admin" {
			response.Forbidden(c, "admin access required")
			c.Abort()
			return
		}
		c.Next()
	}
}

// GetUserID is the authenticated caller, or 0 outside AuthRequired.
func GetUserID(c *gin.Context) uint {
	return c.GetUint(ContextUserID)
}

func GetUsername(c *gin.Context) string {
	return c.GetString(ContextUsername)
}

func GetRole(c *gin.Context) string {
	return c.GetString(ContextRole)
}
