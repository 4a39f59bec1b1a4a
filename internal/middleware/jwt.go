package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/eventhub/backend/internal/auth"
	"github.com/eventhub/backend/internal/models"
	"github.com/eventhub/backend/pkg/response"
)

const (
	// ContextUserID is the key for user ID in gin context.
	ContextUserID = "user_id"
	// ContextUsername is the key for username in gin context.
	ContextUsername = "username"
	// ContextUserRole is the key for user role in gin context.
	ContextUserRole = "user_role"
)

// UserLookup resolves a token's user ID to the active account it names.
type UserLookup interface {
	GetActiveByID(ctx context.Context, id int64) (*models.User, error)
}

// JWT returns a middleware that validates the bearer token, resolves it to
// an active user, and sets the user's identity in context.
func JWT(jwtService *auth.JWTService, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		parts := strings.SplitN(header, " ", 2)
		if header == "" || len(parts) != 2 {
			response.Unauthorized(c, "No token provided")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(parts[1])
		if err != nil {
			response.Unauthorized(c, "Invalid Token")
			c.Abort()
			return
		}
		user, err := users.GetActiveByID(c.Request.Context(), claims.UserID)
		if err != nil {
			response.Unauthorized(c, "User not found")
			c.Abort()
			return
		}
		c.Set(ContextUserID, user.ID)
		c.Set(ContextUsername, user.Username)
		c.Set(ContextUserRole, string(user.Role))
		c.Next()
	}
}
