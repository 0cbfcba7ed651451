package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/jobhunter/server/internal/module/auth"
	apperrors "github.com/jobhunter/server/internal/utils/errors"
	"github.com/jobhunter/server/internal/utils/requestctx"
)

const (
	// AuthorizationHeader is the header key for authorization.
	AuthorizationHeader = "Authorization"
	// BearerPrefix is the prefix for bearer tokens.
	BearerPrefix = "Bearer "
	// UserIDKey is the context key for user ID.
	UserIDKey = "user_id"
	// EmailKey is the context key for email.
	EmailKey = "email"
)

// JWTValidator defines the interface for JWT token validation.
type JWTValidator interface {
	ValidateToken(token string) (*auth.Claims, error)
}

// RequireAuth returns a middleware that rejects requests without a valid bearer token.
// On success it sets user_id and email in the gin context and the user id in the request context.
func RequireAuth(validator JWTValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			appErr := apperrors.Unauthorized("Authorization header required")
			c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
			return
		}

		claims, err := validator.ValidateToken(token)
		if err != nil {
			appErr := apperrors.NewAppError("INVALID_TOKEN", "Invalid or expired token", http.StatusUnauthorized, err)
			c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
			return
		}

		uid := claims.UID()
		c.Set(UserIDKey, uid)
		c.Set(EmailKey, claims.Email)
		c.Request = c.Request.WithContext(requestctx.WithUserID(c.Request.Context(), uid))

		c.Next()
	}
}

// extractBearerToken extracts the bearer token from the Authorization header.
func extractBearerToken(c *gin.Context) string {
	authHeader := c.GetHeader(AuthorizationHeader)
	if authHeader == "" {
		return ""
	}
	if len(authHeader) > len(BearerPrefix) && strings.EqualFold(authHeader[:len(BearerPrefix)], BearerPrefix) {
		return strings.TrimSpace(authHeader[len(BearerPrefix):])
	}
	return ""
}

// GetUserID returns the user ID from context, or "" when the request is anonymous.
func GetUserID(c *gin.Context) string {
	return c.GetString(UserIDKey)
}

// GetEmail returns the email from context.
// Returns empty string if not found.
func GetEmail(c *gin.Context) string {
	return c.GetString(EmailKey)
}
