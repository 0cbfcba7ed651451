package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	apperrors "github.com/jobhunter/server/internal/utils/errors"
)

// AdminChecker decides whether a verified caller holds the admin role.
type AdminChecker interface {
	IsAdmin(ctx context.Context, userID, email string) bool
}

// AdminCheckerFunc adapts a function to AdminChecker.
type AdminCheckerFunc func(ctx context.Context, userID, email string) bool

// IsAdmin implements AdminChecker.
func (f AdminCheckerFunc) IsAdmin(ctx context.Context, userID, email string) bool {
	return f(ctx, userID, email)
}

// RequireAdmin must run after RequireAuth. Anonymous callers get 401, everyone else
// without the admin role gets 403.
func RequireAdmin(checker AdminChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := GetUserID(c)
		if userID == "" {
			appErr := apperrors.Unauthorized("User not authenticated")
			c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
			return
		}

		if checker == nil || !checker.IsAdmin(c.Request.Context(), userID, GetEmail(c)) {
			appErr := apperrors.Forbidden("Insufficient permissions")
			c.AbortWithStatusJSON(appErr.StatusCode, appErr.ToResponse())
			return
		}

		c.Next()
	}
}
