package subscription

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	apperrors "github.com/jobhunter/server/internal/utils/errors"
	"github.com/jobhunter/server/internal/utils/middleware"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for the current user.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new user handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterProtectedRoutes registers routes that require authentication.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup) {
	r.GET("/users/me", h.GetCurrentUser)
}

// UserResponse is the /users/me payload.
type UserResponse struct {
	UID          string       `json:"uid"`
	Email        string       `json:"email"`
	CreatedAt    string       `json:"created_at"`
	Subscription Subscription `json:"subscription"`
	IsAdmin      bool         `json:"is_admin"`
}

// GetCurrentUser returns the caller's account, creating it on first call.
func (h *Handler) GetCurrentUser(c *gin.Context) {
	userID := middleware.GetUserID(c)
	email := middleware.GetEmail(c)
	if userID == "" || email == "" {
		appErr := apperrors.Forbidden("User ID or email not found in token")
		c.JSON(appErr.StatusCode, appErr.ToResponse())
		return
	}

	user, err := h.service.Me(c.Request.Context(), userID, email)
	if err != nil {
		h.logger.Error("load current user", zap.String("user_id", userID), zap.Error(err))
		appErr := apperrors.Internal("Error loading user profile", err)
		c.JSON(appErr.StatusCode, appErr.ToResponse())
		return
	}

	c.JSON(http.StatusOK, UserResponse{
		UID:          user.ID,
		Email:        user.Email,
		CreatedAt:    user.CreatedAt.UTC().Format(time.RFC3339),
		Subscription: user.Subscription,
		IsAdmin:      h.service.IsAdmin(c.Request.Context(), user.ID, user.Email),
	})
}
