package profile

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/jobhunter/server/internal/utils/errors"
	"github.com/jobhunter/server/internal/utils/middleware"
)

// Handler handles profile HTTP requests.
type Handler struct {
	service *Service
	logger  *zap.Logger
}

// NewHandler creates a new profile handler.
func NewHandler(service *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, logger: logger}
}

// RegisterProtectedRoutes registers routes that require authentication. admin guards the
// listing endpoint.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup, admin gin.HandlerFunc) {
	profiling := r.Group("/profiling")
	{
		profiling.POST("/save_profile", h.SaveProfile)
		profiling.GET("/my_profile", h.GetMyProfile)
		profiling.GET("/admin/all_profiles", admin, h.ListProfiles)
	}
}

// SaveProfileRequest carries a client-side profile to sync.
type SaveProfileRequest struct {
	ProfileData json.RawMessage `json:"profile_data"`
}

// ProfileResponse is the caller's stored profile.
type ProfileResponse struct {
	UID       string          `json:"uid"`
	Profile   json.RawMessage `json:"profile"`
	Version   string          `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// ListResponse is a page of stored profiles.
type ListResponse struct {
	Profiles     []*UserProfile `json:"profiles"`
	TotalCount   int            `json:"total_count"`
	LimitApplied int            `json:"limit_applied"`
}

// SaveProfile handles POST /profiling/save_profile.
func (h *Handler) SaveProfile(c *gin.Context) {
	var req SaveProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.respondError(c, apperrors.BadRequest("Invalid request body."))
		return
	}
	if len(req.ProfileData) == 0 {
		h.respondError(c, apperrors.BadRequest("Missing 'profile_data' in request."))
		return
	}

	err := h.service.SaveProfile(c.Request.Context(), middleware.GetUserID(c), req.ProfileData)
	if err != nil {
		if errors.Is(err, ErrEmptyProfile) {
			h.respondError(c, apperrors.BadRequest("Missing 'profile_data' in request."))
			return
		}
		h.respondError(c, apperrors.Internal("Failed to save profile.", err))
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "success", "message": "Profile saved successfully."})
}

// GetMyProfile handles GET /profiling/my_profile.
func (h *Handler) GetMyProfile(c *gin.Context) {
	p, err := h.service.GetProfile(c.Request.Context(), middleware.GetUserID(c))
	if err != nil {
		if errors.Is(err, ErrProfileNotFound) {
			appErr := apperrors.NotFound("profile")
			appErr.Message = "No professional profile found. Please generate a profile first."
			h.respondError(c, appErr)
			return
		}
		h.respondError(c, apperrors.Internal("Error retrieving your professional profile.", err))
		return
	}

	c.JSON(http.StatusOK, ProfileResponse{
		UID:       p.UID,
		Profile:   json.RawMessage(p.ProfileData),
		Version:   p.Version,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	})
}

// ListProfiles handles GET /profiling/admin/all_profiles.
func (h *Handler) ListProfiles(c *gin.Context) {
	limit := DefaultListLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.respondError(c, apperrors.BadRequest("limit must be an integer"))
			return
		}
		limit = n
	}

	profiles, applied, err := h.service.ListProfiles(c.Request.Context(), limit)
	if err != nil {
		h.respondError(c, apperrors.Internal("Error retrieving user profiles.", err))
		return
	}
	c.JSON(http.StatusOK, ListResponse{
		Profiles:     profiles,
		TotalCount:   len(profiles),
		LimitApplied: applied,
	})
}

func (h *Handler) respondError(c *gin.Context, appErr *apperrors.AppError) {
	if appErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Error("profile request failed",
			zap.String("path", c.FullPath()),
			zap.String("user_id", middleware.GetUserID(c)),
			zap.Error(appErr),
		)
	}
	c.JSON(appErr.StatusCode, appErr.ToResponse())
}
