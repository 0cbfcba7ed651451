package generation

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apperrors "github.com/jobhunter/server/internal/utils/errors"
	"github.com/jobhunter/server/internal/utils/middleware"
)

// DefaultMaxUploadBytes bounds CV uploads when no limit is configured.
const DefaultMaxUploadBytes int64 = 5 << 20

// Handler handles generation HTTP requests.
type Handler struct {
	service        *Service
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandler creates a new generation handler.
func NewHandler(service *Service, maxUploadBytes int64, logger *zap.Logger) *Handler {
	if maxUploadBytes <= 0 {
		maxUploadBytes = DefaultMaxUploadBytes
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{service: service, maxUploadBytes: maxUploadBytes, logger: logger}
}

// RegisterProtectedRoutes registers routes that require authentication. mw runs before every
// generation endpoint, after authentication.
func (h *Handler) RegisterProtectedRoutes(r *gin.RouterGroup, mw ...gin.HandlerFunc) {
	cv := r.Group("/cv", mw...)
	{
		cv.POST("/generate", h.GenerateCV)
		cv.POST("/generate_cover_letter", h.GenerateCoverLetter)
		cv.POST("/structure_from_text", h.StructureFromText)
		cv.POST("/upload_and_parse_cv", h.UploadAndParseCV)
	}

	profiling := r.Group("/profiling", mw...)
	{
		profiling.POST("/generate_profile", h.GenerateProfile)
	}
}

// GenerateCV handles POST /cv/generate.
func (h *Handler) GenerateCV(c *gin.Context) {
	var req CVRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.service.GenerateCV(c.Request.Context(), middleware.GetUserID(c), req.JobDescription, req.Resume)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GenerateCoverLetter handles POST /cv/generate_cover_letter.
func (h *Handler) GenerateCoverLetter(c *gin.Context) {
	var req CoverLetterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.service.GenerateCoverLetter(c.Request.Context(), middleware.GetUserID(c),
		req.JobDescription, req.Resume, req.Feedback)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// StructureFromText handles POST /cv/structure_from_text.
func (h *Handler) StructureFromText(c *gin.Context) {
	var req StructureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.service.StructureCVFromText(c.Request.Context(), middleware.GetUserID(c), req.RawText)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// UploadAndParseCV handles POST /cv/upload_and_parse_cv. The multipart field "file" must hold a
// plain-text document.
func (h *Handler) UploadAndParseCV(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			appErr := apperrors.NewAppError("FILE_TOO_LARGE", "The uploaded CV is too large", http.StatusRequestEntityTooLarge, err)
			c.JSON(appErr.StatusCode, appErr.ToResponse())
			return
		}
		h.badRequest(c, errors.New("a CV file is required in the 'file' field"))
		return
	}

	if !isPlainText(file.Filename, file.Header.Get("Content-Type")) {
		appErr := apperrors.NewAppError("BAD_REQUEST",
			"Unsupported file format. Please upload the CV as a plain text (.txt) file.",
			http.StatusBadRequest, ErrUnsupportedDocument)
		c.JSON(appErr.StatusCode, appErr.ToResponse())
		return
	}

	f, err := file.Open()
	if err != nil {
		h.handleError(c, apperrors.Internal("An error occurred while processing the file", err))
		return
	}
	defer f.Close()

	raw, err := io.ReadAll(f)
	if err != nil {
		h.handleError(c, apperrors.Internal("An error occurred while processing the file", err))
		return
	}
	text := strings.TrimSpace(string(raw))
	if text == "" || !utf8.ValidString(text) {
		h.handleError(c, apperrors.ContentExtractionFailed(
			"Could not extract any text from the uploaded CV. The file might be empty or not UTF-8 text."))
		return
	}

	result, err := h.service.StructureCVFromText(c.Request.Context(), middleware.GetUserID(c), text)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// GenerateProfile handles POST /profiling/generate_profile.
func (h *Handler) GenerateProfile(c *gin.Context) {
	var req ProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.badRequest(c, err)
		return
	}

	result, err := h.service.GenerateProfessionalProfile(c.Request.Context(), middleware.GetUserID(c),
		req.CVText, req.NonProfessionalExperience, req.ProfilingQuestions)
	if err != nil {
		h.handleError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

func isPlainText(filename, contentType string) bool {
	if strings.EqualFold(filepath.Ext(filename), ".txt") {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	return err == nil && mediaType == "text/plain"
}

func (h *Handler) badRequest(c *gin.Context, err error) {
	appErr := apperrors.BadRequest(err.Error())
	c.JSON(appErr.StatusCode, appErr.ToResponse())
}

func (h *Handler) handleError(c *gin.Context, err error) {
	appErr := apperrors.ToAppError(err)
	if appErr.StatusCode >= http.StatusInternalServerError {
		h.logger.Error("generation request failed",
			zap.String("path", c.FullPath()),
			zap.String("user_id", middleware.GetUserID(c)),
			zap.Error(err),
		)
	}
	_ = c.Error(err)
	c.JSON(appErr.StatusCode, appErr.ToResponse())
}
