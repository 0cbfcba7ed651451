package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types.
var (
	ErrNotFound          = errors.New("resource not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrForbidden         = errors.New("forbidden")
	ErrBadRequest        = errors.New("bad request")
	ErrInternal          = errors.New("internal error")
	ErrQuotaExceeded     = errors.New("daily quota exceeded")
	ErrAccessDenied      = errors.New("premium subscription required")
	ErrProviderUnavail   = errors.New("generation provider unavailable")
	ErrContentExtraction = errors.New("content extraction failed")
	ErrSchemaValidation  = errors.New("schema mismatch")
	ErrConfiguration     = errors.New("invalid configuration")
)

// AppError represents an application error with HTTP status and error code.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	StatusCode int            `json:"-"`
	Err        error          `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// ErrorResponse represents the JSON error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
}

// NewAppError creates a new application error.
func NewAppError(code string, message string, statusCode int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// NotFound creates a not found error.
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
		Err:        ErrNotFound,
	}
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return &AppError{
		Code:       "UNAUTHORIZED",
		Message:    message,
		StatusCode: http.StatusUnauthorized,
		Err:        ErrUnauthorized,
	}
}

// Forbidden creates a forbidden error.
func Forbidden(message string) *AppError {
	if message == "" {
		message = "access denied"
	}
	return &AppError{
		Code:       "FORBIDDEN",
		Message:    message,
		StatusCode: http.StatusForbidden,
		Err:        ErrForbidden,
	}
}

// BadRequest creates a bad request error.
func BadRequest(message string) *AppError {
	return &AppError{
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Err:        ErrBadRequest,
	}
}

// Internal creates an internal error.
func Internal(message string, err error) *AppError {
	return &AppError{
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Err:        err,
	}
}

// QuotaExceeded reports an exhausted daily allowance.
func QuotaExceeded(tier string, allowance int) *AppError {
	return &AppError{
		Code: "QUOTA_EXCEEDED",
		Message: fmt.Sprintf(
			"Daily API quota for your '%s' plan reached. Please try again tomorrow or upgrade for a higher quota.", tier),
		Details:    map[string]any{"remaining": 0, "total": allowance},
		StatusCode: http.StatusTooManyRequests,
		Err:        ErrQuotaExceeded,
	}
}

// AccessDenied reports a premium-only capability requested by a user without an active premium plan.
func AccessDenied(capability string) *AppError {
	return &AppError{
		Code:       "PREMIUM_REQUIRED",
		Message:    fmt.Sprintf("%s is a premium feature. Please upgrade your plan to access.", capability),
		StatusCode: http.StatusPaymentRequired,
		Err:        ErrAccessDenied,
	}
}

// ProviderUnavailable wraps a network, timeout or upstream failure of the LLM provider.
func ProviderUnavailable(err error) *AppError {
	return &AppError{
		Code:       "PROVIDER_UNAVAILABLE",
		Message:    "the generation service is temporarily unavailable, please retry",
		StatusCode: http.StatusServiceUnavailable,
		Err:        fmt.Errorf("%w: %w", ErrProviderUnavail, err),
	}
}

// ContentExtractionFailed reports a provider response that held no recoverable structured object.
func ContentExtractionFailed(message string) *AppError {
	if message == "" {
		message = "could not extract structured content from the model response"
	}
	return &AppError{
		Code:       "CONTENT_EXTRACTION_FAILED",
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Err:        ErrContentExtraction,
	}
}

// SchemaValidationFailed reports a parsed object that does not match the expected document shape.
func SchemaValidationFailed(err error) *AppError {
	return &AppError{
		Code:       "SCHEMA_VALIDATION_FAILED",
		Message:    "generated content failed validation",
		StatusCode: http.StatusUnprocessableEntity,
		Err:        fmt.Errorf("%w: %w", ErrSchemaValidation, err),
	}
}

// Configuration wraps a startup configuration problem. It is never served to clients.
func Configuration(message string) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, message)
}

// ToResponse converts an AppError to ErrorResponse.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    e.Code,
			Message: e.Message,
			Details: e.Details,
		},
	}
}

// GetStatusCode returns the appropriate HTTP status code for an error.
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrQuotaExceeded):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrAccessDenied):
		return http.StatusPaymentRequired
	case errors.Is(err, ErrProviderUnavail):
		return http.StatusServiceUnavailable
	case errors.Is(err, ErrContentExtraction), errors.Is(err, ErrSchemaValidation):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// ToAppError converts any error into an AppError, defaulting to an internal error.
func ToAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Internal("an unexpected error occurred", err)
}

// WithDetails adds details to the error.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	e.Details = details
	return e
}

// Is reports whether target matches this error.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code == t.Code
	}
	return errors.Is(e.Err, target)
}

// IsQuotaExceeded checks if the error is a quota exceeded error.
func IsQuotaExceeded(err error) bool {
	return errors.Is(err, ErrQuotaExceeded)
}

// IsAccessDenied checks if the error is a premium access error.
func IsAccessDenied(err error) bool {
	return errors.Is(err, ErrAccessDenied)
}

// IsProviderUnavailable checks if the error is an upstream provider failure.
func IsProviderUnavailable(err error) bool {
	return errors.Is(err, ErrProviderUnavail)
}

// IsContentExtractionFailed checks if the error is an unrecoverable content error.
func IsContentExtractionFailed(err error) bool {
	return errors.Is(err, ErrContentExtraction)
}
