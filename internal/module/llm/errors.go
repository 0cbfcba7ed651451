package llm

import (
	"errors"
	"fmt"
)

var (
	// ErrRateLimited indicates the provider throttled the request.
	ErrRateLimited = errors.New("llm provider rate limit exceeded")

	// ErrUnauthorized indicates the API key was rejected.
	ErrUnauthorized = errors.New("llm provider authentication failed")

	// ErrTimeout indicates the request deadline passed before the provider answered.
	ErrTimeout = errors.New("llm request timed out")

	// ErrUnavailable indicates a transport failure, an unexpected status or an open circuit.
	ErrUnavailable = errors.New("llm provider temporarily unavailable")

	// ErrEmptyCompletion indicates the provider answered without any candidate text.
	ErrEmptyCompletion = errors.New("llm provider returned no content")
)

// IsRetryable reports whether err is transient.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimited) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrUnavailable)
}

// StatusError carries a non-2xx provider status alongside the mapped sentinel.
type StatusError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%v (status %d): %s", e.Err, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%v (status %d)", e.Err, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return e.Err
}
