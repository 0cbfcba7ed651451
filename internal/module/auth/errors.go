package auth

import "errors"

// Token errors.
var (
	ErrMissingSecret      = errors.New("jwt secret is not configured")
	ErrInvalidToken       = errors.New("invalid token")
	ErrInvalidTokenClaims = errors.New("invalid token claims")
)
