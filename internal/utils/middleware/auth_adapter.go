package middleware

import (
	"github.com/jobhunter/server/internal/module/auth"
)

// ValidatorFunc adapts a plain function, such as auth.JWTManager.ValidateAccessToken, to JWTValidator.
type ValidatorFunc func(token string) (*auth.Claims, error)

// ValidateToken implements JWTValidator interface.
func (f ValidatorFunc) ValidateToken(token string) (*auth.Claims, error) {
	return f(token)
}

// Compile-time check
var _ JWTValidator = ValidatorFunc(nil)
