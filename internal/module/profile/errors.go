package profile

import "errors"

// Module errors.
var (
	ErrProfileNotFound = errors.New("profile not found")
	ErrEmptyProfile    = errors.New("profile data is empty")
)
