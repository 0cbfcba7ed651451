package subscription

import "errors"

// Module errors.
var (
	ErrUserNotFound = errors.New("user not found")
	ErrUnknownPlan  = errors.New("unknown subscription plan")
	ErrUnknownEvent = errors.New("unknown lifecycle event")
	ErrNoUserID     = errors.New("lifecycle event has no user id")
)
