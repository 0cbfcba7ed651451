package payment

import "errors"

// Module errors.
var (
	ErrMissingSignature  = errors.New("missing webhook signature")
	ErrInvalidSignature  = errors.New("invalid webhook signature")
	ErrInvalidPayload    = errors.New("invalid webhook payload")
	ErrUnattributedEvent = errors.New("webhook event could not be attributed to a user")
	ErrWebhookDisabled   = errors.New("webhook endpoint is not configured")
)
