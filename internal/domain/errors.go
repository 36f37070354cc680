package domain

import "errors"

var (
	ErrTenantNotFound        = errors.New("tenant not found")
	ErrTenantInactive        = errors.New("tenant inactive")
	ErrInvalidAPIKey         = errors.New("invalid API key")
	ErrRateLimitExceeded     = errors.New("rate limit exceeded")
	ErrProviderNotConfigured = errors.New("provider not configured")
	ErrAllProvidersFailed    = errors.New("all providers failed")
	ErrInvalidRequest        = errors.New("invalid request")
)
