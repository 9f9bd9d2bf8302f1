package auth

import "errors"

var (
	// ErrUnauthorized indicates a missing, malformed, or expired
	// credential. Handlers surface it as 401 with a Clear-Site-Data
	// directive so clients drop stale cached credentials.
	ErrUnauthorized = errors.New("invalid authentication token")

	// ErrMissingSecret indicates authentication is required but no
	// signing secret is configured.
	ErrMissingSecret = errors.New("auth secret is not configured")
)
