package suggest

import "errors"

var (
	// ErrInvalidRequest means the request was rejected before the model was called.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrConfiguration means no model credential is configured. It is never retried.
	ErrConfiguration = errors.New("model credential not configured")

	// ErrModelUnavailable covers network, auth, rate-limit and timeout failures
	// of the completion call.
	ErrModelUnavailable = errors.New("model unavailable")
)
