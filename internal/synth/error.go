package synth

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a failure reported by the synthesis backend.
type Error struct {
	// HTTPStatus is the HTTP status code, when the backend is reached over
	// HTTP. Zero for transport-level failures.
	HTTPStatus int

	// Message is the backend's error message, if any.
	Message string
}

func (e *Error) Error() string {
	if e.HTTPStatus != 0 {
		return fmt.Sprintf("synthesis backend: %s (status=%d)", e.Message, e.HTTPStatus)
	}
	return fmt.Sprintf("synthesis backend: %s", e.Message)
}

// IsRateLimit reports whether the backend signalled throttling.
func (e *Error) IsRateLimit() bool {
	return e.HTTPStatus == http.StatusTooManyRequests
}

// IsRateLimit reports whether err carries a rate-limit signal from the
// synthesis backend.
func IsRateLimit(err error) bool {
	var e *Error
	return errors.As(err, &e) && e.IsRateLimit()
}
