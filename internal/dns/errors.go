package dns

import (
	"errors"
	"fmt"
	"net/http"
)

// StatusError reports a provider API call that returned a non-success HTTP
// status. Providers wrap their failed calls in it so callers can decide
// whether a retry is worthwhile.
type StatusError struct {
	StatusCode int
	Endpoint   string
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s returned status %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s returned status %d", e.Endpoint, e.StatusCode)
}

// IsRetryable reports whether err represents a throttled or transient
// provider failure (429 or 5xx). Auth failures and other client errors are
// not retryable.
func IsRetryable(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	return se.StatusCode == http.StatusTooManyRequests || se.StatusCode >= 500
}
