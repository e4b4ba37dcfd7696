package llm

import (
	"context"
	"errors"
	"net"
	"net/http"
)

// APIError is a non-2xx reply from the completion service.
type APIError struct {
	Status  int
	Type    string `json:"type"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return http.StatusText(e.Status)
}

// IsTransient reports whether err is worth retrying. Timeouts, transport
// failures, throttling and server-side errors are transient; auth and
// validation failures are not.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusRequestTimeout:
			return true
		case apiErr.Status == http.StatusTooManyRequests:
			return true
		case apiErr.Status >= 500:
			return true
		}
		return false
	}

	// Opaque transport failures (connection refused, reset) arrive as
	// url.Error wrapping a syscall error, which is not a net.Error timeout.
	var opErr *net.OpError
	return errors.As(err, &opErr)
}
