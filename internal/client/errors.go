package client

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/suar-net/apios/internal/executor"
	"github.com/suar-net/apios/internal/mapping"
)

// Error types surfaced by the client. Timeout and network errors come from
// the executor, mapping errors from the field mapper.
type (
	TimeoutError = executor.TimeoutError
	NetworkError = executor.NetworkError
	MappingError = mapping.MappingError
)

// ErrInvalidRequest is returned for requests that cannot be built.
var ErrInvalidRequest = executor.ErrInvalidRequest

// ApiError is returned for responses with status >= 400 unless the call
// opted out with AcceptErrorStatus. Body is the unmapped response body.
type ApiError struct {
	Method  string
	Path    string
	Status  int
	Body    any
	Headers map[string]string
}

func (e *ApiError) Error() string {
	return fmt.Sprintf("%s %s: HTTP %d %s", e.Method, e.Path, e.Status, http.StatusText(e.Status))
}

// IsTimeout reports whether err is a TimeoutError.
func IsTimeout(err error) bool {
	var tErr *TimeoutError
	return errors.As(err, &tErr)
}

// IsNetwork reports whether err is a NetworkError.
func IsNetwork(err error) bool {
	var nErr *NetworkError
	return errors.As(err, &nErr)
}

// IsRetryable reports whether repeating the call may succeed: timeouts,
// network failures and 408, 429 and 5xx responses.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if IsTimeout(err) || IsNetwork(err) {
		return true
	}
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Status == http.StatusRequestTimeout, apiErr.Status == http.StatusTooManyRequests:
			return true
		case apiErr.Status >= 500:
			return true
		}
	}
	return false
}

// StatusOf returns the HTTP status carried by an ApiError, or 0.
func StatusOf(err error) int {
	var apiErr *ApiError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}
