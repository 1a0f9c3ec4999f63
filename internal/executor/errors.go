package executor

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidRequest is returned when a request cannot be built from its descriptor.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrBodyTooLarge is returned when a response body exceeds the configured limit.
	ErrBodyTooLarge = errors.New("response body exceeds size limit")
)

// TimeoutError is returned when no response headers arrived within the
// request timeout. The underlying connection has been aborted.
type TimeoutError struct {
	Method string
	URL    string
	// After is the timeout that expired.
	After time.Duration
	Err   error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s %s: no response within %v", e.Method, e.URL, e.After)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Timeout reports true, so TimeoutError satisfies the net.Error timeout check.
func (e *TimeoutError) Timeout() bool { return true }

// NetworkError wraps a transport-level failure: DNS resolution, refused or
// reset connections, TLS handshake errors.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s %s: network error: %v", e.Method, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }
