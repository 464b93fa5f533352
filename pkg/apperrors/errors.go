package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrRateLimited       = errors.New("rate limited")
	ErrTransport         = errors.New("transport failure")
	ErrMalformedResponse = errors.New("malformed response")
)

// FromStatus maps an HTTP status code to the matching sentinel error.
// 2xx codes map to nil; unrecognized failure codes map to ErrTransport.
func FromStatus(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusNotFound:
		return ErrNotFound
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrUnauthorized
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("%w: status %d", ErrTransport, code)
	}
}

// IsNotFound reports whether err wraps ErrNotFound at any depth.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
