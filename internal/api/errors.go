package api

import (
	"errors"
	"fmt"
	"net/http"

	"yoketrip/internal/session"
)

var (
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotFound     = errors.New("not found")
)

// APIError is a non-2xx backend response.
type APIError struct {
	Endpoint   string
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: http %d", e.Endpoint, e.StatusCode)
	}
	return fmt.Sprintf("%s: http %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// Is lets errors.Is match ErrNotFound and ErrUnauthorized by status.
func (e *APIError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	case ErrUnauthorized:
		return e.StatusCode == http.StatusUnauthorized
	}
	return false
}

// IsAuthError reports whether err means the user must log in again:
// no token, an expired token or a 401 from the backend.
func IsAuthError(err error) bool {
	return errors.Is(err, ErrUnauthorized) ||
		errors.Is(err, session.ErrNoSession) ||
		errors.Is(err, session.ErrTokenExpired)
}
