// Package relevance provides a Go client for the relevance and ranking API.
package relevance

import (
	"errors"
	"fmt"
)

// Error represents an error from the relevance API with the HTTP status code
// and the server's error message.
type Error struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("relevance: %s (%d): %s", e.Code, e.StatusCode, e.Message)
}

// IsNotFound returns true if the error is a 404.
func IsNotFound(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 404
	}
	return false
}

// IsInvalidInput returns true if the server rejected the request arguments.
func IsInvalidInput(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 400 || e.StatusCode == 413
	}
	return false
}

// IsUnavailable returns true if the error is a 503.
func IsUnavailable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == 503
	}
	return false
}
