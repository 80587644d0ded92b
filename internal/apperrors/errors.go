// Package apperrors defines the error taxonomy shared by the sync engine.
//
// Callers match with errors.Is against the sentinels below. Remote failures are
// additionally wrapped in a ClassifiedError so logs can tell a retryable outage
// from a request the remote will never accept.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrInvalidInput is returned for input that will never succeed, such as a
	// review quality outside [0,5].
	ErrInvalidInput = errors.New("invalid input")

	// ErrNotFound means the requested word is absent from every cache tier.
	ErrNotFound = errors.New("not found")

	// ErrStorageFailure wraps durable store read/write errors.
	ErrStorageFailure = errors.New("storage failure")

	// ErrRemoteFailure wraps network or remote store errors.
	ErrRemoteFailure = errors.New("remote failure")

	// ErrSignInRequired is returned by mutations when no user is signed in.
	ErrSignInRequired = errors.New("sign in required")
)

// Category determines how a remote error should be treated by retry logic.
type Category int

const (
	// Recoverable errors are worth replaying later: 5xx, timeouts, refused connections.
	Recoverable Category = iota

	// Irrecoverable errors will fail again with the same input: 400, 401, 403, 422.
	Irrecoverable
)

func (c Category) String() string {
	switch c {
	case Recoverable:
		return "Recoverable"
	case Irrecoverable:
		return "Irrecoverable"
	default:
		return fmt.Sprintf("Unknown(%d)", int(c))
	}
}

// ClassifiedError is a remote failure with categorisation metadata.
type ClassifiedError struct {
	Category   Category
	StatusCode int    // 0 for transport errors
	Body       string // response body, for debugging
	Underlying error
}

func (e *ClassifiedError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("[%s] HTTP %d: %v", e.Category, e.StatusCode, e.Underlying)
	}
	return fmt.Sprintf("[%s] %v", e.Category, e.Underlying)
}

func (e *ClassifiedError) Unwrap() error {
	return e.Underlying
}

// Is makes every ClassifiedError match ErrRemoteFailure.
func (e *ClassifiedError) Is(target error) bool {
	return target == ErrRemoteFailure
}

// Remote wraps err as a recoverable transport failure.
func Remote(err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Category: Recoverable, Underlying: err}
}

// FromStatus builds a ClassifiedError for a non-2xx HTTP response.
func FromStatus(status int, body string) error {
	category := Recoverable
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusNotFound, http.StatusConflict, http.StatusUnprocessableEntity:
		category = Irrecoverable
	}
	return &ClassifiedError{
		Category:   category,
		StatusCode: status,
		Body:       body,
		Underlying: fmt.Errorf("unexpected status %d", status),
	}
}

// IsIrrecoverable reports whether err carries the Irrecoverable category.
func IsIrrecoverable(err error) bool {
	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Category == Irrecoverable
	}
	return false
}
