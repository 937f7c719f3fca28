package forge

import (
	"errors"
	"fmt"
)

// Sentinel errors modelling expected remote conditions as explicit status
// values. Retry logic in the publish pipeline branches on these with
// errors.Is instead of inspecting response bodies.
var (
	// ErrNotFound signals a 404: repository, file, or pages config absent.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists signals a duplicate create (422 name/content exists).
	ErrAlreadyExists = errors.New("already exists")

	// ErrConflict signals a stale version token or a concurrent writer (409).
	ErrConflict = errors.New("conflict")

	// ErrPermissionDenied signals a 403; terminal, never retried.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrUnauthorized signals a 401; the credential itself is bad.
	ErrUnauthorized = errors.New("unauthorized")
)

// APIError carries the raw status code and remote message alongside the
// sentinel classification, for logs and fatal error reports.
type APIError struct {
	StatusCode int
	Message    string
	sentinel   error
}

func (e *APIError) Error() string {
	if e.sentinel != nil {
		return fmt.Sprintf("forge API error: %d %s: %v", e.StatusCode, e.Message, e.sentinel)
	}
	return fmt.Sprintf("forge API error: %d %s", e.StatusCode, e.Message)
}

func (e *APIError) Unwrap() error { return e.sentinel }

// IsTerminal reports whether the error should never be retried.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrUnauthorized)
}
