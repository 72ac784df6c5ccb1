package models

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across components. Handlers translate these to HTTP
// status codes; components return them directly instead of raising across
// boundaries.
var (
	// ErrUnauthorized covers missing/invalid/expired sessions and ownership
	// mismatches.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNotFound covers absent entities and malformed identifiers. The two
	// are deliberately indistinguishable to callers.
	ErrNotFound = errors.New("not found")

	// ErrStorage marks an underlying store or I/O failure. Details are
	// wrapped for server-side logs but never shown to callers.
	ErrStorage = errors.New("storage failure")
)

// ValidationError reports the first failing check of a request payload.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// Validationf builds a ValidationError with a formatted reason.
func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}
