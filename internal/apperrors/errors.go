// Package apperrors provides structured application errors for the run and
// artifact lifecycle core.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation        = errors.New("validation error")
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
	ErrUpload            = errors.New("upload failed")
	ErrCleanup           = errors.New("artifact cleanup failed")
	ErrCacheCleanup      = errors.New("cache cleanup failed")
	ErrTokenizerCleanup  = errors.New("tokenizer cleanup failed")
	ErrManifestParse     = errors.New("manifest parse failed")
	ErrInternal          = errors.New("internal error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel error  // Wrapped sentinel for errors.Is() classification
	Message  string // Human-readable message
	Field    string // For validation errors (e.g., "run_id")
	Resource string // For not found errors (e.g., "run")
	Op       string // Operation that failed (e.g., "cleanup.removeAll")
	Cause    error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel and the cause so both participate in
// errors.Is/errors.As classification.
func (e *Error) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Sentinel != nil {
		out = append(out, e.Sentinel)
	}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
		Resource: resource,
	}
}

// InvalidTransition reports an attempt to move a run out of a terminal status.
func InvalidTransition(runID, from, to string) error {
	return &Error{
		Sentinel: ErrInvalidTransition,
		Message:  fmt.Sprintf("run %s: cannot transition from terminal status %q to %q", runID, from, to),
		Resource: "run",
	}
}

// Upload wraps a collaborator upload failure. Always propagated, never suppressed.
func Upload(op string, cause error) error {
	return &Error{
		Sentinel: ErrUpload,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
