package apperrors

import (
	"errors"
	"fmt"
	"testing"
)

func TestValidation(t *testing.T) {
	t.Parallel()
	err := Validation("run_id", "run ID is required")

	if !errors.Is(err, ErrValidation) {
		t.Error("expected error to match ErrValidation")
	}
	if err.Error() != "run ID is required" {
		t.Errorf("expected message 'run ID is required', got %q", err.Error())
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Field != "run_id" {
		t.Errorf("expected field 'run_id', got %q", appErr.Field)
	}
}

func TestNotFound(t *testing.T) {
	t.Parallel()
	err := NotFound("run", "gpt2-small-1700000000")

	if !errors.Is(err, ErrNotFound) {
		t.Error("expected error to match ErrNotFound")
	}
	if err.Error() != "run gpt2-small-1700000000 not found" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestInvalidTransition(t *testing.T) {
	t.Parallel()
	err := InvalidTransition("r1", "completed", "running")

	if !errors.Is(err, ErrInvalidTransition) {
		t.Error("expected error to match ErrInvalidTransition")
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Resource != "run" {
		t.Errorf("expected resource 'run', got %q", appErr.Resource)
	}
}

func TestUploadPreservesCause(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("connection refused")
	err := Upload("uploader.post", cause)

	if !errors.Is(err, ErrUpload) {
		t.Error("expected error to match ErrUpload")
	}
	if !errors.Is(err, cause) {
		t.Error("expected errors.Is to reach the underlying cause")
	}
	if err.Error() != "uploader.post: connection refused" {
		t.Errorf("unexpected message: %q", err.Error())
	}
}

func TestInternal(t *testing.T) {
	t.Parallel()
	cause := fmt.Errorf("disk full")
	err := Internal("store.set", cause)

	if !errors.Is(err, ErrInternal) {
		t.Error("expected error to match ErrInternal")
	}

	var appErr *Error
	if !errors.As(err, &appErr) {
		t.Fatal("expected error to be *Error")
	}
	if appErr.Op != "store.set" {
		t.Errorf("expected op 'store.set', got %q", appErr.Op)
	}
	if appErr.Cause != cause {
		t.Error("expected cause to be preserved")
	}
}
