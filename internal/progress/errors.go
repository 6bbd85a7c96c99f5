package progress

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidInput marks requests rejected before any write.
	ErrInvalidInput = errors.New("invalid input")
	// ErrStorage marks failures of the durable store. Callers should treat them as
	// retryable; aggregates heal on the next successful call.
	ErrStorage = errors.New("storage unavailable")
)

// ValidationError names the offending field. It matches ErrInvalidInput with errors.Is.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}
