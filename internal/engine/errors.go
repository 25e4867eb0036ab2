package engine

import (
	"errors"
	"fmt"
)

// ErrInvariantViolation marks programming errors inside the runtime. Unlike
// descriptor errors these are never absorbed; they are returned to the host.
var ErrInvariantViolation = errors.New("runtime invariant violated")

// InvariantError describes a violated runtime invariant
type InvariantError struct {
	Module string
	Detail string
}

func (e *InvariantError) Error() string {
	if e.Module == "" {
		return fmt.Sprintf("%s: %s", ErrInvariantViolation, e.Detail)
	}
	return fmt.Sprintf("%s: module %s: %s", ErrInvariantViolation, e.Module, e.Detail)
}

// Unwrap allows errors.Is(err, ErrInvariantViolation)
func (e *InvariantError) Unwrap() error {
	return ErrInvariantViolation
}

func invariant(module, format string, args ...interface{}) error {
	return &InvariantError{Module: module, Detail: fmt.Sprintf(format, args...)}
}

// IsInvariantViolation reports whether err is a runtime invariant violation
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariantViolation)
}
