// Package errors defines the error taxonomy shared by the conversation
// aggregate and its storage layer. Callers branch with errors.Is against
// the four kind sentinels rather than matching strings.
package errors

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks malformed input: empty participants, oversized
	// text, duplicate conversation ids.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound marks an unknown conversation, message, or non-member
	// user in a membership-scoped operation.
	ErrNotFound = errors.New("not found")

	// ErrInvalidOperation marks an operation that is well-formed but not
	// allowed in the current state, such as marking one's own message read.
	ErrInvalidOperation = errors.New("invalid operation")

	// ErrConflict is surfaced by the repository when an optimistic version
	// check fails on save.
	ErrConflict = errors.New("concurrency conflict")
)

func Validationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotFound, fmt.Sprintf(format, args...))
}

func InvalidOperationf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidOperation, fmt.Sprintf(format, args...))
}

func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConflict, fmt.Sprintf(format, args...))
}
