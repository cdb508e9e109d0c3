package shared

import (
	"errors"
	"fmt"
)

// Error taxonomy for the approval and payment engines. Every mutation surfaces
// exactly one of these kinds so callers can map them without string matching.
var (
	// ErrNotFound indicates a referenced entity does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized indicates the actor lacks the role or membership for the operation.
	ErrUnauthorized = errors.New("authorization denied")
	// ErrStateConflict indicates the operation is invalid for the entity's current status.
	ErrStateConflict = errors.New("state conflict")
	// ErrValidation indicates a missing or malformed field.
	ErrValidation = errors.New("validation failed")
	// ErrExternal indicates the external accounting system call failed or timed out.
	ErrExternal = errors.New("external system failure")
)

// NotFoundf wraps ErrNotFound with entity context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

// Unauthorizedf wraps ErrUnauthorized with actor context.
func Unauthorizedf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrUnauthorized)...)
}

// StateConflictf wraps ErrStateConflict; include the current state for diagnosability.
func StateConflictf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrStateConflict)...)
}

// Validationf wraps ErrValidation naming the offending field or condition.
func Validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

// Externalf wraps ErrExternal with the upstream failure detail.
func Externalf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrExternal)...)
}
