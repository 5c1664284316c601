package model

// This file defines the error taxonomy shared by the seat map, the lock
// manager and the booking coordinator.  The sentinel values let handlers
// distinguish failure classes with errors.Is; the structured types carry
// the detail a client needs to retry with a different selection.

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation is returned for malformed or missing input such as an
// empty seat set or an unknown combo id.  Handlers translate it to 400.
var ErrValidation = errors.New("validation failed")

// ErrNotFound is returned for an unknown showtime, hold, seat number or
// booking.  Handlers translate it to 404.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a seat is already sold or held by another
// active hold, or when a hold is no longer active at confirm time.  It is
// the expected, recoverable case.  Handlers translate it to 409.
var ErrConflict = errors.New("conflict")

// ErrForbidden is returned when the caller does not own the hold it is
// acting on.  Handlers translate it to 403.
var ErrForbidden = errors.New("forbidden")

// ErrInternal marks storage or transaction failures.  Any partial state has
// already been rolled back when it surfaces, so the call is safe to retry.
var ErrInternal = errors.New("internal error")

// ValidationError describes which input was rejected.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

// Is makes errors.Is(err, ErrValidation) hold for every ValidationError.
func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Invalid is a shorthand constructor for ValidationError.
func Invalid(field, msg string) error {
	return &ValidationError{Field: field, Message: msg}
}

// ConflictError lists the seats that blocked an operation.  Seats may be
// empty when the conflict concerns a hold rather than specific seats.
type ConflictError struct {
	Seats  []string
	Reason string
}

func (e *ConflictError) Error() string {
	if len(e.Seats) == 0 {
		return "conflict: " + e.Reason
	}
	return fmt.Sprintf("conflict: %s [%s]", e.Reason, strings.Join(e.Seats, ","))
}

// Is makes errors.Is(err, ErrConflict) hold for every ConflictError.
func (e *ConflictError) Is(target error) bool { return target == ErrConflict }

// ConflictingSeats extracts the seat list from a ConflictError anywhere in
// err's chain.  It returns nil when err carries no seat detail.
func ConflictingSeats(err error) []string {
	var ce *ConflictError
	if errors.As(err, &ce) {
		return ce.Seats
	}
	return nil
}
