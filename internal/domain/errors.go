package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidSeatCount is wrapped by ValidationError when a booking asks for fewer than one seat.
	ErrInvalidSeatCount = errors.New("number of pilgrims must be at least 1")
	// ErrDuplicate is wrapped by ConflictError when a unique key already exists.
	ErrDuplicate = errors.New("duplicate record")
	// ErrWriteUnconfirmed marks a failed write that may still have been applied.
	ErrWriteUnconfirmed = errors.New("write outcome unknown")
)

// DomainError keeps backward compatibility for generic codes.
type DomainError struct {
	Code string
	Err  error
}

func (e DomainError) Error() string {
	if e.Err == nil {
		return e.Code
	}
	if e.Code == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", e.Code, e.Err)
}

func (e DomainError) Unwrap() error {
	return e.Err
}

type NotFoundError struct {
	Resource string
	Err      error
}

func (e NotFoundError) Error() string {
	if e.Resource == "" {
		return "not found"
	}
	return fmt.Sprintf("%s not found", e.Resource)
}

func (e NotFoundError) Unwrap() error { return e.Err }

type ValidationError struct {
	Field string
	Msg   string
	Err   error
}

func (e ValidationError) Error() string {
	if e.Msg != "" && e.Field != "" {
		return fmt.Sprintf("%s: %s", e.Field, e.Msg)
	}
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	if e.Field != "" {
		return fmt.Sprintf("invalid %s", e.Field)
	}
	return "validation error"
}

func (e ValidationError) Unwrap() error { return e.Err }

type ConflictError struct {
	Resource string
	Msg      string
	Err      error
}

func (e ConflictError) Error() string {
	switch {
	case e.Msg != "" && e.Resource != "":
		return fmt.Sprintf("%s conflict: %s", e.Resource, e.Msg)
	case e.Msg != "":
		return e.Msg
	case e.Resource != "":
		return fmt.Sprintf("%s conflict", e.Resource)
	default:
		return "conflict"
	}
}

func (e ConflictError) Unwrap() error { return e.Err }

// CapacityError is the expected rejection when a trip cannot hold the requested seats.
type CapacityError struct {
	TripID    int64
	Requested int
	Available int
}

func (e CapacityError) Error() string {
	return fmt.Sprintf("not enough available slots: requested %d, available %d", e.Requested, e.Available)
}

// TerminalStateError rejects any transition on a booking that reached a terminal status.
type TerminalStateError struct {
	BookingID int64
	Status    string
}

func (e TerminalStateError) Error() string {
	return fmt.Sprintf("booking %d is %s and can no longer change status", e.BookingID, e.Status)
}

type ForbiddenError struct {
	Msg string
}

func (e ForbiddenError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "forbidden"
}

// UnavailableError marks a transient storage fault. Callers retry with backoff;
// it never means the operation succeeded or was rejected.
type UnavailableError struct {
	Op  string
	Err error
}

func (e UnavailableError) Error() string {
	if e.Op == "" {
		return "store unavailable"
	}
	if e.Err == nil {
		return fmt.Sprintf("store unavailable during %s", e.Op)
	}
	return fmt.Sprintf("store unavailable during %s: %v", e.Op, e.Err)
}

func (e UnavailableError) Unwrap() error { return e.Err }

type InternalError struct {
	Msg string
	Err error
}

func (e InternalError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return "internal error"
}

func (e InternalError) Unwrap() error { return e.Err }

func IsNotFound(err error) bool {
	var target NotFoundError
	return errors.As(err, &target)
}

func IsValidation(err error) bool {
	var target ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target ConflictError
	return errors.As(err, &target)
}

func IsInsufficientCapacity(err error) bool {
	var target CapacityError
	return errors.As(err, &target)
}

func IsTerminalState(err error) bool {
	var target TerminalStateError
	return errors.As(err, &target)
}

func IsForbidden(err error) bool {
	var target ForbiddenError
	return errors.As(err, &target)
}

func IsUnavailable(err error) bool {
	var target UnavailableError
	return errors.As(err, &target)
}

func IsInternal(err error) bool {
	var target InternalError
	return errors.As(err, &target)
}
