// Package domainerr defines the domain-level error taxonomy shared by the
// booking coordinator, the appointment lifecycle manager and the schedule
// editor. Transport details never leak past these codes.
package domainerr

import (
	"errors"
	"fmt"
)

// Code identifies a domain outcome.
type Code string

const (
	// Local precondition failures. These never reach the network.
	CodeMissingProfessional  Code = "MISSING_PROFESSIONAL"
	CodeIncompleteSelection  Code = "INCOMPLETE_SELECTION"
	CodeSlotUnavailable      Code = "SLOT_UNAVAILABLE"
	CodeValidationFailed     Code = "VALIDATION_FAILED"
	CodeTransitionInProgress Code = "TRANSITION_IN_PROGRESS"

	// Remote outcomes.
	CodeTimeSlotUnavailable Code = "TIME_SLOT_UNAVAILABLE"
	CodeProfileNotFound     Code = "PROFILE_NOT_FOUND"
	CodeNotFound            Code = "NOT_FOUND"
	CodeUnauthenticated     Code = "UNAUTHENTICATED"
	CodeRemoteFailure       Code = "REMOTE_FAILURE"
)

var (
	// ErrTimeSlotUnavailable matches any remote booking conflict.
	ErrTimeSlotUnavailable = New(CodeTimeSlotUnavailable, "time slot is no longer available")

	// ErrProfileNotFound matches a professional without a configured schedule.
	ErrProfileNotFound = New(CodeProfileNotFound, "schedule profile not found")

	// ErrUnauthenticated is returned when re-authentication did not help.
	ErrUnauthenticated = New(CodeUnauthenticated, "authentication required")

	// ErrNotFound matches a missing remote resource.
	ErrNotFound = New(CodeNotFound, "resource not found")

	// ErrSuperseded is returned when a response arrived after a newer
	// request or a reset and was discarded.
	ErrSuperseded = errors.New("response superseded by a newer request")
)

// Error is a domain error carrying a stable code.
type Error struct {
	Code    Code
	Message string
	// Status is the HTTP status of the remote response, 0 for local errors.
	Status int
	Err    error
}

// New builds a domain error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a domain error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to an underlying error.
func Wrap(code Code, err error) *Error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: err.Error(), Err: err}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return string(e.Code)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is a domain error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// CodeOf extracts the domain code from err. Errors that carry no domain
// code are generic remote failures.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeRemoteFailure
}

// As returns err as a domain error, wrapping foreign errors as
// REMOTE_FAILURE.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var de *Error
	if errors.As(err, &de) {
		return de
	}
	return Wrap(CodeRemoteFailure, err)
}

// IsLocal reports whether code is a precondition failure detected
// without a network round trip.
func IsLocal(code Code) bool {
	switch code {
	case CodeMissingProfessional, CodeIncompleteSelection, CodeSlotUnavailable,
		CodeValidationFailed, CodeTransitionInProgress:
		return true
	}
	return false
}
