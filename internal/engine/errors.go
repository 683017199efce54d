package engine

import (
	"errors"
	"fmt"
)

// RuntimeError describes a trigger the engine could not apply.
//
// None of these are fatal: the loop logs them and moves on. Expected
// races (spawn for a deleted message, completion of a removed instance)
// are not errors at all and never produce a RuntimeError.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// Event is the trigger type that failed.
	Event EventType
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeMissingPayload indicates a trigger without its required data.
	ErrCodeMissingPayload RuntimeErrorCode = "MISSING_PAYLOAD"

	// ErrCodeUnknownEvent indicates an unrecognized trigger type.
	ErrCodeUnknownEvent RuntimeErrorCode = "UNKNOWN_EVENT"

	// ErrCodeInvalidSurface indicates a non-positive surface width.
	ErrCodeInvalidSurface RuntimeErrorCode = "INVALID_SURFACE"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	return fmt.Sprintf("%s: %s (event=%s)", e.Code, e.Message, e.Event)
}

// IsMalformed reports whether err is a missing-payload or unknown-event
// error. Uses errors.As to handle wrapped errors.
func IsMalformed(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeMissingPayload || re.Code == ErrCodeUnknownEvent
	}
	return false
}

func newMissingPayload(t EventType, what string) *RuntimeError {
	return &RuntimeError{
		Code:    ErrCodeMissingPayload,
		Message: fmt.Sprintf("%s event missing %s", t, what),
		Event:   t,
	}
}
