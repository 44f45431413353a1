package shared

import (
	"encoding/json"
	"errors"
	"fmt"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound      = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput  = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrInvalidState  = NewDomainError("INVALID_STATE", "Operation not allowed in current state")

	// ErrOperationInFlight is returned when a mutating call is issued while
	// another one on the same resource has not settled yet.
	ErrOperationInFlight = NewDomainError("OPERATION_IN_FLIGHT", "Another operation is in progress")
)

// ---------------------------------------------------------------------------
// ValidationError
// ---------------------------------------------------------------------------

// ValidationError reports missing or malformed required input.
type ValidationError struct {
	Field   string
	Message string
}

// NewValidationError creates a validation error for a field
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation: " + e.Message
	}
	return fmt.Sprintf("validation: %s: %s", e.Field, e.Message)
}

// ---------------------------------------------------------------------------
// StateError
// ---------------------------------------------------------------------------

// StateError reports an operation invoked in an invalid local state,
// e.g. updating a cart line before any cart exists.
type StateError struct {
	Op      string
	Message string
}

// NewStateError creates a state error for an operation
func NewStateError(op, message string) *StateError {
	return &StateError{Op: op, Message: message}
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Is lets errors.Is(err, ErrInvalidState) match any StateError.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// ---------------------------------------------------------------------------
// RemoteError
// ---------------------------------------------------------------------------

// RemoteError reports a failed call to a remote dependency: transport failure,
// non-2xx status or a malformed / error-carrying payload.
type RemoteError struct {
	Service    string
	Op         string
	StatusCode int
	Message    string
	Details    json.RawMessage
	Err        error
}

func (e *RemoteError) Error() string {
	msg := fmt.Sprintf("%s %s", e.Service, e.Op)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// ---------------------------------------------------------------------------
// RowError
// ---------------------------------------------------------------------------

// RowError reports a single catalog record that failed mapping or write.
// It is recorded and the batch continues.
type RowError struct {
	RecordID string
	Op       string
	Err      error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.RecordID, e.Err)
}

func (e *RowError) Unwrap() error {
	return e.Err
}

// IsValidationError reports whether err carries a ValidationError
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsRemoteError reports whether err carries a RemoteError
func IsRemoteError(err error) bool {
	var re *RemoteError
	return errors.As(err, &re)
}
