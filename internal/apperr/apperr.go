// Package apperr defines the error taxonomy every operator and transport
// handler in this server wraps its failures in: a Kind, a numeric code,
// a message, and an optional wrapped cause. The JSON-RPC transport (C8)
// maps an *Error into the tool-level isError envelope; anything that
// reaches the dispatch boundary unwrapped becomes E999.
package apperr

import (
	"errors"
	"fmt"
)

// Kind groups error codes into the four families the transport cares about.
type Kind string

const (
	KindValidation Kind = "ValidationError"
	KindProcessing Kind = "ProcessingError"
	KindStorage    Kind = "StorageError"
	KindSession    Kind = "SessionError"
)

// Code enumerates the specific E-codes named across the operator contracts.
const (
	CodeValidationGeneric = "E101"
	CodeProcessingPanic   = "E102"
	CodeInputDirMissing   = "E301"
	CodeProcessingGeneric = "E201"
	CodeStorageGeneric    = "E401"
	CodeSessionNotFound   = "E501"
	CodeLockContention    = "E502"
	CodeInvalidStatus     = "E503"
	CodeInternal          = "E999"
)

// Error is the concrete error type every operator returns on failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Cause   error

	// LockedBy and LockedAt are populated only for E502 LockContention, so
	// the caller can surface {locked_by, locked_at} without type-asserting
	// into operator internals.
	LockedBy string
	LockedAt string
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Validation builds an E1xx ValidationError.
func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

// Processing builds an E2xx ProcessingError, optionally wrapping a cause.
func Processing(code, message string, cause error) *Error {
	return &Error{Kind: KindProcessing, Code: code, Message: message, Cause: cause}
}

// Storage builds an E4xx StorageError wrapping a store-layer cause.
func Storage(message string, cause error) *Error {
	return &Error{Kind: KindStorage, Code: CodeStorageGeneric, Message: message, Cause: cause}
}

// NotFound builds an E501 SessionError for a missing session/path/agent.
func NotFound(message string) *Error {
	return &Error{Kind: KindSession, Code: CodeSessionNotFound, Message: message}
}

// LockContention builds an E502 SessionError carrying the current holder.
func LockContention(message, lockedBy, lockedAt string) *Error {
	return &Error{
		Kind: KindSession, Code: CodeLockContention, Message: message,
		LockedBy: lockedBy, LockedAt: lockedAt,
	}
}

// InvalidStatus builds an E503 SessionError for a rejected status transition.
func InvalidStatus(message string) *Error {
	return &Error{Kind: KindSession, Code: CodeInvalidStatus, Message: message}
}

// FromPanic converts a recovered panic value into an E102 ProcessingError
// carrying the original message, per the extraction operators' panic
// contract.
func FromPanic(recovered any) *Error {
	return &Error{
		Kind:    KindProcessing,
		Code:    CodeProcessingPanic,
		Message: fmt.Sprintf("recovered from panic: %v", recovered),
	}
}

// Internal wraps any error that reached the dispatch boundary without
// already being an *Error, tagging it E999.
func Internal(cause error) *Error {
	return &Error{Kind: KindProcessing, Code: CodeInternal, Message: "internal error", Cause: cause}
}

// As reports whether err is (or wraps) an *Error, returning it if so.
func As(err error) (*Error, bool) {
	var target *Error
	if errors.As(err, &target) {
		return target, true
	}
	return nil, false
}
