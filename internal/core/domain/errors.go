package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a replay domain error with a structured error code.
//
// Codes have the form RW-<AREA>-<NNNN>. Two DomainErrors compare equal under
// errors.Is when their codes match, so sentinel values below can be used as
// match targets even after WithDetails/WithCause produced copies.
type DomainError struct {
	Code    string // Error code (e.g., "RW-JRNL-4001")
	Message string // Human-readable message
	Details string // Optional additional details
	Cause   error  // Underlying error (if any)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Details != "" {
		msg += ": " + e.Details
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Unwrap() support.
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is() support for error comparison.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// NewDomainError creates a new DomainError with the given code and message.
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// WithDetails returns a copy of the error with additional details.
func (e *DomainError) WithDetails(details string) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
		Cause:   e.Cause,
	}
}

// WithDetailsf is WithDetails with fmt.Sprintf formatting.
func (e *DomainError) WithDetailsf(format string, args ...any) *DomainError {
	return e.WithDetails(fmt.Sprintf(format, args...))
}

// WithCause returns a copy of the error wrapping the given cause.
func (e *DomainError) WithCause(cause error) *DomainError {
	return &DomainError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
		Cause:   cause,
	}
}

// IsDomainError checks if an error is a DomainError with the given code.
// If code is empty, it only checks if the error is a DomainError.
func IsDomainError(err error, code string) bool {
	var de *DomainError
	if errors.As(err, &de) {
		if code == "" {
			return true
		}
		return de.Code == code
	}
	return false
}

// GetErrorCode extracts the error code from an error if it's a DomainError.
func GetErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// ============================================================================
// Journal Errors (JRNL)
// ============================================================================

var (
	// ErrDecode indicates a malformed entry: bad framing, checksum, or payload.
	ErrDecode = NewDomainError("RW-JRNL-4000", "malformed journal entry")

	// ErrUnknownEntryKind indicates an entry tag this build does not know.
	ErrUnknownEntryKind = NewDomainError("RW-JRNL-4001", "unknown journal entry kind")
)

// ============================================================================
// Replay Errors (RPLY)
// ============================================================================

var (
	// ErrInvalidStateTransition indicates an entry that references state which
	// does not exist at that point of the replay.
	ErrInvalidStateTransition = NewDomainError("RW-RPLY-4090", "invalid state transition")

	// ErrSessionClosed indicates an entry was fed to a finished or abandoned session.
	ErrSessionClosed = NewDomainError("RW-RPLY-4091", "replay session closed")
)

// ============================================================================
// Live Process Errors (PROC)
// ============================================================================

var (
	// ErrLiveProcess indicates the live process rejected a durable effect.
	ErrLiveProcess = NewDomainError("RW-PROC-5000", "live process rejected effect")
)

// ============================================================================
// Argument Errors (ARG)
// ============================================================================

var (
	// ErrInvalidArgument indicates an invalid argument.
	ErrInvalidArgument = NewDomainError("RW-ARG-1001", "invalid argument")

	// ErrMissingArgument indicates a required argument is missing.
	ErrMissingArgument = NewDomainError("RW-ARG-1002", "missing required argument")
)
