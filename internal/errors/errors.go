// Package errors defines the typed errors returned by devctl operations.
//
// Every public lifecycle verb returns either nil or an *Error whose Kind is
// one of Validation, Conflict, NotFound, Engine or ConfigIO, so callers can
// render messages without inspecting strings.
package errors

import (
	"errors"
	"fmt"
)

// Exit codes for devctl
const (
	ExitSuccess        = 0
	ExitGeneralError   = 1
	ExitValidation     = 2
	ExitConflict       = 3
	ExitNotFound       = 4
	ExitEngine         = 5
	ExitConfigIO       = 6
	ExitPortAllocation = 7
)

// Kind classifies an error.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindConflict
	KindNotFound
	KindEngine
	KindConfigIO
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not found"
	case KindEngine:
		return "engine"
	case KindConfigIO:
		return "config io"
	default:
		return "internal"
	}
}

// exitCode returns the default process exit code for a kind.
func (k Kind) exitCode() int {
	switch k {
	case KindValidation:
		return ExitValidation
	case KindConflict:
		return ExitConflict
	case KindNotFound:
		return ExitNotFound
	case KindEngine:
		return ExitEngine
	case KindConfigIO:
		return ExitConfigIO
	default:
		return ExitGeneralError
	}
}

// Error is the base error type for devctl
type Error struct {
	Kind    Kind
	Code    int
	Message string
	Cause   error

	// Retryable marks engine failures that a caller may retry,
	// such as a host port taken between allocation and publish.
	Retryable bool
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// ExitCode returns the exit code for this error
func (e *Error) ExitCode() int {
	return e.Code
}

// New creates a new Error of the given kind
func New(kind Kind, message string) *Error {
	return &Error{
		Kind:    kind,
		Code:    kind.exitCode(),
		Message: message,
	}
}

// Wrap wraps an existing error with an Error of the given kind
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{
		Kind:    kind,
		Code:    kind.exitCode(),
		Message: message,
		Cause:   cause,
	}
}

// Common error constructors

// Validation returns an error for input validation failures
func Validation(message string) *Error {
	return New(KindValidation, message)
}

// Validationf is Validation with formatting
func Validationf(format string, args ...any) *Error {
	return New(KindValidation, fmt.Sprintf(format, args...))
}

// Conflict returns an error for a resource that already exists
func Conflict(message string) *Error {
	return New(KindConflict, message)
}

// NotFound returns an error for a missing resource
func NotFound(message string) *Error {
	return New(KindNotFound, message)
}

// SandboxNotFound returns an error for a missing sandbox
func SandboxNotFound(alias string) *Error {
	return NotFound(fmt.Sprintf("sandbox not found: %s", alias))
}

// ImageNotFound returns an error for an image that is not present locally
func ImageNotFound(image string) *Error {
	return NotFound(fmt.Sprintf("image %s not found locally; build it first with 'devctl build --tag %s'", image, image))
}

// Engine returns an error for a failed container engine call
func Engine(op string, cause error) *Error {
	return Wrap(KindEngine, fmt.Sprintf("engine %s failed", op), cause)
}

// PortConflict returns a retryable engine error for a host port that
// was claimed before the engine could publish it
func PortConflict(port int, cause error) *Error {
	err := Wrap(KindEngine, fmt.Sprintf("host port %d already in use", port), cause)
	err.Retryable = true
	return err
}

// PortAllocationFailed returns an error for port allocation failure
func PortAllocationFailed(cause error) *Error {
	err := Wrap(KindEngine, "failed to allocate port", cause)
	err.Code = ExitPortAllocation
	return err
}

// ConfigIO returns an error for configuration file reads and writes
func ConfigIO(message string, cause error) *Error {
	return Wrap(KindConfigIO, message, cause)
}

// KindOf returns the kind of the first *Error in err's chain, or
// KindInternal if there is none
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err carries the given kind
func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsRetryable reports whether err is marked retryable
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetExitCode extracts the exit code from an error
func GetExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var e *Error
	if errors.As(err, &e) {
		return e.ExitCode()
	}
	return ExitGeneralError
}

// Is checks if an error is of a specific type
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target
func As(err error, target any) bool {
	return errors.As(err, target)
}
