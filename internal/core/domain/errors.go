package domain

import (
	"errors"
	"fmt"
)

// Domain errors represent business logic failures.
// These are distinct from infrastructure errors.
var (
	// ErrNotFound indicates a requested entity does not exist.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists indicates an entity already exists.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidInput indicates malformed or invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrUnsupportedType indicates an unknown package or filter kind.
	ErrUnsupportedType = errors.New("unsupported type")

	// Failure kinds.

	// ErrNetwork indicates a transport or timeout failure.
	ErrNetwork = errors.New("network error")

	// ErrParse indicates markup could not be parsed or a required selector
	// matched nothing.
	ErrParse = errors.New("parse error")

	// ErrInstall indicates a download or write failure during package install.
	ErrInstall = errors.New("install error")

	// ErrUninstall indicates a package could not be made unresolvable.
	ErrUninstall = errors.New("uninstall error")

	// ErrValidation indicates a package failed format checks before load.
	ErrValidation = errors.New("validation error")

	// ErrQueue indicates a duplicate task id, an unknown id, or an
	// invalid download state transition.
	ErrQueue = errors.New("queue error")
)

// Failure is a typed failure carrying a human-readable message.
// errors.Is matches both its Kind and the wrapped cause.
type Failure struct {
	// Kind is one of the failure sentinels (ErrNetwork, ErrParse, ...).
	Kind error

	// Message describes what went wrong.
	Message string

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (f *Failure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("%v: %s: %v", f.Kind, f.Message, f.Err)
	}
	return fmt.Sprintf("%v: %s", f.Kind, f.Message)
}

// Unwrap exposes the kind and the cause to errors.Is and errors.As.
func (f *Failure) Unwrap() []error {
	if f.Err == nil {
		return []error{f.Kind}
	}
	return []error{f.Kind, f.Err}
}

// NewFailure builds a Failure of the given kind.
func NewFailure(kind error, message string, cause error) *Failure {
	return &Failure{Kind: kind, Message: message, Err: cause}
}

// NetworkError wraps a transport failure.
func NetworkError(message string, cause error) error {
	return NewFailure(ErrNetwork, message, cause)
}

// ParseError reports malformed markup or a missing required match.
func ParseError(message string, cause error) error {
	return NewFailure(ErrParse, message, cause)
}

// QueueError reports an invalid download queue operation.
func QueueError(format string, args ...any) error {
	return NewFailure(ErrQueue, fmt.Sprintf(format, args...), nil)
}

// ValidationError reports a package that failed checks before load.
func ValidationError(message string, cause error) error {
	return NewFailure(ErrValidation, message, cause)
}

// FailureMessage returns the human-readable message of err, preferring a
// Failure's own message over the full wrapped chain.
func FailureMessage(err error) string {
	if err == nil {
		return ""
	}
	var f *Failure
	if errors.As(err, &f) {
		if f.Err != nil {
			return f.Message + ": " + f.Err.Error()
		}
		return f.Message
	}
	return err.Error()
}
