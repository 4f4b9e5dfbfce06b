package status

import (
	"errors"
	"fmt"
	"strings"
)

// Error pairs a Status with a message and an optional underlying cause.
type Error struct {
	Status  Status
	Message string
	Err     error
}

// Sentinels for use with errors.Is. Matching is by Status only.
var (
	ErrFailure           = &Error{Status: Failure}
	ErrInvalidReference  = &Error{Status: InvalidReference}
	ErrInvalidParameters = &Error{Status: InvalidParameters}
	ErrInvalidValue      = &Error{Status: InvalidValue}
	ErrInvalidType       = &Error{Status: InvalidType}
	ErrInvalidDimension  = &Error{Status: InvalidDimension}
	ErrInvalidFormat     = &Error{Status: InvalidFormat}
	ErrInvalidGraph      = &Error{Status: InvalidGraph}
	ErrNoResources       = &Error{Status: NoResources}
	ErrNoMemory          = &Error{Status: NoMemory}
	ErrNotSupported      = &Error{Status: NotSupported}
	ErrNotImplemented    = &Error{Status: NotImplemented}
	ErrGraphAbandoned    = &Error{Status: GraphAbandoned}
	ErrGraphScheduled    = &Error{Status: GraphScheduled}
)

// Errorf builds an *Error with a formatted message. A %w verb in format
// records the wrapped cause.
func Errorf(s Status, format string, args ...any) error {
	wrapped := fmt.Errorf(format, args...)
	return &Error{Status: s, Message: wrapped.Error(), Err: errors.Unwrap(wrapped)}
}

// Wrap attaches a status to err. A nil err yields nil.
func Wrap(s Status, err error, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Status: s, Message: message, Err: err}
}

func (e *Error) Error() string {
	switch {
	case e.Message == "" && e.Err == nil:
		return e.Status.String()
	case e.Message == "":
		return fmt.Sprintf("%s: %v", e.Status, e.Err)
	case e.Err == nil || strings.Contains(e.Message, e.Err.Error()):
		return fmt.Sprintf("%s: %s", e.Status, e.Message)
	default:
		return fmt.Sprintf("%s: %s: %v", e.Status, e.Message, e.Err)
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is an *Error with the same Status.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Status == e.Status
}

// Of extracts the outermost Status carried by err. A nil error is Success and
// an error without a status is Failure.
func Of(err error) Status {
	if err == nil {
		return Success
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Status
	}
	return Failure
}
