package hal

import (
	"errors"
	"fmt"

	"github.com/sierrasoftworks/humane-errors-go"
)

// ErrorKind classifies HAL failures so callers can branch on them.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindInvalidPin: the pin is not wired to any channel of the requested class.
	KindInvalidPin
	// KindChannelOccupied: the channel is claimed by a different pin.
	KindChannelOccupied
	// KindMapFailed: a register block could not be mapped.
	KindMapFailed
	// KindTimingStall: a hardware status bit did not reach the expected state in time.
	KindTimingStall
	// KindInvalidArgument: an argument is outside the range the hardware accepts.
	KindInvalidArgument
	// KindBusError: an I2C transfer was not acknowledged or timed out on the wire.
	KindBusError
)

func (k ErrorKind) String() string {
	switch k {
	case KindInvalidPin:
		return "InvalidPin"
	case KindChannelOccupied:
		return "ChannelOccupied"
	case KindMapFailed:
		return "MapFailed"
	case KindTimingStall:
		return "TimingStall"
	case KindInvalidArgument:
		return "InvalidArgument"
	case KindBusError:
		return "BusError"
	}
	return "Unknown"
}

// Sentinels for errors.Is.
var (
	ErrInvalidPin      = &Error{kind: KindInvalidPin}
	ErrChannelOccupied = &Error{kind: KindChannelOccupied}
	ErrMapFailed       = &Error{kind: KindMapFailed}
	ErrTimingStall     = &Error{kind: KindTimingStall}
	ErrInvalidArgument = &Error{kind: KindInvalidArgument}
	ErrBusError        = &Error{kind: KindBusError}
)

// Error is a classified HAL failure carrying user-facing advice.
type Error struct {
	kind ErrorKind
	herr humane.Error
}

// NewError returns an error of kind with a message and advice.
func NewError(kind ErrorKind, message string, advice ...string) *Error {
	return &Error{kind: kind, herr: humane.New(message, advice...)}
}

// WrapError classifies cause as kind.
func WrapError(kind ErrorKind, cause error, message string, advice ...string) *Error {
	return &Error{kind: kind, herr: humane.Wrap(cause, message, advice...)}
}

// Errorf is NewError with a formatted message and no advice.
func Errorf(kind ErrorKind, format string, args ...any) *Error {
	return NewError(kind, fmt.Sprintf(format, args...))
}

func (e *Error) Kind() ErrorKind {
	return e.kind
}

func (e *Error) Error() string {
	if e.herr == nil {
		return e.kind.String()
	}
	return e.herr.Error()
}

// Advice lists what the caller can do about the failure.
func (e *Error) Advice() []string {
	if e.herr == nil {
		return nil
	}
	return e.herr.Advice()
}

// Cause returns the wrapped error, if any.
func (e *Error) Cause() error {
	if e.herr == nil {
		return nil
	}
	return e.herr.Cause()
}

func (e *Error) Unwrap() error {
	return e.Cause()
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.kind == e.kind
}

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return KindUnknown
}

func errClosed(what string) error {
	return fmt.Errorf("%s is closed", what)
}
