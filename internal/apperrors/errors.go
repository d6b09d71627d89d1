package apperrors

import (
	"errors"
	"fmt"
)

// Error kinds. Match with errors.Is.
var (
	ErrNotFound          = errors.New("not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidInput      = errors.New("invalid input")
	ErrStorageFault      = errors.New("storage fault")
)

// Error carries a caller-facing message together with its kind and,
// for faults, the underlying cause.
type Error struct {
	kind  error
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.msg, e.cause)
	}
	return e.msg
}

// Message returns the text that is safe to show to API callers.
func (e *Error) Message() string {
	return e.msg
}

func (e *Error) Unwrap() []error {
	if e.cause != nil {
		return []error{e.kind, e.cause}
	}
	return []error{e.kind}
}

func newError(kind error, format string, args ...any) error {
	return &Error{kind: kind, msg: fmt.Sprintf(format, args...)}
}

func NotFound(format string, args ...any) error {
	return newError(ErrNotFound, format, args...)
}

func InsufficientStock(format string, args ...any) error {
	return newError(ErrInsufficientStock, format, args...)
}

func InvalidState(format string, args ...any) error {
	return newError(ErrInvalidState, format, args...)
}

func InvalidInput(format string, args ...any) error {
	return newError(ErrInvalidInput, format, args...)
}

// Fault marks err as a storage fault unless it already has a kind.
func Fault(err error) error {
	if err == nil {
		return nil
	}
	var appErr *Error
	if errors.As(err, &appErr) {
		return err
	}
	return &Error{kind: ErrStorageFault, msg: "storage fault", cause: err}
}

// IsBusiness reports whether err is an expected business outcome rather
// than a fault.
func IsBusiness(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, ErrInsufficientStock) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidInput)
}
