package internal

import (
	"errors"
	"fmt"
)

// Error kinds raised by the synchronizer. Every error returned by this package
// wraps one of them, so callers can branch with errors.Is.
var (
	// ErrDecode is returned when the manifest is malformed or incomplete
	ErrDecode = &CytrusError{Code: "DECODE", Message: "manifest decode failed"}

	// ErrResolution is returned when a bundle chunk matches no file placement
	ErrResolution = &CytrusError{Code: "RESOLUTION", Message: "chunk resolves to no file placement"}

	// ErrTransport is returned on network failures, bad status codes and interrupted streams
	ErrTransport = &CytrusError{Code: "TRANSPORT", Message: "transfer failed"}

	// ErrIO is returned when a seek, read, write, flush or mkdir fails
	ErrIO = &CytrusError{Code: "IO", Message: "disk operation failed"}
)

// CytrusError is a coded error carrying an optional cause and details.
type CytrusError struct {
	Code    string
	Message string
	Cause   error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *CytrusError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if len(e.Details) > 0 {
		msg = fmt.Sprintf("%s (details: %v)", msg, e.Details)
	}
	if e.Cause != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *CytrusError) Unwrap() error {
	return e.Cause
}

// Is matches any CytrusError with the same code.
func (e *CytrusError) Is(target error) bool {
	t, ok := target.(*CytrusError)
	return ok && t.Code == e.Code
}

// WithCause returns a copy of the error wrapping cause.
func (e *CytrusError) WithCause(cause error) *CytrusError {
	return &CytrusError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   cause,
		Details: e.Details,
	}
}

// WithMessage returns a copy of the error with a new message.
func (e *CytrusError) WithMessage(format string, args ...interface{}) *CytrusError {
	return &CytrusError{
		Code:    e.Code,
		Message: fmt.Sprintf(format, args...),
		Cause:   e.Cause,
		Details: e.Details,
	}
}

// WithDetail returns a copy of the error with an extra key-value pair.
func (e *CytrusError) WithDetail(key string, value interface{}) *CytrusError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &CytrusError{
		Code:    e.Code,
		Message: e.Message,
		Cause:   e.Cause,
		Details: details,
	}
}

// ErrorKind extracts the code of the first CytrusError in the chain.
func ErrorKind(err error) string {
	var cerr *CytrusError
	if errors.As(err, &cerr) {
		return cerr.Code
	}
	return ""
}

func ioError(op, path string, err error) error {
	return ErrIO.WithMessage("could not %s %s", op, path).WithCause(err)
}
