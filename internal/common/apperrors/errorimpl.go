package apperrors

import (
	"errors"
	"strings"
)

// appError is the concrete Error implementation.
type appError struct {
	msg           string
	userMsg       string
	base          error
	wrappedErrors []error
	statuscode    int
	expandError   bool
}

// Error returns the error message.
func (e *appError) Error() string {
	return e.msg
}

// ErrorAll returns the message followed by every wrapped error when expansion
// is enabled, otherwise the same as Error.
func (e *appError) ErrorAll() string {
	if !e.expandError {
		return e.Error()
	}
	var b strings.Builder
	b.WriteString(e.Error())
	for _, err := range e.wrappedErrors {
		if err == e.base {
			continue
		}
		b.WriteString("; ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// Unwrap returns the template error this one was derived from.
func (e *appError) Unwrap() error {
	return e.base
}

// UnwrapAll returns all wrapped errors in the order they were added.
func (e *appError) UnwrapAll() []error {
	return e.wrappedErrors
}

func (e *appError) derive(msg string, errs []error) *appError {
	var wrapped []error
	if len(errs) > 0 {
		wrapped = append([]error{e}, errs...)
	}
	return &appError{
		msg:           msg,
		userMsg:       e.userMsg,
		base:          e,
		wrappedErrors: wrapped,
		statuscode:    e.statuscode,
		expandError:   e.expandError,
	}
}

// New derives a fresh error with a new message. Status code and user message
// are inherited.
func (e *appError) New(msg string) Error {
	return e.derive(msg, nil)
}

// Msg derives an error with a new message that wraps the current one.
func (e *appError) Msg(msg string) Error {
	return e.derive(msg, []error{})
}

// MsgErr derives an error with a new message and attaches errs.
func (e *appError) MsgErr(msg string, errs ...error) Error {
	return e.derive(msg, errs)
}

// Err keeps the current message and attaches errs.
func (e *appError) Err(errs ...error) Error {
	return e.derive(e.msg, errs)
}

// SetStatusCode returns a shallow copy with an updated status code.
func (e *appError) SetStatusCode(code int) Error {
	cp := *e
	cp.statuscode = code
	return &cp
}

// StatusCode returns the status code.
func (e *appError) StatusCode() int {
	return e.statuscode
}

// SetUserMessage returns a shallow copy with an updated operator facing message.
func (e *appError) SetUserMessage(msg string) Error {
	cp := *e
	cp.userMsg = msg
	return &cp
}

// UserMessage returns the operator facing message, falling back to the error
// message when none was set.
func (e *appError) UserMessage() string {
	if e.userMsg != "" {
		return e.userMsg
	}
	return e.msg
}

// SetExpandError returns a shallow copy with an updated expansion flag.
func (e *appError) SetExpandError(flag bool) Error {
	cp := *e
	cp.expandError = flag
	return &cp
}

// New creates a root-level error with the given message.
func New(msg string) Error {
	return &appError{
		msg: msg,
	}
}

// Is reports whether target matches the template chain or any wrapped error.
func (e *appError) Is(target error) bool {
	if target == nil {
		return false
	}
	if t, ok := target.(*appError); ok && t == e {
		return true
	}
	if e.base != nil && errors.Is(e.base, target) {
		return true
	}
	for _, err := range e.wrappedErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// StatusCodeOf returns the status code of the first Error in err's chain, or
// zero when there is none.
func StatusCodeOf(err error) int {
	var appErr Error
	if errors.As(err, &appErr) {
		return appErr.StatusCode()
	}
	return 0
}
