// Package apperrors provides chained error values that carry an HTTP-style status
// code and a human readable message suitable for showing to an operator. Errors
// are declared once as package level catalogs and derived with New/Msg/Err so
// that callers can branch on them with errors.Is.
package apperrors

// Error extends the standard error interface with status codes, user facing
// messages and error chaining. All derivation methods return a new Error and
// never mutate the receiver.
type Error interface {
	error
	Unwrap() error // support for errors.Is / errors.As

	New(msg string) Error                  // derives a new error using current as template
	Msg(msg string) Error                  // derives an error with a new message that wraps the current one
	MsgErr(msg string, err ...error) Error // like Msg, additionally wrapping errs
	Err(err ...error) Error                // keeps the message and wraps errs
	SetStatusCode(int) Error               // sets the status code
	StatusCode() int                       // returns the status code
	SetUserMessage(string) Error           // sets the message shown to an operator
	UserMessage() string                   // returns the operator facing message
	SetExpandError(bool) Error             // controls whether ErrorAll expands wrapped errors
	ErrorAll() string                      // full message including wrapped errors
	UnwrapAll() []error                    // all wrapped errors
}
