package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/tansive/adminconsole/internal/common/apperrors"
)

// Error represents an HTTP error response with status code and description.
type Error struct {
	Description string
	StatusCode  int
}

type errorRsp struct {
	Detail string `json:"detail"`
}

// Send writes the error response. If the writer is nil, no action is taken.
func (e *Error) Send(w http.ResponseWriter) {
	if w == nil {
		return
	}
	rspJson, err := json.Marshal(&errorRsp{Detail: e.Description})
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("Unable to parse error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(e.StatusCode)
	w.Write(rspJson)
}

// Error returns the error description.
func (e *Error) Error() string {
	return e.Description
}

// SendError sends an application error as an HTTP error response.
// If the error is nil, no action is taken.
func SendError(w http.ResponseWriter, err apperrors.Error) {
	if err == nil {
		return
	}
	statusCode := err.StatusCode()
	if statusCode == 0 {
		statusCode = http.StatusInternalServerError
	}
	httperror := &Error{
		StatusCode:  statusCode,
		Description: err.ErrorAll(),
	}
	httperror.Send(w)
}

func newError(code int, def string, msg ...string) *Error {
	s := def
	if len(msg) > 0 {
		s = msg[0]
	}
	return &Error{Description: s, StatusCode: code}
}

// ErrReqMethodNotSupported returns an error for unsupported HTTP methods.
func ErrReqMethodNotSupported() *Error {
	return newError(http.StatusMethodNotAllowed, "request method not supported")
}

// ErrUnableToParseReqData returns an error when request data cannot be parsed.
func ErrUnableToParseReqData() *Error {
	return newError(http.StatusBadRequest, "unable to parse request data")
}

// ErrInvalidRequest returns an error for invalid request data.
func ErrInvalidRequest(msg ...string) *Error {
	return newError(http.StatusBadRequest, "invalid request data or empty request values", msg...)
}

// ErrApplicationError returns an error for application-level failures.
func ErrApplicationError(msg ...string) *Error {
	return newError(http.StatusInternalServerError, "unable to process request", msg...)
}

// ErrUnAuthorized returns an error for unauthenticated requests.
func ErrUnAuthorized(msg ...string) *Error {
	return newError(http.StatusUnauthorized, "Not authenticated", msg...)
}

// ErrForbidden returns an error for requests the caller may not perform.
func ErrForbidden(msg ...string) *Error {
	return newError(http.StatusForbidden, "Not authorized", msg...)
}

// ErrNotFound returns an error for missing resources.
func ErrNotFound(msg ...string) *Error {
	return newError(http.StatusNotFound, "not found", msg...)
}

// ErrRequestTimeout returns an error for request timeout.
func ErrRequestTimeout() *Error {
	return newError(http.StatusRequestTimeout, "request timed out")
}
