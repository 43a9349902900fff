// Package httpx provides HTTP request/response handling utilities for the
// reference auth service: JSON and form request parsing, standardized JSON
// responses, and error responses shaped as {"detail": "..."}.
package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tansive/adminconsole/internal/common/apperrors"
)

// GetRequestData parses a JSON request body into data.
// Only supports POST and PUT methods.
func GetRequestData(r *http.Request, data any) error {
	if r.Method != http.MethodPost && r.Method != http.MethodPut {
		return ErrReqMethodNotSupported()
	}
	if r.Body == nil {
		log.Ctx(r.Context()).Error().Msg("empty request body")
		return ErrUnableToParseReqData()
	}
	if err := json.NewDecoder(r.Body).Decode(data); err != nil {
		return ErrUnableToParseReqData()
	}
	return nil
}

// GetFormValues parses an application/x-www-form-urlencoded body and returns
// the values for the given keys. Every key is required.
func GetFormValues(r *http.Request, keys ...string) (map[string]string, error) {
	if r.Method != http.MethodPost {
		return nil, ErrReqMethodNotSupported()
	}
	if err := r.ParseForm(); err != nil {
		return nil, ErrUnableToParseReqData()
	}
	values := make(map[string]string, len(keys))
	for _, k := range keys {
		v := r.PostForm.Get(k)
		if v == "" {
			return nil, ErrInvalidRequest("field required: " + k)
		}
		values[k] = v
	}
	return values, nil
}

// Response represents an HTTP response with a status code and a JSON body.
type Response struct {
	StatusCode int
	Response   any
}

// RequestHandler defines a function type for handling HTTP requests.
type RequestHandler func(r *http.Request) (*Response, error)

// WrapHttpRsp adapts a RequestHandler to an http.HandlerFunc, converting
// returned errors into error responses.
func WrapHttpRsp(handler RequestHandler) http.HandlerFunc {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rsp, err := handler(r)
		if err != nil {
			if httperror, ok := err.(*Error); ok {
				httperror.Send(w)
			} else if appErr, ok := err.(apperrors.Error); ok {
				SendError(w, appErr)
			} else {
				ErrApplicationError(err.Error()).Send(w)
			}
			return
		}
		if rsp == nil {
			ErrApplicationError().Send(w)
			return
		}
		SendJsonRsp(r.Context(), w, rsp.StatusCode, rsp.Response)
	})
}
