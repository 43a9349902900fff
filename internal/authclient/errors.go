package authclient

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tansive/adminconsole/internal/common/httpclient"
	"github.com/tansive/adminconsole/internal/session"
)

type operation string

const (
	opLogin       operation = "login"
	opImpersonate operation = "impersonate"
	opStop        operation = "stop impersonation"
	opWhoAmI      operation = "resolve identity"
	opRevoke      operation = "revoke token"
	opRequest     operation = "request"
)

// mapError converts a transport or HTTP error into the session taxonomy.
// The backend's detail message is carried as the error message.
func mapError(op operation, err error) error {
	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) {
		return session.ErrNetworkFailure.MsgErr(fmt.Sprintf("%s: backend unreachable", op), err)
	}
	msg := httpErr.Error()
	code := httpErr.StatusCode

	switch op {
	case opLogin:
		// a refused login is a credential failure, whatever the reason the
		// server gives (an inactive account answers 403)
		switch code {
		case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden, http.StatusUnprocessableEntity:
			return session.ErrInvalidCredentials.Msg(msg)
		}
	case opImpersonate:
		switch code {
		case http.StatusUnauthorized:
			return session.ErrSessionExpired.Msg(msg)
		case http.StatusForbidden:
			return session.ErrForbidden.Msg(msg)
		case http.StatusNotFound:
			return session.ErrNotFound.Msg(msg)
		case http.StatusBadRequest, http.StatusUnprocessableEntity:
			return session.ErrInvalidInput.Msg(msg)
		}
	case opStop:
		switch code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return session.ErrSessionExpired.Msg(msg)
		case http.StatusBadRequest:
			return session.ErrNotImpersonating.Msg(msg)
		}
	default:
		switch code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return session.ErrSessionExpired.Msg(msg)
		}
	}
	return session.ErrNetworkFailure.MsgErr(fmt.Sprintf("%s: server returned %d", op, code), err)
}
