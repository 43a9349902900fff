package session

import (
	"context"
	"errors"
	"net/http"

	"github.com/tansive/adminconsole/internal/common/apperrors"
)

// Base session error
var (
	ErrSession apperrors.Error = apperrors.New("session error").SetStatusCode(http.StatusInternalServerError).SetUserMessage("Something went wrong. Please try again.")
)

// Authentication and authorization errors
var (
	ErrInvalidCredentials apperrors.Error = ErrSession.New("invalid credentials").SetStatusCode(http.StatusUnauthorized).SetUserMessage("The email or password is incorrect.")
	ErrForbidden          apperrors.Error = ErrSession.New("forbidden").SetStatusCode(http.StatusForbidden).SetUserMessage("You do not have permission to perform this action.")
	ErrNotFound           apperrors.Error = ErrForbidden.New("not found").SetStatusCode(http.StatusNotFound).SetUserMessage("The requested user could not be found.")
	ErrSessionExpired     apperrors.Error = ErrSession.New("session expired").SetStatusCode(http.StatusUnauthorized).SetUserMessage("Your session has expired. Please sign in again.")
	ErrNotAuthenticated   apperrors.Error = ErrSession.New("not authenticated").SetStatusCode(http.StatusUnauthorized).SetUserMessage("You are not signed in.")
)

// Transport errors
var (
	ErrNetworkFailure apperrors.Error = ErrSession.New("network failure").SetExpandError(true).SetStatusCode(http.StatusServiceUnavailable).SetUserMessage("The server could not be reached. Check your connection and try again.")
)

// State errors
var (
	ErrMutationInFlight     apperrors.Error = ErrSession.New("another sign-in operation is in progress").SetStatusCode(http.StatusConflict).SetUserMessage("Another sign-in operation is already in progress. Please wait.")
	ErrSessionChanged       apperrors.Error = ErrSession.New("session changed while the request was in flight").SetStatusCode(http.StatusConflict).SetUserMessage("Your session changed while the request was running. Please try again.")
	ErrNotImpersonating     apperrors.Error = ErrSession.New("not currently impersonating").SetStatusCode(http.StatusBadRequest).SetUserMessage("You are not impersonating anyone.")
	ErrAlreadyImpersonating apperrors.Error = ErrSession.New("already impersonating").SetStatusCode(http.StatusBadRequest).SetUserMessage("Stop the current impersonation before starting another one.")
	ErrInvalidInput         apperrors.Error = ErrSession.New("invalid input").SetStatusCode(http.StatusBadRequest).SetUserMessage("Please check the values you entered.")
	ErrStorage              apperrors.Error = ErrSession.New("unable to persist session").SetExpandError(true).SetStatusCode(http.StatusInternalServerError).SetUserMessage("Your session could not be saved on this device.")
)

// UserMessage returns a human readable message for err suitable for showing
// to an operator. It never exposes raw transport errors.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr apperrors.Error
	if errors.As(err, &appErr) && errors.Is(err, ErrSession) {
		return appErr.UserMessage()
	}
	return ErrSession.UserMessage()
}

// classify converts errors that escaped the Backend boundary into the session
// taxonomy. Errors already in the taxonomy are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSession) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrNetworkFailure.MsgErr("request timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return ErrNetworkFailure.MsgErr("request cancelled", err)
	}
	return ErrNetworkFailure.Err(err)
}
