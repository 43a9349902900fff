package authsrv

import (
	"net/http"

	"github.com/tansive/adminconsole/internal/common/apperrors"
)

// Base auth service error
var (
	ErrAuthSrv apperrors.Error = apperrors.New("auth service error").SetStatusCode(http.StatusInternalServerError)
)

// Authentication errors
var (
	ErrInvalidCredentials apperrors.Error = ErrAuthSrv.New("Invalid credentials").SetStatusCode(http.StatusBadRequest)
	ErrInvalidToken       apperrors.Error = ErrAuthSrv.New("Could not validate credentials").SetStatusCode(http.StatusUnauthorized)
	ErrInactiveUser       apperrors.Error = ErrAuthSrv.New("Inactive user").SetStatusCode(http.StatusForbidden)
	ErrNotAuthorized      apperrors.Error = ErrAuthSrv.New("Not authorized").SetStatusCode(http.StatusForbidden)
)

// Impersonation errors
var (
	ErrTargetNotFound       apperrors.Error = ErrAuthSrv.New("Target user not found").SetStatusCode(http.StatusNotFound)
	ErrAlreadyThisUser      apperrors.Error = ErrAuthSrv.New("You are already this user").SetStatusCode(http.StatusBadRequest)
	ErrAlreadyImpersonating apperrors.Error = ErrAuthSrv.New("Stop the current impersonation first").SetStatusCode(http.StatusBadRequest)
	ErrNotImpersonating     apperrors.Error = ErrAuthSrv.New("Not currently impersonating").SetStatusCode(http.StatusBadRequest)
	ErrInvalidUserID        apperrors.Error = ErrAuthSrv.New("Invalid user id").SetStatusCode(http.StatusBadRequest)
)

// Token errors
var (
	ErrTokenGeneration apperrors.Error = ErrAuthSrv.New("failed to generate token").SetStatusCode(http.StatusInternalServerError)
	ErrUserNotFound    apperrors.Error = ErrAuthSrv.New("User not found").SetStatusCode(http.StatusNotFound)
)
