package session

import "context"

// Grant is a token issued by the backend together with whatever identity
// information accompanied it. Identity may be partial; the manager always
// resolves the authoritative identity through WhoAmI before committing.
type Grant struct {
	Token  string
	UserID int64
	// Identity is the identity the token acts as, if the response carried it.
	Identity *UserIdentity
	// ImpersonatedBy is set on impersonation grants.
	ImpersonatedBy *UserIdentity
}

// Backend is the remote authentication service. Implementations must return
// errors from this package's taxonomy: ErrInvalidCredentials, ErrForbidden,
// ErrNotFound, ErrSessionExpired or ErrNetworkFailure. Any other error is
// treated as a network failure.
type Backend interface {
	// Login exchanges credentials for a token.
	Login(ctx context.Context, email, password string) (*Grant, error)
	// Impersonate issues a token acting as targetUserID. token must belong to
	// a user allowed to impersonate.
	Impersonate(ctx context.Context, token string, targetUserID int64) (*Grant, error)
	// StopImpersonation exchanges an impersonation token for a fresh token of
	// the operator that started it.
	StopImpersonation(ctx context.Context, token string) (*Grant, error)
	// WhoAmI resolves the identity behind token with merged effective roles.
	WhoAmI(ctx context.Context, token string) (*UserIdentity, error)
}

// Revoker is implemented by backends that can invalidate a token before it
// expires. When the backend is a Revoker, tokens the manager drops on
// LogoutAndRevoke or StopImpersonation are revoked on a best-effort basis.
type Revoker interface {
	Revoke(ctx context.Context, token string) error
}
