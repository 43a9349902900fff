package authclient

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenInfo is what the client can read from a bearer token without
// verifying it. It is informational only; the backend remains the authority.
type TokenInfo struct {
	Subject        string
	ExpiresAt      time.Time
	Impersonated   bool
	ImpersonatedBy int64
}

// InspectToken decodes the claims of a JWT without checking its signature.
// ok is false when token is not a JWT.
func InspectToken(token string) (info TokenInfo, ok bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return TokenInfo{}, false
	}
	info.Subject, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if v, ok := claims["impersonated"].(bool); ok {
		info.Impersonated = v
	}
	if v, ok := claims["impersonated_by"].(float64); ok {
		info.ImpersonatedBy = int64(v)
	}
	return info, true
}
