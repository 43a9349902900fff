package authsrv

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/tansive/adminconsole/internal/common/uuid"
)

// Claims are the claims of an access token. Subject is the effective user id.
type Claims struct {
	Impersonated   bool  `json:"impersonated,omitempty"`
	ImpersonatedBy int64 `json:"impersonated_by,omitempty"`
	jwt.RegisteredClaims
}

// UserID returns the subject as a user id.
func (c *Claims) UserID() (int64, error) {
	return strconv.ParseInt(c.Subject, 10, 64)
}

// TokenService issues and validates HS256 access tokens and keeps a
// revocation list keyed by token id.
type TokenService struct {
	key      []byte
	validity time.Duration
	now      func() time.Time

	mu      sync.Mutex
	revoked map[string]time.Time // jti -> expiry
}

// NewTokenService returns a TokenService signing with key.
func NewTokenService(key []byte, validity time.Duration, now func() time.Time) *TokenService {
	if now == nil {
		now = time.Now
	}
	return &TokenService{
		key:      key,
		validity: validity,
		now:      now,
		revoked:  make(map[string]time.Time),
	}
}

// Issue creates a token for userID. A non-zero impersonatedBy marks the
// token as an impersonation token started by that operator.
func (s *TokenService) Issue(ctx context.Context, userID, impersonatedBy int64) (string, *Claims, error) {
	now := s.now()
	claims := &Claims{
		Impersonated:   impersonatedBy != 0,
		ImpersonatedBy: impersonatedBy,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.validity)),
			ID:        uuid.New().String(),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.key)
	if err != nil {
		log.Ctx(ctx).Error().Err(err).Msg("unable to sign token")
		return "", nil, ErrTokenGeneration.MsgErr("unable to sign token", err)
	}
	return token, claims, nil
}

// Validate parses token, checks its signature, expiry and revocation status.
func (s *TokenService) Validate(token string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return s.key, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, ErrInvalidToken.Err(err)
	}
	if _, err := claims.UserID(); err != nil {
		return nil, ErrInvalidToken.Err(err)
	}
	if s.IsRevoked(claims.ID) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Revoke invalidates the token with the given claims until it would have
// expired anyway.
func (s *TokenService) Revoke(claims *Claims) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for jti, exp := range s.revoked {
		if exp.Before(now) {
			delete(s.revoked, jti)
		}
	}
	exp := now.Add(s.validity)
	if claims.ExpiresAt != nil {
		exp = claims.ExpiresAt.Time
	}
	s.revoked[claims.ID] = exp
}

// IsRevoked reports whether jti has been revoked.
func (s *TokenService) IsRevoked(jti string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.revoked[jti]
	return ok
}
