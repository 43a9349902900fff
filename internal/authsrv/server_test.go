package authsrv

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin(t *testing.T) {
	s, _ := newTestServer(t)

	tests := []struct {
		name       string
		form       url.Values
		wantStatus int
		wantDetail string
	}{
		{name: "valid", form: url.Values{"username": {"grace@example.com"}, "password": {"grace-password"}}, wantStatus: http.StatusOK},
		{name: "email is case insensitive", form: url.Values{"username": {"Grace@Example.com"}, "password": {"grace-password"}}, wantStatus: http.StatusOK},
		{name: "wrong password", form: url.Values{"username": {"grace@example.com"}, "password": {"nope"}}, wantStatus: http.StatusBadRequest, wantDetail: "Invalid credentials"},
		{name: "unknown user", form: url.Values{"username": {"eve@example.com"}, "password": {"x"}}, wantStatus: http.StatusBadRequest, wantDetail: "Invalid credentials"},
		{name: "missing password", form: url.Values{"username": {"grace@example.com"}}, wantStatus: http.StatusBadRequest, wantDetail: "field required: password"},
		{name: "inactive user", form: url.Values{"username": {"ivan@example.com"}, "password": {"ivan-password"}}, wantStatus: http.StatusForbidden, wantDetail: "Inactive user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := postForm(t, s, "/auth/login", tt.form)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, detail(t, rr))
				return
			}
			var rsp loginRsp
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rsp))
			assert.NotEmpty(t, rsp.AccessToken)
			assert.Equal(t, "bearer", rsp.TokenType)
			assert.Equal(t, int64(7), rsp.UserID)
			assert.Equal(t, []string{"viewer"}, rsp.Roles)
			assert.NotEmpty(t, rsp.LastLoginDateTime)
			assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))
		})
	}
}

func TestMe(t *testing.T) {
	s, _ := newTestServer(t)
	token := login(t, s, "grace@example.com", "grace-password")

	rr := withToken(t, s, http.MethodGet, "/users/me", token)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var rsp meRsp
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rsp))
	assert.Equal(t, int64(7), rsp.ID)
	assert.Equal(t, "active", rsp.Status)
	assert.Equal(t, []string{"viewer"}, rsp.Roles)
	require.Len(t, rsp.Groups, 1)
	assert.Equal(t, []string{"route:users", "ops"}, rsp.Groups[0].Roles)
	require.Len(t, rsp.UserPositions, 1)
	assert.Equal(t, "Finance", rsp.UserPositions[0].Groups[0].Name)
	assert.False(t, rsp.Impersonated)

	for _, tok := range []string{"", "garbage", token + "x"} {
		rr := withToken(t, s, http.MethodGet, "/users/me", tok)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		assert.Equal(t, "Bearer", rr.Header().Get("WWW-Authenticate"))
	}
}

func TestImpersonate(t *testing.T) {
	s, _ := newTestServer(t)
	admin := login(t, s, "bob@example.com", "bob-password")
	grace := login(t, s, "grace@example.com", "grace-password")

	tests := []struct {
		name       string
		token      string
		path       string
		wantStatus int
		wantDetail string
	}{
		{name: "no token", path: "/auth/impersonate/7", wantStatus: http.StatusUnauthorized},
		{name: "not an admin", token: grace, path: "/auth/impersonate/1", wantStatus: http.StatusForbidden, wantDetail: "Not authorized"},
		{name: "unknown target", token: admin, path: "/auth/impersonate/999", wantStatus: http.StatusNotFound, wantDetail: "Target user not found"},
		{name: "self", token: admin, path: "/auth/impersonate/1", wantStatus: http.StatusBadRequest, wantDetail: "You are already this user"},
		{name: "bad id", token: admin, path: "/auth/impersonate/abc", wantStatus: http.StatusBadRequest, wantDetail: "Invalid user id"},
		{name: "valid", token: admin, path: "/auth/impersonate/7", wantStatus: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := withToken(t, s, http.MethodPost, tt.path, tt.token)
			require.Equal(t, tt.wantStatus, rr.Code, rr.Body.String())
			if tt.wantDetail != "" {
				assert.Equal(t, tt.wantDetail, detail(t, rr))
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			var rsp impersonateRsp
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rsp))
			assert.True(t, rsp.Impersonated)
			assert.Equal(t, int64(1), rsp.ImpersonatedBy.ID)
			assert.Equal(t, int64(7), rsp.ActingAs.ID)
			assert.Equal(t, []string{"viewer"}, rsp.ActingAs.Roles)

			claims := &Claims{}
			_, _, err := jwt.NewParser().ParseUnverified(rsp.AccessToken, claims)
			require.NoError(t, err)
			assert.Equal(t, "7", claims.Subject)
			assert.True(t, claims.Impersonated)
			assert.Equal(t, int64(1), claims.ImpersonatedBy)

			me := withToken(t, s, http.MethodGet, "/users/me", rsp.AccessToken)
			require.Equal(t, http.StatusOK, me.Code)
			var meBody meRsp
			require.NoError(t, json.Unmarshal(me.Body.Bytes(), &meBody))
			assert.Equal(t, int64(7), meBody.ID)
			require.NotNil(t, meBody.ImpersonatedBy)
			assert.Equal(t, int64(1), meBody.ImpersonatedBy.ID)

			nested := withToken(t, s, http.MethodPost, "/auth/impersonate/1", rsp.AccessToken)
			assert.Equal(t, http.StatusBadRequest, nested.Code)
		})
	}
}

func TestStopImpersonation(t *testing.T) {
	s, _ := newTestServer(t)
	admin := login(t, s, "bob@example.com", "bob-password")

	rr := withToken(t, s, http.MethodPost, "/auth/impersonation/stop", admin)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "Not currently impersonating", detail(t, rr))

	rr = withToken(t, s, http.MethodPost, "/auth/impersonate/7", admin)
	require.Equal(t, http.StatusOK, rr.Code)
	var imp impersonateRsp
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &imp))

	rr = withToken(t, s, http.MethodPost, "/auth/impersonation/stop", imp.AccessToken)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var stop stopImpersonationRsp
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &stop))
	assert.Equal(t, int64(1), stop.UserID)
	assert.False(t, stop.Impersonated)

	me := withToken(t, s, http.MethodGet, "/users/me", stop.AccessToken)
	require.Equal(t, http.StatusOK, me.Code)

	// the impersonation token cannot be used again
	rr = withToken(t, s, http.MethodGet, "/users/me", imp.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestRevoke(t *testing.T) {
	s, _ := newTestServer(t)
	token := login(t, s, "grace@example.com", "grace-password")
	other := login(t, s, "grace@example.com", "grace-password")

	rr := withToken(t, s, http.MethodPost, "/auth/revoke", token)
	require.Equal(t, http.StatusOK, rr.Code)

	assert.Equal(t, http.StatusUnauthorized, withToken(t, s, http.MethodGet, "/users/me", token).Code)
	assert.Equal(t, http.StatusOK, withToken(t, s, http.MethodGet, "/users/me", other).Code)
}

func TestTokenExpiry(t *testing.T) {
	s, clock := newTestServer(t)
	token := login(t, s, "grace@example.com", "grace-password")
	require.Equal(t, http.StatusOK, withToken(t, s, http.MethodGet, "/users/me", token).Code)

	clock.Advance(31 * time.Minute)
	rr := withToken(t, s, http.MethodGet, "/users/me", token)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, "Could not validate credentials", detail(t, rr))
}

func TestTokenValidation(t *testing.T) {
	svc := NewTokenService([]byte("0123456789abcdef0123456789abcdef"), time.Minute, nil)
	token, claims, err := svc.Issue(context.Background(), 7, 0)
	require.NoError(t, err)
	assert.NotEmpty(t, claims.ID)

	got, err := svc.Validate(token)
	require.NoError(t, err)
	id, err := got.UserID()
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)

	other := NewTokenService([]byte("fedcba9876543210fedcba9876543210"), time.Minute, nil)
	_, err = other.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.Validate(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	svc.Revoke(claims)
	assert.True(t, svc.IsRevoked(claims.ID))
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestCORSAndReadiness(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/auth/login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rr := executeTestRequest(t, s, req)
	assert.Equal(t, "http://localhost:5173", rr.Header().Get("Access-Control-Allow-Origin"))

	rr = withToken(t, s, http.MethodGet, "/ready", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ready"}`, rr.Body.String())
}
