package authsrv

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testConfig = `
format_version = "0.1.0"
server_hostname = "localhost"
server_port = "8650"
handle_cors = true
cors_origins = ["http://localhost:5173"]

[auth]
signing_key = "0123456789abcdef0123456789abcdef"
token_validity = "30m"

[[groups]]
id = 1
name = "Ops"
roles = ["route:users", "ops"]

[[groups]]
id = 2
name = "Finance"
roles = ["finance"]

[[positions]]
id = 1
name = "Controller"
groups = ["Finance"]

[[users]]
id = 1
first_name = "Bob"
last_name = "Admin"
email = "bob@example.com"
password = "bob-password"
roles = ["admin"]

[[users]]
id = 7
first_name = "Grace"
last_name = "Hopper"
email = "grace@example.com"
password = "grace-password"
roles = ["viewer"]
groups = ["Ops"]
positions = ["Controller"]
countries = ["NL"]

[[users]]
id = 9
first_name = "Ivan"
email = "ivan@example.com"
password = "ivan-password"
status = "inactive"
`

// testClock is a settable clock.
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestServer(t *testing.T) (*Server, *testClock) {
	t.Helper()
	cfg, err := ParseConfig(testConfig)
	require.NoError(t, err)
	clock := &testClock{now: time.Now()}
	s, err := CreateNewServer(cfg, WithClock(clock.Now))
	require.NoError(t, err)
	s.MountHandlers()
	return s, clock
}

func executeTestRequest(t *testing.T, s *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	s.Router.ServeHTTP(rr, req)
	return rr
}

func postForm(t *testing.T, s *Server, path string, form url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return executeTestRequest(t, s, req)
}

func withToken(t *testing.T, s *Server, method, path, token string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return executeTestRequest(t, s, req)
}

func login(t *testing.T, s *Server, email, password string) string {
	t.Helper()
	rr := postForm(t, s, "/auth/login", url.Values{"username": {email}, "password": {password}})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	var rsp loginRsp
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &rsp))
	return rsp.AccessToken
}

func detail(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Detail string `json:"detail"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return body.Detail
}
