package authclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tansive/adminconsole/internal/authsrv"
	"github.com/tansive/adminconsole/internal/common/httpclient"
	"github.com/tansive/adminconsole/internal/session"
)

const serverConfig = `
format_version = "0.1.0"
server_port = "8650"

[auth]
signing_key = "0123456789abcdef0123456789abcdef"
token_validity = "30m"

[[groups]]
id = 1
name = "Ops"
roles = ["ops"]

[[users]]
id = 3
first_name = "Bob"
last_name = "Operator"
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

[[users]]
id = 42
first_name = "Alice"
email = "alice@example.com"
password = "correct-password"
roles = ["viewer"]

[[users]]
id = 9
first_name = "Ivan"
email = "ivan@example.com"
password = "ivan-password"
status = "inactive"
`

type clientConfig struct {
	serverURL string
	timeout   time.Duration
}

func (c *clientConfig) GetServerURL() string      { return c.serverURL }
func (c *clientConfig) GetToken() string          { return "" }
func (c *clientConfig) GetTimeout() time.Duration { return c.timeout }

type testEnv struct {
	srv     *authsrv.Server
	http    *httptest.Server
	client  *Client
	api     *API
	manager *session.Manager
	store   *session.MemoryStore
}

func newTestServer(t *testing.T) *authsrv.Server {
	t.Helper()
	cfg, err := authsrv.ParseConfig(serverConfig)
	require.NoError(t, err)
	srv, err := authsrv.CreateNewServer(cfg)
	require.NoError(t, err)
	srv.MountHandlers()
	return srv
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router)
	t.Cleanup(ts.Close)

	hc := httpclient.NewClient(&clientConfig{serverURL: ts.URL})
	client := New(hc)
	store := session.NewMemoryStore()
	m := session.New(client, store)
	return &testEnv{
		srv:     srv,
		http:    ts,
		client:  client,
		api:     NewAPI(hc, m),
		manager: m,
		store:   store,
	}
}

func TestLoginAgainstServer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s, err := env.manager.Login(ctx, "alice@example.com", "correct-password")
	require.NoError(t, err)
	assert.True(t, env.manager.IsAuthenticated())
	assert.Equal(t, int64(42), env.manager.CurrentIdentity().ID)

	rec, err := env.store.Load()
	require.NoError(t, err)
	assert.Equal(t, s.Token, rec.Token)
	assert.Equal(t, int64(42), rec.UserID)

	info, ok := InspectToken(s.Token)
	require.True(t, ok)
	assert.Equal(t, "42", info.Subject)
	assert.False(t, info.Impersonated)
	assert.True(t, info.ExpiresAt.After(time.Now()))

	_, err = env.manager.Login(ctx, "alice@example.com", "wrong")
	require.ErrorIs(t, err, session.ErrInvalidCredentials)
	assert.Equal(t, "Invalid credentials", err.Error())
	assert.Equal(t, s.Token, env.manager.Token())
}

func TestMergedRolesFromServer(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.manager.Login(context.Background(), "grace@example.com", "grace-password")
	require.NoError(t, err)

	assert.Equal(t, []string{"ops", "viewer"}, env.manager.CurrentIdentity().Roles)
	assert.True(t, env.manager.HasRole("ops"))
	assert.False(t, env.manager.HasRole("admin"))
}

func TestImpersonationAgainstServer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.manager

	bob, err := m.Login(ctx, "bob@example.com", "bob-password")
	require.NoError(t, err)

	_, err = m.StartImpersonation(ctx, 999)
	require.ErrorIs(t, err, session.ErrNotFound)
	assert.Equal(t, "Target user not found", err.Error())

	imp, err := m.StartImpersonation(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), m.CurrentIdentity().ID)
	assert.Equal(t, bob.Identity.ID, m.ImpersonationMeta().ImpersonatedBy.ID)
	info, ok := InspectToken(imp.Token)
	require.True(t, ok)
	assert.True(t, info.Impersonated)
	assert.Equal(t, int64(3), info.ImpersonatedBy)

	after, err := m.StopImpersonation(ctx)
	require.NoError(t, err)
	assert.Equal(t, bob.Token, after.Token)
	assert.Equal(t, bob.Identity, after.Identity)
	assert.False(t, m.IsImpersonating())

	// the dropped impersonation token no longer works
	_, err = env.srv.Tokens().Validate(imp.Token)
	assert.Error(t, err)
	_, err = env.client.WhoAmI(ctx, imp.Token)
	assert.ErrorIs(t, err, session.ErrSessionExpired)
	_, err = env.srv.Tokens().Validate(bob.Token)
	assert.NoError(t, err)
}

func TestLogoutAndRevokeAgainstServer(t *testing.T) {
	tests := []struct {
		name        string
		impersonate bool
	}{
		{name: "logged in"},
		{name: "impersonating", impersonate: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			ctx := context.Background()
			m := env.manager

			var events []session.Event
			m.Subscribe(func(ev session.Event) { events = append(events, ev) })

			bob, err := m.Login(ctx, "bob@example.com", "bob-password")
			require.NoError(t, err)
			tokens := []string{bob.Token}
			if tt.impersonate {
				imp, err := m.StartImpersonation(ctx, 7)
				require.NoError(t, err)
				tokens = append(tokens, imp.Token)
			}

			m.LogoutAndRevoke(ctx)
			assert.Equal(t, session.LoggedOut, m.State())
			for _, tok := range tokens {
				_, err := env.srv.Tokens().Validate(tok)
				assert.Error(t, err)
			}
			last := events[len(events)-1]
			assert.Equal(t, session.ReasonLogout, last.Reason)
			assert.NoError(t, last.Err)
		})
	}
}

func TestRevoke(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s, err := env.manager.Login(ctx, "alice@example.com", "correct-password")
	require.NoError(t, err)

	require.NoError(t, env.client.Revoke(ctx, s.Token))
	err = env.client.Revoke(ctx, s.Token)
	require.ErrorIs(t, err, session.ErrSessionExpired)

	// the client reports the rejection; only the manager decides to expire
	assert.True(t, env.manager.IsAuthenticated())
}

func TestClientWithoutListener(t *testing.T) {
	srv := newTestServer(t)
	hc := httpclient.NewTestClient(&clientConfig{serverURL: "http://authsrv.test"}, srv.Router)
	m := session.New(New(hc), nil)
	ctx := context.Background()

	tests := []struct {
		name     string
		email    string
		password string
		wantErr  error
		wantMsg  string
	}{
		{name: "active user", email: "grace@example.com", password: "grace-password"},
		{name: "wrong password", email: "grace@example.com", password: "nope", wantErr: session.ErrInvalidCredentials},
		{name: "inactive user", email: "ivan@example.com", password: "ivan-password", wantErr: session.ErrInvalidCredentials, wantMsg: "Inactive user"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m.Logout()
			_, err := m.Login(ctx, tt.email, tt.password)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.NotErrorIs(t, err, session.ErrForbidden)
				if tt.wantMsg != "" {
					assert.Equal(t, tt.wantMsg, err.Error())
				}
				assert.False(t, m.IsAuthenticated())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, []string{"ops", "viewer"}, m.CurrentIdentity().Roles)
		})
	}

	// body-less POSTs reach handlers with a readable body
	_, err := m.Login(ctx, "bob@example.com", "bob-password")
	require.NoError(t, err)
	_, err = m.StartImpersonation(ctx, 42)
	require.NoError(t, err)
	_, err = m.StopImpersonation(ctx)
	require.NoError(t, err)
	m.LogoutAndRevoke(ctx)
	assert.Equal(t, session.LoggedOut, m.State())
}

func TestStopImpersonationFallsBackToServer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.manager

	bob, err := m.Login(ctx, "bob@example.com", "bob-password")
	require.NoError(t, err)
	_, err = m.StartImpersonation(ctx, 7)
	require.NoError(t, err)

	// revoke the retained operator token behind the manager's back
	_, err = httpclient.NewClient(&clientConfig{serverURL: env.http.URL}).DoRequest(ctx, httpclient.RequestOptions{
		Method: http.MethodPost,
		Path:   "/auth/revoke",
		Token:  bob.Token,
	})
	require.NoError(t, err)

	after, err := m.StopImpersonation(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, bob.Token, after.Token)
	assert.Equal(t, int64(3), after.Identity.ID)
	assert.Equal(t, session.LoggedIn, m.State())
}

func TestNonAdminCannotImpersonate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.manager.Login(ctx, "grace@example.com", "grace-password")
	require.NoError(t, err)

	_, err = env.manager.StartImpersonation(ctx, 42)
	require.ErrorIs(t, err, session.ErrForbidden)
	assert.Equal(t, session.LoggedIn, env.manager.State())
}

func TestAPIForcedLogout(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.manager

	var events []session.Event
	m.Subscribe(func(ev session.Event) { events = append(events, ev) })

	_, err := env.api.Do(ctx, httpclient.RequestOptions{Method: http.MethodGet, Path: "/users/me"})
	require.ErrorIs(t, err, session.ErrNotAuthenticated)

	_, err = m.Login(ctx, "alice@example.com", "correct-password")
	require.NoError(t, err)

	body, err := env.api.Do(ctx, httpclient.RequestOptions{Method: http.MethodGet, Path: "/users/me"})
	require.NoError(t, err)
	assert.Contains(t, string(body), `"id":42`)

	_, err = env.api.Do(ctx, httpclient.RequestOptions{Method: http.MethodPost, Path: "/auth/revoke"})
	require.NoError(t, err)

	_, err = env.api.Do(ctx, httpclient.RequestOptions{Method: http.MethodGet, Path: "/users/me"})
	require.ErrorIs(t, err, session.ErrSessionExpired)
	assert.Equal(t, session.LoggedOut, m.State())
	rec, _ := env.store.Load()
	assert.True(t, rec.IsZero())

	last := events[len(events)-1]
	assert.Equal(t, session.ReasonExpired, last.Reason)
	assert.Equal(t, "Your session has expired. Please sign in again.", session.UserMessage(last.Err))
}

func TestAPIOtherErrorsPassThrough(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	_, err := env.manager.Login(ctx, "alice@example.com", "correct-password")
	require.NoError(t, err)

	_, err = env.api.Do(ctx, httpclient.RequestOptions{Method: http.MethodGet, Path: "/no/such/path"})
	var httpErr *httpclient.HTTPError
	require.ErrorAs(t, err, &httpErr)
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)
	assert.True(t, env.manager.IsAuthenticated())
}

func TestHydrateAgainstServer(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	s, err := env.manager.Login(ctx, "alice@example.com", "correct-password")
	require.NoError(t, err)

	restored := session.New(env.client, env.store)
	require.NoError(t, restored.Hydrate(ctx))
	assert.Equal(t, s.Token, restored.Token())
	assert.Equal(t, int64(42), restored.CurrentIdentity().ID)
}

func TestNetworkFailures(t *testing.T) {
	t.Run("unreachable", func(t *testing.T) {
		ts := httptest.NewServer(http.NotFoundHandler())
		url := ts.URL
		ts.Close()

		m := session.New(New(httpclient.NewClient(&clientConfig{serverURL: url})), nil)
		_, err := m.Login(context.Background(), "alice@example.com", "correct-password")
		require.ErrorIs(t, err, session.ErrNetworkFailure)
		assert.NotErrorIs(t, err, session.ErrInvalidCredentials)
		assert.False(t, m.IsAuthenticated())
	})
	t.Run("timeout", func(t *testing.T) {
		release := make(chan struct{})
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			select {
			case <-release:
			case <-r.Context().Done():
			}
		}))
		defer ts.Close()
		defer close(release)

		m := session.New(New(httpclient.NewClient(&clientConfig{serverURL: ts.URL})), nil, session.WithTimeout(50*time.Millisecond))
		_, err := m.Login(context.Background(), "alice@example.com", "correct-password")
		require.ErrorIs(t, err, session.ErrNetworkFailure)
		assert.False(t, m.IsAuthenticated())
	})
	t.Run("malformed response", func(t *testing.T) {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("<html>proxy error</html>"))
		}))
		defer ts.Close()

		m := session.New(New(httpclient.NewClient(&clientConfig{serverURL: ts.URL})), nil)
		_, err := m.Login(context.Background(), "alice@example.com", "correct-password")
		require.ErrorIs(t, err, session.ErrNetworkFailure)
	})
}

func TestInspectToken(t *testing.T) {
	_, ok := InspectToken("not-a-jwt")
	assert.False(t, ok)
}
