package authclient

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/tansive/adminconsole/internal/common/httpclient"
	"github.com/tansive/adminconsole/internal/session"
)

// TokenSource supplies the bearer token for authenticated requests and is
// told when the backend rejects it. *session.Manager implements it.
type TokenSource interface {
	Token() string
	ExpireToken(token string, cause error) bool
}

var _ TokenSource = (*session.Manager)(nil)

// API performs authenticated requests for the current session.
type API struct {
	http    httpclient.HTTPClientInterface
	session TokenSource
}

// NewAPI returns an API using the tokens of s.
func NewAPI(c httpclient.HTTPClientInterface, s TokenSource) *API {
	return &API{http: c, session: s}
}

// Do sends opts with the current token. A 401 or 403 response expires the
// session, provided the token used is still current, and is returned as
// session.ErrSessionExpired. Other HTTP errors are returned as
// *httpclient.HTTPError; transport failures as session.ErrNetworkFailure.
func (a *API) Do(ctx context.Context, opts httpclient.RequestOptions) ([]byte, error) {
	token := a.session.Token()
	if token == "" {
		return nil, session.ErrNotAuthenticated
	}
	opts.Token = token
	opts.NoAuth = false

	body, err := a.http.DoRequest(ctx, opts)
	if err == nil {
		return body, nil
	}

	var httpErr *httpclient.HTTPError
	if !errors.As(err, &httpErr) {
		return nil, mapError(opRequest, err)
	}
	if httpErr.StatusCode == http.StatusUnauthorized || httpErr.StatusCode == http.StatusForbidden {
		expired := mapError(opRequest, err)
		if a.session.ExpireToken(token, expired) {
			log.Ctx(ctx).Warn().Int("status", httpErr.StatusCode).Str("path", opts.Path).Msg("token rejected; session expired")
		}
		return nil, expired
	}
	return nil, err
}
