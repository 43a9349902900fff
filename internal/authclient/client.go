// Package authclient talks to the backend auth service. Client implements
// session.Backend; API performs authenticated requests on behalf of a session
// and turns rejected tokens into a forced logout.
package authclient

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/rs/zerolog/log"
	"github.com/tansive/adminconsole/internal/common/httpclient"
	"github.com/tansive/adminconsole/internal/session"
	"github.com/tidwall/gjson"
)

const (
	loginPath         = "/auth/login"
	impersonatePath   = "/auth/impersonate/"
	stopImpersonation = "/auth/impersonation/stop"
	whoAmIPath        = "/users/me"
	revokePath        = "/auth/revoke"
)

// Client is the HTTP implementation of session.Backend.
type Client struct {
	http httpclient.HTTPClientInterface
}

var (
	_ session.Backend = (*Client)(nil)
	_ session.Revoker = (*Client)(nil)
)

// New returns a Client sending requests through c.
func New(c httpclient.HTTPClientInterface) *Client {
	return &Client{http: c}
}

// Login posts the credentials as a form, the way OAuth2 password flows
// expect them.
func (c *Client) Login(ctx context.Context, email, password string) (*session.Grant, error) {
	body, err := c.http.DoRequest(ctx, httpclient.RequestOptions{
		Method: "POST",
		Path:   loginPath,
		Form: url.Values{
			"username": {email},
			"password": {password},
		},
		NoAuth: true,
	})
	if err != nil {
		return nil, mapError(opLogin, err)
	}
	r, err := parse(opLogin, body)
	if err != nil {
		return nil, err
	}
	identity := &session.UserIdentity{
		ID:        parseID(r.Get("user_id")),
		FirstName: r.Get("first_name").String(),
		LastName:  r.Get("last_name").String(),
		Email:     r.Get("email").String(),
		Roles:     roleNames(r.Get("roles")),
	}
	log.Ctx(ctx).Debug().Int64("user_id", identity.ID).Msg("login accepted")
	return &session.Grant{
		Token:    r.Get("access_token").String(),
		UserID:   identity.ID,
		Identity: identity,
	}, nil
}

// Impersonate requests a token acting as targetUserID.
func (c *Client) Impersonate(ctx context.Context, token string, targetUserID int64) (*session.Grant, error) {
	body, err := c.http.DoRequest(ctx, httpclient.RequestOptions{
		Method: "POST",
		Path:   impersonatePath + strconv.FormatInt(targetUserID, 10),
		Token:  token,
	})
	if err != nil {
		return nil, mapError(opImpersonate, err)
	}
	r, err := parse(opImpersonate, body)
	if err != nil {
		return nil, err
	}
	grant := &session.Grant{
		Token: r.Get("access_token").String(),
	}
	if actingAs := r.Get("acting_as"); actingAs.IsObject() {
		grant.Identity = ParseIdentity(actingAs)
		grant.UserID = grant.Identity.ID
	}
	if by := r.Get("impersonated_by"); by.IsObject() {
		grant.ImpersonatedBy = ParseIdentity(by)
	}
	return grant, nil
}

// StopImpersonation exchanges an impersonation token for a fresh operator
// token.
func (c *Client) StopImpersonation(ctx context.Context, token string) (*session.Grant, error) {
	body, err := c.http.DoRequest(ctx, httpclient.RequestOptions{
		Method: "POST",
		Path:   stopImpersonation,
		Token:  token,
	})
	if err != nil {
		return nil, mapError(opStop, err)
	}
	r, err := parse(opStop, body)
	if err != nil {
		return nil, err
	}
	return &session.Grant{
		Token:  r.Get("access_token").String(),
		UserID: parseID(r.Get("user_id")),
	}, nil
}

// WhoAmI fetches the identity behind token with merged effective roles.
func (c *Client) WhoAmI(ctx context.Context, token string) (*session.UserIdentity, error) {
	body, err := c.http.DoRequest(ctx, httpclient.RequestOptions{
		Method: "GET",
		Path:   whoAmIPath,
		Token:  token,
	})
	if err != nil {
		return nil, mapError(opWhoAmI, err)
	}
	r, err := parse(opWhoAmI, body)
	if err != nil {
		return nil, err
	}
	return ParseIdentity(r), nil
}

// Revoke invalidates token on the server. Errors are mapped like any other
// authenticated request but never expire a session; callers decide.
func (c *Client) Revoke(ctx context.Context, token string) error {
	_, err := c.http.DoRequest(ctx, httpclient.RequestOptions{
		Method: "POST",
		Path:   revokePath,
		Token:  token,
	})
	if err != nil {
		return mapError(opRevoke, err)
	}
	return nil
}

func parse(op operation, body []byte) (gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, session.ErrNetworkFailure.Msg(fmt.Sprintf("%s: malformed response", op))
	}
	r := gjson.ParseBytes(body)
	if !r.IsObject() {
		return gjson.Result{}, session.ErrNetworkFailure.Msg(fmt.Sprintf("%s: unexpected response", op))
	}
	return r, nil
}
