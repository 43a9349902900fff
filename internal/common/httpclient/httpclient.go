// Package httpclient provides a configurable HTTP client for making requests to REST APIs.
// It attaches bearer tokens and request IDs, supports JSON and form-encoded bodies,
// bounds every request with a timeout, and decodes server error bodies into HTTPError.
// The package requires a Configurator implementation for server configuration.
package httpclient

import (
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/tansive/adminconsole/internal/common/apperrors"
	"github.com/tansive/adminconsole/internal/common/logtrace"
	"github.com/tansive/adminconsole/internal/common/uuid"
	"github.com/tidwall/gjson"
)

// RequestIDHeader carries the request ID on every outgoing request.
const RequestIDHeader = "X-Request-ID"

// DefaultTimeout bounds a request when the Configurator does not supply one.
const DefaultTimeout = 15 * time.Second

// Configurator defines the interface for providing server configuration.
type Configurator interface {
	GetServerURL() string
	GetToken() string
	GetTimeout() time.Duration
}

var (
	ErrHTTPClient       apperrors.Error = apperrors.New("http client error").SetExpandError(true)
	ErrInvalidServerURL apperrors.Error = ErrHTTPClient.New("invalid server URL")
	ErrRequestFailed    apperrors.Error = ErrHTTPClient.New("request failed")
	ErrReadBody         apperrors.Error = ErrHTTPClient.New("failed to read response body")
)

// HTTPError represents an error response from the server.
type HTTPError struct {
	StatusCode int    // HTTP status code of the response
	Message    string // server supplied message or raw body
}

// Error implements the error interface for HTTPError.
func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return e.Message
}

// HTTPClient makes requests against a REST API server.
type HTTPClient struct {
	config     Configurator
	httpClient *http.Client
}

// ClientOptions contains options for configuring the HTTP client.
type ClientOptions struct {
	DisableCertValidation bool         // skips TLS certificate validation
	HTTPClient            *http.Client // replaces the underlying client, e.g. one from httptest
}

// NewClient creates a new HTTP client using the provided configuration.
func NewClient(config Configurator, opts ...ClientOptions) *HTTPClient {
	clientOpts := ClientOptions{}
	if len(opts) > 0 {
		clientOpts = opts[0]
	}
	httpClient := clientOpts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
		if clientOpts.DisableCertValidation {
			httpClient.Transport = &http.Transport{
				TLSClientConfig: &tls.Config{
					InsecureSkipVerify: true,
				},
			}
		}
	}
	return &HTTPClient{
		config:     config,
		httpClient: httpClient,
	}
}

// RequestOptions contains options for making HTTP requests.
// Method and Path are required. Form takes precedence over Body.
type RequestOptions struct {
	Method      string            // HTTP method (GET, POST, PUT, DELETE)
	Path        string            // API endpoint path
	QueryParams map[string]string // optional query parameters
	Body        []byte            // optional JSON body
	Form        url.Values        // optional form-encoded body
	Token       string            // overrides the configured bearer token
	NoAuth      bool              // sends no Authorization header
}

// DoRequest makes an HTTP request with the given options and returns the
// response body. Responses with status >= 400 are returned as *HTTPError.
// Transport failures and timeouts are returned as ErrRequestFailed.
func (c *HTTPClient) DoRequest(ctx context.Context, opts RequestOptions) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeoutOf(c.config))
	defer cancel()

	req, err := newRequest(ctx, c.config, opts)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, ErrRequestFailed.Err(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, ErrReadBody.Err(err)
	}
	if resp.StatusCode >= 400 {
		return nil, newHTTPError(resp.StatusCode, body)
	}
	return body, nil
}

func timeoutOf(config Configurator) time.Duration {
	if d := config.GetTimeout(); d > 0 {
		return d
	}
	return DefaultTimeout
}

// newRequest builds the request shared by HTTPClient and TestHTTPClient.
func newRequest(ctx context.Context, config Configurator, opts RequestOptions) (*http.Request, error) {
	u, err := url.Parse(config.GetServerURL())
	if err != nil || u.Host == "" {
		return nil, ErrInvalidServerURL.Msg("invalid server URL: " + config.GetServerURL())
	}
	if u.Path == "" {
		u.Path = "/"
	}
	u.Path = path.Join(u.Path, opts.Path)

	q := u.Query()
	for k, v := range opts.QueryParams {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()

	var body io.Reader
	contentType := "application/json"
	if opts.Form != nil {
		body = strings.NewReader(opts.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	} else if opts.Body != nil {
		body = bytes.NewReader(opts.Body)
	}

	req, err := http.NewRequestWithContext(ctx, opts.Method, u.String(), body)
	if err != nil {
		return nil, ErrHTTPClient.MsgErr("failed to create request", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	requestID := logtrace.RequestIdFromContext(ctx)
	if requestID == "" {
		requestID = uuid.NewRequestID()
	}
	req.Header.Set(RequestIDHeader, requestID)

	if !opts.NoAuth {
		token := opts.Token
		if token == "" {
			token = config.GetToken()
		}
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	return req, nil
}

// newHTTPError extracts the server message from an error body. FastAPI style
// {"detail": ...}, {"error": ...} and {"message": ...} bodies are understood.
func newHTTPError(statusCode int, body []byte) *HTTPError {
	msg := ""
	if gjson.ValidBytes(body) {
		r := gjson.ParseBytes(body)
		for _, key := range []string{"detail", "error", "message"} {
			v := r.Get(key)
			if !v.Exists() {
				continue
			}
			if v.Type == gjson.String {
				msg = v.String()
			} else if v.IsArray() {
				// validation errors: [{"msg": ...}, ...]
				msg = v.Get("0.msg").String()
			}
			if msg != "" {
				break
			}
		}
	} else {
		msg = strings.TrimSpace(string(body))
	}
	return &HTTPError{
		StatusCode: statusCode,
		Message:    msg,
	}
}
