package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
)

// TestHTTPClient serves requests directly from an http.Handler through
// httptest.NewRecorder, without opening a network connection.
type TestHTTPClient struct {
	config  Configurator
	handler http.Handler
}

// NewTestClient creates a test client that dispatches to handler.
func NewTestClient(config Configurator, handler http.Handler) *TestHTTPClient {
	return &TestHTTPClient{
		config:  config,
		handler: handler,
	}
}

// DoRequest behaves like HTTPClient.DoRequest against the wrapped handler.
func (c *TestHTTPClient) DoRequest(ctx context.Context, opts RequestOptions) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeoutOf(c.config))
	defer cancel()

	req, err := newRequest(ctx, c.config, opts)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, ErrRequestFailed.Err(err)
	}
	// Server handlers always see a non-nil body.
	if req.Body == nil {
		req.Body = http.NoBody
	}

	rr := httptest.NewRecorder()
	c.handler.ServeHTTP(rr, req)
	body, err := io.ReadAll(rr.Result().Body)
	if err != nil {
		return nil, ErrReadBody.Err(err)
	}
	if rr.Code >= 400 {
		return nil, newHTTPError(rr.Code, body)
	}
	return body, nil
}
