package httpclient

import "context"

// HTTPClientInterface is implemented by HTTPClient and TestHTTPClient.
type HTTPClientInterface interface {
	// DoRequest makes an HTTP request with the given options and returns the
	// response body, or an *HTTPError for responses with status >= 400.
	DoRequest(ctx context.Context, opts RequestOptions) ([]byte, error)
}

var _ HTTPClientInterface = &HTTPClient{}
var _ HTTPClientInterface = &TestHTTPClient{}
