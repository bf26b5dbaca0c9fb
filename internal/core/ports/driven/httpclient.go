package driven

import (
	"context"
	"net/http"
	"net/url"
)

// HTTPRequest is a provider request. Sources build these from their
// request hooks; the client adds defaults such as the user agent.
type HTTPRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Cookies []*http.Cookie

	// Form is sent url-encoded when non-nil and Body is empty.
	Form url.Values
	Body []byte
}

// HTTPResponse is a fully read response.
type HTTPResponse struct {
	StatusCode int
	Header     http.Header
	Body       []byte

	// URL is the final URL after redirects.
	URL string
}

// HTTPClient executes requests with headers and cookies.
// Transport failures and non-2xx/3xx statuses return a domain.Failure of
// kind ErrNetwork.
type HTTPClient interface {
	Do(ctx context.Context, req *HTTPRequest) (*HTTPResponse, error)
}
