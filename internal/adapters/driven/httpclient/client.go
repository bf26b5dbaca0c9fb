// Package httpclient executes provider requests with resty, adding a
// user agent, per-host rate limiting, retries and a shared cookie jar.
package httpclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
	"github.com/custodia-labs/tomes-cli/internal/logger"
)

// Options configures a Client.
type Options struct {
	Timeout    time.Duration
	UserAgent  string
	RateLimit  RateLimitConfig
	RetryCount int

	// RetryWait is the initial wait between retries.
	RetryWait time.Duration
}

// OptionsFromSettings maps HTTP settings to client options.
func OptionsFromSettings(s domain.HTTPSettings) Options {
	return Options{
		Timeout:    s.Timeout,
		UserAgent:  s.UserAgent,
		RateLimit:  RateLimitConfig{RequestsPerSecond: s.RatePerSecond, BurstSize: 4},
		RetryCount: 2,
		RetryWait:  time.Second,
	}
}

// Client implements driven.HTTPClient over resty.
type Client struct {
	rc        *resty.Client
	limiters  *limiters
	userAgent string
}

var _ driven.HTTPClient = (*Client)(nil)

// New creates a Client. Zero options fall back to defaults.
func New(opts Options) *Client {
	defaults := domain.DefaultAppSettings().HTTP
	if opts.Timeout <= 0 {
		opts.Timeout = defaults.Timeout
	}
	if opts.UserAgent == "" {
		opts.UserAgent = defaults.UserAgent
	}
	if opts.RetryWait <= 0 {
		opts.RetryWait = time.Second
	}

	rc := resty.New().
		SetLogger(restyLogger{}).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(10 * opts.RetryWait).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			if err != nil {
				return true
			}
			return r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= http.StatusInternalServerError
		})

	return &Client{rc: rc, limiters: newLimiters(opts.RateLimit), userAgent: opts.UserAgent}
}

// Do executes req. Transport failures and statuses of 400 and above are
// returned as network failures.
func (c *Client) Do(ctx context.Context, req *driven.HTTPRequest) (*driven.HTTPResponse, error) {
	if req == nil || req.URL == "" {
		return nil, fmt.Errorf("http request: %w", domain.ErrInvalidInput)
	}
	u, err := url.Parse(req.URL)
	if err != nil || u.Host == "" {
		return nil, domain.NetworkError("invalid url "+req.URL, err)
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	limiter := c.limiters.forHost(u.Host)
	if err := limiter.Wait(ctx); err != nil {
		return nil, domain.NetworkError(method+" "+req.URL, err)
	}

	r := c.rc.R().
		SetContext(ctx).
		SetHeader("User-Agent", c.userAgent).
		SetHeaders(req.Headers).
		SetCookies(req.Cookies)
	switch {
	case len(req.Body) > 0:
		r.SetBody(req.Body)
	case req.Form != nil:
		r.SetFormDataFromValues(req.Form)
	}

	start := time.Now()
	resp, err := r.Execute(method, req.URL)
	logger.Timing(method+" "+req.URL, start)
	if err != nil {
		return nil, domain.NetworkError(method+" "+req.URL, err)
	}

	if resp.StatusCode() == http.StatusTooManyRequests {
		limiter.backoff(retryAfter(resp.Header().Get("Retry-After")))
	}
	if resp.StatusCode() >= http.StatusBadRequest {
		return nil, domain.NetworkError(fmt.Sprintf("%s %s: status %d", method, req.URL, resp.StatusCode()), nil)
	}

	final := req.URL
	if resp.RawResponse != nil && resp.RawResponse.Request != nil {
		final = resp.RawResponse.Request.URL.String()
	}
	return &driven.HTTPResponse{
		StatusCode: resp.StatusCode(),
		Header:     resp.Header(),
		Body:       resp.Body(),
		URL:        final,
	}, nil
}

// retryAfter parses a Retry-After header given in seconds or as a date.
func retryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		return time.Until(t)
	}
	return 0
}

// restyLogger routes resty's logs through the verbose logger.
type restyLogger struct{}

func (restyLogger) Errorf(format string, v ...any) { logger.Warn("http: "+format, v...) }
func (restyLogger) Warnf(format string, v ...any)  { logger.Warn("http: "+format, v...) }
func (restyLogger) Debugf(format string, v ...any) { logger.Debug("http: "+format, v...) }
