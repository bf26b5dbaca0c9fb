package httpclient

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/tomes-cli/internal/core/domain"
	"github.com/custodia-labs/tomes-cli/internal/core/ports/driven"
)

func newTestClient() *Client {
	return New(Options{Timeout: 5 * time.Second, UserAgent: "tomes-test", RetryCount: 0})
}

func TestDo_SendsHeadersAndCookies(t *testing.T) {
	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		_, _ = io.WriteString(w, "<html>ok</html>")
	}))
	defer srv.Close()

	resp, err := newTestClient().Do(context.Background(), &driven.HTTPRequest{
		URL:     srv.URL + "/list",
		Headers: map[string]string{"Referer": "https://example.com/"},
		Cookies: []*http.Cookie{{Name: "session", Value: "abc"}},
	})
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "<html>ok</html>", string(resp.Body))
	assert.Equal(t, srv.URL+"/list", resp.URL)
	require.NotNil(t, got)
	assert.Equal(t, http.MethodGet, got.Method)
	assert.Equal(t, "tomes-test", got.Header.Get("User-Agent"))
	assert.Equal(t, "https://example.com/", got.Header.Get("Referer"))
	c, err := got.Cookie("session")
	require.NoError(t, err)
	assert.Equal(t, "abc", c.Value)
}

func TestDo_PostsForm(t *testing.T) {
	var keyword string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, r.ParseForm())
		keyword = r.PostForm.Get("keyword")
	}))
	defer srv.Close()

	_, err := newTestClient().Do(context.Background(), &driven.HTTPRequest{
		Method: http.MethodPost,
		URL:    srv.URL + "/search",
		Form:   url.Values{"keyword": {"sword art"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "sword art", keyword)
}

func TestDo_ErrorStatusIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient().Do(context.Background(), &driven.HTTPRequest{URL: srv.URL})
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.Contains(t, err.Error(), "status 404")
}

func TestDo_TransportErrorIsNetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	_, err := newTestClient().Do(context.Background(), &driven.HTTPRequest{URL: addr})
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestDo_InvalidRequest(t *testing.T) {
	c := newTestClient()

	_, err := c.Do(context.Background(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = c.Do(context.Background(), &driven.HTTPRequest{URL: "/relative"})
	assert.ErrorIs(t, err, domain.ErrNetwork)
}

func TestDo_FollowsRedirectAndReportsFinalURL(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new", http.StatusFound)
	})
	mux.HandleFunc("/new", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, "moved")
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	resp, err := newTestClient().Do(context.Background(), &driven.HTTPRequest{URL: srv.URL + "/old"})
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/new", resp.URL)
	assert.Equal(t, "moved", string(resp.Body))
}

func TestDo_KeepsCookiesAcrossRequests(t *testing.T) {
	var seen string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/login" {
			http.SetCookie(w, &http.Cookie{Name: "token", Value: "t1", Path: "/"})
			return
		}
		if c, err := r.Cookie("token"); err == nil {
			seen = c.Value
		}
	}))
	defer srv.Close()

	c := newTestClient()
	_, err := c.Do(context.Background(), &driven.HTTPRequest{URL: srv.URL + "/login"})
	require.NoError(t, err)
	_, err = c.Do(context.Background(), &driven.HTTPRequest{URL: srv.URL + "/page"})
	require.NoError(t, err)

	assert.Equal(t, "t1", seen)
}

func TestDo_RateLimitedResponseBacksOffHost(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := newTestClient()
	_, err := c.Do(context.Background(), &driven.HTTPRequest{URL: srv.URL})
	require.ErrorIs(t, err, domain.ErrNetwork)

	u, _ := url.Parse(srv.URL)
	h := c.limiters.forHost(u.Host)
	h.mu.Lock()
	retryAt := h.retryAt
	h.mu.Unlock()
	assert.WithinDuration(t, time.Now().Add(120*time.Second), retryAt, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Do(ctx, &driven.HTTPRequest{URL: srv.URL})
	assert.ErrorIs(t, err, domain.ErrNetwork)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), retryAfter(""))
	assert.Equal(t, 3*time.Second, retryAfter("3"))
	assert.Equal(t, time.Duration(0), retryAfter("soon"))

	future := time.Now().Add(time.Minute).UTC().Format(http.TimeFormat)
	assert.InDelta(t, time.Minute.Seconds(), retryAfter(future).Seconds(), 2)
}

func TestLimiters_PerHost(t *testing.T) {
	l := newLimiters(RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})

	a := l.forHost("a.example")
	assert.Same(t, a, l.forHost("a.example"))
	assert.NotSame(t, a, l.forHost("b.example"))
	require.NotNil(t, a.limiter)

	unlimited := newLimiters(RateLimitConfig{}).forHost("c.example")
	assert.Nil(t, unlimited.limiter)
	assert.NoError(t, unlimited.Wait(context.Background()))
}

func TestOptionsFromSettings(t *testing.T) {
	opts := OptionsFromSettings(domain.DefaultAppSettings().HTTP)

	assert.Equal(t, 30*time.Second, opts.Timeout)
	assert.Equal(t, domain.DefaultUserAgent, opts.UserAgent)
	assert.InDelta(t, 2.0, opts.RateLimit.RequestsPerSecond, 0.001)
}
