// Package fetch performs GET/POST with retry, returning a decoded
// response body.
package fetch

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"github.com/temoto/robotstxt"

	"lotus/internal/lotuserr"
	"lotus/internal/wiki"
)

// MaxRetries is the maximum number of attempts for a single request,
// counting the first one.
const MaxRetries = 7

// Client fetches pages politely: every request carries the required
// headers, is retried on transport failure or truncated-body decode
// failure, and is paced by DownloadDelay between attempts.
type Client struct {
	http          *http.Client
	log           *slog.Logger
	downloadDelay time.Duration
	robots        *robotstxt.RobotsData
}

// New creates a fetcher. downloadDelay is the per-request pacing
// applied between retries.
func New(log *slog.Logger, downloadDelay time.Duration) *Client {
	return &Client{
		http:          &http.Client{Timeout: 30 * time.Second},
		log:           log,
		downloadDelay: downloadDelay,
	}
}

// SetTransport overrides the underlying HTTP transport. Tests use this to
// redirect requests to a local server without having to change the wiki
// package's hardcoded host.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.http.Transport = rt
}

// LoadRobots fetches and parses robots.txt for prefix, so the scraper can
// refuse to enumerate disallowed paths. A missing or unparsable robots.txt
// is treated as "allow everything" — the site not publishing one is not a
// reason to refuse to crawl it.
func (c *Client) LoadRobots(ctx context.Context, prefix string) {
	u, err := url.Parse(prefix)
	if err != nil {
		return
	}
	u.Path = "/robots.txt"

	resp, err := c.do(ctx, http.MethodGet, u.String(), nil, nil)
	if err != nil {
		c.log.Warn("robots.txt unavailable, proceeding without a policy", "error", err)
		return
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return
	}
	data, err := robotstxt.FromBytes(body)
	if err != nil {
		c.log.Warn("robots.txt unparsable, proceeding without a policy", "error", err)
		return
	}
	c.robots = data
}

// Allowed reports whether path may be fetched under the loaded robots
// policy. Always true if no policy was loaded.
func (c *Client) Allowed(path string) bool {
	if c.robots == nil {
		return true
	}
	group := c.robots.FindGroup(UserAgentToken)
	return group.Test(path)
}

// UserAgentToken is the token robots.txt group lookups use; distinct
// from the literal User-Agent header, which mimics a browser.
const UserAgentToken = "*"

// GetBody fetches urlStr with retry and returns the decoded response body.
func (c *Client) GetBody(ctx context.Context, urlStr string) ([]byte, error) {
	return c.bodyWithRetry(ctx, http.MethodGet, urlStr, nil, nil)
}

// PostForm fetches urlStr via POST with an url-encoded body and the
// Wikidot voter-endpoint headers.
func (c *Client) PostForm(ctx context.Context, urlStr string, form url.Values, token string) ([]byte, error) {
	headers := map[string]string{
		"Content-Type": "application/x-www-form-urlencoded; charset=UTF-8",
		"Cookie":       "wikidot_token7=" + token,
	}
	body := strings.NewReader(form.Encode())
	return c.bodyWithRetry(ctx, http.MethodPost, urlStr, body, headers)
}

func (c *Client) bodyWithRetry(ctx context.Context, method, urlStr string, body io.Reader, headers map[string]string) ([]byte, error) {
	var bodyBytes []byte

	// Re-reading an io.Reader across retries requires buffering it once
	// up front, since POST bodies are not seekable string readers here.
	var raw []byte
	if body != nil {
		var err error
		raw, err = io.ReadAll(body)
		if err != nil {
			return nil, lotuserr.New(lotuserr.Transport, "fetch.bodyWithRetry", err)
		}
	}

	// Constant backoff of downloadDelay; a zero delay retries immediately.
	base := retry.BackoffFunc(func() (time.Duration, bool) { return c.downloadDelay, false })
	// WithMaxRetries counts retries after the first attempt.
	backoff := retry.WithMaxRetries(MaxRetries-1, base)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var reqBody io.Reader
		if raw != nil {
			reqBody = strings.NewReader(string(raw))
		}

		resp, err := c.do(ctx, method, urlStr, reqBody, headers)
		if err != nil {
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		decoded, err := io.ReadAll(resp.Body)
		if err != nil {
			// A 200 with a truncated chunked body surfaces here, not as
			// a transport error; it must be retried all the same.
			c.log.Warn("body decode failed on otherwise-ok response, retrying", "url", urlStr, "status", resp.StatusCode, "error", err)
			return retry.RetryableError(err)
		}
		if resp.StatusCode >= 500 {
			return retry.RetryableError(&httpStatusError{status: resp.StatusCode})
		}
		bodyBytes = decoded
		return nil
	})
	if err != nil {
		return nil, lotuserr.New(lotuserr.Transport, "fetch.bodyWithRetry", err)
	}
	return bodyBytes, nil
}

func (c *Client) do(ctx context.Context, method, urlStr string, body io.Reader, headers map[string]string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, urlStr, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", wiki.UserAgent)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return c.http.Do(req)
}

type httpStatusError struct{ status int }

func (e *httpStatusError) Error() string {
	return "unexpected status code"
}
