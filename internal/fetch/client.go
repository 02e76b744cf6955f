package fetch

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// maxBody caps how much of a response is read into memory.
const maxBody = 8 << 20

// StatusError is returned for any non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.Code)
}

// Page is a fetched response body together with the final URL after redirects.
type Page struct {
	URL         *url.URL
	StatusCode  int
	ContentType string
	Body        []byte
}

type Options struct {
	Timeout        time.Duration
	RateLimitDelay time.Duration
	UserAgent      string
	AcceptLanguage string
	HTTPClient     *http.Client // optional, tests inject transports here
}

// Client performs throttled GET requests with a bounded timeout. It is not
// meant for concurrent use by more than one batch.
type Client struct {
	httpc          *http.Client
	throttle       *Throttle
	userAgent      string
	acceptLanguage string
}

func New(opts Options) *Client {
	httpc := opts.HTTPClient
	if httpc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpc = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpc:          httpc,
		throttle:       NewThrottle(opts.RateLimitDelay),
		userAgent:      opts.UserAgent,
		acceptLanguage: opts.AcceptLanguage,
	}
}

// Get fetches rawURL. Non-2xx responses return a *StatusError.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	if err := c.throttle.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.acceptLanguage != "" {
		req.Header.Set("Accept-Language", c.acceptLanguage)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
		return nil, &StatusError{URL: rawURL, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return &Page{
		URL:         resp.Request.URL,
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// GetJSON fetches rawURL and decodes the body into v.
func (c *Client) GetJSON(ctx context.Context, rawURL string, v any) error {
	page, err := c.Get(ctx, rawURL)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(page.Body, v); err != nil {
		return fmt.Errorf("decode %s: %w", rawURL, err)
	}
	return nil
}
