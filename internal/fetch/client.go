package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultUserAgent is a desktop Chrome user agent. Small-business hosting
// frequently serves bot user agents an empty or challenge page.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36"

const (
	DefaultTimeout  = 8 * time.Second
	DefaultMaxBytes = 200 * 1024
)

// Page is a retrieved HTML document.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Latency    time.Duration
	TLS        bool
}

// HTML returns the body as a string.
func (p *Page) HTML() string {
	if p == nil {
		return ""
	}
	return string(p.Body)
}

// RetrievalError is a layer-local failure to retrieve a page: timeout,
// non-2xx status, network error or an anti-bot block.
type RetrievalError struct {
	URL        string
	StatusCode int
	Block      BlockType
	Err        error
}

func (e *RetrievalError) Error() string {
	switch {
	case e.Block != BlockNone:
		return fmt.Sprintf("fetch: %s: blocked (%s)", e.URL, e.Block)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch: %s: status %d", e.URL, e.StatusCode)
	case e.Err != nil:
		return fmt.Sprintf("fetch: %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch: %s: failed", e.URL)
}

func (e *RetrievalError) Unwrap() error { return e.Err }

// IsRetrievalError reports whether err carries a *RetrievalError.
func IsRetrievalError(err error) bool {
	var re *RetrievalError
	return errors.As(err, &re)
}

// Client fetches pages with a per-call timeout, a spoofed user agent and a
// payload cap.
type Client struct {
	http      *http.Client
	timeout   time.Duration
	maxBytes  int64
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithMaxBytes caps the number of body bytes read.
func WithMaxBytes(n int64) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxBytes = n
		}
	}
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithHTTPClient sets a custom transport client (used in tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// NewClient creates a retrieval Client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		timeout:   DefaultTimeout,
		maxBytes:  DefaultMaxBytes,
		userAgent: DefaultUserAgent,
	}
	for _, o := range opts {
		o(c)
	}
	if c.http == nil {
		c.http = &http.Client{
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
				TLSHandshakeTimeout: 5 * time.Second,
			},
		}
	}
	return c
}

// Get retrieves rawURL. Any failure is returned as a *RetrievalError.
func (c *Client) Get(ctx context.Context, rawURL string) (*Page, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &RetrievalError{URL: rawURL, Err: eris.Wrap(err, "fetch: create request")}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &RetrievalError{URL: rawURL, Err: eris.Wrap(err, "fetch: do request")}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBytes))
	if err != nil {
		return nil, &RetrievalError{URL: rawURL, Err: eris.Wrap(err, "fetch: read body")}
	}
	latency := time.Since(start)

	if blocked, bt := DetectBlock(resp, body); blocked {
		return nil, &RetrievalError{URL: rawURL, StatusCode: resp.StatusCode, Block: bt}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RetrievalError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	final := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		final = resp.Request.URL.String()
	}

	return &Page{
		URL:        rawURL,
		FinalURL:   final,
		StatusCode: resp.StatusCode,
		Body:       body,
		Latency:    latency,
		TLS:        resp.TLS != nil,
	}, nil
}

// NormalizeURL turns a bare domain into an absolute https URL. It returns ""
// for input that cannot be a web address.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + strings.TrimPrefix(raw, "//")
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || !strings.Contains(u.Host, ".") && !strings.Contains(u.Host, ":") {
		return ""
	}
	return u.String()
}

// Host returns the lowercased host of rawURL without a leading "www.".
func Host(rawURL string) string {
	u, err := url.Parse(NormalizeURL(rawURL))
	if err != nil {
		return ""
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www.")
}
