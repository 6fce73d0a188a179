// Package client is the HTTP client used to talk to upstream version
// sources. It retries transient failures with exponential backoff and can
// pace requests with a rate limiter.
package client

import (
	"context"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/cenk/backoff"
	"golang.org/x/time/rate"
)

const maxBodySize = 64 << 20

// RateLimiter controls request pacing. *rate.Limiter satisfies it.
type RateLimiter interface {
	Wait(ctx context.Context) error
}

// Client is an HTTP client with retry logic for upstream APIs.
type Client struct {
	http       *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	limiter    RateLimiter
	headers    map[string]string
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout sets the HTTP client timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithBaseDelay sets the initial backoff interval.
func WithBaseDelay(d time.Duration) Option {
	return func(c *Client) {
		c.baseDelay = d
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithRateLimiter paces every request through l.
func WithRateLimiter(l RateLimiter) Option {
	return func(c *Client) {
		c.limiter = l
	}
}

// WithRateLimit paces requests to perSecond with the given burst.
// A non-positive rate disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithHeader adds a header to every request.
func WithHeader(name, value string) Option {
	return func(c *Client) {
		c.headers[name] = value
	}
}

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return NewClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	c := &Client{
		http:       &http.Client{Timeout: 30 * time.Second},
		userAgent:  "toolurls",
		maxRetries: 5,
		baseDelay:  500 * time.Millisecond,
		headers:    make(map[string]string),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// WithUserAgent returns a copy of the client sending ua as User-Agent.
func (c *Client) WithUserAgent(ua string) *Client {
	cp := c.With()
	cp.userAgent = ua
	return cp
}

// With returns a copy of the client with opts applied. The copy shares the
// underlying *http.Client and rate limiter.
func (c *Client) With(opts ...Option) *Client {
	cp := *c
	cp.headers = make(map[string]string, len(c.headers))
	for k, v := range c.headers {
		cp.headers[k] = v
	}
	for _, opt := range opts {
		opt(&cp)
	}
	return &cp
}

// Response is a successful upstream response.
type Response struct {
	Body   []byte
	Header http.Header
}

// Get performs a GET request, retrying 429 and 5xx responses and network
// errors. Other non-2xx responses are returned as *HTTPError without retry.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	var resp *Response
	op := func() error {
		r, err := c.do(ctx, http.MethodGet, url)
		if err != nil {
			if retryable(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		resp = r
		return nil
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.baseDelay
	b.MaxElapsedTime = 0
	var policy backoff.BackOff = b
	if c.maxRetries >= 0 {
		policy = backoff.WithMaxRetries(b, uint64(c.maxRetries))
	}
	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return nil, err
	}
	return resp, nil
}

func retryable(err error) bool {
	switch e := err.(type) {
	case *HTTPError:
		return e.StatusCode >= 500
	case *RateLimitError:
		return true
	case *transportError:
		return true
	}
	return false
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

func (c *Client) do(ctx context.Context, method, url string) (*Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, &transportError{err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &transportError{err: fmt.Errorf("reading body: %w", err)}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter, _ := strconv.Atoi(resp.Header.Get("Retry-After"))
		return nil, &RateLimitError{RetryAfter: retryAfter}
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet := body
		if len(snippet) > 1024 {
			snippet = snippet[:1024]
		}
		return nil, &HTTPError{StatusCode: resp.StatusCode, URL: url, Body: string(snippet)}
	}
	return &Response{Body: body, Header: resp.Header}, nil
}

// GetBody fetches url and returns the raw body.
func (c *Client) GetBody(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// GetText fetches url and returns the body as a string.
func (c *Client) GetText(ctx context.Context, url string) (string, error) {
	body, err := c.GetBody(ctx, url)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetJSON fetches url and decodes the JSON body into v.
func (c *Client) GetJSON(ctx context.Context, url string, v any) error {
	_, err := c.GetJSONWithHeader(ctx, url, v)
	return err
}

// GetJSONWithHeader is like GetJSON and also returns the response headers,
// for APIs that paginate through Link headers.
func (c *Client) GetJSONWithHeader(ctx context.Context, url string, v any) (http.Header, error) {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(resp.Body, v); err != nil {
		return nil, fmt.Errorf("decoding %s: %w", url, err)
	}
	return resp.Header, nil
}

// GetXML fetches url and decodes the XML body into v.
func (c *Client) GetXML(ctx context.Context, url string, v any) error {
	body, err := c.GetBody(ctx, url)
	if err != nil {
		return err
	}
	if err := xml.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decoding %s: %w", url, err)
	}
	return nil
}

// Head performs a single HEAD request and returns the response headers.
func (c *Client) Head(ctx context.Context, url string) (http.Header, error) {
	resp, err := c.do(ctx, http.MethodHead, url)
	if err != nil {
		return nil, err
	}
	return resp.Header, nil
}
