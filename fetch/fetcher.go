// Package fetch verifies that download URLs exist and computes artifact
// checksums, with retry, per-host circuit breaking and DNS caching.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/dnscache"
)

var (
	ErrNotFound         = errors.New("artifact not found")
	ErrRateLimited      = errors.New("rate limited by upstream")
	ErrUpstreamDown     = errors.New("upstream unavailable")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// ProbeError describes a failed probe or download of one URL. StatusCode is
// zero when no HTTP response was received.
type ProbeError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ProbeError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.URL, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Artifact is the streamed body of a downloaded file.
type Artifact struct {
	Body        io.ReadCloser
	Size        int64 // -1 if unknown
	ContentType string
	ETag        string
}

// Probe is the result of a successful existence check.
type Probe struct {
	URL         string
	StatusCode  int
	Size        int64 // -1 if unknown
	ContentType string
	Ranged      bool // HEAD was refused and a ranged GET was used
}

// FetcherInterface is implemented by Fetcher and CircuitBreakerFetcher.
type FetcherInterface interface {
	Fetch(ctx context.Context, url string) (*Artifact, error)
	Probe(ctx context.Context, url string) (*Probe, error)
}

// Fetcher probes and downloads artifacts.
type Fetcher struct {
	client     *http.Client
	userAgent  string
	maxRetries int
	baseDelay  time.Duration
	authFn     func(url string) (headerName, headerValue string)
}

// Option configures a Fetcher.
type Option func(*Fetcher)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// WithMaxRetries sets the maximum retry attempts for 429 and 5xx responses.
func WithMaxRetries(n int) Option {
	return func(f *Fetcher) {
		f.maxRetries = n
	}
}

// WithBaseDelay sets the base delay for exponential backoff.
func WithBaseDelay(d time.Duration) Option {
	return func(f *Fetcher) {
		f.baseDelay = d
	}
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(f *Fetcher) {
		f.client.Timeout = d
	}
}

// WithAuthFunc sets a function that returns an auth header for a URL.
// Return empty strings to skip authentication for that URL.
func WithAuthFunc(fn func(url string) (headerName, headerValue string)) Option {
	return func(f *Fetcher) {
		f.authFn = fn
	}
}

// NewFetcher creates a new Fetcher with the given options.
func NewFetcher(opts ...Option) *Fetcher {
	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(5 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			resolver.Refresh(true)
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	f := &Fetcher{
		client: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
					}
					return nil, fmt.Errorf("failed to dial any resolved IP")
				},
				MaxIdleConns:          100,
				MaxIdleConnsPerHost:   10,
				IdleConnTimeout:       90 * time.Second,
				TLSHandshakeTimeout:   10 * time.Second,
				ExpectContinueTimeout: 1 * time.Second,
			},
		},
		userAgent:  "toolurls",
		maxRetries: 3,
		baseDelay:  500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// retry runs fn until it succeeds, fails permanently or the retry budget is
// spent. Rate limiting and server errors are retried.
func (f *Fetcher) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= f.maxRetries; attempt++ {
		if attempt > 0 {
			// Exponential backoff with 10% jitter
			delay := f.baseDelay * time.Duration(math.Pow(2, float64(attempt-1)))
			delay += time.Duration(float64(delay) * (rand.Float64() * 0.1))

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if errors.Is(err, ErrRateLimited) || errors.Is(err, ErrUpstreamDown) {
			continue
		}
		return err
	}
	return lastErr
}

// Fetch downloads an artifact from the given URL.
// The caller must close the returned Artifact.Body when done.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Artifact, error) {
	var artifact *Artifact
	err := f.retry(ctx, func() error {
		resp, err := f.do(ctx, http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		artifact = &Artifact{
			Body:        resp.Body,
			Size:        contentLength(resp),
			ContentType: resp.Header.Get("Content-Type"),
			ETag:        resp.Header.Get("ETag"),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return artifact, nil
}

// Probe checks that url exists without downloading it. It sends HEAD and,
// when the server rejects the method with 405 or 501, a GET for the first
// byte only.
func (f *Fetcher) Probe(ctx context.Context, url string) (*Probe, error) {
	var probe *Probe
	err := f.retry(ctx, func() error {
		resp, err := f.do(ctx, http.MethodHead, url, nil)
		if err == nil {
			_ = resp.Body.Close()
			probe = newProbe(url, resp, false)
			return nil
		}
		if !headRefused(err) {
			return err
		}

		resp, err = f.do(ctx, http.MethodGet, url, http.Header{"Range": {"bytes=0-0"}})
		if err != nil {
			return err
		}
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()
		probe = newProbe(url, resp, true)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return probe, nil
}

func newProbe(url string, resp *http.Response, ranged bool) *Probe {
	p := &Probe{
		URL:         url,
		StatusCode:  resp.StatusCode,
		Size:        contentLength(resp),
		ContentType: resp.Header.Get("Content-Type"),
		Ranged:      ranged,
	}
	if ranged {
		p.Size = rangeTotal(resp.Header.Get("Content-Range"))
	}
	return p
}

func headRefused(err error) bool {
	var pe *ProbeError
	if !errors.As(err, &pe) {
		return false
	}
	return pe.StatusCode == http.StatusMethodNotAllowed || pe.StatusCode == http.StatusNotImplemented
}

// do sends one request and maps non-success statuses to a *ProbeError. On
// success the caller owns resp.Body.
func (f *Fetcher) do(ctx context.Context, method, url string, header http.Header) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, nil)
	if err != nil {
		return nil, &ProbeError{URL: url, Err: fmt.Errorf("creating request: %w", err)}
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if f.authFn != nil {
		if name, value := f.authFn(url); name != "" && value != "" {
			req.Header.Set(name, value)
		}
	}

	resp, err := f.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, &ProbeError{URL: url, Err: ctx.Err()}
		}
		return nil, &ProbeError{URL: url, Err: fmt.Errorf("%s request: %w", method, err)}
	}

	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusPartialContent:
		return resp, nil

	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		_ = resp.Body.Close()
		return nil, &ProbeError{URL: url, StatusCode: resp.StatusCode, Err: ErrNotFound}

	case resp.StatusCode == http.StatusTooManyRequests:
		_ = resp.Body.Close()
		return nil, &ProbeError{URL: url, StatusCode: resp.StatusCode, Err: ErrRateLimited}

	case resp.StatusCode >= 500 && resp.StatusCode != http.StatusNotImplemented:
		_ = resp.Body.Close()
		return nil, &ProbeError{URL: url, StatusCode: resp.StatusCode, Err: ErrUpstreamDown}

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		_ = resp.Body.Close()
		return nil, &ProbeError{URL: url, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected status: %q", string(body))}
	}
}

func contentLength(resp *http.Response) int64 {
	if cl := resp.Header.Get("Content-Length"); cl != "" {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil {
			return n
		}
	}
	return -1
}

// rangeTotal extracts the complete length from "bytes 0-0/12345".
func rangeTotal(contentRange string) int64 {
	for i := len(contentRange) - 1; i >= 0; i-- {
		if contentRange[i] == '/' {
			if n, err := strconv.ParseInt(contentRange[i+1:], 10, 64); err == nil {
				return n
			}
			break
		}
	}
	return -1
}
