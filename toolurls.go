// Package toolurls maintains a file-backed repository of download URLs for
// developer tools, keyed by tool, edition, version and platform.
//
// Version sources discover what upstream has released, platform templates
// turn each version into download URLs, and an Updater probes those URLs and
// publishes the ones that work.
//
// Basic usage:
//
//	import (
//		"context"
//		"github.com/git-pkgs/toolurls"
//		_ "github.com/git-pkgs/toolurls/all"
//	)
//
//	repo, err := toolurls.Open("/var/lib/toolurls")
//	if err != nil {
//		log.Fatal(err)
//	}
//	cfg := toolurls.ToolConfig{Tool: "gh", Source: "github", Package: "cli/cli"}
//	src, err := toolurls.New(cfg, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report := toolurls.NewUpdater(cfg, src, repo, toolurls.NewFetcher()).Run(ctx)
//	fmt.Println(report.Published, report.Err)
package toolurls

import (
	"context"

	"github.com/git-pkgs/purl"
	"github.com/git-pkgs/toolurls/client"
	"github.com/git-pkgs/toolurls/fetch"
	"github.com/git-pkgs/toolurls/internal/core"
	"github.com/git-pkgs/toolurls/repository"
)

// Re-export types from internal/core
type (
	// VersionSource is the interface implemented by all version sources.
	VersionSource = core.VersionSource

	// RawVersion is a release candidate as reported upstream.
	RawVersion = core.RawVersion

	// ToolConfig configures one (tool, edition) crawl.
	ToolConfig = core.ToolConfig

	// MappingConfig is the policy applied to raw version strings.
	MappingConfig = core.MappingConfig

	// PlatformRule maps a platform to a URL template.
	PlatformRule = core.PlatformRule

	// PlatformTemplate synthesizes per-platform download URLs.
	PlatformTemplate = core.PlatformTemplate

	CPE = core.CPE

	// Updater runs the crawl protocol for one (tool, edition).
	Updater = core.Updater

	// UpdaterOption configures an Updater.
	UpdaterOption = core.UpdaterOption

	// Report summarises one crawl.
	Report = core.Report

	// Runner is anything RunAll can schedule.
	Runner = core.Runner

	SourceUnavailableError = core.SourceUnavailableError
)

// Re-export types from client
type (
	// Client is an HTTP client with retry logic for upstream APIs.
	Client = client.Client

	// URLBuilder describes where a source lives upstream.
	URLBuilder = client.URLBuilder

	// RateLimiter controls request pacing.
	RateLimiter = client.RateLimiter
)

// Repository types.
type (
	Repository = repository.Repository
	Platform   = repository.Platform
	Query      = repository.Query
	Resolved   = repository.Resolved
)

// Re-export errors
var (
	ErrNotFound = client.ErrNotFound
	ErrNoMatch  = repository.ErrNoMatch
)

// Error types
type (
	HTTPError      = client.HTTPError
	NotFoundError  = client.NotFoundError
	RateLimitError = client.RateLimitError
)

// Updater options.
var (
	WithLogger           = core.WithLogger
	WithMetrics          = core.WithMetrics
	WithClock            = core.WithClock
	WithFreshness        = core.WithFreshness
	WithRevalidate       = core.WithRevalidate
	WithProbeConcurrency = core.WithProbeConcurrency
	WithTemplates        = core.WithTemplates
)

// Open opens or creates the repository rooted at root.
func Open(root string) (*Repository, error) {
	return repository.Open(root)
}

// New creates the version source configured by cfg.
// If c is nil, DefaultClient() is used.
func New(cfg ToolConfig, c *Client) (VersionSource, error) {
	return core.New(cfg, c)
}

// NewUpdater creates an updater for cfg. Platform templates are built from
// cfg.Platforms.
func NewUpdater(cfg ToolConfig, src VersionSource, repo *Repository, f fetch.FetcherInterface, opts ...UpdaterOption) *Updater {
	return core.NewUpdater(cfg, src, repo, f, opts...)
}

// NewFetcher returns the default artifact prober.
func NewFetcher(opts ...fetch.Option) *fetch.Fetcher {
	return fetch.NewFetcher(opts...)
}

// RunAll runs every runner concurrently and returns their reports in order.
// A failing tool never stops the others.
func RunAll(ctx context.Context, runners []Runner, concurrency int) []Report {
	return core.RunAllWithConcurrency(ctx, runners, concurrency)
}

// DefaultClient returns a client with sensible defaults:
// - 30s timeout
// - 5 retries with exponential backoff
// - Retry on 429 and 5xx responses
func DefaultClient() *Client {
	return client.DefaultClient()
}

// NewClient creates a new client with the given options.
func NewClient(opts ...Option) *Client {
	return client.NewClient(opts...)
}

// Option configures a Client.
type Option = client.Option

// WithTimeout sets the HTTP client timeout.
var WithTimeout = client.WithTimeout

// WithMaxRetries sets the maximum number of retries.
var WithMaxRetries = client.WithMaxRetries

// WithRateLimit paces requests to perSecond with the given burst.
var WithRateLimit = client.WithRateLimit

// SupportedSources returns all registered source kinds.
// Note: sources must be imported to be registered.
func SupportedSources() []string {
	return core.SupportedSources()
}

// BuildURLs returns a map of all non-empty URLs of a source.
// Keys are "project", "versions" and "purl".
func BuildURLs(urls URLBuilder, version string) map[string]string {
	return client.BuildURLs(urls, version)
}

// DefaultURL returns the default API endpoint of a source kind.
func DefaultURL(kind string) string {
	return core.DefaultURL(kind)
}

// PURL represents a parsed Package URL.
type PURL = purl.PURL

// ParsePURL parses a Package URL string into its components.
// Supports both package PURLs (pkg:npm/typescript) and version PURLs (pkg:npm/typescript@5.4.5).
func ParsePURL(purlStr string) (*PURL, error) {
	return purl.Parse(purlStr)
}

// ConfigFromPURL derives a tool configuration from a PURL.
func ConfigFromPURL(purl string) (ToolConfig, error) {
	return core.ConfigFromPURL(purl)
}

// NewFromPURL creates a version source from a PURL and returns it with the
// derived configuration.
func NewFromPURL(purl string, c *Client) (VersionSource, ToolConfig, error) {
	return core.NewFromPURL(purl, c)
}

// ListVersionsFromPURL lists the canonical versions of the package a PURL
// names.
func ListVersionsFromPURL(ctx context.Context, purl string, c *Client) ([]string, error) {
	return core.ListVersionsFromPURL(ctx, purl, c)
}
