// Package core implements the crawl protocol shared by every version source:
// list upstream versions, map them to canonical strings, synthesize
// per-platform URLs, verify them and publish the survivors.
package core

import (
	"context"
	"time"

	"github.com/git-pkgs/toolurls/repository"
	"github.com/git-pkgs/toolurls/version"
)

// RawVersion is one release candidate as reported by an upstream source.
type RawVersion struct {
	// Name is the upstream version string, e.g. "refs/tags/v1.2.3".
	Name string

	// URL is a download location supplied by the registry itself. When set
	// it is published for repository.AnyPlatform and no templates apply.
	URL string

	// Checksum is the registry-supplied digest of URL, if any.
	Checksum string

	PublishedAt time.Time
}

// VersionSource discovers the versions of one upstream tool.
type VersionSource interface {
	// Kind returns the source kind the factory was registered under.
	Kind() string

	// ListRawVersions fetches every version the upstream knows about.
	ListRawVersions(ctx context.Context) ([]RawVersion, error)

	// MapVersion turns a raw upstream string into a canonical version, or
	// reports false when the version is not installable by policy.
	MapVersion(raw string) (string, bool)

	// URLs returns the source's project, listing and PURL locations.
	URLs() URLBuilder
}

// CPEProvider is implemented by sources that can derive a CPE from the
// upstream project when the catalog does not configure one.
type CPEProvider interface {
	CPE() CPE
}

// PlatformTemplate synthesizes download URLs for a canonical version.
type PlatformTemplate interface {
	// Platforms lists every platform the template may produce a URL for.
	Platforms() []repository.Platform

	// URLFor returns the URL of v on p, or false when p is not available
	// for v.
	URLFor(v version.Identifier, p repository.Platform) (string, bool)
}

// CPE is the vendor/product pair used to match published versions against
// vulnerability databases.
type CPE struct {
	Vendor  string `json:"vendor,omitempty"`
	Product string `json:"product,omitempty"`
}

// ToolConfig is the per-(tool, edition) configuration a source is built from.
type ToolConfig struct {
	Tool    string
	Edition string // defaults to Tool

	// Source is the registered source kind, e.g. "github" or "npm".
	Source string

	// Package identifies the upstream project: "owner/repo" for GitHub, a
	// package name for npm and PyPI, "group:artifact" for Maven, a module
	// path for the Go proxy and the index URL for HTML scraping.
	Package string

	// BaseURL overrides the source's default API endpoint.
	BaseURL string

	// Token authenticates against the upstream API where supported.
	Token string

	Mapping MappingConfig

	// Release selects GitHub releases instead of tags.
	Release bool

	// Pattern is the HTML scraping regular expression.
	Pattern string

	// Checksum enables downloading each verified artifact to record its
	// SHA-256 digest.
	Checksum bool

	CPE       CPE
	Platforms []PlatformRule
}

// EditionName returns Edition, or Tool when no edition is configured.
func (c ToolConfig) EditionName() string {
	if c.Edition != "" {
		return c.Edition
	}
	return c.Tool
}
