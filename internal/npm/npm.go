// Package npm lists tool versions published to an npm registry.
package npm

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/git-pkgs/toolurls/internal/core"
)

const (
	DefaultURL = "https://registry.npmjs.org"
	kind       = "npm"
)

func init() {
	core.Register(kind, DefaultURL, func(cfg core.ToolConfig, baseURL string, client *core.Client) (core.VersionSource, error) {
		return New(cfg, baseURL, client)
	})
}

type Source struct {
	*core.Mapper
	baseURL string
	name    string
	client  *core.Client
	urls    *URLs
}

func New(cfg core.ToolConfig, baseURL string, client *core.Client) (*Source, error) {
	mapper, err := core.NewMapper(cfg.Mapping)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Tool, err)
	}
	if baseURL == "" {
		baseURL = DefaultURL
	}
	if client == nil {
		client = core.DefaultClient()
	}
	s := &Source{
		Mapper:  mapper,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		name:    cfg.Package,
		client:  client,
	}
	s.urls = &URLs{baseURL: s.baseURL, name: s.name}
	return s, nil
}

func (s *Source) Kind() string {
	return kind
}

func (s *Source) URLs() core.URLBuilder {
	return s.urls
}

// CPE uses the scope, or the package name when unscoped, as vendor.
func (s *Source) CPE() core.CPE {
	scope, name := splitName(s.name)
	vendor := strings.TrimPrefix(scope, "@")
	if vendor == "" {
		vendor = name
	}
	return core.CPE{Vendor: vendor, Product: name}
}

type packageResponse struct {
	ID       string                 `json:"_id"`
	Name     string                 `json:"name"`
	Versions map[string]versionInfo `json:"versions"`
	Time     map[string]string      `json:"time"`
}

type versionInfo struct {
	Version    string   `json:"version"`
	Deprecated string   `json:"deprecated"`
	Dist       distInfo `json:"dist"`
}

type distInfo struct {
	Shasum    string `json:"shasum"`
	Tarball   string `json:"tarball"`
	Integrity string `json:"integrity"`
}

// ListRawVersions reads the package document. Each version carries its
// tarball URL and the strongest digest the registry publishes.
func (s *Source) ListRawVersions(ctx context.Context) ([]core.RawVersion, error) {
	var resp packageResponse
	if err := s.client.GetJSON(ctx, s.urls.Versions(), &resp); err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Source: kind, Name: s.name}
		}
		return nil, err
	}

	versions := make([]core.RawVersion, 0, len(resp.Versions))
	for num, v := range resp.Versions {
		var publishedAt time.Time
		if timeStr, ok := resp.Time[num]; ok {
			publishedAt, _ = time.Parse(time.RFC3339, timeStr)
		}

		tarball := v.Dist.Tarball
		if tarball == "" {
			tarball = s.urls.Download(num)
		}

		checksum := v.Dist.Integrity
		if checksum == "" {
			checksum = v.Dist.Shasum
		}

		versions = append(versions, core.RawVersion{
			Name:        num,
			URL:         tarball,
			Checksum:    checksum,
			PublishedAt: publishedAt,
		})
	}
	return versions, nil
}

func splitName(name string) (scope, short string) {
	if strings.HasPrefix(name, "@") && strings.Contains(name, "/") {
		scope, short, _ = strings.Cut(name, "/")
		return scope, short
	}
	return "", name
}

type URLs struct {
	baseURL string
	name    string
}

func (u *URLs) Project() string {
	return fmt.Sprintf("https://www.npmjs.com/package/%s", u.name)
}

func (u *URLs) Versions() string {
	return fmt.Sprintf("%s/%s", u.baseURL, url.PathEscape(u.name))
}

// Download is the conventional tarball location, used when a version
// document omits dist.tarball.
func (u *URLs) Download(version string) string {
	if version == "" {
		return ""
	}
	_, short := splitName(u.name)
	return fmt.Sprintf("%s/%s/-/%s-%s.tgz", u.baseURL, u.name, short, version)
}

func (u *URLs) PURL(version string) string {
	scope, short := splitName(u.name)
	return core.BuildPURL("npm", scope, short, version)
}
