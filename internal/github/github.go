// Package github lists tool versions from the tags or releases of a GitHub
// repository.
package github

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/git-pkgs/toolurls/internal/core"
)

const (
	DefaultURL = "https://api.github.com"
	kind       = "github"
	perPage    = 100

	// maxPages bounds Link-header pagination.
	maxPages = 200
)

func init() {
	core.Register(kind, DefaultURL, func(cfg core.ToolConfig, baseURL string, client *core.Client) (core.VersionSource, error) {
		return New(cfg, baseURL, client)
	})
}

type Source struct {
	*core.Mapper
	baseURL     string
	owner       string
	repo        string
	releases    bool
	prereleases bool
	client      *core.Client
	urls        *URLs
}

// New creates a source for cfg.Package, which must be "owner/repo".
func New(cfg core.ToolConfig, baseURL string, client *core.Client) (*Source, error) {
	owner, repo, ok := strings.Cut(cfg.Package, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return nil, fmt.Errorf("github package %q: want owner/repo", cfg.Package)
	}
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
	opts := []core.Option{core.WithHeader("Accept", "application/vnd.github+json")}
	if cfg.Token != "" {
		opts = append(opts, core.WithHeader("Authorization", "Bearer "+cfg.Token))
	}

	s := &Source{
		Mapper:      mapper,
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		owner:       owner,
		repo:        repo,
		releases:    cfg.Release,
		prereleases: cfg.Mapping.IncludePrereleases,
		client:      client.With(opts...),
	}
	s.urls = &URLs{source: s}
	return s, nil
}

func (s *Source) Kind() string {
	return kind
}

func (s *Source) URLs() core.URLBuilder {
	return s.urls
}

// CPE uses the repository owner as vendor and its name as product.
func (s *Source) CPE() core.CPE {
	return core.CPE{Vendor: strings.ToLower(s.owner), Product: strings.ToLower(s.repo)}
}

type tagInfo struct {
	Name string `json:"name"`
}

type releaseInfo struct {
	TagName     string    `json:"tag_name"`
	Draft       bool      `json:"draft"`
	Prerelease  bool      `json:"prerelease"`
	PublishedAt time.Time `json:"published_at"`
}

func (s *Source) listURL() string {
	endpoint := "tags"
	if s.releases {
		endpoint = "releases"
	}
	return fmt.Sprintf("%s/repos/%s/%s/%s?per_page=%d", s.baseURL, s.owner, s.repo, endpoint, perPage)
}

// ListRawVersions walks every page of tags or releases. Tag names are
// reported as "refs/tags/<name>".
func (s *Source) ListRawVersions(ctx context.Context) ([]core.RawVersion, error) {
	var out []core.RawVersion
	next := s.listURL()
	for page := 0; next != ""; page++ {
		if page == maxPages {
			return nil, fmt.Errorf("%s/%s: more than %d pages", s.owner, s.repo, maxPages)
		}
		var (
			link string
			err  error
		)
		if s.releases {
			link, err = s.releasePage(ctx, next, &out)
		} else {
			link, err = s.tagPage(ctx, next, &out)
		}
		if err != nil {
			var httpErr *core.HTTPError
			if errors.As(err, &httpErr) && httpErr.IsNotFound() {
				return nil, &core.NotFoundError{Source: kind, Name: s.owner + "/" + s.repo}
			}
			return nil, err
		}
		next = nextLink(link)
	}
	return out, nil
}

func (s *Source) tagPage(ctx context.Context, url string, out *[]core.RawVersion) (string, error) {
	var tags []tagInfo
	h, err := s.client.GetJSONWithHeader(ctx, url, &tags)
	if err != nil {
		return "", err
	}
	for _, t := range tags {
		*out = append(*out, core.RawVersion{Name: "refs/tags/" + t.Name})
	}
	return h.Get("Link"), nil
}

func (s *Source) releasePage(ctx context.Context, url string, out *[]core.RawVersion) (string, error) {
	var releases []releaseInfo
	h, err := s.client.GetJSONWithHeader(ctx, url, &releases)
	if err != nil {
		return "", err
	}
	for _, r := range releases {
		if r.Draft || (r.Prerelease && !s.prereleases) {
			continue
		}
		*out = append(*out, core.RawVersion{Name: "refs/tags/" + r.TagName, PublishedAt: r.PublishedAt})
	}
	return h.Get("Link"), nil
}

// nextLink returns the rel="next" target of an RFC 8288 Link header.
func nextLink(header string) string {
	for _, part := range strings.Split(header, ",") {
		target, params, ok := strings.Cut(strings.TrimSpace(part), ";")
		if !ok {
			continue
		}
		for _, p := range strings.Split(params, ";") {
			if strings.TrimSpace(p) == `rel="next"` {
				return strings.Trim(strings.TrimSpace(target), "<>")
			}
		}
	}
	return ""
}

type URLs struct {
	source *Source
}

func (u *URLs) Project() string {
	return fmt.Sprintf("https://github.com/%s/%s", u.source.owner, u.source.repo)
}

func (u *URLs) Versions() string {
	return u.source.listURL()
}

func (u *URLs) PURL(version string) string {
	return core.BuildPURL("github", u.source.owner, u.source.repo, version)
}
