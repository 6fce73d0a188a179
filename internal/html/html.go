// Package html lists tool versions by scanning an index page, such as a
// download directory listing, with a regular expression.
package html

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/git-pkgs/toolurls/internal/core"
)

const kind = "html"

func init() {
	core.Register(kind, "", func(cfg core.ToolConfig, baseURL string, client *core.Client) (core.VersionSource, error) {
		return New(cfg, baseURL, client)
	})
}

// Source scans the page at Package. The pattern's "version" group, or its
// first group, is the raw version. An optional "url" group is resolved
// against the page and reported as the download URL.
type Source struct {
	*core.Mapper
	tool    string
	index   *url.URL
	pattern *regexp.Regexp
	group   int
	link    int
	client  *core.Client
	urls    *URLs
}

// New creates a source for the index page cfg.Package. A relative Package is
// resolved against baseURL.
func New(cfg core.ToolConfig, baseURL string, client *core.Client) (*Source, error) {
	if cfg.Pattern == "" {
		return nil, fmt.Errorf("%s: html source needs a pattern", cfg.Tool)
	}
	re, err := regexp.Compile(cfg.Pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: pattern: %w", cfg.Tool, err)
	}
	index, err := indexURL(baseURL, cfg.Package)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Tool, err)
	}
	mapper, err := core.NewMapper(cfg.Mapping)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", cfg.Tool, err)
	}
	if client == nil {
		client = core.DefaultClient()
	}

	group := re.SubexpIndex("version")
	if group < 0 {
		if re.NumSubexp() == 0 {
			return nil, fmt.Errorf("%s: pattern %q has no capture group", cfg.Tool, cfg.Pattern)
		}
		group = 1
	}

	s := &Source{
		Mapper:  mapper,
		tool:    cfg.Tool,
		index:   index,
		pattern: re,
		group:   group,
		link:    re.SubexpIndex("url"),
		client:  client,
	}
	s.urls = &URLs{source: s}
	return s, nil
}

func indexURL(baseURL, page string) (*url.URL, error) {
	ref, err := url.Parse(page)
	if err != nil {
		return nil, fmt.Errorf("index %q: %w", page, err)
	}
	if !ref.IsAbs() {
		if baseURL == "" {
			return nil, fmt.Errorf("index %q is relative and no base URL is set", page)
		}
		base, err := url.Parse(strings.TrimSuffix(baseURL, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("base URL %q: %w", baseURL, err)
		}
		ref = base.ResolveReference(ref)
	}
	return ref, nil
}

func (s *Source) Kind() string {
	return kind
}

func (s *Source) URLs() core.URLBuilder {
	return s.urls
}

// ListRawVersions returns each distinct match in page order.
func (s *Source) ListRawVersions(ctx context.Context) ([]core.RawVersion, error) {
	body, err := s.client.GetText(ctx, s.index.String())
	if err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Source: kind, Name: s.index.String()}
		}
		return nil, err
	}

	seen := make(map[string]bool)
	var out []core.RawVersion
	for _, m := range s.pattern.FindAllStringSubmatch(body, -1) {
		name := m[s.group]
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true

		raw := core.RawVersion{Name: name}
		if s.link > 0 && m[s.link] != "" {
			if ref, err := url.Parse(m[s.link]); err == nil {
				raw.URL = s.index.ResolveReference(ref).String()
			}
		}
		out = append(out, raw)
	}
	return out, nil
}

type URLs struct {
	source *Source
}

func (u *URLs) Project() string {
	return u.source.index.Scheme + "://" + u.source.index.Host
}

func (u *URLs) Versions() string {
	return u.source.index.String()
}

// PURL is a generic package URL named after the tool.
func (u *URLs) PURL(version string) string {
	return core.BuildPURL("generic", "", u.source.tool, version)
}
