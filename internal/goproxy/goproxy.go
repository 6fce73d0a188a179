// Package goproxy lists tool versions published as Go modules through a
// module proxy.
package goproxy

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/git-pkgs/toolurls/internal/core"
)

const (
	DefaultURL = "https://proxy.golang.org"
	kind       = "goproxy"
)

func init() {
	core.Register(kind, DefaultURL, func(cfg core.ToolConfig, baseURL string, client *core.Client) (core.VersionSource, error) {
		return New(cfg, baseURL, client)
	})
}

type Source struct {
	*core.Mapper
	baseURL string
	module  string
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
		module:  cfg.Package,
		client:  client,
	}
	s.urls = &URLs{baseURL: s.baseURL, module: s.module}
	return s, nil
}

func (s *Source) Kind() string {
	return kind
}

func (s *Source) URLs() core.URLBuilder {
	return s.urls
}

// CPE derives vendor and product from a hosted module path such as
// github.com/owner/repo.
func (s *Source) CPE() core.CPE {
	parts := strings.Split(s.module, "/")
	if len(parts) >= 3 {
		return core.CPE{Vendor: strings.ToLower(parts[1]), Product: strings.ToLower(parts[2])}
	}
	last := parts[len(parts)-1]
	return core.CPE{Vendor: last, Product: last}
}

// encodeForProxy encodes a module path according to the goproxy protocol.
// Capital letters are replaced with "!" followed by the lowercase letter.
// https://go.dev/ref/mod#goproxy-protocol
func encodeForProxy(path string) string {
	var b strings.Builder
	for _, r := range path {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune('!')
			b.WriteRune(r + 32) // lowercase
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ListRawVersions reads the proxy's version list. The "+incompatible" build
// suffix is dropped. Module zips are source archives, so download URLs come
// from platform templates.
func (s *Source) ListRawVersions(ctx context.Context) ([]core.RawVersion, error) {
	body, err := s.client.GetText(ctx, s.urls.Versions())
	if err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) && (httpErr.IsNotFound() || httpErr.StatusCode == 410) {
			return nil, &core.NotFoundError{Source: kind, Name: s.module}
		}
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(body), "\n")
	versions := make([]core.RawVersion, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		versions = append(versions, core.RawVersion{Name: strings.TrimSuffix(line, "+incompatible")})
	}
	return versions, nil
}

type URLs struct {
	baseURL string
	module  string
}

func (u *URLs) Project() string {
	return fmt.Sprintf("https://pkg.go.dev/%s", u.module)
}

func (u *URLs) Versions() string {
	return fmt.Sprintf("%s/%s/@v/list", u.baseURL, encodeForProxy(u.module))
}

func (u *URLs) PURL(version string) string {
	if version != "" && !strings.HasPrefix(version, "v") {
		version = "v" + version
	}
	i := strings.LastIndexByte(u.module, '/')
	if i < 0 {
		return core.BuildPURL("golang", "", u.module, version)
	}
	return core.BuildPURL("golang", u.module[:i], u.module[i+1:], version)
}
