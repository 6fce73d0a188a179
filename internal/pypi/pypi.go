// Package pypi lists tool versions published to the Python Package Index.
package pypi

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/git-pkgs/toolurls/internal/core"
)

const (
	DefaultURL = "https://pypi.org"
	kind       = "pypi"
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

func (s *Source) CPE() core.CPE {
	n := normalizeName(s.name)
	return core.CPE{Vendor: n, Product: n}
}

type packageResponse struct {
	Info     infoBlock                `json:"info"`
	Releases map[string][]releaseFile `json:"releases"`
}

type infoBlock struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type releaseFile struct {
	Digests     map[string]string `json:"digests"`
	Filename    string            `json:"filename"`
	URL         string            `json:"url"`
	UploadTime  string            `json:"upload_time_iso_8601"`
	Yanked      bool              `json:"yanked"`
	PackageType string            `json:"packagetype"`
}

// ListRawVersions reads the project's JSON document. A release with files
// is reported with the URL and SHA-256 of its preferred file. Releases whose
// files are all yanked are left out. Releases without files are reported
// without a URL so platform templates can still apply.
func (s *Source) ListRawVersions(ctx context.Context) ([]core.RawVersion, error) {
	var resp packageResponse
	if err := s.client.GetJSON(ctx, s.urls.Versions(), &resp); err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Source: kind, Name: s.name}
		}
		return nil, err
	}

	versions := make([]core.RawVersion, 0, len(resp.Releases))
	for num, files := range resp.Releases {
		if len(files) == 0 {
			versions = append(versions, core.RawVersion{Name: num})
			continue
		}
		file, ok := preferredFile(files)
		if !ok {
			continue
		}

		var publishedAt time.Time
		if file.UploadTime != "" {
			publishedAt, _ = time.Parse(time.RFC3339, file.UploadTime)
		}

		var checksum string
		if sum, ok := file.Digests["sha256"]; ok && sum != "" {
			checksum = "sha256:" + sum
		}

		versions = append(versions, core.RawVersion{
			Name:        num,
			URL:         file.URL,
			Checksum:    checksum,
			PublishedAt: publishedAt,
		})
	}
	return versions, nil
}

// preferredFile picks the sdist, then a pure-Python wheel, then any other
// file. Yanked files are never picked.
func preferredFile(files []releaseFile) (releaseFile, bool) {
	rank := func(f releaseFile) int {
		switch {
		case f.PackageType == "sdist":
			return 0
		case strings.HasSuffix(f.Filename, "-none-any.whl"):
			return 1
		}
		return 2
	}
	best, found := releaseFile{}, false
	for _, f := range files {
		if f.Yanked || f.URL == "" {
			continue
		}
		if !found || rank(f) < rank(best) {
			best, found = f, true
		}
	}
	return best, found
}

func normalizeName(name string) string {
	name = strings.ToLower(name)
	name = strings.ReplaceAll(name, "_", "-")
	name = strings.ReplaceAll(name, ".", "-")
	return name
}

type URLs struct {
	baseURL string
	name    string
}

func (u *URLs) Project() string {
	return fmt.Sprintf("%s/project/%s/", u.baseURL, u.name)
}

func (u *URLs) Versions() string {
	return fmt.Sprintf("%s/pypi/%s/json", u.baseURL, u.name)
}

func (u *URLs) PURL(version string) string {
	return core.BuildPURL("pypi", "", normalizeName(u.name), version)
}
