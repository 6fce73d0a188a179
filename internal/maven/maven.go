// Package maven lists tool versions from the maven-metadata.xml of a Maven
// repository artifact.
package maven

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"

	"github.com/git-pkgs/toolurls/internal/core"
)

const (
	DefaultURL = "https://repo1.maven.org/maven2"
	kind       = "maven"
)

func init() {
	core.Register(kind, DefaultURL, func(cfg core.ToolConfig, baseURL string, client *core.Client) (core.VersionSource, error) {
		return New(cfg, baseURL, client)
	})
}

type Source struct {
	*core.Mapper
	baseURL    string
	groupID    string
	artifactID string
	client     *core.Client
	urls       *URLs
}

// New creates a source for cfg.Package, which must be "group:artifact".
func New(cfg core.ToolConfig, baseURL string, client *core.Client) (*Source, error) {
	groupID, artifactID, _ := ParseCoordinates(cfg.Package)
	if groupID == "" || artifactID == "" {
		return nil, fmt.Errorf("maven package %q: want group:artifact", cfg.Package)
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
	s := &Source{
		Mapper:     mapper,
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		groupID:    groupID,
		artifactID: artifactID,
		client:     client,
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

// CPE uses the last group segment as vendor, so org.apache.maven yields
// "maven".
func (s *Source) CPE() core.CPE {
	vendor := s.groupID
	if i := strings.LastIndexByte(vendor, '.'); i >= 0 {
		vendor = vendor[i+1:]
	}
	return core.CPE{Vendor: vendor, Product: s.artifactID}
}

// ParseCoordinates splits "group:artifact[:version]".
func ParseCoordinates(coords string) (groupID, artifactID, version string) {
	parts := strings.Split(coords, ":")
	switch len(parts) {
	case 2:
		return parts[0], parts[1], ""
	case 3:
		return parts[0], parts[1], parts[2]
	}
	return "", "", ""
}

type metadata struct {
	XMLName    xml.Name   `xml:"metadata"`
	GroupID    string     `xml:"groupId"`
	ArtifactID string     `xml:"artifactId"`
	Versioning versioning `xml:"versioning"`
}

type versioning struct {
	Latest   string   `xml:"latest"`
	Release  string   `xml:"release"`
	Versions []string `xml:"versions>version"`
}

// ListRawVersions reads versioning.versions from maven-metadata.xml. Maven
// publishes no per-version download URL, so platform templates apply.
func (s *Source) ListRawVersions(ctx context.Context) ([]core.RawVersion, error) {
	var m metadata
	if err := s.client.GetXML(ctx, s.urls.Versions(), &m); err != nil {
		var httpErr *core.HTTPError
		if errors.As(err, &httpErr) && httpErr.IsNotFound() {
			return nil, &core.NotFoundError{Source: kind, Name: s.groupID + ":" + s.artifactID}
		}
		return nil, err
	}

	versions := make([]core.RawVersion, 0, len(m.Versioning.Versions))
	for _, v := range m.Versioning.Versions {
		if v = strings.TrimSpace(v); v != "" {
			versions = append(versions, core.RawVersion{Name: v})
		}
	}
	return versions, nil
}

type URLs struct {
	source *Source
}

func (u *URLs) groupPath() string {
	return strings.ReplaceAll(u.source.groupID, ".", "/")
}

func (u *URLs) Project() string {
	return fmt.Sprintf("https://central.sonatype.com/artifact/%s/%s", u.source.groupID, u.source.artifactID)
}

func (u *URLs) Versions() string {
	return fmt.Sprintf("%s/%s/%s/maven-metadata.xml", u.source.baseURL, u.groupPath(), u.source.artifactID)
}

// Download is the repository location of the artifact with the given
// classifier and extension, e.g. ("bin", "zip").
func (u *URLs) Download(version, classifier, ext string) string {
	if version == "" {
		return ""
	}
	name := u.source.artifactID + "-" + version
	if classifier != "" {
		name += "-" + classifier
	}
	return fmt.Sprintf("%s/%s/%s/%s/%s.%s", u.source.baseURL, u.groupPath(), u.source.artifactID, version, name, ext)
}

func (u *URLs) PURL(version string) string {
	return core.BuildPURL("maven", u.source.groupID, u.source.artifactID, version)
}
