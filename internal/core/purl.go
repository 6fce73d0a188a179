package core

import (
	"context"
	"fmt"

	packageurl "github.com/package-url/packageurl-go"
)

// PURL wraps packageurl.PackageURL with source-specific helpers.
type PURL struct {
	packageurl.PackageURL
}

// purlSources maps PURL types to the source kind that lists their versions.
var purlSources = map[string]string{
	"github": "github",
	"npm":    "npm",
	"pypi":   "pypi",
	"maven":  "maven",
	"golang": "goproxy",
}

// FullName returns the package name in the format expected by the source.
// For npm: "@angular/cli", for maven: "org.apache.maven:apache-maven",
// for github: "owner/repo".
func (p PURL) FullName() string {
	if p.Namespace == "" {
		return p.Name
	}
	switch p.Type {
	case "maven":
		return p.Namespace + ":" + p.Name
	default:
		// npm keeps the @ in the namespace, so "@angular" + "/" + "cli"
		return p.Namespace + "/" + p.Name
	}
}

// ParsePURL parses a Package URL string into its components.
// Supports both package PURLs (pkg:npm/lodash) and version PURLs (pkg:npm/lodash@4.17.21).
func ParsePURL(purl string) (*PURL, error) {
	p, err := packageurl.FromString(purl)
	if err != nil {
		return nil, err
	}
	return &PURL{p}, nil
}

// BuildPURL formats a package URL. Empty version yields an unversioned PURL.
func BuildPURL(purlType, namespace, name, version string) string {
	return packageurl.NewPackageURL(purlType, namespace, name, version, nil, "").ToString()
}

// ConfigFromPURL derives a tool configuration from a PURL. The tool and
// edition are the package name; a repository_url qualifier becomes the
// source base URL.
func ConfigFromPURL(purl string) (ToolConfig, error) {
	p, err := ParsePURL(purl)
	if err != nil {
		return ToolConfig{}, err
	}
	kind, ok := purlSources[p.Type]
	if !ok {
		return ToolConfig{}, fmt.Errorf("no version source for PURL type %q", p.Type)
	}
	return ToolConfig{
		Tool:    p.Name,
		Source:  kind,
		Package: p.FullName(),
		BaseURL: p.Qualifiers.Map()["repository_url"],
	}, nil
}

// NewFromPURL creates a version source from a PURL and returns it with the
// derived configuration.
func NewFromPURL(purl string, client *Client) (VersionSource, ToolConfig, error) {
	cfg, err := ConfigFromPURL(purl)
	if err != nil {
		return nil, ToolConfig{}, err
	}
	src, err := New(cfg, client)
	if err != nil {
		return nil, ToolConfig{}, err
	}
	return src, cfg, nil
}

// ListVersionsFromPURL lists the canonical versions of the package a PURL
// names, applying the default mapping policy.
func ListVersionsFromPURL(ctx context.Context, purl string, client *Client) ([]string, error) {
	src, cfg, err := NewFromPURL(purl, client)
	if err != nil {
		return nil, err
	}
	raws, err := src.ListRawVersions(ctx)
	if err != nil {
		return nil, &SourceUnavailableError{Tool: cfg.Tool, Source: cfg.Source, Err: err}
	}
	return canonicalVersions(src, raws), nil
}
