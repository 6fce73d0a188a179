package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/git-pkgs/toolurls/internal/core"
	"github.com/git-pkgs/toolurls/repository"
	"github.com/git-pkgs/toolurls/version"
)

// CatalogEntry is one (tool, edition) in tools.json. An entry names its
// upstream either with source and package or with a PURL.
type CatalogEntry struct {
	Tool    string `json:"tool"`
	Edition string `json:"edition,omitempty"`
	Source  string `json:"source,omitempty"`
	Package string `json:"package,omitempty"`
	PURL    string `json:"purl,omitempty"`
	BaseURL string `json:"baseURL,omitempty"`

	TagPrefix          string `json:"tagPrefix,omitempty"`
	VersionPattern     string `json:"versionPattern,omitempty"`
	MinVersion         string `json:"minVersion,omitempty"`
	Versions           string `json:"versions,omitempty"`
	IncludePrereleases bool   `json:"includePrereleases,omitempty"`

	Release  bool   `json:"release,omitempty"`
	Pattern  string `json:"pattern,omitempty"`
	Checksum bool   `json:"checksum,omitempty"`

	CPE       core.CPE        `json:"cpe"`
	Platforms []PlatformEntry `json:"platforms,omitempty"`
}

// PlatformEntry is a URL template for one platform.
type PlatformEntry struct {
	OS       string `json:"os"`
	Arch     string `json:"arch"`
	URL      string `json:"url"`
	Versions string `json:"versions,omitempty"`
	OSName   string `json:"osName,omitempty"`
	ArchName string `json:"archName,omitempty"`
}

// LoadCatalog reads and validates the catalog at path.
func LoadCatalog(path string) ([]core.ToolConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}
	cfgs, err := ParseCatalog(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfgs, nil
}

// ParseCatalog decodes a JSON array of catalog entries. Every problem is
// reported, not just the first.
func ParseCatalog(data []byte) ([]core.ToolConfig, error) {
	var entries []CatalogEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decoding catalog: %w", err)
	}

	var errs []error
	seen := make(map[string]int)
	cfgs := make([]core.ToolConfig, 0, len(entries))
	for i, e := range entries {
		cfg, err := e.ToolConfig()
		if err != nil {
			errs = append(errs, fmt.Errorf("entry %d: %w", i, err))
			continue
		}
		key := cfg.Tool + "/" + cfg.EditionName()
		if prev, ok := seen[key]; ok {
			errs = append(errs, fmt.Errorf("entry %d: %s duplicates entry %d", i, key, prev))
			continue
		}
		seen[key] = i
		cfgs = append(cfgs, cfg)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfgs, nil
}

// ToolConfig converts e, resolving its PURL and parsing its platforms.
func (e CatalogEntry) ToolConfig() (core.ToolConfig, error) {
	if e.Tool == "" {
		return core.ToolConfig{}, errors.New("missing tool")
	}

	cfg := core.ToolConfig{
		Tool:    e.Tool,
		Edition: e.Edition,
		Source:  e.Source,
		Package: e.Package,
		BaseURL: e.BaseURL,
		Mapping: core.MappingConfig{
			TagPrefix:          e.TagPrefix,
			VersionPattern:     e.VersionPattern,
			MinVersion:         e.MinVersion,
			Versions:           e.Versions,
			IncludePrereleases: e.IncludePrereleases,
		},
		Release:  e.Release,
		Pattern:  e.Pattern,
		Checksum: e.Checksum,
		CPE:      e.CPE,
	}

	if e.PURL != "" {
		derived, err := core.ConfigFromPURL(e.PURL)
		if err != nil {
			return core.ToolConfig{}, fmt.Errorf("%s: %w", e.Tool, err)
		}
		if cfg.Source == "" {
			cfg.Source = derived.Source
		}
		if cfg.Package == "" {
			cfg.Package = derived.Package
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = derived.BaseURL
		}
	}
	if cfg.Source == "" {
		return core.ToolConfig{}, fmt.Errorf("%s: missing source", e.Tool)
	}
	if cfg.Package == "" {
		return core.ToolConfig{}, fmt.Errorf("%s: missing package", e.Tool)
	}

	for _, p := range e.Platforms {
		rule, err := p.rule()
		if err != nil {
			return core.ToolConfig{}, fmt.Errorf("%s: %w", e.Tool, err)
		}
		cfg.Platforms = append(cfg.Platforms, rule)
	}
	return cfg, nil
}

func (p PlatformEntry) rule() (core.PlatformRule, error) {
	os, err := repository.ParseOS(p.OS)
	if err != nil {
		return core.PlatformRule{}, err
	}
	arch, err := repository.ParseArch(p.Arch)
	if err != nil {
		return core.PlatformRule{}, err
	}
	if p.URL == "" {
		return core.PlatformRule{}, fmt.Errorf("%s-%s: missing url", os, arch)
	}
	rng := version.Any()
	if p.Versions != "" {
		rng = version.ParseRange(p.Versions)
		if !rng.Valid() {
			return core.PlatformRule{}, fmt.Errorf("%s-%s: invalid version range %q", os, arch, p.Versions)
		}
	}
	return core.PlatformRule{
		Platform: repository.Platform{OS: os, Arch: arch},
		URL:      p.URL,
		Versions: rng,
		OSName:   p.OSName,
		ArchName: p.ArchName,
	}, nil
}
