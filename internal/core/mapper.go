package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/git-pkgs/toolurls/version"
)

// MappingConfig is the policy applied to raw upstream version strings.
type MappingConfig struct {
	// TagPrefix is stripped after "refs/tags/". When empty a leading "v"
	// in front of a digit is stripped instead.
	TagPrefix string

	// VersionPattern extracts the version from a longer string. It uses the
	// group named "version" or else the first capture group.
	VersionPattern string

	// MinVersion rejects anything below it.
	MinVersion string

	// Versions rejects anything outside the range.
	Versions string

	IncludePrereleases bool
}

// Mapper is the default MapVersion implementation. Sources embed it.
type Mapper struct {
	prefix      string
	pattern     *regexp.Regexp
	group       int
	min         version.Identifier
	hasMin      bool
	rng         version.Range
	prereleases bool
}

// NewMapper compiles cfg. An unparsable minimum version or range is an
// error rather than a policy that silently rejects everything.
func NewMapper(cfg MappingConfig) (*Mapper, error) {
	m := &Mapper{
		prefix:      cfg.TagPrefix,
		rng:         version.Any(),
		prereleases: cfg.IncludePrereleases,
	}
	if cfg.VersionPattern != "" {
		re, err := regexp.Compile(cfg.VersionPattern)
		if err != nil {
			return nil, fmt.Errorf("version pattern: %w", err)
		}
		m.pattern = re
		m.group = captureGroup(re)
	}
	if cfg.MinVersion != "" {
		m.min = version.Parse(cfg.MinVersion)
		if !m.min.Valid() {
			return nil, fmt.Errorf("invalid minimum version %q", cfg.MinVersion)
		}
		m.hasMin = true
	}
	if cfg.Versions != "" {
		m.rng = version.ParseRange(cfg.Versions)
		if !m.rng.Valid() {
			return nil, fmt.Errorf("invalid version range %q", cfg.Versions)
		}
	}
	return m, nil
}

// MustMapper is like NewMapper but panics on error.
func MustMapper(cfg MappingConfig) *Mapper {
	m, err := NewMapper(cfg)
	if err != nil {
		panic(err)
	}
	return m
}

// captureGroup returns the index of the "version" group, or 1 when the
// expression has any group, or 0 for the whole match.
func captureGroup(re *regexp.Regexp) int {
	if i := re.SubexpIndex("version"); i > 0 {
		return i
	}
	if re.NumSubexp() > 0 {
		return 1
	}
	return 0
}

// MapVersion applies the mapping policy to raw.
func (m *Mapper) MapVersion(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "refs/tags/")

	if m.pattern != nil {
		match := m.pattern.FindStringSubmatch(s)
		if match == nil || match[m.group] == "" {
			return "", false
		}
		s = match[m.group]
	} else {
		s = m.stripPrefix(s)
	}

	if strings.ContainsAny(s, `/\:`) || strings.HasPrefix(s, ".") {
		return "", false
	}
	id := version.Parse(s)
	if !id.Valid() {
		return "", false
	}
	if m.hasMin && id.Compare(m.min) == version.Less {
		return "", false
	}
	if !m.rng.Contains(id) {
		return "", false
	}
	if !m.prereleases && id.IsPrerelease() {
		return "", false
	}
	return id.String(), true
}

func (m *Mapper) stripPrefix(s string) string {
	if m.prefix != "" {
		rest, ok := strings.CutPrefix(s, m.prefix)
		if !ok {
			return ""
		}
		return rest
	}
	if len(s) > 1 && (s[0] == 'v' || s[0] == 'V') && s[1] >= '0' && s[1] <= '9' {
		return s[1:]
	}
	return s
}
