package core

import (
	"sort"
	"strings"

	"github.com/git-pkgs/toolurls/repository"
	"github.com/git-pkgs/toolurls/version"
)

// PlatformRule maps one platform to a URL template, optionally only for a
// range of versions.
//
// Templates may use ${version}, ${major}, ${minor}, ${patch}, ${os}, ${arch},
// ${tool} and ${edition}. OSNames and ArchNames rename the values substituted
// for ${os} and ${arch}, e.g. mac to "darwin" or x64 to "amd64".
type PlatformRule struct {
	Platform repository.Platform
	URL      string
	Versions version.Range // the zero Range is treated as version.Any()
	OSName   string
	ArchName string
}

// Templates is the PlatformTemplate built from a list of rules. When several
// rules name the same platform the first one whose range contains the
// version wins.
type Templates struct {
	tool    string
	edition string
	rules   []PlatformRule
}

// NewTemplates builds a PlatformTemplate for tool and edition.
func NewTemplates(tool, edition string, rules []PlatformRule) *Templates {
	out := make([]PlatformRule, len(rules))
	for i, r := range rules {
		if !r.Versions.Valid() && r.Versions.Raw() == "" {
			r.Versions = version.Any()
		}
		out[i] = r
	}
	if edition == "" {
		edition = tool
	}
	return &Templates{tool: tool, edition: edition, rules: out}
}

// Platforms returns each distinct platform once, sorted.
func (t *Templates) Platforms() []repository.Platform {
	seen := make(map[repository.Platform]bool)
	var out []repository.Platform
	for _, r := range t.rules {
		if !seen[r.Platform] {
			seen[r.Platform] = true
			out = append(out, r.Platform)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// URLFor expands the first rule for p whose range contains v.
func (t *Templates) URLFor(v version.Identifier, p repository.Platform) (string, bool) {
	for _, r := range t.rules {
		if r.Platform != p || !r.Versions.Contains(v) {
			continue
		}
		return Expand(r.URL, t.vars(v, r)), true
	}
	return "", false
}

func (t *Templates) vars(v version.Identifier, r PlatformRule) map[string]string {
	osName := r.OSName
	if osName == "" {
		osName = string(r.Platform.OS)
	}
	archName := r.ArchName
	if archName == "" {
		archName = string(r.Platform.Arch)
	}
	return map[string]string{
		"version": v.String(),
		"major":   v.Component(0),
		"minor":   v.Component(1),
		"patch":   v.Component(2),
		"os":      osName,
		"arch":    archName,
		"tool":    t.tool,
		"edition": t.edition,
	}
}

// Expand replaces ${name} placeholders with vars. Unknown placeholders are
// left as they are.
func Expand(template string, vars map[string]string) string {
	var b strings.Builder
	for {
		start := strings.Index(template, "${")
		if start < 0 {
			b.WriteString(template)
			return b.String()
		}
		end := strings.IndexByte(template[start:], '}')
		if end < 0 {
			b.WriteString(template)
			return b.String()
		}
		end += start
		b.WriteString(template[:start])
		name := template[start+2 : end]
		if val, ok := vars[name]; ok {
			b.WriteString(val)
		} else {
			b.WriteString(template[start : end+1])
		}
		template = template[end+1:]
	}
}
