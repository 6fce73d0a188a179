package repository

import (
	"path/filepath"
	"sort"

	"github.com/git-pkgs/toolurls/version"
)

// Dependency states that a tool requires another tool within a version range.
type Dependency struct {
	Tool         string        `json:"tool"`
	VersionRange version.Range `json:"versionRange"`
}

// Dependencies maps a tool name to the tools it requires.
type Dependencies map[string][]Dependency

// For returns the dependencies declared for tool.
func (d Dependencies) For(tool string) []Dependency {
	return d[tool]
}

// Add declares that tool requires dep within rng. Declaring the same
// dependency again replaces its range.
func (d Dependencies) Add(tool, dep string, rng version.Range) {
	for i, existing := range d[tool] {
		if existing.Tool == dep {
			d[tool][i].VersionRange = rng
			return
		}
	}
	d[tool] = append(d[tool], Dependency{Tool: dep, VersionRange: rng})
	sort.Slice(d[tool], func(i, j int) bool { return d[tool][i].Tool < d[tool][j].Tool })
}

// Dependents returns the tools that declare a dependency on tool, sorted.
func (d Dependencies) Dependents(tool string) []string {
	var out []string
	for name, deps := range d {
		for _, dep := range deps {
			if dep.Tool == tool {
				out = append(out, name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// LoadDependencies reads <root>/dependencies.json. A missing file yields an
// empty declaration set.
func (r *Repository) LoadDependencies() (Dependencies, error) {
	deps := make(Dependencies)
	if _, err := readJSON(filepath.Join(r.root, dependenciesFile), &deps); err != nil {
		return nil, err
	}
	return deps, nil
}

// SaveDependencies replaces <root>/dependencies.json.
func (r *Repository) SaveDependencies(deps Dependencies) error {
	return writeJSON(filepath.Join(r.root, dependenciesFile), deps)
}
