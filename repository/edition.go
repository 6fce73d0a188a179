package repository

import (
	"fmt"
	"iter"
	"path/filepath"
	"sort"
	"sync"

	"github.com/git-pkgs/toolurls/version"
)

// Edition is a named distribution of a Tool. It owns the tool's versions,
// keyed by canonical version string.
type Edition struct {
	tool *Tool
	name string
	dir  string

	mu       sync.Mutex
	versions map[string]*Version
	names    []string
	listed   bool
}

// Name returns the edition name.
func (e *Edition) Name() string {
	return e.name
}

// Tool returns the owning tool.
func (e *Edition) Tool() *Tool {
	return e.tool
}

// Version returns an existing version, loading its URL and status files on
// first access. It returns a *NotFoundError when the version is unknown.
func (e *Edition) Version(canonical string) (*Version, error) {
	if err := validateName(canonical); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.versions[canonical]; ok {
		return v, nil
	}
	if !isDir(filepath.Join(e.dir, canonical)) {
		return nil, &NotFoundError{Tool: e.tool.name, Edition: e.name, Version: canonical}
	}
	return e.loadVersion(canonical)
}

// GetOrCreateVersion returns the version with the given canonical string,
// creating an unsaved node when it does not exist. The canonical string must
// parse as a valid identifier.
func (e *Edition) GetOrCreateVersion(canonical string) (*Version, error) {
	if err := validateName(canonical); err != nil {
		return nil, err
	}
	id := version.Parse(canonical)
	if !id.Valid() || id.String() != canonical {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, canonical)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.versions[canonical]; ok {
		return v, nil
	}
	if isDir(filepath.Join(e.dir, canonical)) {
		return e.loadVersion(canonical)
	}
	v := newVersion(e, canonical, id)
	e.versions[canonical] = v
	e.names = mergeVersionNames(e.names, canonical)
	return v, nil
}

// Discard forgets an in-memory version that was never saved. Persisted
// versions are kept; it reports whether the node was dropped.
func (e *Edition) Discard(v *Version) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v.Persisted() || e.versions[v.name] != v {
		return false
	}
	delete(e.versions, v.name)
	for i, n := range e.names {
		if n == v.name {
			e.names = append(e.names[:i], e.names[i+1:]...)
			break
		}
	}
	return true
}

func (e *Edition) loadVersion(canonical string) (*Version, error) {
	id := version.Parse(canonical)
	if !id.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidVersion, canonical)
	}
	v := newVersion(e, canonical, id)
	if err := v.load(); err != nil {
		return nil, err
	}
	v.persisted = true
	e.versions[canonical] = v
	e.names = mergeVersionNames(e.names, canonical)
	return v, nil
}

// Versions yields the edition's versions in ascending identifier order.
// Version data is loaded as each element is reached. The directory is read
// once per Edition; iterating again replays the loaded set. Directories whose
// name is not a valid version are ignored.
func (e *Edition) Versions() iter.Seq2[*Version, error] {
	return func(yield func(*Version, error) bool) {
		names, err := e.versionNames()
		if err != nil {
			yield(nil, err)
			return
		}
		for _, name := range names {
			v, err := e.Version(name)
			if !yield(v, err) {
				return
			}
		}
	}
}

// VersionNames returns the canonical strings of all versions, ascending.
func (e *Edition) VersionNames() ([]string, error) {
	return e.versionNames()
}

func (e *Edition) versionNames() ([]string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.listed {
		names, err := listDirs(e.dir)
		if err != nil {
			return nil, err
		}
		for _, n := range names {
			if version.Parse(n).Valid() {
				e.names = mergeVersionNames(e.names, n)
			}
		}
		e.listed = true
	}
	return append([]string(nil), e.names...), nil
}

func mergeVersionNames(names []string, add string) []string {
	for _, n := range names {
		if n == add {
			return names
		}
	}
	names = append(names, add)
	sort.SliceStable(names, func(i, j int) bool {
		a, b := version.Parse(names[i]), version.Parse(names[j])
		switch a.Compare(b) {
		case version.Less:
			return true
		case version.Equal:
			return names[i] < names[j]
		}
		return false
	})
	return names
}
