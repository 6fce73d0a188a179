package repository

import (
	"fmt"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/git-pkgs/toolurls/version"
)

// URLEntry is the download location of one platform's artifact.
type URLEntry struct {
	URL      string `json:"url"`
	Checksum string `json:"checksum,omitempty"`
}

// Version is one concrete release of an edition.
type Version struct {
	edition *Edition
	name    string
	id      version.Identifier
	dir     string

	mu        sync.Mutex
	urls      map[Platform]URLEntry
	status    Status
	persisted bool
	dirty     bool
}

func newVersion(e *Edition, canonical string, id version.Identifier) *Version {
	return &Version{
		edition: e,
		name:    canonical,
		id:      id,
		dir:     filepath.Join(e.dir, canonical),
		urls:    make(map[Platform]URLEntry),
		status:  make(Status),
	}
}

func (v *Version) load() error {
	urls := make(map[Platform]URLEntry)
	if _, err := readJSON(filepath.Join(v.dir, urlsFile), &urls); err != nil {
		return err
	}
	status := make(Status)
	if _, err := readJSON(filepath.Join(v.dir, statusFile), &status); err != nil {
		return err
	}
	v.urls = urls
	v.status = status
	return nil
}

// String returns the canonical version string.
func (v *Version) String() string {
	return v.name
}

// Identifier returns the parsed version.
func (v *Version) Identifier() version.Identifier {
	return v.id
}

// Edition returns the owning edition.
func (v *Version) Edition() *Edition {
	return v.edition
}

// Persisted reports whether the version exists on disk.
func (v *Version) Persisted() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.persisted
}

// Dirty reports whether the version has unsaved changes.
func (v *Version) Dirty() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.dirty
}

// URLs returns a copy of the platform to URL mapping.
func (v *Version) URLs() map[Platform]URLEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make(map[Platform]URLEntry, len(v.urls))
	for p, u := range v.urls {
		out[p] = u
	}
	return out
}

// Platforms returns the platforms with a URL entry, sorted by key.
func (v *Version) Platforms() []Platform {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]Platform, 0, len(v.urls))
	for p := range v.urls {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// URL returns the entry for p.
func (v *Version) URL(p Platform) (URLEntry, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	u, ok := v.urls[p]
	return u, ok
}

// AddURL maps p to url. Adding the same URL again is a no-op apart from
// filling in a missing checksum. A different URL for a mapped platform fails
// with ErrURLConflict.
func (v *Version) AddURL(p Platform, url, checksum string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if cur, ok := v.urls[p]; ok {
		if cur.URL != url {
			return fmt.Errorf("%w: %s %s has %s, not %s", ErrURLConflict, v.name, p, cur.URL, url)
		}
		if cur.Checksum == "" && checksum != "" {
			cur.Checksum = checksum
			v.urls[p] = cur
			v.dirty = true
		}
		return nil
	}
	v.urls[p] = URLEntry{URL: url, Checksum: checksum}
	v.dirty = true
	return nil
}

// Status returns a copy of the per-URL status map.
func (v *Version) Status() Status {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status.clone()
}

// StatusOf returns the status entry of url.
func (v *Version) StatusOf(url string) StatusEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.status[url]
}

// SetStatus replaces the status entry of url.
func (v *Version) SetStatus(url string, entry StatusEntry) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.status[url] = entry
	v.dirty = true
}

// RecordSuccess stores a success for url at now.
func (v *Version) RecordSuccess(url string, now time.Time) {
	v.SetStatus(url, v.StatusOf(url).WithSuccess(now))
}

// RecordError stores a failure for url at now.
func (v *Version) RecordError(url string, now time.Time, code int, message string) {
	v.SetStatus(url, v.StatusOf(url).WithError(now, code, message))
}

// Verified reports whether at least one platform URL has succeeded.
func (v *Version) Verified() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, u := range v.urls {
		if v.status[u.URL].Succeeded() {
			return true
		}
	}
	return false
}

// VerifiedPlatform reports whether p has a URL whose latest outcome is a
// success.
func (v *Version) VerifiedPlatform(p Platform) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	u, ok := v.urls[p]
	return ok && v.status[u.URL].Succeeded()
}

// Save writes urls.json and status.json atomically. It is a no-op when
// nothing changed since the last load or save.
func (v *Version) Save() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if !v.dirty && v.persisted {
		return nil
	}
	if err := writeJSON(filepath.Join(v.dir, urlsFile), v.urls); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(v.dir, statusFile), v.status); err != nil {
		return err
	}
	v.persisted = true
	v.dirty = false
	return nil
}
