package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/git-pkgs/toolurls/version"
)

// Query selects a download for an installer.
type Query struct {
	Tool    string
	Edition string // defaults to Tool
	Range   version.Range
	OS      OS
	Arch    Arch
}

// Resolved is the answer to a Query.
type Resolved struct {
	Tool     string
	Edition  string
	Version  string
	Platform Platform
	URL      string
	Checksum string
}

// Resolve returns the highest version inside q.Range that has a URL for
// (q.OS, q.Arch), or for AnyPlatform, whose latest status is a success.
// ErrNoMatch is returned when no version qualifies.
func (r *Repository) Resolve(ctx context.Context, q Query) (*Resolved, error) {
	edition := q.Edition
	if edition == "" {
		edition = q.Tool
	}
	tool, err := r.Tool(q.Tool)
	if err != nil {
		return nil, err
	}
	ed, err := tool.Edition(edition)
	if err != nil {
		return nil, err
	}
	names, err := ed.VersionNames()
	if err != nil {
		return nil, err
	}

	want := Platform{OS: q.OS, Arch: q.Arch}
	for i := len(names) - 1; i >= 0; i-- {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !q.Range.Contains(version.Parse(names[i])) {
			continue
		}
		v, err := ed.Version(names[i])
		if err != nil {
			var nf *NotFoundError
			if errors.As(err, &nf) {
				continue
			}
			return nil, err
		}
		for _, p := range []Platform{want, AnyPlatform} {
			entry, ok := v.URL(p)
			if !ok || !v.StatusOf(entry.URL).Succeeded() {
				continue
			}
			return &Resolved{
				Tool:     q.Tool,
				Edition:  edition,
				Version:  v.String(),
				Platform: p,
				URL:      entry.URL,
				Checksum: entry.Checksum,
			}, nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s %s on %s", ErrNoMatch, q.Tool, edition, q.Range, want)
}
