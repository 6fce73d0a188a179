package repository

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a tool, edition or version does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidName is returned for names that cannot be used as a path
	// component.
	ErrInvalidName = errors.New("invalid name")

	// ErrInvalidVersion is returned when a canonical version string does not
	// parse as a valid identifier.
	ErrInvalidVersion = errors.New("invalid version")

	// ErrURLConflict is returned when a platform already maps to another URL.
	ErrURLConflict = errors.New("platform already has a different url")

	// ErrNoMatch is returned by Resolve when no published version satisfies
	// the query.
	ErrNoMatch = errors.New("no matching version")
)

// NotFoundError wraps ErrNotFound with the path that was looked up.
type NotFoundError struct {
	Tool    string
	Edition string
	Version string
}

func (e *NotFoundError) Error() string {
	switch {
	case e.Version != "":
		return fmt.Sprintf("version %s of %s/%s not found", e.Version, e.Tool, e.Edition)
	case e.Edition != "":
		return fmt.Sprintf("edition %s of tool %s not found", e.Edition, e.Tool)
	}
	return fmt.Sprintf("tool %s not found", e.Tool)
}

func (e *NotFoundError) Unwrap() error {
	return ErrNotFound
}
