// Package repository is the file-backed catalog of tools, editions and
// versions together with their per-platform download URLs and verification
// status.
//
// The on-disk layout is
//
//	<root>/<tool>/tool.json
//	<root>/<tool>/<edition>/<version>/urls.json
//	<root>/<tool>/<edition>/<version>/status.json
//	<root>/dependencies.json
//
// Directories are enumerated lazily and nodes are created on demand. Nothing
// is ever deleted. Files are replaced atomically so a crash never leaves a
// partially written file behind.
package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/renameio/v2"
)

const (
	urlsFile         = "urls.json"
	statusFile       = "status.json"
	toolFile         = "tool.json"
	dependenciesFile = "dependencies.json"
	filePerm         = 0o644
	dirPerm          = 0o755
)

// Repository is the root of the catalog.
type Repository struct {
	root string

	mu     sync.Mutex
	tools  map[string]*Tool
	names  []string
	listed bool
}

// Open mounts the repository at root, creating the directory if needed. No
// tool data is read until it is requested.
func Open(root string) (*Repository, error) {
	if root == "" {
		return nil, fmt.Errorf("repository root is empty")
	}
	if err := os.MkdirAll(root, dirPerm); err != nil {
		return nil, fmt.Errorf("creating repository root: %w", err)
	}
	return &Repository{
		root:  root,
		tools: make(map[string]*Tool),
	}, nil
}

// Root returns the directory the repository is mounted at.
func (r *Repository) Root() string {
	return r.root
}

// Tools returns the names of all tools, sorted.
func (r *Repository) Tools() ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.list(); err != nil {
		return nil, err
	}
	return append([]string(nil), r.names...), nil
}

func (r *Repository) list() error {
	if r.listed {
		return nil
	}
	names, err := listDirs(r.root)
	if err != nil {
		return err
	}
	r.names = mergeNames(r.names, names)
	r.listed = true
	return nil
}

// Tool returns an existing tool. It returns a *NotFoundError if the tool has
// neither been created in memory nor exists on disk.
func (r *Repository) Tool(name string) (*Tool, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tools[name]; ok {
		return t, nil
	}
	dir := filepath.Join(r.root, name)
	if !isDir(dir) {
		return nil, &NotFoundError{Tool: name}
	}
	return r.addTool(name), nil
}

// GetOrCreateTool returns the named tool, creating the in-memory node when it
// does not exist yet. The directory is written with the first version.
func (r *Repository) GetOrCreateTool(name string) (*Tool, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if t, ok := r.tools[name]; ok {
		return t, nil
	}
	return r.addTool(name), nil
}

func (r *Repository) addTool(name string) *Tool {
	t := &Tool{
		repo:     r,
		name:     name,
		dir:      filepath.Join(r.root, name),
		editions: make(map[string]*Edition),
	}
	r.tools[name] = t
	r.names = mergeNames(r.names, []string{name})
	return t
}

// ToolMetadata is descriptive data stored next to a tool's editions. The
// CPE names the tool; everything tied to an upstream is kept per edition.
type ToolMetadata struct {
	CPEVendor  string                     `json:"cpeVendor,omitempty"`
	CPEProduct string                     `json:"cpeProduct,omitempty"`
	Editions   map[string]EditionMetadata `json:"editions,omitempty"`
}

// EditionMetadata describes the upstream an edition is crawled from.
type EditionMetadata struct {
	PURL     string `json:"purl,omitempty"`
	Source   string `json:"source,omitempty"`
	Homepage string `json:"homepage,omitempty"`
}

// Tool is a named upstream product.
type Tool struct {
	repo *Repository
	name string
	dir  string

	mu       sync.Mutex
	editions map[string]*Edition
	names    []string
	listed   bool

	metaMu sync.Mutex
}

// Name returns the tool name.
func (t *Tool) Name() string {
	return t.name
}

// Editions returns the names of all editions of the tool, sorted.
func (t *Tool) Editions() ([]string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.listed {
		names, err := listDirs(t.dir)
		if err != nil {
			return nil, err
		}
		t.names = mergeNames(t.names, names)
		t.listed = true
	}
	return append([]string(nil), t.names...), nil
}

// Edition returns an existing edition or a *NotFoundError.
func (t *Tool) Edition(name string) (*Edition, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.editions[name]; ok {
		return e, nil
	}
	if !isDir(filepath.Join(t.dir, name)) {
		return nil, &NotFoundError{Tool: t.name, Edition: name}
	}
	return t.addEdition(name), nil
}

// GetOrCreateEdition returns the named edition, creating it when absent.
func (t *Tool) GetOrCreateEdition(name string) (*Edition, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok := t.editions[name]; ok {
		return e, nil
	}
	return t.addEdition(name), nil
}

func (t *Tool) addEdition(name string) *Edition {
	e := &Edition{
		tool:     t,
		name:     name,
		dir:      filepath.Join(t.dir, name),
		versions: make(map[string]*Version),
	}
	t.editions[name] = e
	t.names = mergeNames(t.names, []string{name})
	return e
}

// Metadata reads tool.json. A missing file yields the zero value.
func (t *Tool) Metadata() (ToolMetadata, error) {
	var m ToolMetadata
	found, err := readJSON(filepath.Join(t.dir, toolFile), &m)
	if err != nil || !found {
		return ToolMetadata{}, err
	}
	return m, nil
}

// SaveMetadata replaces tool.json.
func (t *Tool) SaveMetadata(m ToolMetadata) error {
	t.metaMu.Lock()
	defer t.metaMu.Unlock()
	return writeJSON(filepath.Join(t.dir, toolFile), m)
}

// UpdateMetadata reads tool.json, lets fn modify it and writes it back when
// fn reports a change. Concurrent updates of one Tool are serialised.
func (t *Tool) UpdateMetadata(fn func(m *ToolMetadata) bool) error {
	t.metaMu.Lock()
	defer t.metaMu.Unlock()
	m, err := t.Metadata()
	if err != nil {
		return err
	}
	if !fn(&m) {
		return nil
	}
	return writeJSON(filepath.Join(t.dir, toolFile), m)
}

func validateName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.HasPrefix(name, "."):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, `/\:`):
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// listDirs returns the visible sub-directories of dir. A missing directory
// yields no names.
func listDirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", dir, err)
	}
	var names []string
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		names = append(names, e.Name())
	}
	return names, nil
}

func mergeNames(existing, add []string) []string {
	seen := make(map[string]bool, len(existing))
	for _, n := range existing {
		seen[n] = true
	}
	for _, n := range add {
		if !seen[n] {
			existing = append(existing, n)
			seen[n] = true
		}
	}
	sort.Strings(existing)
	return existing
}

func readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("reading %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return true, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	data = append(data, '\n')
	if err := os.MkdirAll(filepath.Dir(path), dirPerm); err != nil {
		return fmt.Errorf("creating %s: %w", filepath.Dir(path), err)
	}
	if err := renameio.WriteFile(path, data, filePerm); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
