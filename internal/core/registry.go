package core

import (
	"fmt"
	"sort"
	"sync"
)

// Factory creates a version source for a tool configuration. baseURL is
// cfg.BaseURL or the default registered for the source kind.
type Factory func(cfg ToolConfig, baseURL string, client *Client) (VersionSource, error)

var (
	factories = make(map[string]Factory)
	defaults  = make(map[string]string)
	mu        sync.RWMutex
)

// Register adds a source factory to the global registry.
// kind is the catalog source name (e.g. "github", "npm", "maven").
// defaultURL is the default API endpoint for the kind.
func Register(kind string, defaultURL string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = factory
	defaults[kind] = defaultURL
}

// New creates the version source configured by cfg.
// If client is nil, DefaultClient() is used.
func New(cfg ToolConfig, client *Client) (VersionSource, error) {
	mu.RLock()
	factory, ok := factories[cfg.Source]
	defaultURL := defaults[cfg.Source]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown source: %q", cfg.Source)
	}
	if cfg.Package == "" {
		return nil, fmt.Errorf("%s: %s source needs a package", cfg.Tool, cfg.Source)
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultURL
	}
	if client == nil {
		client = DefaultClient()
	}
	return factory(cfg, baseURL, client)
}

// SupportedSources returns all registered source kinds, sorted.
func SupportedSources() []string {
	mu.RLock()
	defer mu.RUnlock()

	kinds := make([]string, 0, len(factories))
	for kind := range factories {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// DefaultURL returns the default API endpoint for a source kind.
func DefaultURL(kind string) string {
	mu.RLock()
	defer mu.RUnlock()
	return defaults[kind]
}
