package client

// URLBuilder describes where a source lives upstream.
type URLBuilder interface {
	// Project is the human-facing page of the tool.
	Project() string
	// Versions is the endpoint versions are listed from.
	Versions() string
	// PURL is the package URL of the tool, versioned when version is set.
	PURL(version string) string
}

// BaseURLs provides a default URLBuilder implementation.
type BaseURLs struct {
	ProjectFn  func() string
	VersionsFn func() string
	PURLFn     func(version string) string
}

func (b *BaseURLs) Project() string {
	if b.ProjectFn != nil {
		return b.ProjectFn()
	}
	return ""
}

func (b *BaseURLs) Versions() string {
	if b.VersionsFn != nil {
		return b.VersionsFn()
	}
	return ""
}

func (b *BaseURLs) PURL(version string) string {
	if b.PURLFn != nil {
		return b.PURLFn(version)
	}
	return ""
}

// BuildURLs returns a map of all non-empty URLs of a source.
// Keys are "project", "versions" and "purl".
func BuildURLs(urls URLBuilder, version string) map[string]string {
	result := make(map[string]string)
	if v := urls.Project(); v != "" {
		result["project"] = v
	}
	if v := urls.Versions(); v != "" {
		result["versions"] = v
	}
	if v := urls.PURL(version); v != "" {
		result["purl"] = v
	}
	return result
}
