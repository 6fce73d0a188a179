package core

import (
	"fmt"

	"github.com/git-pkgs/toolurls/client"
)

// Error aliases so source implementations only import core.
var ErrNotFound = client.ErrNotFound

type (
	HTTPError      = client.HTTPError
	NotFoundError  = client.NotFoundError
	RateLimitError = client.RateLimitError
)

// SourceUnavailableError reports that the version list of a tool could not
// be fetched. The crawl of that tool is aborted and nothing is written.
type SourceUnavailableError struct {
	Tool   string
	Source string
	Err    error
}

func (e *SourceUnavailableError) Error() string {
	return fmt.Sprintf("%s: %s source unavailable: %v", e.Tool, e.Source, e.Err)
}

func (e *SourceUnavailableError) Unwrap() error {
	return e.Err
}
