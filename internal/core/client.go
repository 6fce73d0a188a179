package core

import (
	"github.com/git-pkgs/toolurls/client"
)

// Type aliases so source implementations only import core.
type (
	RateLimiter = client.RateLimiter
	Client      = client.Client
	Option      = client.Option
	URLBuilder  = client.URLBuilder
	BaseURLs    = client.BaseURLs
)

// Function aliases so source implementations only import core.
var (
	DefaultClient  = client.DefaultClient
	NewClient      = client.NewClient
	WithTimeout    = client.WithTimeout
	WithMaxRetries = client.WithMaxRetries
	WithBaseDelay  = client.WithBaseDelay
	WithHeader     = client.WithHeader
	WithRateLimit  = client.WithRateLimit
	BuildURLs      = client.BuildURLs
)
