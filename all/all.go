// Package all imports every version source implementation.
//
// Import this package for its side effects to register all sources:
//
//	import (
//		"github.com/git-pkgs/toolurls"
//		_ "github.com/git-pkgs/toolurls/all"
//	)
//
//	// Now all sources are available
//	kinds := toolurls.SupportedSources()
//	// ["github", "goproxy", "html", "maven", "npm", "pypi"]
package all

import (
	_ "github.com/git-pkgs/toolurls/internal/github"
	_ "github.com/git-pkgs/toolurls/internal/goproxy"
	_ "github.com/git-pkgs/toolurls/internal/html"
	_ "github.com/git-pkgs/toolurls/internal/maven"
	_ "github.com/git-pkgs/toolurls/internal/npm"
	_ "github.com/git-pkgs/toolurls/internal/pypi"
)
