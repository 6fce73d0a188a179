package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/toolurls/internal/core"
	"github.com/git-pkgs/toolurls/repository"
	"github.com/git-pkgs/toolurls/version"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	t.Setenv("LOG_LEVEL", "disabled")
	t.Setenv("GITHUB_TOKEN", "")

	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

// seed publishes two verified versions of jq and declares a dependency.
func seed(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	repo, err := repository.Open(root)
	require.NoError(t, err)

	tool, err := repo.GetOrCreateTool("jq")
	require.NoError(t, err)
	ed, err := tool.GetOrCreateEdition("jq")
	require.NoError(t, err)

	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	linux := repository.Platform{OS: repository.Linux, Arch: repository.X64}
	for _, name := range []string{"1.6.0", "1.7.1"} {
		v, err := ed.GetOrCreateVersion(name)
		require.NoError(t, err)
		url := "https://example.com/jq-" + name + "-linux-amd64"
		require.NoError(t, v.AddURL(linux, url, "sha256:abc"))
		v.RecordSuccess(url, now)
		require.NoError(t, v.Save())
	}

	deps := repository.Dependencies{}
	deps.Add("yq", "jq", version.ParseRange(">=1.6"))
	require.NoError(t, repo.SaveDependencies(deps))
	return root
}

func TestResolve(t *testing.T) {
	root := seed(t)

	out, err := run(t, "--root", root, "resolve", "jq", "--platform", "linux-x64")
	require.NoError(t, err)
	assert.Contains(t, out, "1.7.1 linux-x64 https://example.com/jq-1.7.1-linux-amd64")
	assert.Contains(t, out, "checksum sha256:abc")

	out, err = run(t, "--root", root, "resolve", "jq", "<1.7", "--platform", "linux-x64")
	require.NoError(t, err)
	assert.Contains(t, out, "1.6.0 ")
}

func TestResolveJSON(t *testing.T) {
	root := seed(t)

	out, err := run(t, "--root", root, "resolve", "jq", "--platform", "linux-x64", "--json")
	require.NoError(t, err)

	var got repository.Resolved
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "1.7.1", got.Version)
	assert.Equal(t, "jq", got.Edition)
}

func TestResolveNoMatch(t *testing.T) {
	root := seed(t)

	_, err := run(t, "--root", root, "resolve", "jq", "--platform", "windows-x64")
	assert.ErrorIs(t, err, repository.ErrNoMatch)

	_, err = run(t, "--root", root, "resolve", "jq", "not a range")
	assert.Error(t, err)
}

func TestList(t *testing.T) {
	root := seed(t)

	out, err := run(t, "--root", root, "list")
	require.NoError(t, err)
	assert.Equal(t, "jq\n", out)

	out, err = run(t, "--root", root, "list", "jq")
	require.NoError(t, err)
	assert.Equal(t, "jq\n", out)

	out, err = run(t, "--root", root, "list", "jq", "jq")
	require.NoError(t, err)
	assert.Equal(t, "1.6.0\tlinux-x64\n1.7.1\tlinux-x64\n", out)

	_, err = run(t, "--root", root, "list", "missing")
	assert.Error(t, err)
}

func TestDeps(t *testing.T) {
	root := seed(t)

	out, err := run(t, "--root", root, "deps", "yq")
	require.NoError(t, err)
	assert.Equal(t, "jq >=1.6\n", out)

	out, err = run(t, "--root", root, "deps", "jq", "--dependents")
	require.NoError(t, err)
	assert.Equal(t, "yq\n", out)
}

func TestVersion(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "toolurls dev\n"))
}

func newDistServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/dist/":
			_, _ = w.Write([]byte(`<a href="tool-1.0.0.tar.gz">1.0.0</a> <a href="tool-1.1.0.tar.gz">1.1.0</a>`))
		case "/dist/tool-1.0.0.tar.gz", "/dist/tool-1.1.0.tar.gz":
			w.Header().Set("Content-Length", "4")
			if r.Method == http.MethodGet {
				_, _ = w.Write([]byte("tool"))
			}
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return server
}

func writeCatalog(t *testing.T, entries []map[string]any) string {
	t.Helper()
	data, err := json.Marshal(entries)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "tools.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestUpdate(t *testing.T) {
	server := newDistServer(t)
	catalog := writeCatalog(t, []map[string]any{{
		"tool":    "tool",
		"source":  "html",
		"package": server.URL + "/dist/",
		"pattern": `href="(?P<url>tool-(?P<version>[0-9.]+)\.tar\.gz)"`,
	}})
	root := t.TempDir()
	metricsFile := filepath.Join(t.TempDir(), "toolurls.prom")
	t.Setenv("TOOLURLS_METRICS_FILE", metricsFile)

	out, err := run(t, "--root", root, "--catalog", catalog, "update")
	require.NoError(t, err)
	assert.Contains(t, out, "TOOL")
	assert.Contains(t, out, "tool")

	repo, err := repository.Open(root)
	require.NoError(t, err)
	got, err := repo.Resolve(context.Background(), repository.Query{
		Tool:  "tool",
		Range: version.Any(),
		OS:    repository.Linux,
		Arch:  repository.X64,
	})
	require.NoError(t, err)
	assert.Equal(t, "1.1.0", got.Version)
	assert.Equal(t, server.URL+"/dist/tool-1.1.0.tar.gz", got.URL)

	_, err = os.Stat(metricsFile)
	assert.NoError(t, err)
}

func TestUpdatePartialFailure(t *testing.T) {
	server := newDistServer(t)
	catalog := writeCatalog(t, []map[string]any{
		{
			"tool":    "tool",
			"source":  "html",
			"package": server.URL + "/dist/",
			"pattern": `tool-([0-9.]+)\.tar\.gz`,
		},
		{
			"tool":    "gone",
			"source":  "html",
			"package": server.URL + "/gone/",
			"pattern": `gone-([0-9.]+)`,
		},
	})

	out, err := run(t, "--root", t.TempDir(), "--catalog", catalog, "update")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errPartial))
	assert.Equal(t, 2, exitCode(err))
	assert.Contains(t, out, "gone")
}

func TestUpdateUnknownTool(t *testing.T) {
	server := newDistServer(t)
	catalog := writeCatalog(t, []map[string]any{{
		"tool":    "tool",
		"source":  "html",
		"package": server.URL + "/dist/",
		"pattern": `tool-([0-9.]+)\.tar\.gz`,
	}})

	_, err := run(t, "--root", t.TempDir(), "--catalog", catalog, "update", "tool", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not in catalog: nope")
	assert.Equal(t, 1, exitCode(err))
}

func TestSelectTools(t *testing.T) {
	cfgs := []core.ToolConfig{
		{Tool: "java", Edition: "temurin"},
		{Tool: "java", Edition: "zulu"},
		{Tool: "jq"},
	}

	got, err := selectTools(cfgs, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = selectTools(cfgs, []string{"java"})
	require.NoError(t, err)
	assert.Len(t, got, 2)
}
