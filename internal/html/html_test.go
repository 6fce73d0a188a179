package html

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/git-pkgs/toolurls/internal/core"
)

const listing = `<html><body>
<a href="apache-ant-1.10.13-bin.zip">apache-ant-1.10.13-bin.zip</a>
<a href="apache-ant-1.10.14-bin.zip">apache-ant-1.10.14-bin.zip</a>
<a href="apache-ant-1.10.14-bin.zip.sha512">apache-ant-1.10.14-bin.zip.sha512</a>
<a href="/other/apache-ant-1.9.16-bin.zip">apache-ant-1.9.16-bin.zip</a>
</body></html>`

func TestListRawVersions(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ant/binaries/" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		_, _ = w.Write([]byte(listing))
	}))
	defer server.Close()

	cfg := core.ToolConfig{
		Tool:    "ant",
		Package: "ant/binaries/",
		Pattern: `href="(?P<url>[^"]*apache-ant-(?P<version>[0-9.]+)-bin\.zip)"`,
	}
	src, err := New(cfg, server.URL, core.DefaultClient())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	raws, err := src.ListRawVersions(context.Background())
	if err != nil {
		t.Fatalf("ListRawVersions failed: %v", err)
	}

	want := []struct{ name, url string }{
		{"1.10.13", server.URL + "/ant/binaries/apache-ant-1.10.13-bin.zip"},
		{"1.10.14", server.URL + "/ant/binaries/apache-ant-1.10.14-bin.zip"},
		{"1.9.16", server.URL + "/other/apache-ant-1.9.16-bin.zip"},
	}
	if len(raws) != len(want) {
		t.Fatalf("got %+v, want %d versions", raws, len(want))
	}
	for i, w := range want {
		if raws[i].Name != w.name || raws[i].URL != w.url {
			t.Errorf("raws[%d] = %+v, want %s at %s", i, raws[i], w.name, w.url)
		}
	}
}

func TestListRawVersionsFirstGroup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(listing))
	}))
	defer server.Close()

	cfg := core.ToolConfig{Tool: "ant", Package: server.URL + "/dist/", Pattern: `apache-ant-([0-9.]+)-bin\.zip"`}
	src, err := New(cfg, "", core.DefaultClient())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	raws, err := src.ListRawVersions(context.Background())
	if err != nil {
		t.Fatalf("ListRawVersions failed: %v", err)
	}
	if len(raws) != 3 {
		t.Fatalf("got %d versions, want 3", len(raws))
	}
	for _, r := range raws {
		if r.URL != "" {
			t.Errorf("%s has URL %q without a url group", r.Name, r.URL)
		}
	}
}

func TestListRawVersionsNotFound(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	src, err := New(core.ToolConfig{Package: server.URL, Pattern: `(\d+)`}, "", core.DefaultClient())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	_, err = src.ListRawVersions(context.Background())
	if !errors.Is(err, core.ErrNotFound) {
		t.Errorf("ListRawVersions = %v, want ErrNotFound", err)
	}
}

func TestNewValidation(t *testing.T) {
	tests := []struct {
		name string
		cfg  core.ToolConfig
		base string
	}{
		{"no pattern", core.ToolConfig{Package: "https://example.com/"}, ""},
		{"bad pattern", core.ToolConfig{Package: "https://example.com/", Pattern: "("}, ""},
		{"no group", core.ToolConfig{Package: "https://example.com/", Pattern: `\d+`}, ""},
		{"relative without base", core.ToolConfig{Package: "dist/", Pattern: `(\d+)`}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.cfg, tt.base, nil); err == nil {
				t.Error("New succeeded")
			}
		})
	}
}

func TestURLs(t *testing.T) {
	src, err := New(core.ToolConfig{Tool: "ant", Package: "https://archive.apache.org/dist/ant/binaries/", Pattern: `(\d+)`}, "", nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	urls := src.URLs()
	if got := urls.Project(); got != "https://archive.apache.org" {
		t.Errorf("Project() = %q", got)
	}
	if got := urls.Versions(); got != "https://archive.apache.org/dist/ant/binaries/" {
		t.Errorf("Versions() = %q", got)
	}
	if got := urls.PURL("1.10.14"); got != "pkg:generic/ant@1.10.14" {
		t.Errorf("PURL() = %q", got)
	}
}
