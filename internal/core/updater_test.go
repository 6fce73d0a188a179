package core

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/git-pkgs/toolurls/fetch"
	"github.com/git-pkgs/toolurls/internal/metrics"
	"github.com/git-pkgs/toolurls/repository"
	"github.com/git-pkgs/toolurls/version"
)

type fakeSource struct {
	*Mapper
	raws  []RawVersion
	err   error
	mu    sync.Mutex
	calls int
}

func (s *fakeSource) Kind() string { return "fake" }

func (s *fakeSource) ListRawVersions(ctx context.Context) ([]RawVersion, error) {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	return s.raws, s.err
}

func (s *fakeSource) URLs() URLBuilder {
	return &BaseURLs{
		ProjectFn: func() string { return "https://github.com/acme/gh" },
		PURLFn: func(v string) string {
			return BuildPURL("github", "acme", "gh", v)
		},
	}
}

func tags(names ...string) []RawVersion {
	out := make([]RawVersion, len(names))
	for i, n := range names {
		out[i] = RawVersion{Name: n}
	}
	return out
}

// artifactServer answers HEAD and GET for every path not containing one of
// the missing substrings. It counts requests.
type artifactServer struct {
	*httptest.Server
	mu       sync.Mutex
	missing  []string
	requests int
}

func newArtifactServer(t *testing.T, missing ...string) *artifactServer {
	s := &artifactServer{missing: missing}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests++
		missing := s.missing
		s.mu.Unlock()
		for _, m := range missing {
			if strings.Contains(r.URL.Path, m) {
				w.WriteHeader(http.StatusNotFound)
				return
			}
		}
		_, _ = w.Write([]byte("artifact " + r.URL.Path))
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *artifactServer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests
}

var (
	macArm64 = repository.Platform{OS: repository.Mac, Arch: repository.Arm64}
	linuxX64 = repository.Platform{OS: repository.Linux, Arch: repository.X64}
)

func ghConfig(serverURL string) ToolConfig {
	return ToolConfig{
		Tool:   "gh",
		Source: "fake",
		CPE:    CPE{Vendor: "github", Product: "cli"},
		Platforms: []PlatformRule{
			{Platform: macArm64, URL: serverURL + "/v${version}/gh_${version}_macOS_arm64.zip", Versions: version.ParseRange(">=3.4.0")},
			{Platform: linuxX64, URL: serverURL + "/v${version}/gh_${version}_linux_amd64.tar.gz"},
		},
	}
}

func newTestUpdater(t *testing.T, root string, cfg ToolConfig, src VersionSource, now time.Time, opts ...UpdaterOption) *Updater {
	t.Helper()
	repo, err := repository.Open(root)
	require.NoError(t, err)
	f := fetch.NewFetcher(fetch.WithMaxRetries(0))
	opts = append([]UpdaterOption{WithClock(func() time.Time { return now })}, opts...)
	return NewUpdater(cfg, src, repo, f, opts...)
}

func loadVersion(t *testing.T, root, tool, edition, v string) *repository.Version {
	t.Helper()
	repo, err := repository.Open(root)
	require.NoError(t, err)
	tl, err := repo.Tool(tool)
	require.NoError(t, err)
	ed, err := tl.Edition(edition)
	require.NoError(t, err)
	ver, err := ed.Version(v)
	require.NoError(t, err)
	return ver
}

func TestUpdaterPublishesTemplatedPlatforms(t *testing.T) {
	server := newArtifactServer(t)
	root := t.TempDir()
	src := &fakeSource{Mapper: MustMapper(MappingConfig{}), raws: tags("refs/tags/v3.3.0", "refs/tags/v3.4.0", "refs/tags/v3.5.0", "refs/tags/v3.5.0-rc1")}
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	report := newTestUpdater(t, root, ghConfig(server.URL), src, t0).Run(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, 3, report.Published)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 5, report.Probes)

	v330 := loadVersion(t, root, "gh", "gh", "3.3.0")
	assert.Equal(t, []repository.Platform{linuxX64}, v330.Platforms())

	for _, v := range []string{"3.4.0", "3.5.0"} {
		ver := loadVersion(t, root, "gh", "gh", v)
		entry, ok := ver.URL(macArm64)
		require.True(t, ok, "%s has mac-arm64", v)
		assert.Equal(t, server.URL+"/v"+v+"/gh_"+v+"_macOS_arm64.zip", entry.URL)
		assert.True(t, ver.StatusOf(entry.URL).Succeeded())
		assert.True(t, t0.Equal(ver.StatusOf(entry.URL).Success.Timestamp))
	}

	repo, err := repository.Open(root)
	require.NoError(t, err)
	tool, err := repo.Tool("gh")
	require.NoError(t, err)
	meta, err := tool.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "github", meta.CPEVendor)
	require.Contains(t, meta.Editions, "gh")
	assert.Equal(t, "fake", meta.Editions["gh"].Source)
	assert.Equal(t, "https://github.com/acme/gh", meta.Editions["gh"].Homepage)
	assert.NotEmpty(t, meta.Editions["gh"].PURL)
}

type mirrorSource struct {
	*fakeSource
}

func (s *mirrorSource) Kind() string { return "mirror" }

func TestUpdaterMetadataPerEdition(t *testing.T) {
	server := newArtifactServer(t)
	root := t.TempDir()
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	official := ghConfig(server.URL)
	official.Edition = "official"
	mirror := ghConfig(server.URL)
	mirror.Edition = "mirror"
	mirror.Source = "mirror"

	officialSrc := &fakeSource{Mapper: MustMapper(MappingConfig{}), raws: tags("v3.4.0")}
	mirrorSrc := &mirrorSource{&fakeSource{Mapper: MustMapper(MappingConfig{}), raws: tags("v3.4.0")}}

	require.Equal(t, 1, newTestUpdater(t, root, official, officialSrc, t0).Run(context.Background()).Published)
	require.Equal(t, 1, newTestUpdater(t, root, mirror, mirrorSrc, t0).Run(context.Background()).Published)

	metaPath := filepath.Join(root, "gh", "tool.json")
	before, err := os.ReadFile(metaPath)
	require.NoError(t, err)

	officialSrc.raws = tags("v3.4.0", "v3.5.0")
	require.Equal(t, 1, newTestUpdater(t, root, official, officialSrc, t0).Run(context.Background()).Published)

	after, err := os.ReadFile(metaPath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))

	repo, err := repository.Open(root)
	require.NoError(t, err)
	tool, err := repo.Tool("gh")
	require.NoError(t, err)
	meta, err := tool.Metadata()
	require.NoError(t, err)
	assert.Equal(t, "fake", meta.Editions["official"].Source)
	assert.Equal(t, "mirror", meta.Editions["mirror"].Source)
	assert.Equal(t, "github", meta.CPEVendor)
}

func TestUpdaterRerunWritesNothing(t *testing.T) {
	server := newArtifactServer(t)
	root := t.TempDir()
	src := &fakeSource{Mapper: MustMapper(MappingConfig{}), raws: tags("v3.4.0", "v3.5.0")}
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := newTestUpdater(t, root, ghConfig(server.URL), src, t0).Run(context.Background())
	require.NoError(t, first.Err)
	require.Equal(t, 2, first.Published)

	statusPath := filepath.Join(root, "gh", "gh", "3.4.0", "status.json")
	before, err := os.ReadFile(statusPath)
	require.NoError(t, err)
	infoBefore, err := os.Stat(statusPath)
	require.NoError(t, err)
	requestsBefore := server.count()

	second := newTestUpdater(t, root, ghConfig(server.URL), src, t0.Add(24*time.Hour)).Run(context.Background())
	require.NoError(t, second.Err)
	assert.Equal(t, 0, second.Published)
	assert.Equal(t, 2, second.Skipped)
	assert.Equal(t, 0, second.Probes)
	assert.Equal(t, requestsBefore, server.count(), "no probes on rerun")

	after, err := os.ReadFile(statusPath)
	require.NoError(t, err)
	assert.Equal(t, string(before), string(after))
	infoAfter, err := os.Stat(statusPath)
	require.NoError(t, err)
	assert.Equal(t, infoBefore.ModTime(), infoAfter.ModTime())
}

func TestUpdaterDropsVersionsWithoutVerifiedPlatform(t *testing.T) {
	server := newArtifactServer(t, "/v3.5.0/", "3.4.0_macOS")
	root := t.TempDir()
	src := &fakeSource{Mapper: MustMapper(MappingConfig{}), raws: tags("v3.4.0", "v3.5.0")}
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	report := newTestUpdater(t, root, ghConfig(server.URL), src, t0).Run(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.Published)
	assert.Equal(t, 1, report.Failed)

	_, err := os.Stat(filepath.Join(root, "gh", "gh", "3.5.0"))
	assert.True(t, os.IsNotExist(err), "all-failed version must not be written")

	v340 := loadVersion(t, root, "gh", "gh", "3.4.0")
	assert.Equal(t, []repository.Platform{linuxX64}, v340.Platforms())

	macURL := server.URL + "/v3.4.0/gh_3.4.0_macOS_arm64.zip"
	entry := v340.StatusOf(macURL)
	assert.True(t, entry.Failed())
	require.NotNil(t, entry.Error.Code)
	assert.Equal(t, http.StatusNotFound, *entry.Error.Code)

	repo, err := repository.Open(root)
	require.NoError(t, err)
	tool, err := repo.Tool("gh")
	require.NoError(t, err)
	ed, err := tool.Edition("gh")
	require.NoError(t, err)
	names, err := ed.VersionNames()
	require.NoError(t, err)
	assert.Equal(t, []string{"3.4.0"}, names)
}

func TestUpdaterRetriesFailedPlatforms(t *testing.T) {
	server := newArtifactServer(t, "macOS")
	root := t.TempDir()
	src := &fakeSource{Mapper: MustMapper(MappingConfig{}), raws: tags("v3.4.0")}
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := newTestUpdater(t, root, ghConfig(server.URL), src, t0).Run(context.Background())
	require.Equal(t, 1, first.Published)

	server.mu.Lock()
	server.missing = nil
	server.mu.Unlock()

	second := newTestUpdater(t, root, ghConfig(server.URL), src, t0.Add(time.Hour)).Run(context.Background())
	require.NoError(t, second.Err)
	assert.Equal(t, 1, second.Published)
	assert.Equal(t, 1, second.Probes, "only the failed platform is probed again")

	v := loadVersion(t, root, "gh", "gh", "3.4.0")
	assert.True(t, v.VerifiedPlatform(macArm64))
	assert.True(t, v.VerifiedPlatform(linuxX64))
	linux, _ := v.URL(linuxX64)
	assert.True(t, t0.Equal(v.StatusOf(linux.URL).Success.Timestamp))
}

func TestUpdaterCountsStatusOnlyRewrites(t *testing.T) {
	server := newArtifactServer(t, "macOS")
	root := t.TempDir()
	src := &fakeSource{Mapper: MustMapper(MappingConfig{}), raws: tags("v3.4.0")}
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := newTestUpdater(t, root, ghConfig(server.URL), src, t0).Run(context.Background())
	require.NoError(t, first.Err)
	require.Equal(t, 1, first.Published)

	for i := 1; i <= 2; i++ {
		now := t0.Add(time.Duration(i) * time.Hour)
		report := newTestUpdater(t, root, ghConfig(server.URL), src, now).Run(context.Background())
		require.NoError(t, report.Err)
		assert.Equal(t, 0, report.Published, "crawl %d", i+1)
		assert.Equal(t, 1, report.Updated, "crawl %d", i+1)
		assert.Equal(t, 1, report.Probes, "crawl %d", i+1)

		v := loadVersion(t, root, "gh", "gh", "3.4.0")
		mac := server.URL + "/v3.4.0/gh_3.4.0_macOS_arm64.zip"
		entry := v.StatusOf(mac)
		require.NotNil(t, entry.Error)
		assert.True(t, now.Equal(entry.Error.Timestamp))
		assert.Equal(t, []repository.Platform{linuxX64}, v.Platforms())
	}
}

func TestUpdaterWriteFailureContinues(t *testing.T) {
	server := newArtifactServer(t)
	root := t.TempDir()
	blocked := filepath.Join(root, "gh", "gh", "3.4.0")
	require.NoError(t, os.MkdirAll(filepath.Dir(blocked), 0o755))
	require.NoError(t, os.WriteFile(blocked, []byte("not a directory"), 0o644))

	src := &fakeSource{Mapper: MustMapper(MappingConfig{}), raws: tags("v3.4.0", "v3.5.0")}
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	report := newTestUpdater(t, root, ghConfig(server.URL), src, t0).Run(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 1, report.Published)

	v := loadVersion(t, root, "gh", "gh", "3.5.0")
	assert.True(t, v.VerifiedPlatform(linuxX64))

	_, err := os.Stat(filepath.Join(blocked, "status.json"))
	assert.Error(t, err)
	_, err = os.Stat(filepath.Join(blocked, "urls.json"))
	assert.Error(t, err)
}

func TestUpdaterRevalidate(t *testing.T) {
	server := newArtifactServer(t)
	root := t.TempDir()
	src := &fakeSource{Mapper: MustMapper(MappingConfig{}), raws: tags("v3.4.0")}
	t0 := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.Equal(t, 1, newTestUpdater(t, root, ghConfig(server.URL), src, t0).Run(context.Background()).Published)

	fresh := newTestUpdater(t, root, ghConfig(server.URL), src, t0.Add(time.Hour),
		WithRevalidate(true), WithFreshness(24*time.Hour)).Run(context.Background())
	assert.Equal(t, 0, fresh.Probes)

	later := t0.Add(48 * time.Hour)
	stale := newTestUpdater(t, root, ghConfig(server.URL), src, later,
		WithRevalidate(true), WithFreshness(24*time.Hour)).Run(context.Background())
	assert.Equal(t, 2, stale.Probes)
	assert.Equal(t, 0, stale.Published)
	assert.Equal(t, 1, stale.Updated)

	v := loadVersion(t, root, "gh", "gh", "3.4.0")
	linux, _ := v.URL(linuxX64)
	assert.True(t, later.Equal(v.StatusOf(linux.URL).Success.Timestamp))
}

func TestUpdaterSourceUnavailable(t *testing.T) {
	root := t.TempDir()
	src := &fakeSource{Mapper: MustMapper(MappingConfig{}), err: errors.New("connection refused")}
	m := metrics.New()

	report := newTestUpdater(t, root, ghConfig("http://127.0.0.1:1"), src, time.Now(), WithMetrics(m)).Run(context.Background())

	var sue *SourceUnavailableError
	require.ErrorAs(t, report.Err, &sue)
	assert.Equal(t, "gh", sue.Tool)
	assert.False(t, report.OK())

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Empty(t, entries, "nothing is written when the source is down")
}

func TestUpdaterMinimumVersion(t *testing.T) {
	server := newArtifactServer(t)
	root := t.TempDir()
	src := &fakeSource{Mapper: MustMapper(MappingConfig{MinVersion: "2.0.0"}), raws: tags("v1.9.0", "v2.0.1")}

	report := newTestUpdater(t, root, ghConfig(server.URL), src, time.Now()).Run(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 1, report.Published)

	_, err := os.Stat(filepath.Join(root, "gh", "gh", "1.9.0"))
	assert.True(t, os.IsNotExist(err))
}

func TestUpdaterDeduplicatesCanonicalVersions(t *testing.T) {
	server := newArtifactServer(t)
	root := t.TempDir()
	src := &fakeSource{Mapper: MustMapper(MappingConfig{}), raws: tags("v3.4.0", "refs/tags/v3.4.0", "3.4.0")}

	report := newTestUpdater(t, root, ghConfig(server.URL), src, time.Now()).Run(context.Background())
	assert.Equal(t, 1, report.Published)
	assert.Equal(t, 2, report.Probes)
}

func TestUpdaterRegistrySuppliedURL(t *testing.T) {
	server := newArtifactServer(t)
	root := t.TempDir()
	body := []byte("artifact /pkg/-/pkg-1.0.0.tgz")
	sum := sha256.Sum256(body)
	checksum := "sha256:" + hex.EncodeToString(sum[:])

	src := &fakeSource{Mapper: MustMapper(MappingConfig{}), raws: []RawVersion{
		{Name: "1.0.0", URL: server.URL + "/pkg/-/pkg-1.0.0.tgz", Checksum: checksum},
		{Name: "1.1.0", URL: server.URL + "/pkg/-/pkg-1.1.0.tgz", Checksum: checksum},
	}}
	cfg := ToolConfig{Tool: "pkg", Edition: "pkg", Source: "fake", Checksum: true}

	report := newTestUpdater(t, root, cfg, src, time.Now()).Run(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.Published)
	assert.Equal(t, 1, report.Failed, "checksum mismatch is a probe failure")

	v := loadVersion(t, root, "pkg", "pkg", "1.0.0")
	entry, ok := v.URL(repository.AnyPlatform)
	require.True(t, ok)
	assert.Equal(t, checksum, entry.Checksum)
}

func TestUpdaterWithoutTemplatesRejects(t *testing.T) {
	root := t.TempDir()
	src := &fakeSource{Mapper: MustMapper(MappingConfig{}), raws: tags("1.0.0")}
	cfg := ToolConfig{Tool: "bare", Source: "fake"}

	report := newTestUpdater(t, root, cfg, src, time.Now()).Run(context.Background())
	require.NoError(t, report.Err)
	assert.Equal(t, 1, report.Rejected)
	assert.Equal(t, 0, report.Published)
}

func TestResolveAfterCrawl(t *testing.T) {
	server := newArtifactServer(t, "3.5.0_macOS")
	root := t.TempDir()
	src := &fakeSource{Mapper: MustMapper(MappingConfig{}), raws: tags("v3.4.0", "v3.5.0")}

	require.NoError(t, newTestUpdater(t, root, ghConfig(server.URL), src, time.Now()).Run(context.Background()).Err)

	repo, err := repository.Open(root)
	require.NoError(t, err)

	got, err := repo.Resolve(context.Background(), repository.Query{Tool: "gh", Range: version.Any(), OS: repository.Mac, Arch: repository.Arm64})
	require.NoError(t, err)
	assert.Equal(t, "3.4.0", got.Version, "3.5.0 has no verified mac-arm64 artifact")

	got, err = repo.Resolve(context.Background(), repository.Query{Tool: "gh", Range: version.Any(), OS: repository.Linux, Arch: repository.X64})
	require.NoError(t, err)
	assert.Equal(t, "3.5.0", got.Version)
}
