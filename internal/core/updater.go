package core

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/git-pkgs/toolurls/fetch"
	"github.com/git-pkgs/toolurls/internal/metrics"
	"github.com/git-pkgs/toolurls/repository"
	"github.com/git-pkgs/toolurls/version"
)

const (
	defaultProbeConcurrency = 4
	defaultFreshness        = 7 * 24 * time.Hour
)

// Report summarises one crawl of a (tool, edition).
type Report struct {
	Tool    string
	Edition string

	// Published counts versions written to the repository.
	Published int
	// Updated counts published versions whose status was rewritten without
	// gaining a platform, such as a retried platform that still fails.
	Updated int
	// Skipped counts versions that needed no verification.
	Skipped int
	// Rejected counts raw versions refused by the mapping policy.
	Rejected int
	// Failed counts versions with no usable platform or a failed write.
	Failed int

	Probes   int
	Duration time.Duration

	// Err is set when the crawl could not run at all, typically a
	// *SourceUnavailableError.
	Err error
}

// OK reports whether the crawl reached its source.
func (r Report) OK() bool {
	return r.Err == nil
}

// Updater runs the crawl protocol for one (tool, edition).
type Updater struct {
	cfg       ToolConfig
	source    VersionSource
	templates PlatformTemplate
	repo      *repository.Repository
	fetcher   fetch.FetcherInterface

	log              zerolog.Logger
	metrics          *metrics.Metrics
	now              func() time.Time
	freshness        time.Duration
	revalidate       bool
	probeConcurrency int
}

// UpdaterOption configures an Updater.
type UpdaterOption func(*Updater)

// WithLogger sets the logger. Tool and edition fields are added by the
// caller.
func WithLogger(l zerolog.Logger) UpdaterOption {
	return func(u *Updater) {
		u.log = l
	}
}

// WithMetrics records crawl metrics on m.
func WithMetrics(m *metrics.Metrics) UpdaterOption {
	return func(u *Updater) {
		u.metrics = m
	}
}

// WithClock replaces time.Now for status timestamps.
func WithClock(now func() time.Time) UpdaterOption {
	return func(u *Updater) {
		u.now = now
	}
}

// WithFreshness sets how long a success is trusted when revalidating.
func WithFreshness(d time.Duration) UpdaterOption {
	return func(u *Updater) {
		u.freshness = d
	}
}

// WithRevalidate re-probes successful URLs older than the freshness window.
func WithRevalidate(on bool) UpdaterOption {
	return func(u *Updater) {
		u.revalidate = on
	}
}

// WithProbeConcurrency bounds concurrent probes for one version.
func WithProbeConcurrency(n int) UpdaterOption {
	return func(u *Updater) {
		if n > 0 {
			u.probeConcurrency = n
		}
	}
}

// WithTemplates overrides the template built from cfg.Platforms.
func WithTemplates(t PlatformTemplate) UpdaterOption {
	return func(u *Updater) {
		u.templates = t
	}
}

// NewUpdater wires a source, the repository and a fetcher for cfg.
func NewUpdater(cfg ToolConfig, source VersionSource, repo *repository.Repository, f fetch.FetcherInterface, opts ...UpdaterOption) *Updater {
	u := &Updater{
		cfg:              cfg,
		source:           source,
		repo:             repo,
		fetcher:          f,
		log:              zerolog.Nop(),
		now:              time.Now,
		freshness:        defaultFreshness,
		probeConcurrency: defaultProbeConcurrency,
	}
	if len(cfg.Platforms) > 0 {
		u.templates = NewTemplates(cfg.Tool, cfg.EditionName(), cfg.Platforms)
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Tool returns the configured tool name.
func (u *Updater) Tool() string {
	return u.cfg.Tool
}

// Edition returns the configured edition name.
func (u *Updater) Edition() string {
	return u.cfg.EditionName()
}

// candidate is one canonical version and the raw entry it came from.
type candidate struct {
	canonical string
	id        version.Identifier
	raw       RawVersion
}

// target is one URL to publish for a platform.
type target struct {
	platform repository.Platform
	url      string
	checksum string
}

// probeResult is the outcome of verifying one target.
type probeResult struct {
	target
	ok       bool
	code     int
	message  string
	checksum string
}

// Run performs one crawl. Per-version and per-platform failures are
// recorded and counted; only a failure to list versions sets Report.Err.
func (u *Updater) Run(ctx context.Context) Report {
	start := time.Now()
	report := Report{Tool: u.cfg.Tool, Edition: u.cfg.EditionName()}
	defer func() {
		report.Duration = time.Since(start)
		u.metrics.RecordCrawl(report.Tool, report.Edition, report.OK(), report.Duration, u.now())
		u.metrics.RecordVersions(report.Tool, report.Edition, "published", report.Published)
		u.metrics.RecordVersions(report.Tool, report.Edition, "updated", report.Updated)
		u.metrics.RecordVersions(report.Tool, report.Edition, "skipped", report.Skipped)
		u.metrics.RecordVersions(report.Tool, report.Edition, "rejected", report.Rejected)
		u.metrics.RecordVersions(report.Tool, report.Edition, "failed", report.Failed)
	}()

	raws, err := u.source.ListRawVersions(ctx)
	if err != nil {
		report.Err = &SourceUnavailableError{Tool: u.cfg.Tool, Source: u.source.Kind(), Err: err}
		u.metrics.RecordSourceError(u.cfg.Tool, u.source.Kind())
		u.log.Error().Err(err).Msg("listing versions failed")
		return report
	}

	candidates, rejected := u.mapAll(raws)
	report.Rejected = rejected

	tool, err := u.repo.GetOrCreateTool(u.cfg.Tool)
	if err != nil {
		report.Err = err
		return report
	}
	edition, err := tool.GetOrCreateEdition(u.cfg.EditionName())
	if err != nil {
		report.Err = err
		return report
	}

	for _, c := range candidates {
		if err := ctx.Err(); err != nil {
			report.Err = err
			return report
		}
		u.process(ctx, edition, c, &report)
	}

	if report.Published > 0 {
		if err := u.saveMetadata(tool); err != nil {
			u.log.Warn().Err(err).Msg("writing tool metadata failed")
		}
	}

	u.log.Info().
		Int("published", report.Published).
		Int("updated", report.Updated).
		Int("skipped", report.Skipped).
		Int("rejected", report.Rejected).
		Int("failed", report.Failed).
		Int("probes", report.Probes).
		Dur("duration", time.Since(start)).
		Msg("crawl finished")
	return report
}

// mapAll maps and deduplicates raw versions, returning candidates in
// ascending order and the number rejected.
func (u *Updater) mapAll(raws []RawVersion) ([]candidate, int) {
	seen := make(map[string]bool, len(raws))
	var out []candidate
	rejected := 0
	for _, raw := range raws {
		canonical, ok := u.source.MapVersion(raw.Name)
		if !ok {
			rejected++
			u.log.Debug().Str("raw", raw.Name).Msg("version rejected")
			continue
		}
		if seen[canonical] {
			continue
		}
		seen[canonical] = true
		out = append(out, candidate{canonical: canonical, id: version.Parse(canonical), raw: raw})
	}
	sortCandidates(out)
	return out, rejected
}

func (u *Updater) process(ctx context.Context, edition *repository.Edition, c candidate, report *Report) {
	log := u.log.With().Str("version", c.canonical).Logger()

	v, err := edition.GetOrCreateVersion(c.canonical)
	if err != nil {
		report.Failed++
		log.Warn().Err(err).Msg("opening version failed")
		return
	}

	targets := u.targets(c)
	if len(targets) == 0 {
		if !v.Persisted() {
			edition.Discard(v)
		}
		report.Rejected++
		log.Debug().Msg("no platform available")
		return
	}

	now := u.now()
	var pending []target
	for _, t := range targets {
		if cur, ok := v.URL(t.platform); ok && cur.URL != t.url {
			log.Warn().
				Str("platform", t.platform.String()).
				Str("published", cur.URL).
				Str("template", t.url).
				Msg("template disagrees with published URL, keeping published")
			continue
		}
		if v.StatusOf(t.url).NeedsProbe(now, u.freshness, u.revalidate) {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		report.Skipped++
		return
	}

	wasPersisted := v.Persisted()
	before := len(v.Platforms())

	results := u.probeAll(ctx, pending)
	report.Probes += len(results)
	now = u.now()
	for _, r := range results {
		if !r.ok {
			v.RecordError(r.url, now, r.code, r.message)
			log.Warn().
				Str("platform", r.platform.String()).
				Str("url", r.url).
				Int("code", r.code).
				Str("error", r.message).
				Msg("probe failed")
			continue
		}
		if err := v.AddURL(r.platform, r.url, r.checksum); err != nil {
			v.RecordError(r.url, now, 0, err.Error())
			log.Warn().Err(err).Msg("adding URL failed")
			continue
		}
		v.RecordSuccess(r.url, now)
	}

	if !v.Verified() && !v.Persisted() {
		edition.Discard(v)
		report.Failed++
		log.Warn().Int("platforms", len(targets)).Msg("no platform verified, version not published")
		return
	}
	if !v.Dirty() {
		report.Skipped++
		return
	}
	if err := v.Save(); err != nil {
		edition.Discard(v)
		report.Failed++
		log.Error().Err(err).Msg("writing version failed")
		return
	}
	platforms := v.Platforms()
	if wasPersisted && len(platforms) == before {
		report.Updated++
		log.Debug().Msg("status updated")
		return
	}
	report.Published++
	log.Info().Strs("platforms", platformNames(platforms)).Msg("version published")
}

// targets lists the URLs to publish for c. A registry-supplied URL wins
// over templates.
func (u *Updater) targets(c candidate) []target {
	if c.raw.URL != "" {
		return []target{{platform: repository.AnyPlatform, url: c.raw.URL, checksum: c.raw.Checksum}}
	}
	if u.templates == nil {
		return nil
	}
	var out []target
	for _, p := range u.templates.Platforms() {
		url, ok := u.templates.URLFor(c.id, p)
		if !ok {
			continue
		}
		out = append(out, target{platform: p, url: url})
	}
	return out
}

// probeAll verifies targets concurrently. Results are in target order.
func (u *Updater) probeAll(ctx context.Context, targets []target) []probeResult {
	results := make([]probeResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(u.probeConcurrency)
	for i, t := range targets {
		g.Go(func() error {
			results[i] = u.probe(gctx, t)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (u *Updater) probe(ctx context.Context, t target) probeResult {
	start := time.Now()
	res := u.verify(ctx, t)
	u.metrics.RecordProbe(u.cfg.Tool, t.platform.String(), res.ok, time.Since(start))
	return res
}

func (u *Updater) verify(ctx context.Context, t target) probeResult {
	res := probeResult{target: t}

	expected, err := fetch.ParseDigest(t.checksum)
	if err != nil {
		u.log.Debug().Err(err).Str("url", t.url).Msg("ignoring unparsable upstream checksum")
		expected = fetch.Digest{}
	}

	if _, err := u.fetcher.Probe(ctx, t.url); err != nil {
		return failure(res, err)
	}

	switch {
	case u.cfg.Checksum:
		sum, err := fetch.Download(ctx, u.fetcher, t.url, expected)
		if err != nil {
			return failure(res, err)
		}
		res.checksum = sum
	case !expected.IsZero():
		res.checksum = expected.String()
	}
	res.ok = true
	return res
}

func failure(res probeResult, err error) probeResult {
	res.message = err.Error()
	var pe *fetch.ProbeError
	if errors.As(err, &pe) {
		res.code = pe.StatusCode
		if pe.Err != nil {
			res.message = pe.Err.Error()
		}
	}
	return res
}

// saveMetadata records this edition's upstream in tool.json, leaving the
// entries of other editions alone. An explicit CPE replaces the stored one;
// a source-derived CPE only fills an empty one.
func (u *Updater) saveMetadata(tool *repository.Tool) error {
	urls := u.source.URLs()
	cpe, explicit := u.cfg.CPE, u.cfg.CPE != (CPE{})
	if p, ok := u.source.(CPEProvider); ok && !explicit {
		cpe = p.CPE()
	}
	entry := repository.EditionMetadata{
		PURL:     urls.PURL(""),
		Source:   u.source.Kind(),
		Homepage: urls.Project(),
	}
	edition := u.cfg.EditionName()

	err := tool.UpdateMetadata(func(m *repository.ToolMetadata) bool {
		changed := false
		if cpe != (CPE{}) && (explicit || (m.CPEVendor == "" && m.CPEProduct == "")) {
			if m.CPEVendor != cpe.Vendor || m.CPEProduct != cpe.Product {
				m.CPEVendor, m.CPEProduct = cpe.Vendor, cpe.Product
				changed = true
			}
		}
		if m.Editions[edition] != entry {
			if m.Editions == nil {
				m.Editions = make(map[string]repository.EditionMetadata)
			}
			m.Editions[edition] = entry
			changed = true
		}
		return changed
	})
	if err != nil {
		return fmt.Errorf("saving %s metadata: %w", tool.Name(), err)
	}
	return nil
}

func platformNames(ps []repository.Platform) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}
