package core

import (
	"context"
	"sort"
	"sync"

	"github.com/git-pkgs/toolurls/version"
)

const defaultConcurrency = 8

// Runner is anything that crawls one tool. *Updater implements it.
type Runner interface {
	Tool() string
	Edition() string
	Run(ctx context.Context) Report
}

// RunAll crawls every runner with the default concurrency limit.
func RunAll(ctx context.Context, runners []Runner) []Report {
	return RunAllWithConcurrency(ctx, runners, defaultConcurrency)
}

// RunAllWithConcurrency crawls runners in parallel. One tool failing never
// stops the others. Reports are returned in runner order; runners that never
// started because ctx was cancelled report ctx.Err().
func RunAllWithConcurrency(ctx context.Context, runners []Runner, concurrency int) []Report {
	if concurrency < 1 {
		concurrency = defaultConcurrency
	}
	reports := make([]Report, len(runners))
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for i, r := range runners {
		wg.Add(1)
		go func(i int, r Runner) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				reports[i] = Report{Tool: r.Tool(), Edition: r.Edition(), Err: ctx.Err()}
				return
			}

			reports[i] = r.Run(ctx)
		}(i, r)
	}

	wg.Wait()
	return reports
}

// Totals sums the counters of reports. Err holds the first failure.
func Totals(reports []Report) Report {
	var t Report
	for _, r := range reports {
		t.Published += r.Published
		t.Updated += r.Updated
		t.Skipped += r.Skipped
		t.Rejected += r.Rejected
		t.Failed += r.Failed
		t.Probes += r.Probes
		if t.Err == nil && r.Err != nil {
			t.Err = r.Err
		}
	}
	return t
}

func sortCandidates(cs []candidate) {
	sort.SliceStable(cs, func(i, j int) bool {
		switch cs[i].id.Compare(cs[j].id) {
		case version.Less:
			return true
		case version.Equal:
			return cs[i].canonical < cs[j].canonical
		}
		return false
	})
}

// canonicalVersions maps raws through src and returns the distinct
// canonical versions in ascending order.
func canonicalVersions(src VersionSource, raws []RawVersion) []string {
	seen := make(map[string]bool)
	var cs []candidate
	for _, raw := range raws {
		c, ok := src.MapVersion(raw.Name)
		if !ok || seen[c] {
			continue
		}
		seen[c] = true
		cs = append(cs, candidate{canonical: c, id: version.Parse(c)})
	}
	sortCandidates(cs)
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.canonical
	}
	return out
}
