package core

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type stubRunner struct {
	tool    string
	err     error
	running *atomic.Int32
	peak    *atomic.Int32
}

func (s stubRunner) Tool() string    { return s.tool }
func (s stubRunner) Edition() string { return s.tool }

func (s stubRunner) Run(ctx context.Context) Report {
	n := s.running.Add(1)
	for {
		p := s.peak.Load()
		if n <= p || s.peak.CompareAndSwap(p, n) {
			break
		}
	}
	time.Sleep(10 * time.Millisecond)
	s.running.Add(-1)
	return Report{Tool: s.tool, Edition: s.tool, Published: 1, Err: s.err}
}

func TestRunAllContinuesPastFailures(t *testing.T) {
	var running, peak atomic.Int32
	down := &SourceUnavailableError{Tool: "b", Source: "github", Err: errors.New("503")}
	runners := []Runner{
		stubRunner{tool: "a", running: &running, peak: &peak},
		stubRunner{tool: "b", err: down, running: &running, peak: &peak},
		stubRunner{tool: "c", running: &running, peak: &peak},
		stubRunner{tool: "d", running: &running, peak: &peak},
	}

	reports := RunAllWithConcurrency(context.Background(), runners, 2)
	if len(reports) != 4 {
		t.Fatalf("got %d reports, want 4", len(reports))
	}
	for i, want := range []string{"a", "b", "c", "d"} {
		if reports[i].Tool != want {
			t.Errorf("reports[%d].Tool = %q, want %q", i, reports[i].Tool, want)
		}
	}
	if !errors.Is(reports[1].Err, down) {
		t.Errorf("reports[1].Err = %v", reports[1].Err)
	}
	if peak.Load() > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak.Load())
	}

	total := Totals(reports)
	if total.Published != 4 {
		t.Errorf("Totals().Published = %d, want 4", total.Published)
	}
	var sue *SourceUnavailableError
	if !errors.As(total.Err, &sue) {
		t.Errorf("Totals().Err = %v, want SourceUnavailableError", total.Err)
	}
}

func TestRunAllCancelled(t *testing.T) {
	var running, peak atomic.Int32
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	reports := RunAll(ctx, []Runner{stubRunner{tool: "a", running: &running, peak: &peak}})
	if len(reports) != 1 || reports[0].Tool != "a" {
		t.Fatalf("reports = %+v", reports)
	}
}
