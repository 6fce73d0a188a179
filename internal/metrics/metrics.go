// Package metrics provides Prometheus metrics for crawl runs.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the crawl counters. Each instance owns its registry so
// several runs in one process do not collide.
type Metrics struct {
	Registry *prometheus.Registry

	CrawlsTotal      *prometheus.CounterVec
	CrawlDuration    *prometheus.HistogramVec
	VersionsTotal    *prometheus.CounterVec
	ProbesTotal      *prometheus.CounterVec
	ProbeDuration    *prometheus.HistogramVec
	LastSuccess      *prometheus.GaugeVec
	SourceErrorTotal *prometheus.CounterVec
}

// New creates and registers all metrics on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	m := &Metrics{Registry: reg}

	m.CrawlsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolurls_crawls_total",
			Help: "Total number of tool crawls",
		},
		[]string{"tool", "edition", "status"},
	)

	m.CrawlDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolurls_crawl_duration_seconds",
			Help:    "Duration of tool crawls in seconds",
			Buckets: []float64{.1, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
		[]string{"tool", "edition"},
	)

	m.VersionsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolurls_versions_total",
			Help: "Versions seen by outcome (published, skipped, rejected, failed)",
		},
		[]string{"tool", "edition", "outcome"},
	)

	m.ProbesTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolurls_probes_total",
			Help: "URL probes by platform and result",
		},
		[]string{"tool", "platform", "result"},
	)

	m.ProbeDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "toolurls_probe_duration_seconds",
			Help:    "Duration of URL probes in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	m.LastSuccess = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "toolurls_last_success_timestamp_seconds",
			Help: "Unix time of the last crawl that reached its source",
		},
		[]string{"tool", "edition"},
	)

	m.SourceErrorTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "toolurls_source_errors_total",
			Help: "Version list fetches that failed",
		},
		[]string{"tool", "source"},
	)

	return m
}

// RecordCrawl records the end of one tool crawl.
func (m *Metrics) RecordCrawl(tool, edition string, ok bool, duration time.Duration, at time.Time) {
	if m == nil {
		return
	}
	status := "ok"
	if !ok {
		status = "error"
	}
	m.CrawlsTotal.WithLabelValues(tool, edition, status).Inc()
	m.CrawlDuration.WithLabelValues(tool, edition).Observe(duration.Seconds())
	if ok {
		m.LastSuccess.WithLabelValues(tool, edition).Set(float64(at.Unix()))
	}
}

// RecordVersions adds n versions with the given outcome.
func (m *Metrics) RecordVersions(tool, edition, outcome string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.VersionsTotal.WithLabelValues(tool, edition, outcome).Add(float64(n))
}

// RecordProbe records one URL probe.
func (m *Metrics) RecordProbe(tool, platform string, ok bool, duration time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if !ok {
		result = "failure"
	}
	m.ProbesTotal.WithLabelValues(tool, platform, result).Inc()
	m.ProbeDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordSourceError records a failed version list fetch.
func (m *Metrics) RecordSourceError(tool, source string) {
	if m == nil {
		return
	}
	m.SourceErrorTotal.WithLabelValues(tool, source).Inc()
}

// WriteTextfile writes every metric in the text exposition format to path,
// for collection by a node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, m.Registry)
}
