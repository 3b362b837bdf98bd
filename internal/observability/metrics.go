// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the engine.
// A nil *Metrics is valid: every Observe helper is a no-op on nil, so
// components can run uninstrumented (tests, one-off tools).
type Metrics struct {
	// Cache metrics
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Provider metrics
	ProviderAttempts  *prometheus.CounterVec
	ProviderFailures  *prometheus.CounterVec
	ResolverDegraded  *prometheus.CounterVec

	// Scheduler metrics
	JobRuns      *prometheus.CounterVec
	JobSkips     *prometheus.CounterVec
	JobDurations *prometheus.HistogramVec

	// Classifier metrics
	WhalesAdmitted  prometheus.Counter
	WhalesRejected  *prometheus.CounterVec
	SyntheticWhales prometheus.Counter

	// Valuation metrics
	SnapshotsAppended  prometheus.Counter
	HoldingsExcluded   prometheus.Counter
	LastSnapshotAt     prometheus.Gauge
	PortfolioValueUSD  *prometheus.GaugeVec
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "marketpulse"
	}

	return &Metrics{
		CacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Total number of cache reads answered within TTL",
		}),
		CacheMisses: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Total number of cache reads that triggered a fetch",
		}),

		ProviderAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "attempts_total",
			Help:      "Total number of provider fetch attempts by adapter",
		}, []string{"adapter"}),
		ProviderFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "failures_total",
			Help:      "Total number of failed provider fetches by adapter",
		}, []string{"adapter"}),
		ResolverDegraded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "degraded_total",
			Help:      "Total number of resolutions served by the terminal fallback",
		}, []string{"category"}),

		JobRuns: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_runs_total",
			Help:      "Total number of job executions by job name",
		}, []string{"job"}),
		JobSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_skipped_ticks_total",
			Help:      "Total number of ticks skipped because the previous run was in flight",
		}, []string{"job"}),
		JobDurations: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scheduler",
			Name:      "job_duration_seconds",
			Help:      "Job execution duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),

		WhalesAdmitted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "whales_admitted_total",
			Help:      "Total number of whale transactions admitted",
		}),
		WhalesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "whales_rejected_total",
			Help:      "Total number of candidates rejected by reason",
		}, []string{"reason"}),
		SyntheticWhales: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "classifier",
			Name:      "synthetic_whales_total",
			Help:      "Total number of admitted whale transactions tagged synthetic",
		}),

		SnapshotsAppended: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "snapshots_appended_total",
			Help:      "Total number of portfolio snapshots appended to history",
		}),
		HoldingsExcluded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "holdings_excluded_total",
			Help:      "Total number of malformed holdings excluded from snapshots",
		}),
		LastSnapshotAt: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "last_snapshot_timestamp_seconds",
			Help:      "Unix time of the last appended snapshot",
		}),
		PortfolioValueUSD: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "valuation",
			Name:      "portfolio_value_usd",
			Help:      "Last computed total portfolio value in USD",
		}, []string{"portfolio"}),
	}
}

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCacheRead records a cache hit or miss.
func (m *Metrics) ObserveCacheRead(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// ObserveProviderAttempt records one adapter fetch attempt.
func (m *Metrics) ObserveProviderAttempt(adapter string, ok bool) {
	if m == nil {
		return
	}
	m.ProviderAttempts.WithLabelValues(adapter).Inc()
	if !ok {
		m.ProviderFailures.WithLabelValues(adapter).Inc()
	}
}

// ObserveDegraded records a resolution served by the terminal fallback.
func (m *Metrics) ObserveDegraded(category string) {
	if m == nil {
		return
	}
	m.ResolverDegraded.WithLabelValues(category).Inc()
}

// ObserveJobRun records one job execution and its duration.
func (m *Metrics) ObserveJobRun(job string, seconds float64) {
	if m == nil {
		return
	}
	m.JobRuns.WithLabelValues(job).Inc()
	m.JobDurations.WithLabelValues(job).Observe(seconds)
}

// ObserveJobSkip records a dropped tick.
func (m *Metrics) ObserveJobSkip(job string) {
	if m == nil {
		return
	}
	m.JobSkips.WithLabelValues(job).Inc()
}

// ObserveWhaleAdmitted records one admitted whale transaction.
func (m *Metrics) ObserveWhaleAdmitted(synthetic bool) {
	if m == nil {
		return
	}
	m.WhalesAdmitted.Inc()
	if synthetic {
		m.SyntheticWhales.Inc()
	}
}

// ObserveWhaleRejected records one rejected candidate.
func (m *Metrics) ObserveWhaleRejected(reason string) {
	if m == nil {
		return
	}
	m.WhalesRejected.WithLabelValues(reason).Inc()
}

// ObserveSnapshot records an appended snapshot.
func (m *Metrics) ObserveSnapshot(portfolioID string, totalValue float64, unixSeconds float64) {
	if m == nil {
		return
	}
	m.SnapshotsAppended.Inc()
	m.LastSnapshotAt.Set(unixSeconds)
	m.PortfolioValueUSD.WithLabelValues(portfolioID).Set(totalValue)
}

// ObserveHoldingExcluded records a holding excluded from a snapshot.
func (m *Metrics) ObserveHoldingExcluded() {
	if m == nil {
		return
	}
	m.HoldingsExcluded.Inc()
}
