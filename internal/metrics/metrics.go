// Package metrics exposes Prometheus counters for source fetches, package
// lifecycle operations, download transitions and maintenance tasks.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tomes"

// Outcome labels.
const (
	OutcomeSuccess  = "success"
	OutcomeFailure  = "failure"
	OutcomeCanceled = "canceled"
)

var (
	registerOnce sync.Once

	sourceFetches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "source_fetches_total",
		Help:      "Total number of source fetches by operation and outcome",
	}, []string{"op", "outcome"})
	sourceFetchDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "source_fetch_duration_seconds",
		Help:      "Histogram of source fetch durations in seconds by operation",
		Buckets:   prometheus.ExponentialBuckets(0.05, 1.8, 10),
	}, []string{"op"})
	packageOps = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "package_operations_total",
		Help:      "Total number of package installs and uninstalls by outcome",
	}, []string{"op", "outcome"})
	downloadTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "download_transitions_total",
		Help:      "Total number of download task transitions by target state",
	}, []string{"state"})
	downloadedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "downloaded_bytes_total",
		Help:      "Total number of chapter bytes written",
	})
	queueGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "download_queue_tasks",
		Help:      "Current number of download tasks by state",
	}, []string{"state"})
	searches = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "searches_total",
		Help:      "Total number of aggregated searches by outcome",
	}, []string{"outcome"})
	taskRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "maintenance_runs_total",
		Help:      "Total number of maintenance task runs by task and outcome",
	}, []string{"task", "outcome"})
)

// Register initializes metrics with the global Prometheus registry (idempotent)
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(sourceFetches, sourceFetchDuration, packageOps,
			downloadTransitions, downloadedBytes, queueGauge, searches, taskRuns)
	})
}

// Outcome maps an error to a success or failure label.
func Outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}

// ObserveFetch records one source fetch.
func ObserveFetch(op string, d time.Duration, err error) {
	sourceFetches.WithLabelValues(op, Outcome(err)).Inc()
	sourceFetchDuration.WithLabelValues(op).Observe(d.Seconds())
}

// Package lifecycle
func IncInstall(outcome string)   { packageOps.WithLabelValues("install", outcome).Inc() }
func IncUninstall(outcome string) { packageOps.WithLabelValues("uninstall", outcome).Inc() }

// Downloads
func IncTransition(state string)      { downloadTransitions.WithLabelValues(state).Inc() }
func AddDownloadedBytes(n int)        { downloadedBytes.Add(float64(n)) }
func SetQueued(state string, n int)   { queueGauge.WithLabelValues(state).Set(float64(n)) }
func IncSearch(outcome string)        { searches.WithLabelValues(outcome).Inc() }
func IncTaskRun(task, outcome string) { taskRuns.WithLabelValues(task, outcome).Inc() }
