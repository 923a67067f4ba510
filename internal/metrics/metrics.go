// Package metrics exposes Prometheus instrumentation for reconstruction runs.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/cwbudde/circlemosaic/internal/fit"
)

const namespace = "circlemosaic"

// Run outcome labels
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
	StatusCancelled = "cancelled"
)

// Metrics holds the collectors for one registry
type Metrics struct {
	circles     *prometheus.CounterVec
	iterations  prometheus.Histogram
	runs        *prometheus.CounterVec
	runDuration prometheus.Histogram
	runPSNR     prometheus.Histogram
	activeJobs  prometheus.Gauge
}

// New creates and registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		// Labels: stop (threshold, max_iterations, patience)
		circles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "circles_total",
			Help:      "Circles optimized, by stop reason",
		}, []string{"stop"}),

		iterations: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "optimizer",
			Name:      "iterations",
			Help:      "Candidate colors evaluated per circle",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 12),
		}),

		// Labels: status (completed, failed, cancelled)
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by final status",
		}, []string{"status"}),

		runDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Wall time of completed pipeline runs",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300, 600},
		}),

		runPSNR: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "psnr_db",
			Help:      "Peak signal-to-noise ratio of completed reconstructions",
			Buckets:   prometheus.LinearBuckets(10, 5, 10),
		}),

		activeJobs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "server",
			Name:      "active_jobs",
			Help:      "Jobs currently running",
		}),
	}
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns the metrics registered on the global Prometheus registry
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = New(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

// CircleDone implements fit.Observer
func (m *Metrics) CircleDone(_ int, res fit.CircleResult) {
	m.circles.WithLabelValues(string(res.Outcome.Stop)).Inc()
	m.iterations.Observe(float64(res.Outcome.Iterations))
}

// RunCompleted records a finished pipeline run
func (m *Metrics) RunCompleted(report *fit.Report) {
	m.runs.WithLabelValues(StatusCompleted).Inc()
	m.runDuration.Observe(report.Elapsed.Seconds())
	m.runPSNR.Observe(report.PSNR)
}

// RunAborted records a run that ended without output
func (m *Metrics) RunAborted(status string) {
	m.runs.WithLabelValues(status).Inc()
}

// JobStarted and JobFinished track the number of running server jobs
func (m *Metrics) JobStarted() {
	m.activeJobs.Inc()
}

func (m *Metrics) JobFinished() {
	m.activeJobs.Dec()
}
