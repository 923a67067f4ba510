package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwbudde/circlemosaic/internal/fit"
	"github.com/cwbudde/circlemosaic/internal/opt"
)

func newTestMetrics(t *testing.T) (*Metrics, *prometheus.Registry) {
	t.Helper()
	reg := prometheus.NewRegistry()
	return New(reg), reg
}

func TestCircleDone(t *testing.T) {
	m, reg := newTestMetrics(t)

	var obs fit.Observer = m
	obs.CircleDone(0, fit.CircleResult{Outcome: fit.Outcome{Iterations: 10, Stop: opt.StopThreshold}})
	obs.CircleDone(1, fit.CircleResult{Outcome: fit.Outcome{Iterations: 0, Stop: opt.StopThreshold}})
	obs.CircleDone(2, fit.CircleResult{Outcome: fit.Outcome{Iterations: 500, Stop: opt.StopMaxIterations}})

	assert.Equal(t, 2.0, testutil.ToFloat64(m.circles.WithLabelValues("threshold")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.circles.WithLabelValues("max_iterations")))

	count, err := testutil.GatherAndCount(reg, "circlemosaic_optimizer_iterations")
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestRunOutcomes(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.RunCompleted(&fit.Report{Elapsed: 2 * time.Second, PSNR: 31.5})
	m.RunAborted(StatusCancelled)
	m.RunAborted(StatusFailed)
	m.RunAborted(StatusFailed)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(StatusCompleted)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues(StatusCancelled)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues(StatusFailed)))
}

func TestActiveJobs(t *testing.T) {
	m, _ := newTestMetrics(t)

	m.JobStarted()
	m.JobStarted()
	m.JobFinished()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.activeJobs))
}

func TestDefaultIsSingleton(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func TestNewRegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) }, "duplicate registration should panic")
}
