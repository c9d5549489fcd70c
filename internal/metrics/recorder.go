// Package metrics records loop iteration outcomes for Prometheus and for
// the end-of-run summary.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eraldohasanaj/lazyloop/internal/loop"
)

const namespace = "lazyloop"

// Iteration outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeError   = "error"
)

// Recorder exports iteration outcomes as Prometheus metrics.
type Recorder struct {
	iterations *prometheus.CounterVec
	duration   prometheus.Histogram
	delay      prometheus.Histogram
	remaining  prometheus.Gauge
}

// NewRecorder registers the loop metrics with reg.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		iterations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "iterations_total",
			Help:      "Task invocations by outcome.",
		}, []string{"outcome"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "iteration_duration_seconds",
			Help:      "Time spent in the task per iteration.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		delay: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "delay_seconds",
			Help:      "Computed pause after each iteration.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		remaining: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "remaining_iterations",
			Help:      "Iterations left in the budget; negative when unbounded.",
		}),
	}
}

// IterationDone implements loop.Observer.
func (r *Recorder) IterationDone(_ context.Context, it loop.Iteration) {
	r.iterations.WithLabelValues(Outcome(it)).Inc()
	r.duration.Observe(it.Elapsed.Seconds())
	r.delay.Observe(max(it.Delay.Seconds(), 0))
	r.remaining.Set(float64(it.Remaining))
}

// Outcome classifies an iteration.
func Outcome(it loop.Iteration) string {
	switch {
	case it.Err != nil:
		return OutcomeError
	case it.Success:
		return OutcomeSuccess
	default:
		return OutcomeFailure
	}
}

// Handler serves the metrics gathered by g.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}
