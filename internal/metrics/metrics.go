// Package metrics keeps Prometheus counters for a nullfix run and exports
// them in the node_exporter textfile format, so a CI host can scrape how
// long the analyzer took and how many findings a project accumulated.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "nullfix"

// Recorder holds the metrics of one process. A nil *Recorder is a no-op.
type Recorder struct {
	reg *prometheus.Registry

	rounds        prometheus.Counter
	toolRuns      *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	selected      prometheus.Counter
	accumulated   prometheus.Gauge
	initializers  prometheus.Gauge
	lastOutcome   *prometheus.GaugeVec
	lastRunFinish prometheus.Gauge
}

// New registers the nullfix metrics on a private registry.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		rounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rounds_total",
			Help:      "Rounds completed",
		}),
		toolRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "invocations_total",
			Help:      "Analyzer invocations by operation and result",
		}, []string{"op", "result"}),
		toolDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "tool",
			Name:      "duration_seconds",
			Help:      "Analyzer invocation wall time",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"op"}),
		selected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fixes_selected_total",
			Help:      "Fixes selected for injection",
		}),
		accumulated: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "findings_accumulated",
			Help:      "Distinct findings accumulated so far",
		}),
		initializers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "initializers_selected",
			Help:      "Initializer methods chosen by the last preprocessing pass",
		}),
		lastOutcome: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_outcome",
			Help:      "1 for the outcome of the last finished run",
		}, []string{"outcome"}),
		lastRunFinish: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_finish_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}
	r.reg.MustRegister(r.rounds, r.toolRuns, r.toolDuration, r.selected,
		r.accumulated, r.initializers, r.lastOutcome, r.lastRunFinish)
	return r
}

// ToolDone records one analyzer invocation.
func (r *Recorder) ToolDone(op string, elapsed time.Duration, err error) {
	if r == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.toolRuns.WithLabelValues(op, result).Inc()
	r.toolDuration.WithLabelValues(op).Observe(elapsed.Seconds())
}

// RoundDone records a finished round.
func (r *Recorder) RoundDone(selected, accumulated int) {
	if r == nil {
		return
	}
	r.rounds.Inc()
	r.selected.Add(float64(selected))
	r.accumulated.Set(float64(accumulated))
}

// InitializersSelected records the size of the last initializer batch.
func (r *Recorder) InitializersSelected(n int) {
	if r == nil {
		return
	}
	r.initializers.Set(float64(n))
}

// RunDone records how a run ended.
func (r *Recorder) RunDone(outcome string, at time.Time) {
	if r == nil {
		return
	}
	r.lastOutcome.Reset()
	r.lastOutcome.WithLabelValues(outcome).Set(1)
	r.lastRunFinish.Set(float64(at.Unix()))
}

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("metrics: write %s: %w", path, err)
	}
	return nil
}
