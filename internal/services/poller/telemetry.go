package poller

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Query outcomes recorded by Telemetry.
const (
	OutcomeSubmitted      = "submitted"
	OutcomeSkipped        = "skipped"
	OutcomeStatementError = "statement_error"
	OutcomeDispatchWarn   = "dispatch_warning"
)

// Reload results recorded by Telemetry.
const (
	ReloadUnchanged = "unchanged"
	ReloadChanged   = "changed"
	ReloadFailed    = "failed"
)

// Telemetry exposes loop counters to Prometheus. A nil *Telemetry records nothing.
type Telemetry struct {
	cycles        prometheus.Counter
	cycleDuration prometheus.Histogram
	queries       *prometheus.CounterVec
	reloads       *prometheus.CounterVec
	querySetSize  prometheus.Gauge
}

// NewTelemetry registers the loop collectors on reg.
func NewTelemetry(reg prometheus.Registerer) *Telemetry {
	f := promauto.With(reg)
	return &Telemetry{
		cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: "pgstatsd",
			Name:      "cycles_total",
			Help:      "Completed polling cycles.",
		}),
		cycleDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "pgstatsd",
			Name:      "cycle_duration_seconds",
			Help:      "Time spent running every query of one cycle.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 14),
		}),
		queries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pgstatsd",
			Name:      "queries_total",
			Help:      "Query executions by outcome.",
		}, []string{"outcome"}),
		reloads: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pgstatsd",
			Name:      "reloads_total",
			Help:      "Query set reload checks by result.",
		}, []string{"result"}),
		querySetSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "pgstatsd",
			Name:      "queries",
			Help:      "Number of queries in the active set.",
		}),
	}
}

func (t *Telemetry) cycle(d time.Duration) {
	if t == nil {
		return
	}
	t.cycles.Inc()
	t.cycleDuration.Observe(d.Seconds())
}

func (t *Telemetry) query(outcome string) {
	if t == nil {
		return
	}
	t.queries.WithLabelValues(outcome).Inc()
}

func (t *Telemetry) reload(result string) {
	if t == nil {
		return
	}
	t.reloads.WithLabelValues(result).Inc()
}

func (t *Telemetry) setSize(n int) {
	if t == nil {
		return
	}
	t.querySetSize.Set(float64(n))
}
