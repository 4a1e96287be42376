// Package metrics records relay cycle, scan and submission metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "relayer"

// Submission results.
const (
	ResultSuccess = "success"
	ResultFailure = "failure"
	ResultDryRun  = "dry_run"
)

type Metricer interface {
	RecordTxScanned()
	RecordUpdateSkipped(kind string, reason string)
	RecordUpdateFound(kind string)

	RecordCycle(ok bool, took time.Duration)
	RecordSubmission(kind string, result string)

	Handler() http.Handler
}

type Metrics struct {
	registry *prometheus.Registry

	Cycles        *prometheus.CounterVec
	CycleDuration prometheus.Histogram
	LastSuccess   prometheus.Gauge

	TxsScanned     prometheus.Counter
	UpdatesSkipped *prometheus.CounterVec
	UpdatesFound   *prometheus.CounterVec

	Submissions *prometheus.CounterVec
}

var _ Metricer = (*Metrics)(nil)

// NewMetrics registers all relayer collectors on a fresh registry. procName
// becomes the subsystem, so several processes can share a dashboard.
func NewMetrics(procName string) *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	registry.MustRegister(collectors.NewGoCollector())
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		Cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: procName,
			Name:      "cycles_total",
			Help:      "Number of relay cycles run, by outcome",
		}, []string{"result"}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: procName,
			Name:      "cycle_duration_seconds",
			Help:      "Time spent in one fetch, scan and submit cycle",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		}),
		LastSuccess: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: procName,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last cycle that completed without error",
		}),
		TxsScanned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: procName,
			Name:      "txs_scanned_total",
			Help:      "Number of source chain transactions inspected by the scanner",
		}),
		UpdatesSkipped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: procName,
			Name:      "updates_skipped_total",
			Help:      "Number of candidate updates skipped, by kind and reason",
		}, []string{"kind", "reason"}),
		UpdatesFound: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: procName,
			Name:      "updates_found_total",
			Help:      "Number of valid updates selected for relay, by kind",
		}, []string{"kind"}),
		Submissions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: procName,
			Name:      "submissions_total",
			Help:      "Number of execute messages submitted, by kind and result",
		}, []string{"kind", "result"}),
	}
}

func (m *Metrics) RecordTxScanned() {
	m.TxsScanned.Inc()
}

func (m *Metrics) RecordUpdateSkipped(kind string, reason string) {
	m.UpdatesSkipped.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) RecordUpdateFound(kind string) {
	m.UpdatesFound.WithLabelValues(kind).Inc()
}

func (m *Metrics) RecordCycle(ok bool, took time.Duration) {
	m.CycleDuration.Observe(took.Seconds())
	if !ok {
		m.Cycles.WithLabelValues(ResultFailure).Inc()
		return
	}
	m.Cycles.WithLabelValues(ResultSuccess).Inc()
	m.LastSuccess.SetToCurrentTime()
}

func (m *Metrics) RecordSubmission(kind string, result string) {
	m.Submissions.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.InstrumentMetricHandler(m.registry, promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
}

type noopMetricer struct{}

// NoopMetrics discards everything. Handler serves 404.
var NoopMetrics Metricer = noopMetricer{}

func (noopMetricer) RecordTxScanned()                   {}
func (noopMetricer) RecordUpdateSkipped(string, string) {}
func (noopMetricer) RecordUpdateFound(string)           {}
func (noopMetricer) RecordCycle(bool, time.Duration)    {}
func (noopMetricer) RecordSubmission(string, string)    {}
func (noopMetricer) Handler() http.Handler              { return http.NotFoundHandler() }
