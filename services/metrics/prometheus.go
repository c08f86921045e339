package metricsvc

import (
	"net/http"

	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/trezcool/darasa/core"
)

const namespace = "darasa"

type PrometheusMetrics struct {
	registry *prometheus.Registry

	cascades  *prometheus.CounterVec
	mutations *prometheus.CounterVec
	ledger    *prometheus.CounterVec
	rejected  prometheus.Counter
}

var _ core.Metrics = (*PrometheusMetrics)(nil)

func NewPrometheusMetrics() *PrometheusMetrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		registry: reg,
		cascades: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_operations_total",
			Help:      "Cascade deletions, by operation and outcome.",
		}, []string{"op", "outcome"}),
		mutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_mutations_total",
			Help:      "Rows deleted or updated by committed cascades.",
		}, []string{"op"}),
		ledger: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_writes_total",
			Help:      "Attendance & exam result writes, by operation and outcome.",
		}, []string{"op", "outcome"}),
		rejected: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_capacity_rejections_total",
			Help:      "Attendance records refused because every session of the subject was recorded.",
		}),
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, core.ErrNotFound):
		return "not_found"
	case errors.Is(err, core.ErrForbidden):
		return "forbidden"
	case errors.Is(err, core.ErrCapacityExceeded):
		return "capacity_exceeded"
	case errors.Is(err, core.ErrStoreUnavailable):
		return "store_unavailable"
	default:
		return "error"
	}
}

func (m *PrometheusMetrics) ObserveCascade(op string, err error, mutations int) {
	m.cascades.WithLabelValues(op, outcome(err)).Inc()
	if err == nil {
		m.mutations.WithLabelValues(op).Add(float64(mutations))
	}
}

func (m *PrometheusMetrics) ObserveLedger(op string, err error) {
	m.ledger.WithLabelValues(op, outcome(err)).Inc()
	if errors.Is(err, core.ErrCapacityExceeded) {
		m.rejected.Inc()
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *PrometheusMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
