package templating

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Render outcomes recorded by Metrics.
const (
	resultOK        = "ok"
	resultNotFound  = "not_found"
	resultEvalError = "eval_error"
)

// Metrics holds the Prometheus collectors a TemplateManager reports to.
type Metrics struct {
	renders  *prometheus.CounterVec
	duration prometheus.Histogram
	loaded   prometheus.Gauge
}

// NewMetrics creates the templating collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		renders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "roster",
			Subsystem: "templating",
			Name:      "renders_total",
			Help:      "Template renders by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "roster",
			Subsystem: "templating",
			Name:      "render_duration_seconds",
			Help:      "Time spent rendering templates.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}),
		loaded: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "roster",
			Subsystem: "templating",
			Name:      "templates_loaded",
			Help:      "Number of templates in the cache.",
		}),
	}
	reg.MustRegister(m.renders, m.duration, m.loaded)
	return m
}

func (m *Metrics) observeRender(result string, seconds float64) {
	if m == nil {
		return
	}
	m.renders.WithLabelValues(result).Inc()
	m.duration.Observe(seconds)
}

func (m *Metrics) setLoaded(n int) {
	if m == nil {
		return
	}
	m.loaded.Set(float64(n))
}
