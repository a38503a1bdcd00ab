package daemon

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics records worker and request activity. It implements
// worker.Observer.
type Metrics struct {
	registry *prometheus.Registry

	served   *prometheus.CounterVec
	wait     prometheus.Histogram
	spawned  prometheus.Counter
	died     prometheus.Counter
	requests *prometheus.CounterVec
}

// NewMetrics creates the collectors on a private registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		served: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptbuffer_served_total",
				Help: "Prompts served, by whether the render was fresh or cached",
			},
			[]string{"result"},
		),
		wait: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "promptbuffer_wait_seconds",
			Help:    "Time a request waited for its worker",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25},
		}),
		spawned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promptbuffer_workers_spawned_total",
			Help: "Workers started, including revivals",
		}),
		died: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "promptbuffer_workers_idle_exits_total",
			Help: "Workers that exited after the idle timeout",
		}),
		requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "promptbuffer_requests_total",
				Help: "Socket requests, by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
	}
	m.registry.MustRegister(
		m.served, m.wait, m.spawned, m.died, m.requests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Spawned(string) { m.spawned.Inc() }
func (m *Metrics) Died(string)    { m.died.Inc() }

func (m *Metrics) Served(_ string, fresh bool, wait time.Duration) {
	result := "cached"
	if fresh {
		result = "fresh"
	}
	m.served.WithLabelValues(result).Inc()
	m.wait.Observe(wait.Seconds())
}

func (m *Metrics) request(op, outcome string) {
	m.requests.WithLabelValues(op, outcome).Inc()
}

// gauge exposes a value computed at scrape time.
func (m *Metrics) gauge(name, help string, fn func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, fn))
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
