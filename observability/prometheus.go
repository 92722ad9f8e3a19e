package observability

import (
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var _ MetricFactory = (*PrometheusFactory)(nil)

// PrometheusFactory creates Prometheus metrics on a registerer. Dotted metric
// names become underscore names; counters get the _total suffix.
type PrometheusFactory struct {
	namespace string
	factory   promauto.Factory

	mu         sync.Mutex
	counters   map[string]prometheus.Counter
	histograms map[string]prometheus.Histogram
	gauges     map[string]prometheus.Gauge
}

// NewPrometheusFactory creates a factory registering on reg. A nil reg
// uses prometheus.DefaultRegisterer.
func NewPrometheusFactory(namespace string, reg prometheus.Registerer) *PrometheusFactory {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	return &PrometheusFactory{
		namespace:  namespace,
		factory:    promauto.With(reg),
		counters:   make(map[string]prometheus.Counter),
		histograms: make(map[string]prometheus.Histogram),
		gauges:     make(map[string]prometheus.Gauge),
	}
}

// Counter implements MetricFactory. Asking twice for the same name returns
// the same counter.
func (f *PrometheusFactory) Counter(name string) Counter {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.counters[name]; ok {
		return c
	}
	c := f.factory.NewCounter(prometheus.CounterOpts{
		Namespace: f.namespace,
		Name:      metricName(name) + "_total",
		Help:      "Drip counter " + name,
	})
	f.counters[name] = c
	return c
}

// Histogram implements MetricFactory.
func (f *PrometheusFactory) Histogram(name string) Histogram {
	f.mu.Lock()
	defer f.mu.Unlock()

	if h, ok := f.histograms[name]; ok {
		return h
	}
	h := f.factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: f.namespace,
		Name:      metricName(name),
		Help:      "Drip histogram " + name,
		Buckets:   prometheus.ExponentialBuckets(1, 10, 12),
	})
	f.histograms[name] = h
	return h
}

// Gauge implements MetricFactory.
func (f *PrometheusFactory) Gauge(name string) Gauge {
	f.mu.Lock()
	defer f.mu.Unlock()

	if g, ok := f.gauges[name]; ok {
		return g
	}
	g := f.factory.NewGauge(prometheus.GaugeOpts{
		Namespace: f.namespace,
		Name:      metricName(name),
		Help:      "Drip gauge " + name,
	})
	f.gauges[name] = g
	return g
}

func metricName(name string) string {
	return strings.NewReplacer(".", "_", "-", "_").Replace(name)
}
