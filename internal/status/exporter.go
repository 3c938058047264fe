// Package status exports the kernel's status-indicator registry
// (internal/registry.StatusRegistry, spec.md §4.1) as Prometheus metrics,
// and wires the conventional /metrics scrape endpoint into the gateway's
// HTTP-route registry (SPEC_FULL.md §C.1).
package status

import (
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slashbot/slashbot/internal/registry"
)

var (
	statusValueDesc = prometheus.NewDesc(
		"slashbot_status_value",
		"Numeric value of a kernel status indicator, when the value is numeric.",
		[]string{"id"}, nil,
	)
	statusInfoDesc = prometheus.NewDesc(
		"slashbot_status_info",
		"Always 1; the value label carries the indicator's current value, stringified, for non-numeric statuses.",
		[]string{"id", "value"}, nil,
	)
)

// Exporter adapts a StatusRegistry snapshot into Prometheus collectors on
// every scrape — it implements prometheus.Collector directly rather than
// pre-registering one gauge per indicator, since indicators can be
// registered after the exporter is constructed.
type Exporter struct {
	registry *registry.StatusRegistry
}

// NewExporter constructs an Exporter over a StatusRegistry. Register it
// with a prometheus.Registerer (or serve Handler() directly) to expose it.
func NewExporter(r *registry.StatusRegistry) *Exporter {
	return &Exporter{registry: r}
}

// Describe implements prometheus.Collector.
func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	ch <- statusValueDesc
	ch <- statusInfoDesc
}

// Collect implements prometheus.Collector, translating every indicator in
// the registry's priority-ordered List() into either a numeric gauge
// sample (when the value is a number or bool) or an info-style sample
// (value always 1, the indicator's value carried as a label) otherwise.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	for _, snapshot := range e.registry.List() {
		if f, ok := numericValue(snapshot.Value); ok {
			ch <- prometheus.MustNewConstMetric(statusValueDesc, prometheus.GaugeValue, f, snapshot.ID)
			continue
		}
		ch <- prometheus.MustNewConstMetric(statusInfoDesc, prometheus.GaugeValue, 1, snapshot.ID, stringifyValue(snapshot.Value))
	}
}

func numericValue(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}

func stringifyValue(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

// Handler returns an http.Handler serving this exporter's metrics alongside
// every collector registered with the default Prometheus registry — which
// is where observability.Metrics's promauto.New* calls land — so a single
// gateway route at /metrics covers both the indicator registry and the
// kernel's own instrumentation.
func (e *Exporter) Handler() http.Handler {
	own := prometheus.NewRegistry()
	own.MustRegister(e)
	gatherers := prometheus.Gatherers{prometheus.DefaultGatherer, own}
	return promhttp.HandlerFor(gatherers, promhttp.HandlerOpts{})
}
