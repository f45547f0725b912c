package enrich

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/sells-group/lead-enricher/internal/model"
)

// Lead outcome labels for the leads counter.
const (
	leadEnriched = "enriched"
	leadClosed   = "closed"
	leadFailed   = "failed"
)

// Metrics holds the per-layer and per-lead prometheus collectors.
type Metrics struct {
	registry     *prometheus.Registry
	layerTotal   *prometheus.CounterVec
	layerSeconds *prometheus.HistogramVec
	leadsTotal   *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		layerTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lead_enricher_layer_total",
			Help: "Enrichment layer executions by outcome.",
		}, []string{"layer", "outcome"}),
		layerSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lead_enricher_layer_seconds",
			Help:    "Enrichment layer duration.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 4, 8, 16},
		}, []string{"layer"}),
		leadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lead_enricher_leads_total",
			Help: "Leads processed by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.layerTotal, m.layerSeconds, m.leadsTotal)
	return m
}

// Registry exposes the registry for the /metrics handler.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) observeLayer(layer string, outcome model.LogOutcome, d time.Duration) {
	if m == nil {
		return
	}
	m.layerTotal.WithLabelValues(layer, string(outcome)).Inc()
	m.layerSeconds.WithLabelValues(layer).Observe(d.Seconds())
}

func (m *Metrics) observeLead(result string) {
	if m == nil {
		return
	}
	m.leadsTotal.WithLabelValues(result).Inc()
}
