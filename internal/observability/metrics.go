package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the gateway's Prometheus collectors.
type Metrics struct {
	// SSESubscribers tracks currently connected event-stream clients.
	SSESubscribers prometheus.Gauge

	// UploadsTotal counts upload requests by outcome
	// (accepted, converted, rejected, failed).
	UploadsTotal *prometheus.CounterVec

	// EventsDropped counts bus events discarded because a subscriber
	// queue was full.
	EventsDropped prometheus.Counter

	// SyncsTotal counts corpus sync operations by status.
	SyncsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers the gateway collectors. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh
// registry to avoid duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SSESubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "knowsee_sse_subscribers",
			Help: "Currently connected SSE clients.",
		}),
		UploadsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowsee_uploads_total",
			Help: "Upload requests by outcome.",
		}, []string{"outcome"}),
		EventsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "knowsee_events_dropped_total",
			Help: "Stream events dropped due to full subscriber queues.",
		}),
		SyncsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "knowsee_corpus_syncs_total",
			Help: "Corpus sync operations by status.",
		}, []string{"status"}),
	}
	reg.MustRegister(m.SSESubscribers, m.UploadsTotal, m.EventsDropped, m.SyncsTotal)
	return m
}
