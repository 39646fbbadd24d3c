package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics collects hub metrics on a private registry so several hubs (for
// example in tests) can coexist in one process.
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.EnvelopeReceived("join_challenge")
//	mux.Handle("/metrics", metrics.Handler())
type Metrics struct {
	registry *prometheus.Registry

	// Connections is the number of open WebSocket connections.
	Connections prometheus.Gauge

	// RoomMembers is the number of connections currently joined to a room.
	RoomMembers prometheus.Gauge

	// Envelopes counts inbound envelopes.
	// Labels: type (authenticate|join_challenge|...|unknown|malformed)
	Envelopes *prometheus.CounterVec

	// HandlerErrors counts business and internal errors returned to clients.
	// Labels: code
	HandlerErrors *prometheus.CounterVec

	// BroadcastDeliveries counts per-recipient fan-out attempts.
	// Labels: result (delivered|dropped)
	BroadcastDeliveries *prometheus.CounterVec

	// Reaped counts connections closed by the liveness monitor.
	Reaped prometheus.Counter

	// RateLimited counts frames discarded by the per-connection limiter.
	RateLimited prometheus.Counter

	// StoreDuration measures storage collaborator latency in seconds.
	// Labels: operation
	StoreDuration *prometheus.HistogramVec
}

// NewMetrics creates and registers all hub metrics, plus the standard Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "challengehub_connections",
			Help: "Current number of open WebSocket connections",
		}),

		RoomMembers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "challengehub_room_members",
			Help: "Current number of connections joined to a challenge room",
		}),

		Envelopes: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "challengehub_envelopes_total",
				Help: "Total number of inbound envelopes by type",
			},
			[]string{"type"},
		),

		HandlerErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "challengehub_handler_errors_total",
				Help: "Total number of error envelopes sent by code",
			},
			[]string{"code"},
		),

		BroadcastDeliveries: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "challengehub_broadcast_deliveries_total",
				Help: "Total number of broadcast fan-out attempts by result",
			},
			[]string{"result"},
		),

		Reaped: factory.NewCounter(prometheus.CounterOpts{
			Name: "challengehub_connections_reaped_total",
			Help: "Total number of connections closed after a missed heartbeat",
		}),

		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "challengehub_rate_limited_total",
			Help: "Total number of inbound frames discarded by rate limiting",
		}),

		StoreDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "challengehub_store_operation_duration_seconds",
				Help:    "Duration of storage operations in seconds",
				Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"operation"},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// EnvelopeReceived increments the inbound envelope counter.
func (m *Metrics) EnvelopeReceived(envelopeType string) {
	if m == nil {
		return
	}
	m.Envelopes.WithLabelValues(envelopeType).Inc()
}

// HandlerError increments the error counter for code.
func (m *Metrics) HandlerError(code string) {
	if m == nil {
		return
	}
	m.HandlerErrors.WithLabelValues(code).Inc()
}

// BroadcastDelivery records one fan-out attempt.
func (m *Metrics) BroadcastDelivery(delivered bool) {
	if m == nil {
		return
	}
	result := "delivered"
	if !delivered {
		result = "dropped"
	}
	m.BroadcastDeliveries.WithLabelValues(result).Inc()
}

// ObserveStore records the latency of a storage operation.
func (m *Metrics) ObserveStore(operation string, d time.Duration) {
	if m == nil {
		return
	}
	m.StoreDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// ConnectionOpened increments the open connection gauge.
func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.Connections.Inc()
	}
}

// ConnectionClosed decrements the open connection gauge.
func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.Connections.Dec()
	}
}

// ConnectionReaped counts a connection closed by the liveness monitor.
func (m *Metrics) ConnectionReaped() {
	if m != nil {
		m.Reaped.Inc()
	}
}

// FrameRateLimited counts a discarded inbound frame.
func (m *Metrics) FrameRateLimited() {
	if m != nil {
		m.RateLimited.Inc()
	}
}

// SetRoomMembers records the number of joined connections.
func (m *Metrics) SetRoomMembers(n int) {
	if m != nil {
		m.RoomMembers.Set(float64(n))
	}
}
