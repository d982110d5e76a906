package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "orders"

// Metrics contains the counters exported by the order core.
type Metrics struct {
	// Orders created.
	OrdersCreated prometheus.Counter
	// Accepted status transitions, by target status.
	Transitions *prometheus.CounterVec
	// Payment network failures, by operation.
	PaymentErrors *prometheus.CounterVec
	// Events handed to subscribers, by event type.
	EventsPublished *prometheus.CounterVec
	// Events dropped because a subscriber buffer was full.
	EventsDropped *prometheus.CounterVec
	// Open websocket connections.
	Connections prometheus.Gauge
}

// PrometheusMetrics registers the metrics on reg under namespace.
func PrometheusMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "created_total",
			Help:      "Number of orders created.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "transitions_total",
			Help:      "Accepted order status transitions.",
		}, []string{"status"}),
		PaymentErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "payment_errors_total",
			Help:      "Failed calls to the payment network.",
		}, []string{"op"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_published_total",
			Help:      "Events enqueued for subscribers.",
		}, []string{"event"}),
		EventsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "events_dropped_total",
			Help:      "Events dropped because the subscriber was too slow.",
		}, []string{"event"}),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "connections",
			Help:      "Open websocket connections.",
		}),
	}
	reg.MustRegister(
		m.OrdersCreated,
		m.Transitions,
		m.PaymentErrors,
		m.EventsPublished,
		m.EventsDropped,
		m.Connections,
	)
	return m
}

// NopMetrics returns metrics registered nowhere.
func NopMetrics() *Metrics {
	return PrometheusMetrics("nop", prometheus.NewRegistry())
}
