// Package metrics holds the prometheus collectors of the realtime service.
// A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "realtime"

type Metrics struct {
	reg *prometheus.Registry

	connections   prometheus.Gauge
	online        prometheus.Gauge
	typing        prometheus.Gauge
	framesIn      *prometheus.CounterVec
	framesOut     *prometheus.CounterVec
	dropped       *prometheus.CounterVec
	denied        prometheus.Counter
	replaced      prometheus.Counter
	notifications *prometheus.CounterVec
}

func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections_open",
			Help:      "Open realtime connections.",
		}),
		online: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "users_online",
			Help:      "Users with at least one open connection.",
		}),
		typing: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "typing_indicators_active",
			Help:      "Active typing indicators.",
		}),
		framesIn: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_received_total",
			Help:      "Inbound frames by type.",
		}, []string{"type"}),
		framesOut: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Outbound frames queued by type.",
		}, []string{"type"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_dropped_total",
			Help:      "Outbound frames dropped by reason.",
		}, []string{"reason"}),
		denied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permission_denied_total",
			Help:      "Frames rejected by the permission gate.",
		}),
		replaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connections_replaced_total",
			Help:      "Connections closed because the same user connected again.",
		}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Dispatched envelopes by kind and outcome.",
		}, []string{"kind", "outcome"}),
	}

	m.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.connections, m.online, m.typing,
		m.framesIn, m.framesOut, m.dropped,
		m.denied, m.replaced, m.notifications,
	)

	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.reg
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) ConnectionOpened() {
	if m != nil {
		m.connections.Inc()
	}
}

func (m *Metrics) ConnectionClosed() {
	if m != nil {
		m.connections.Dec()
	}
}

func (m *Metrics) ConnectionReplaced() {
	if m != nil {
		m.replaced.Inc()
	}
}

func (m *Metrics) SetOnline(n int) {
	if m != nil {
		m.online.Set(float64(n))
	}
}

func (m *Metrics) SetTyping(n int) {
	if m != nil {
		m.typing.Set(float64(n))
	}
}

func (m *Metrics) FrameReceived(frameType string) {
	if m != nil {
		m.framesIn.WithLabelValues(frameType).Inc()
	}
}

func (m *Metrics) FrameSent(frameType string) {
	if m != nil {
		m.framesOut.WithLabelValues(frameType).Inc()
	}
}

// FrameDropped reasons: "offline", "queue_full".
func (m *Metrics) FrameDropped(reason string) {
	if m != nil {
		m.dropped.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) PermissionDenied() {
	if m != nil {
		m.denied.Inc()
	}
}

func (m *Metrics) Notification(kind string, delivered bool) {
	if m == nil {
		return
	}
	outcome := "dropped"
	if delivered {
		outcome = "delivered"
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
}
