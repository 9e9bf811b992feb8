// Package metrics exposes prometheus collectors for the connection registry
// and event fan-out. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "chatd"

type Metrics struct {
	connections   prometheus.Gauge
	onlineUsers   prometheus.Gauge
	framesSent    prometheus.Counter
	sendFailures  prometheus.Counter
	events        *prometheus.CounterVec
	typingDropped prometheus.Counter
	deliveryMarks *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Live websocket connections held by the registry.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Users with at least one live connection.",
		}),
		framesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "frames_sent_total",
			Help:      "Frames accepted by a connection send buffer.",
		}),
		sendFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "send_failures_total",
			Help:      "Sends that failed and evicted the connection.",
		}),
		events: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_broadcast_total",
			Help:      "Events fanned out, by event kind.",
		}, []string{"event"}),
		typingDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "typing_throttled_total",
			Help:      "Typing indicators dropped by the throttle.",
		}),
		deliveryMarks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "delivery_marks_total",
			Help:      "Delivered-map writes, by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(m.connections, m.onlineUsers, m.framesSent, m.sendFailures, m.events, m.typingDropped, m.deliveryMarks)
	return m
}

func (m *Metrics) ConnectionOpened(cameOnline bool) {
	if m == nil {
		return
	}
	m.connections.Inc()
	if cameOnline {
		m.onlineUsers.Inc()
	}
}

func (m *Metrics) ConnectionClosed(wentOffline bool) {
	if m == nil {
		return
	}
	m.connections.Dec()
	if wentOffline {
		m.onlineUsers.Dec()
	}
}

func (m *Metrics) FrameSent() {
	if m == nil {
		return
	}
	m.framesSent.Inc()
}

func (m *Metrics) SendFailed() {
	if m == nil {
		return
	}
	m.sendFailures.Inc()
}

func (m *Metrics) EventBroadcast(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

func (m *Metrics) TypingThrottled() {
	if m == nil {
		return
	}
	m.typingDropped.Inc()
}

func (m *Metrics) DeliveryMarked(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.deliveryMarks.WithLabelValues(result).Inc()
}
