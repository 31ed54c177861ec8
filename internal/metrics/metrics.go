package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "anonchat"

// Metrics defines the Prometheus collectors of the chat engine. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	matches              prometheus.Counter
	queued               prometheus.Counter
	roomsClosed          *prometheus.CounterVec
	messagesRelayed      prometheus.Counter
	moderationActions    *prometheus.CounterVec
	reports              prometheus.Counter
	notificationsDropped prometheus.Counter
	connectedClients     prometheus.Gauge

	gatherer prometheus.Gatherer
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		matches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matches_total",
			Help:      "Rooms created by the matcher.",
		}),
		queued: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queued_total",
			Help:      "Match requests that entered the waiting pool.",
		}),
		roomsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_closed_total",
			Help:      "Closed rooms by reason.",
		}, []string{"reason"}),
		messagesRelayed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_relayed_total",
			Help:      "Messages persisted and relayed to partners.",
		}),
		moderationActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "moderation_actions_total",
			Help:      "Ban and unban actions.",
		}, []string{"action"}),
		reports: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_total",
			Help:      "Abuse reports filed.",
		}),
		notificationsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_dropped_total",
			Help:      "Notifications that found no deliverable client.",
		}),
		connectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_clients",
			Help:      "Transport clients registered in the hub.",
		}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.matches,
		m.queued,
		m.roomsClosed,
		m.messagesRelayed,
		m.moderationActions,
		m.reports,
		m.notificationsDropped,
		m.connectedClients,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) Matched() {
	if m != nil {
		m.matches.Inc()
	}
}

func (m *Metrics) Queued() {
	if m != nil {
		m.queued.Inc()
	}
}

// RoomClosed reason is "stop" or "ban".
func (m *Metrics) RoomClosed(reason string) {
	if m != nil {
		m.roomsClosed.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) MessageRelayed() {
	if m != nil {
		m.messagesRelayed.Inc()
	}
}

func (m *Metrics) Moderated(action string) {
	if m != nil {
		m.moderationActions.WithLabelValues(action).Inc()
	}
}

func (m *Metrics) ReportFiled() {
	if m != nil {
		m.reports.Inc()
	}
}

func (m *Metrics) NotificationDropped() {
	if m != nil {
		m.notificationsDropped.Inc()
	}
}

func (m *Metrics) ClientsConnected(n int) {
	if m != nil {
		m.connectedClients.Set(float64(n))
	}
}
