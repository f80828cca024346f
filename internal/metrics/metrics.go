package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "queue"

// Metrics implements the counters the order, notify and realtime stories report to.
type Metrics struct {
	transitions   *prometheus.CounterVec
	preparation   prometheus.Histogram
	notifications *prometheus.CounterVec
	changeEvents  *prometheus.CounterVec
	droppedEvents prometheus.Counter
	staleCarts    prometheus.Counter
	purgedSMSLogs prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "order_transitions_total",
			Help:      "Orders entering a status.",
		}, []string{"status"}),
		preparation: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "order_preparation_seconds",
			Help:      "Accumulated preparation time when an order becomes ready.",
			Buckets:   []float64{60, 180, 300, 600, 900, 1200, 1800, 2700, 3600},
		}),
		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Customer notifications by channel and result.",
		}, []string{"channel", "result"}),
		changeEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_total",
			Help:      "Change events applied to live views.",
		}, []string{"table", "event_type"}),
		droppedEvents: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "change_events_dropped_total",
			Help:      "Change events lost because a subscriber was slow.",
		}),
		staleCarts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stale_carts_deleted_total",
			Help:      "Unconfirmed carts removed by the cleanup worker.",
		}),
		purgedSMSLogs: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sms_logs_purged_total",
			Help:      "SMS log entries removed by retention.",
		}),
	}
}

func (m *Metrics) ObserveTransition(status string) {
	m.transitions.WithLabelValues(status).Inc()
}

func (m *Metrics) ObservePreparation(seconds int64) {
	m.preparation.Observe(float64(seconds))
}

func (m *Metrics) ObserveNotification(channel, result string) {
	m.notifications.WithLabelValues(channel, result).Inc()
}

func (m *Metrics) ObserveChangeEvent(table, eventType string) {
	m.changeEvents.WithLabelValues(table, eventType).Inc()
}

func (m *Metrics) ObserveDroppedEvent() {
	m.droppedEvents.Inc()
}

func (m *Metrics) ObserveStaleCartsDeleted(n int) {
	m.staleCarts.Add(float64(n))
}

func (m *Metrics) ObserveSMSLogsPurged(n int64) {
	m.purgedSMSLogs.Add(float64(n))
}
