package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors the messaging core reports. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	MessagesSent           *prometheus.CounterVec
	SendsDenied            prometheus.Counter
	AttachmentsStored      prometheus.Counter
	AttachmentsFailed      *prometheus.CounterVec
	OrphanedBlobs          prometheus.Counter
	NotificationsPublished prometheus.Counter
	NotificationsFailed    prometheus.Counter
	HTTPDuration           *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MessagesSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messaging_messages_sent_total",
			Help: "Messages persisted, by kind.",
		}, []string{"kind"}),
		SendsDenied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messaging_sends_denied_total",
			Help: "External sends rejected by the relationship gate.",
		}),
		AttachmentsStored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messaging_attachments_stored_total",
			Help: "Attachments uploaded and linked to a message.",
		}),
		AttachmentsFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "messaging_attachments_failed_total",
			Help: "Attachments that could not be stored, by failing stage.",
		}, []string{"stage"}),
		OrphanedBlobs: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messaging_orphaned_blobs_total",
			Help: "Blobs left behind because the compensating delete failed.",
		}),
		NotificationsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messaging_notifications_published_total",
			Help: "Notifications published to the bus.",
		}),
		NotificationsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "messaging_notifications_failed_total",
			Help: "Notifications that failed to publish.",
		}),
		HTTPDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "messaging_http_request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	if reg != nil {
		reg.MustRegister(
			m.MessagesSent,
			m.SendsDenied,
			m.AttachmentsStored,
			m.AttachmentsFailed,
			m.OrphanedBlobs,
			m.NotificationsPublished,
			m.NotificationsFailed,
			m.HTTPDuration,
		)
	}
	return m
}

func (m *Metrics) MessageSent(kind string) {
	if m != nil {
		m.MessagesSent.WithLabelValues(kind).Inc()
	}
}

func (m *Metrics) SendDenied() {
	if m != nil {
		m.SendsDenied.Inc()
	}
}

func (m *Metrics) AttachmentStored() {
	if m != nil {
		m.AttachmentsStored.Inc()
	}
}

func (m *Metrics) AttachmentFailed(stage string) {
	if m != nil {
		m.AttachmentsFailed.WithLabelValues(stage).Inc()
	}
}

func (m *Metrics) OrphanedBlob() {
	if m != nil {
		m.OrphanedBlobs.Inc()
	}
}

func (m *Metrics) NotificationPublished() {
	if m != nil {
		m.NotificationsPublished.Inc()
	}
}

func (m *Metrics) NotificationFailed() {
	if m != nil {
		m.NotificationsFailed.Inc()
	}
}

func (m *Metrics) ObserveHTTP(method, route, status string, seconds float64) {
	if m != nil {
		m.HTTPDuration.WithLabelValues(method, route, status).Observe(seconds)
	}
}
