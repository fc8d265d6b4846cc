package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Domain holds business counters recorded by the API services.
type Domain struct {
	AppointmentsBooked   prometheus.Counter
	BookingConflicts     prometheus.Counter
	AppointmentsCanceled prometheus.Counter
	StatusRequests       *prometheus.CounterVec
	MessagesReceived     *prometheus.CounterVec
	UploadsStored        *prometheus.CounterVec
}

// Outbox holds metrics for the outbox processor.
type Outbox struct {
	EventsProcessed   prometheus.Counter
	EventsFailed      prometheus.Counter
	ProcessingLatency prometheus.Histogram
	Retries           *prometheus.CounterVec
	NotificationsSent *prometheus.CounterVec
}

// NewDomain creates and registers the domain metrics on reg.
func NewDomain(reg prometheus.Registerer, namespace string) *Domain {
	f := promauto.With(reg)
	return &Domain{
		AppointmentsBooked: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_booked_total",
			Help:      "Total number of appointments created",
		}),
		BookingConflicts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointment_conflicts_total",
			Help:      "Total number of appointment writes rejected because of an overlap",
		}),
		AppointmentsCanceled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appointments_cancelled_total",
			Help:      "Total number of cancelled appointments",
		}),
		StatusRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_requests_total",
			Help:      "Status requests by type and outcome",
		}, []string{"type", "outcome"}),
		MessagesReceived: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Messages received by source",
		}, []string{"source"}),
		UploadsStored: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_stored_total",
			Help:      "Uploaded files stored by kind",
		}, []string{"kind"}),
	}
}

// NewOutbox creates and registers the outbox worker metrics on reg.
func NewOutbox(reg prometheus.Registerer, namespace string) *Outbox {
	f := promauto.With(reg)
	return &Outbox{
		EventsProcessed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_processed_total",
			Help:      "Total number of successfully processed outbox events",
		}),
		EventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_events_failed_total",
			Help:      "Total number of failed outbox events",
		}),
		ProcessingLatency: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "outbox_processing_duration_seconds",
			Help:      "Time spent processing an outbox batch",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		}),
		Retries: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "outbox_retry_attempts_total",
			Help:      "Total number of retry attempts for outbox events",
		}, []string{"event_type"}),
		NotificationsSent: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_sent_total",
			Help:      "Notification emails by event type and result",
		}, []string{"event_type", "result"}),
	}
}
