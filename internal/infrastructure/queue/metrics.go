package queue

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "identity"

// notificationsTotal counts outbound emails by kind and result.
// Labels:
//   - kind: "email_verification", "password_reset", "welcome"
//   - result: "sent", "failed", "dropped"
var notificationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "notifications_total",
		Help:      "Total number of notifications handled by the mail dispatcher.",
	},
	[]string{"kind", "result"},
)

// notificationQueueDepth tracks the number of notifications waiting in each worker channel.
var notificationQueueDepth = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "notification_queue_depth",
		Help:      "Current number of notifications pending in each dispatcher worker channel.",
	},
	[]string{"worker_id"},
)

var notificationSendDuration = promauto.NewHistogram(
	prometheus.HistogramOpts{
		Namespace: metricsNamespace,
		Name:      "notification_send_duration_seconds",
		Help:      "Duration of a single mailer send.",
		Buckets:   prometheus.DefBuckets,
	},
)
