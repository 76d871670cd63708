package notifications

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bissquit/stockwatch/internal/pkg/metrics"
)

const subsystem = "notifications"

// Delivery results used as the status label.
const (
	statusSent        = "sent"
	statusFailed      = "failed"
	statusUnreachable = "unreachable"
)

var (
	queueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: metrics.Namespace,
		Subsystem: subsystem,
		Name:      "queue_size",
		Help:      "Snapshots waiting for a notification pass",
	})

	snapshotsDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: subsystem,
		Name:      "snapshots_dropped_total",
		Help:      "Snapshots not notified because the queue was full",
	})

	deliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: subsystem,
		Name:      "deliveries_total",
		Help:      "Per-recipient delivery attempts by channel type and status",
	}, []string{"channel_type", "status"})

	sendDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: metrics.Namespace,
		Subsystem: subsystem,
		Name:      "send_duration_seconds",
		Help:      "Time spent in a single Send call",
		Buckets:   []float64{.01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
	}, []string{"channel_type"})

	passDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: metrics.Namespace,
		Subsystem: subsystem,
		Name:      "pass_duration_seconds",
		Help:      "Time to notify every matching subscriber of one snapshot",
		Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	})

	subscriptionsPruned = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: metrics.Namespace,
		Subsystem: subsystem,
		Name:      "subscriptions_pruned_total",
		Help:      "Subscriptions deleted because the recipient became unreachable",
	})
)

func countDelivery(channelType, status string) {
	deliveries.WithLabelValues(channelType, status).Inc()
}

func observeSend(channelType string, since time.Time) {
	sendDuration.WithLabelValues(channelType).Observe(time.Since(since).Seconds())
}
