package stock

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/pkg/metrics"
)

var (
	snapshotsStored = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "stock",
			Name:      "snapshots_stored_total",
			Help:      "Snapshots inserted into the store by source",
		},
		[]string{"source"},
	)

	activeSnapshots = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "stock",
			Name:      "active_snapshots",
			Help:      "Number of snapshots flagged active (expected 0 or 1)",
		},
	)
)

func recordSnapshotStored(source domain.SnapshotSource) {
	snapshotsStored.WithLabelValues(string(source)).Inc()
}

// RecordActiveCount updates the active snapshot gauge.
func RecordActiveCount(n int) {
	activeSnapshots.Set(float64(n))
}
