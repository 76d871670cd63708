package ingest

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bissquit/stockwatch/internal/pkg/metrics"
)

const (
	outcomeStored    = "stored"
	outcomeDuplicate = "duplicate"
	outcomeSkipped   = "skipped"

	fetchSuccess = "success"
	fetchError   = "error"
)

var (
	fetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "ingest",
			Name:      "fetches_total",
			Help:      "Source fetches by result",
		},
		[]string{"result"},
	)

	recordsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "ingest",
			Name:      "records_total",
			Help:      "Ingested records by outcome",
		},
		[]string{"outcome"},
	)

	activations = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "ingest",
			Name:      "activations_total",
			Help:      "Snapshot activations",
		},
	)

	lastSuccessfulPoll = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: metrics.Namespace,
			Subsystem: "ingest",
			Name:      "last_successful_poll_timestamp_seconds",
			Help:      "Unix time of the last poll that was fetched and stored",
		},
	)
)
