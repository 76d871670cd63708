package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/bissquit/stockwatch/internal/stock"
)

const defaultPollInterval = 5 * time.Second

// Fetcher returns the current batch of records, newest first.
type Fetcher interface {
	Fetch(ctx context.Context) ([]stock.Record, error)
}

// PollerConfig contains poller configuration.
type PollerConfig struct {
	Interval time.Duration
}

// Poller fetches records on a fixed interval and feeds them to the pipeline.
type Poller struct {
	fetcher  Fetcher
	pipeline *Pipeline
	interval time.Duration
	now      func() time.Time
}

// NewPoller creates a new poller.
func NewPoller(config PollerConfig, fetcher Fetcher, pipeline *Pipeline) *Poller {
	if config.Interval <= 0 {
		config.Interval = defaultPollInterval
	}
	return &Poller{
		fetcher:  fetcher,
		pipeline: pipeline,
		interval: config.Interval,
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled. Fetch failures are logged and retried on the next tick.
// A store failure stops the loop and is returned.
func (p *Poller) Run(ctx context.Context) error {
	slog.Info("starting stock poller", "interval", p.interval)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		if err := p.poll(ctx); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			slog.Info("stock poller stopped")
			return nil
		case <-ticker.C:
		}
	}
}

func (p *Poller) poll(ctx context.Context) error {
	records, err := p.fetcher.Fetch(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		fetches.WithLabelValues(fetchError).Inc()
		slog.Warn("stock fetch failed", "error", err)
		return nil
	}
	fetches.WithLabelValues(fetchSuccess).Inc()

	if len(records) == 0 {
		slog.Debug("stock source returned no records")
		return nil
	}

	result, err := p.pipeline.IngestBatch(ctx, records)
	if err != nil {
		if errors.Is(err, context.Canceled) && ctx.Err() != nil {
			return nil
		}
		return err
	}

	lastSuccessfulPoll.Set(float64(p.now().Unix()))
	if result.Stored > 0 || result.Skipped > 0 {
		slog.Info("stock batch ingested",
			"stored", result.Stored,
			"duplicate", result.Duplicate,
			"skipped", result.Skipped,
			"active_id", result.ActiveID,
			"notified", result.Notified,
		)
	}
	return nil
}
