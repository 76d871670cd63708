// Package ingest turns raw stock records into stored snapshots and hands new ones to the notifier.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/stock"
)

// Store persists snapshots. Implemented by stock.Service.
type Store interface {
	Upsert(ctx context.Context, rec stock.Record) (*domain.Snapshot, bool, error)
	Activate(ctx context.Context, id string) error
}

// Submitter queues a snapshot for a notification pass. Implemented by notifications.Worker.
type Submitter interface {
	Submit(snap *domain.Snapshot) error
}

// BatchResult summarises one ingested batch.
type BatchResult struct {
	Stored    int
	Duplicate int
	Skipped   int
	ActiveID  string
	Notified  bool
}

// Pipeline stores records and keeps the current snapshot active.
type Pipeline struct {
	store     Store
	submitter Submitter
}

// NewPipeline creates a pipeline. A nil submitter disables notifications.
func NewPipeline(store Store, submitter Submitter) *Pipeline {
	return &Pipeline{store: store, submitter: submitter}
}

// IngestBatch stores records in order. Element 0 is the current stock: it is activated when
// stored and submitted for notification when it was seen for the first time.
// Malformed records are skipped; a store failure aborts the batch.
func (p *Pipeline) IngestBatch(ctx context.Context, records []stock.Record) (BatchResult, error) {
	var result BatchResult

	for i, rec := range records {
		snap, isNew, err := p.store.Upsert(ctx, rec)
		if err != nil {
			if errors.Is(err, stock.ErrMalformedRecord) {
				result.Skipped++
				recordsProcessed.WithLabelValues(outcomeSkipped).Inc()
				slog.Warn("skipping malformed stock record", "index", i, "record_id", rec.ID, "error", err)
				continue
			}
			return result, fmt.Errorf("upsert record %q: %w", rec.ID, err)
		}

		if isNew {
			result.Stored++
			recordsProcessed.WithLabelValues(outcomeStored).Inc()
		} else {
			result.Duplicate++
			recordsProcessed.WithLabelValues(outcomeDuplicate).Inc()
		}

		if i != 0 {
			continue
		}

		if err := p.activate(ctx, snap); err != nil {
			return result, err
		}
		result.ActiveID = snap.ID

		if isNew {
			result.Notified = p.submit(snap)
		}
	}

	return result, nil
}

// IngestEvent stores a single record pushed by an event source, activates it
// and submits it for notification when it is new.
func (p *Pipeline) IngestEvent(ctx context.Context, rec stock.Record) (BatchResult, error) {
	var result BatchResult

	snap, isNew, err := p.store.Upsert(ctx, rec)
	if err != nil {
		if errors.Is(err, stock.ErrMalformedRecord) {
			result.Skipped++
			recordsProcessed.WithLabelValues(outcomeSkipped).Inc()
			slog.Warn("skipping malformed stock event", "record_id", rec.ID, "error", err)
			return result, nil
		}
		return result, fmt.Errorf("upsert record %q: %w", rec.ID, err)
	}

	if isNew {
		result.Stored++
		recordsProcessed.WithLabelValues(outcomeStored).Inc()
	} else {
		result.Duplicate++
		recordsProcessed.WithLabelValues(outcomeDuplicate).Inc()
	}

	if err := p.activate(ctx, snap); err != nil {
		return result, err
	}
	result.ActiveID = snap.ID

	if isNew {
		result.Notified = p.submit(snap)
	}
	return result, nil
}

func (p *Pipeline) activate(ctx context.Context, snap *domain.Snapshot) error {
	if err := p.store.Activate(ctx, snap.ID); err != nil {
		return fmt.Errorf("activate snapshot %q: %w", snap.ID, err)
	}
	activations.Inc()
	slog.Debug("snapshot activated", "snapshot_id", snap.ID)
	return nil
}

func (p *Pipeline) submit(snap *domain.Snapshot) bool {
	if p.submitter == nil {
		return false
	}
	if err := p.submitter.Submit(snap); err != nil {
		slog.Warn("snapshot not queued for notification", "snapshot_id", snap.ID, "error", err)
		return false
	}
	slog.Info("new stock snapshot queued for notification",
		"snapshot_id", snap.ID,
		"seeds", len(snap.Seeds),
		"gear", len(snap.Gear),
	)
	return true
}
