package notifications

import (
	"context"
	"log/slog"
	"sync"

	"github.com/bissquit/stockwatch/internal/domain"
)

const defaultQueueSize = 64

// WorkerConfig contains worker configuration.
type WorkerConfig struct {
	QueueSize int
}

// DefaultWorkerConfig returns default worker configuration.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{QueueSize: defaultQueueSize}
}

// Worker runs notification passes in the background so ingestion never waits on delivery.
type Worker struct {
	notifier *Notifier
	queue    chan *domain.Snapshot

	stopCh   chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// NewWorker creates a new notification worker.
func NewWorker(config WorkerConfig, notifier *Notifier) *Worker {
	if config.QueueSize <= 0 {
		config.QueueSize = defaultQueueSize
	}
	return &Worker{
		notifier: notifier,
		queue:    make(chan *domain.Snapshot, config.QueueSize),
		stopCh:   make(chan struct{}),
	}
}

// Start launches the worker goroutine.
func (w *Worker) Start(ctx context.Context) {
	slog.Info("starting notification worker", "queue_size", cap(w.queue))

	w.wg.Add(1)
	go w.run(ctx)
}

// Stop stops the worker and waits for the current pass to finish.
// Snapshots still queued are dropped.
func (w *Worker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	w.wg.Wait()

	if pending := len(w.queue); pending > 0 {
		slog.Warn("notification worker stopped with pending snapshots", "pending", pending)
	}
	slog.Info("notification worker stopped")
}

// Submit queues snap for a notification pass without blocking.
func (w *Worker) Submit(snap *domain.Snapshot) error {
	select {
	case w.queue <- snap:
		queueDepth.Set(float64(len(w.queue)))
		return nil
	default:
		snapshotsDropped.Inc()
		slog.Warn("notification queue full, snapshot dropped", "snapshot_id", snap.ID)
		return ErrQueueFull
	}
}

func (w *Worker) run(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case snap := <-w.queue:
			queueDepth.Set(float64(len(w.queue)))
			w.process(ctx, snap)
		}
	}
}

func (w *Worker) process(ctx context.Context, snap *domain.Snapshot) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("notification pass panicked", "snapshot_id", snap.ID, "panic", r)
		}
	}()

	if _, err := w.notifier.NotifySnapshot(ctx, snap); err != nil {
		slog.Error("notification pass failed", "snapshot_id", snap.ID, "error", err)
	}
}
