package notifications

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultWorkerConfig(t *testing.T) {
	assert.Equal(t, 64, DefaultWorkerConfig().QueueSize)
}

func TestWorker_ProcessesSubmittedSnapshots(t *testing.T) {
	sender := newMockSender()
	n, subs := newTestNotifier(t, sender, 1)
	subscribe(t, subs, "1", "sunflower")

	w := NewWorker(WorkerConfig{QueueSize: 4}, n)
	w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, w.Submit(testSnapshot()))

	assert.Eventually(t, func() bool {
		return len(sender.sentTo()) == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestWorker_SubmitDoesNotBlock(t *testing.T) {
	n, _ := newTestNotifier(t, newMockSender(), 1)
	w := NewWorker(WorkerConfig{QueueSize: 2}, n)

	// Not started: nothing drains the queue.
	require.NoError(t, w.Submit(&domain.Snapshot{ID: "a"}))
	require.NoError(t, w.Submit(&domain.Snapshot{ID: "b"}))

	done := make(chan error, 1)
	go func() { done <- w.Submit(&domain.Snapshot{ID: "c"}) }()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrQueueFull)
	case <-time.After(time.Second):
		t.Fatal("Submit blocked on a full queue")
	}
}

func TestWorker_StopIsIdempotent(t *testing.T) {
	n, _ := newTestNotifier(t, newMockSender(), 1)
	w := NewWorker(DefaultWorkerConfig(), n)
	w.Start(context.Background())

	w.Stop()
	w.Stop()
}

func TestWorker_ContinuesAfterFailedPass(t *testing.T) {
	sender := newMockSender()
	sender.failFor["1"] = fmt.Errorf("boom")
	n, subs := newTestNotifier(t, sender, 1)
	subscribe(t, subs, "1", "sunflower")
	subscribe(t, subs, "2", "sunflower")

	w := NewWorker(WorkerConfig{QueueSize: 4}, n)
	w.Start(context.Background())
	defer w.Stop()

	require.NoError(t, w.Submit(testSnapshot()))
	require.NoError(t, w.Submit(testSnapshot()))

	assert.Eventually(t, func() bool {
		return len(sender.sentTo()) == 2
	}, 2*time.Second, 10*time.Millisecond)
}
