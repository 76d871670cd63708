package notifications

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/pkg/ctxlog"
	"github.com/bissquit/stockwatch/internal/subscriptions"
	"github.com/google/uuid"
)

const defaultConcurrency = 5

// SubscriptionStore is the part of the subscription service the notifier needs.
type SubscriptionStore interface {
	ListActive(ctx context.Context) ([]domain.Subscription, error)
	Delete(ctx context.Context, userID string) error
}

// NotifierConfig contains notifier configuration.
type NotifierConfig struct {
	// Concurrency bounds the number of deliveries in flight during one pass.
	Concurrency int
	// SendTimeout bounds a single delivery. Zero leaves it to the sender.
	SendTimeout time.Duration
}

// Summary describes the outcome of one notification pass.
type Summary struct {
	PassID  string
	Matched int
	Sent    int
	Failed  int
	Pruned  int
}

// Notifier matches a snapshot against subscriptions and delivers the alerts.
type Notifier struct {
	config   NotifierConfig
	subs     SubscriptionStore
	catalog  subscriptions.Catalog
	renderer *Renderer
	sender   Sender
}

// NewNotifier creates a new notifier.
func NewNotifier(config NotifierConfig, subs SubscriptionStore, catalog subscriptions.Catalog, renderer *Renderer, sender Sender) *Notifier {
	if config.Concurrency <= 0 {
		config.Concurrency = defaultConcurrency
	}
	return &Notifier{
		config:   config,
		subs:     subs,
		catalog:  catalog,
		renderer: renderer,
		sender:   sender,
	}
}

// NotifySnapshot runs one notification pass for snap. Delivery failures are
// counted in the summary; only listing subscriptions can fail the pass.
func (n *Notifier) NotifySnapshot(ctx context.Context, snap *domain.Snapshot) (Summary, error) {
	start := time.Now()
	defer func() { passDuration.Observe(time.Since(start).Seconds()) }()

	summary := Summary{PassID: uuid.NewString()}
	ctx, logger := ctxlog.With(ctx, "pass_id", summary.PassID, "snapshot_id", snap.ID)

	subs, err := n.subs.ListActive(ctx)
	if err != nil {
		return summary, fmt.Errorf("list subscriptions: %w", err)
	}

	matches := subscriptions.MatchSnapshot(snap, subs, n.catalog)
	summary.Matched = len(matches)
	if len(matches) == 0 {
		logger.Debug("no subscribers matched", "subscriptions", len(subs))
		return summary, nil
	}

	logger.Info("notifying subscribers",
		"subscriptions", len(subs),
		"matched", len(matches),
	)

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, n.config.Concurrency)
	)

	for _, match := range matches {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			wg.Wait()
			return summary, ctx.Err()
		}

		wg.Add(1)
		go func(match subscriptions.Match) {
			defer wg.Done()
			defer func() { <-sem }()

			outcome := n.deliver(ctx, snap, match)

			mu.Lock()
			defer mu.Unlock()
			switch outcome {
			case outcomeSent:
				summary.Sent++
			case outcomePruned:
				summary.Pruned++
			default:
				summary.Failed++
			}
		}(match)
	}
	wg.Wait()

	logger.Info("notification pass finished",
		"sent", summary.Sent,
		"failed", summary.Failed,
		"pruned", summary.Pruned,
	)
	return summary, nil
}

type outcome int

const (
	outcomeSent outcome = iota
	outcomeFailed
	outcomePruned
)

func (n *Notifier) deliver(ctx context.Context, snap *domain.Snapshot, match subscriptions.Match) outcome {
	logger := ctxlog.FromContext(ctx)
	channelType := string(n.sender.Type())

	subject, body, err := n.renderer.Render(n.sender.Type(), NewStockAlert(snap, match))
	if err != nil {
		logger.Error("failed to render", "user_id", match.UserID, "error", err)
		countDelivery(channelType, statusFailed)
		return outcomeFailed
	}

	sendCtx := ctx
	if n.config.SendTimeout > 0 {
		var cancel context.CancelFunc
		sendCtx, cancel = context.WithTimeout(ctx, n.config.SendTimeout)
		defer cancel()
	}

	start := time.Now()
	err = n.sender.Send(sendCtx, Notification{To: match.UserID, Subject: subject, Body: body})
	observeSend(channelType, start)

	if err == nil {
		countDelivery(channelType, statusSent)
		return outcomeSent
	}

	if !IsRecipientUnreachable(err) {
		logger.Warn("send failed",
			"user_id", match.UserID,
			"retryable", IsRetryable(err),
			"retry_after", RetryAfter(err),
			"error", err,
		)
		countDelivery(channelType, statusFailed)
		return outcomeFailed
	}

	countDelivery(channelType, statusUnreachable)
	if delErr := n.subs.Delete(ctx, match.UserID); delErr != nil {
		logger.Error("failed to prune subscription", "user_id", match.UserID, "error", delErr)
		return outcomeFailed
	}
	subscriptionsPruned.Inc()
	logger.Info("subscription pruned, recipient unreachable", "user_id", match.UserID, "reason", err)
	return outcomePruned
}
