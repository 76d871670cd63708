// Package subscriptions stores per-user item subscriptions and matches them against stock.
package subscriptions

import (
	"context"

	"github.com/bissquit/stockwatch/internal/domain"
)

// Repository defines the interface for subscription data access.
// Item keys passed in are already canonical.
type Repository interface {
	Get(ctx context.Context, userID string) (*domain.Subscription, error)
	// ToggleItem adds item when absent and removes it when present, creating the
	// subscription on first use. It returns whether item is subscribed afterwards.
	ToggleItem(ctx context.Context, userID, item string) (bool, error)
	Clear(ctx context.Context, userID string) error
	Delete(ctx context.Context, userID string) error
	ListActive(ctx context.Context) ([]domain.Subscription, error)
}
