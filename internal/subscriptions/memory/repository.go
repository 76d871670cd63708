// Package memory provides an in-process implementation of the subscriptions repository.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/subscriptions"
)

// Repository implements subscriptions.Repository in memory. Data is lost on restart.
type Repository struct {
	mu   sync.RWMutex
	subs map[string]domain.Subscription
	now  func() time.Time
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{
		subs: make(map[string]domain.Subscription),
		now:  time.Now,
	}
}

// Get returns the user's subscription.
func (r *Repository) Get(_ context.Context, userID string) (*domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sub, ok := r.subs[userID]
	if !ok {
		return nil, subscriptions.ErrSubscriptionNotFound
	}
	out := clone(sub)
	return &out, nil
}

// ToggleItem flips item for userID.
func (r *Repository) ToggleItem(_ context.Context, userID, item string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub := r.subs[userID]
	sub.UserID = userID
	sub.UpdatedAt = r.now().UTC()

	for i, existing := range sub.Items {
		if existing == item {
			sub.Items = append(sub.Items[:i:i], sub.Items[i+1:]...)
			r.subs[userID] = sub
			return false, nil
		}
	}

	sub.Items = append(append([]string(nil), sub.Items...), item)
	r.subs[userID] = sub
	return true, nil
}

// Clear empties the item set of an existing subscription.
func (r *Repository) Clear(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sub, ok := r.subs[userID]
	if !ok {
		return nil
	}
	sub.Items = []string{}
	sub.UpdatedAt = r.now().UTC()
	r.subs[userID] = sub
	return nil
}

// Delete removes the user's subscription.
func (r *Repository) Delete(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.subs, userID)
	return nil
}

// ListActive returns subscriptions with at least one item ordered by user id.
func (r *Repository) ListActive(_ context.Context) ([]domain.Subscription, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]domain.Subscription, 0, len(r.subs))
	for _, sub := range r.subs {
		if len(sub.Items) > 0 {
			out = append(out, clone(sub))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UserID < out[j].UserID })
	return out, nil
}

func clone(sub domain.Subscription) domain.Subscription {
	sub.Items = append(make([]string, 0, len(sub.Items)), sub.Items...)
	return sub
}
