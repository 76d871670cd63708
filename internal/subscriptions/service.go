package subscriptions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bissquit/stockwatch/internal/domain"
)

const maxItemLength = 64

// Service implements subscription business logic.
type Service struct {
	repo    Repository
	catalog Catalog
}

// NewService creates a new subscription service. Items are stored under the
// keys catalog resolves them to; a nil catalog stores plain domain.ItemKey keys.
func NewService(repo Repository, catalog Catalog) *Service {
	return &Service{repo: repo, catalog: catalog}
}

// Toggle flips item in the user's subscription and reports the new state.
func (s *Service) Toggle(ctx context.Context, userID, item string) (bool, error) {
	if err := validateUser(userID); err != nil {
		return false, err
	}

	key, err := s.canonicalItem(item)
	if err != nil {
		return false, err
	}

	subscribed, err := s.repo.ToggleItem(ctx, userID, key)
	if err != nil {
		return false, fmt.Errorf("toggle item: %w", err)
	}

	slog.Debug("subscription toggled", "user_id", userID, "item", key, "subscribed", subscribed)
	return subscribed, nil
}

// Clear removes every item from the user's subscription.
func (s *Service) Clear(ctx context.Context, userID string) error {
	if err := validateUser(userID); err != nil {
		return err
	}
	if err := s.repo.Clear(ctx, userID); err != nil {
		return fmt.Errorf("clear subscription: %w", err)
	}
	return nil
}

// Get returns the user's subscription.
func (s *Service) Get(ctx context.Context, userID string) (*domain.Subscription, error) {
	if err := validateUser(userID); err != nil {
		return nil, err
	}
	sub, err := s.repo.Get(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

// Delete removes the user's subscription. Deleting an unknown user is not an error.
func (s *Service) Delete(ctx context.Context, userID string) error {
	if err := s.repo.Delete(ctx, userID); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// ListActive returns every subscription with at least one item.
func (s *Service) ListActive(ctx context.Context) ([]domain.Subscription, error) {
	subs, err := s.repo.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	return subs, nil
}

func validateUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return ErrInvalidUser
	}
	return nil
}

func (s *Service) canonicalItem(item string) (string, error) {
	if len(item) > maxItemLength {
		return "", fmt.Errorf("%w: longer than %d bytes", ErrInvalidItem, maxItemLength)
	}
	key := canonicalKey(s.catalog, item)
	if key == "" {
		return "", fmt.Errorf("%w: %q has no letters or digits", ErrInvalidItem, item)
	}
	return key, nil
}
