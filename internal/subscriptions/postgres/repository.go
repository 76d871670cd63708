// Package postgres provides PostgreSQL implementation of the subscriptions repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/subscriptions"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository implements the subscriptions.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// Get retrieves the subscription of userID.
func (r *Repository) Get(ctx context.Context, userID string) (*domain.Subscription, error) {
	query := `SELECT user_id, items, updated_at FROM plant_subscriptions WHERE user_id = $1`

	var sub domain.Subscription
	err := r.db.QueryRow(ctx, query, userID).Scan(&sub.UserID, &sub.Items, &sub.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, subscriptions.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	if sub.Items == nil {
		sub.Items = []string{}
	}
	return &sub, nil
}

// ToggleItem adds or removes item in a single statement so concurrent toggles
// of the same user cannot lose an update.
func (r *Repository) ToggleItem(ctx context.Context, userID, item string) (bool, error) {
	query := `
		INSERT INTO plant_subscriptions AS s (user_id, items, updated_at)
		VALUES ($1, ARRAY[$2::text], NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			items = CASE
				WHEN $2::text = ANY(s.items) THEN array_remove(s.items, $2::text)
				ELSE array_append(s.items, $2::text)
			END,
			updated_at = NOW()
		RETURNING $2::text = ANY(items)
	`

	var subscribed bool
	if err := r.db.QueryRow(ctx, query, userID, item).Scan(&subscribed); err != nil {
		return false, fmt.Errorf("toggle subscription item: %w", err)
	}
	return subscribed, nil
}

// Clear empties the item set of an existing subscription.
func (r *Repository) Clear(ctx context.Context, userID string) error {
	query := `UPDATE plant_subscriptions SET items = '{}', updated_at = NOW() WHERE user_id = $1`
	if _, err := r.db.Exec(ctx, query, userID); err != nil {
		return fmt.Errorf("clear subscription: %w", err)
	}
	return nil
}

// Delete removes the subscription of userID.
func (r *Repository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.Exec(ctx, `DELETE FROM plant_subscriptions WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// ListActive returns subscriptions with at least one item.
func (r *Repository) ListActive(ctx context.Context) ([]domain.Subscription, error) {
	query := `
		SELECT user_id, items, updated_at
		FROM plant_subscriptions
		WHERE cardinality(items) > 0
		ORDER BY user_id
	`
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer rows.Close()

	var subs []domain.Subscription
	for rows.Next() {
		var sub domain.Subscription
		if err := rows.Scan(&sub.UserID, &sub.Items, &sub.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		subs = append(subs, sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate subscriptions: %w", err)
	}
	return subs, nil
}
