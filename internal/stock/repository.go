package stock

import (
	"context"

	"github.com/bissquit/stockwatch/internal/domain"
)

// Repository defines the interface for snapshot storage.
type Repository interface {
	// InsertIfAbsent stores snap unless a snapshot with the same id exists.
	// It reports whether a new row was created.
	InsertIfAbsent(ctx context.Context, snap *domain.Snapshot) (bool, error)
	GetByID(ctx context.Context, id string) (*domain.Snapshot, error)
	// Activate flags id as the only active snapshot. Returns ErrSnapshotNotFound for unknown ids.
	Activate(ctx context.Context, id string) error
	GetActive(ctx context.Context) (*domain.Snapshot, error)
	Latest(ctx context.Context) (*domain.Snapshot, error)
	List(ctx context.Context, offset, limit int) ([]domain.Snapshot, error)
	Count(ctx context.Context) (int, error)
	CountActive(ctx context.Context) (int, error)
}
