// Package memory provides an in-process implementation of the stock repository.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/stock"
)

// Repository implements stock.Repository in memory. Data is lost on restart.
type Repository struct {
	mu        sync.RWMutex
	snapshots map[string]domain.Snapshot
}

// NewRepository creates an empty repository.
func NewRepository() *Repository {
	return &Repository{snapshots: make(map[string]domain.Snapshot)}
}

// InsertIfAbsent stores snap unless its id is known.
func (r *Repository) InsertIfAbsent(_ context.Context, snap *domain.Snapshot) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.snapshots[snap.ID]; ok {
		return false, nil
	}
	stored := clone(*snap)
	stored.Active = false
	r.snapshots[snap.ID] = stored
	return true, nil
}

// GetByID returns the snapshot with id.
func (r *Repository) GetByID(_ context.Context, id string) (*domain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snap, ok := r.snapshots[id]
	if !ok {
		return nil, stock.ErrSnapshotNotFound
	}
	out := clone(snap)
	return &out, nil
}

// Activate flips the active flag under a single lock.
func (r *Repository) Activate(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.snapshots[id]; !ok {
		return stock.ErrSnapshotNotFound
	}
	for k, snap := range r.snapshots {
		active := k == id
		if snap.Active != active {
			snap.Active = active
			r.snapshots[k] = snap
		}
	}
	return nil
}

// GetActive returns the active snapshot.
func (r *Repository) GetActive(_ context.Context) (*domain.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, snap := range r.snapshots {
		if snap.Active {
			out := clone(snap)
			return &out, nil
		}
	}
	return nil, stock.ErrSnapshotNotFound
}

// Latest returns the snapshot with the greatest CreatedAt.
func (r *Repository) Latest(ctx context.Context) (*domain.Snapshot, error) {
	snaps, err := r.List(ctx, 0, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, stock.ErrSnapshotNotFound
	}
	return &snaps[0], nil
}

// List returns snapshots ordered by CreatedAt descending.
func (r *Repository) List(_ context.Context, offset, limit int) ([]domain.Snapshot, error) {
	r.mu.RLock()
	all := make([]domain.Snapshot, 0, len(r.snapshots))
	for _, snap := range r.snapshots {
		all = append(all, clone(snap))
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []domain.Snapshot{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

// Count returns the number of snapshots.
func (r *Repository) Count(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.snapshots), nil
}

// CountActive returns the number of active snapshots.
func (r *Repository) CountActive(_ context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := 0
	for _, snap := range r.snapshots {
		if snap.Active {
			n++
		}
	}
	return n, nil
}

func clone(s domain.Snapshot) domain.Snapshot {
	s.Seeds = cloneMap(s.Seeds)
	s.Gear = cloneMap(s.Gear)
	s.Other = cloneMap(s.Other)
	s.Entries = append([]domain.StockEntry(nil), s.Entries...)
	if s.Entries == nil {
		s.Entries = []domain.StockEntry{}
	}
	s.Raw = append([]byte(nil), s.Raw...)
	return s
}

func cloneMap(m map[string]int) map[string]int {
	out := make(map[string]int, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
