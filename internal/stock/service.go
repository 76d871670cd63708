// Package stock normalises, stores and serves stock snapshots.
package stock

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/pkg/cache"
	"github.com/bissquit/stockwatch/internal/pkg/metrics"
)

const activeCacheKey = "stock:active"

// Pagination limits for History.
const (
	DefaultHistoryLimit = 5
	MaxHistoryLimit     = 50
)

// Service implements snapshot storage on top of a Repository.
type Service struct {
	repo       Repository
	normalizer *Normalizer
	cache      cache.Cache
	cacheTTL   time.Duration

	// activateMu serialises activation within the process.
	activateMu sync.Mutex

	// cacheMu guards cacheGen. A reader only fills the cache when no
	// invalidation happened while it was reading the store.
	cacheMu  sync.Mutex
	cacheGen uint64
}

// NewService creates a new stock service. A nil cache disables caching.
func NewService(repo Repository, normalizer *Normalizer, c cache.Cache, cacheTTL time.Duration) *Service {
	if c == nil {
		c = cache.Noop{}
	}
	if normalizer == nil {
		normalizer = NewNormalizer(nil, nil)
	}
	return &Service{
		repo:       repo,
		normalizer: normalizer,
		cache:      c,
		cacheTTL:   cacheTTL,
	}
}

// Catalog returns the seed table.
func (s *Service) Catalog() *Catalog {
	return s.normalizer.Catalog()
}

// Upsert normalises rec and stores it unless its id is already known.
// For a known id the stored snapshot is returned unchanged with isNew=false.
func (s *Service) Upsert(ctx context.Context, rec Record) (*domain.Snapshot, bool, error) {
	snap, err := s.normalizer.Normalize(rec)
	if err != nil {
		return nil, false, err
	}

	created, err := s.repo.InsertIfAbsent(ctx, snap)
	if err != nil {
		return nil, false, wrapStoreError("insert snapshot", err)
	}

	if !created {
		stored, err := s.repo.GetByID(ctx, snap.ID)
		if err != nil {
			return nil, false, wrapStoreError("get snapshot", err)
		}
		return stored, false, nil
	}

	s.invalidate(ctx)
	recordSnapshotStored(snap.Source)

	return snap, true, nil
}

// Activate makes id the only active snapshot.
func (s *Service) Activate(ctx context.Context, id string) error {
	s.activateMu.Lock()
	defer s.activateMu.Unlock()

	if err := s.repo.Activate(ctx, id); err != nil {
		return wrapStoreError("activate snapshot", err)
	}
	s.invalidate(ctx)
	return nil
}

// GetActive returns the active snapshot, falling back to the latest one when none is flagged.
func (s *Service) GetActive(ctx context.Context) (*domain.Snapshot, error) {
	data, err := s.cache.Get(ctx, activeCacheKey)
	switch {
	case err == nil:
		var snap domain.Snapshot
		if err := json.Unmarshal(data, &snap); err == nil {
			metrics.CacheLookups.WithLabelValues("hit").Inc()
			return &snap, nil
		}
		metrics.CacheLookups.WithLabelValues("error").Inc()
	case errors.Is(err, cache.ErrCacheMiss):
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	default:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		slog.Warn("stock cache read failed", "error", err)
	}

	gen := s.generation()

	snap, err := s.repo.GetActive(ctx)
	if errors.Is(err, ErrSnapshotNotFound) {
		snap, err = s.repo.Latest(ctx)
	}
	if err != nil {
		return nil, wrapStoreError("get active snapshot", err)
	}

	s.fill(ctx, gen, snap)
	return snap, nil
}

func (s *Service) generation() uint64 {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	return s.cacheGen
}

// fill caches snap unless the cache was invalidated after gen was read.
func (s *Service) fill(ctx context.Context, gen uint64, snap *domain.Snapshot) {
	data, err := json.Marshal(snap)
	if err != nil {
		return
	}

	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()
	if s.cacheGen != gen {
		return
	}
	if err := s.cache.Set(ctx, activeCacheKey, data, s.cacheTTL); err != nil {
		slog.Warn("stock cache write failed", "error", err)
	}
}

// Latest returns the snapshot with the greatest created_at.
func (s *Service) Latest(ctx context.Context) (*domain.Snapshot, error) {
	snap, err := s.repo.Latest(ctx)
	if err != nil {
		return nil, wrapStoreError("get latest snapshot", err)
	}
	return snap, nil
}

// GetByID returns a stored snapshot.
func (s *Service) GetByID(ctx context.Context, id string) (*domain.Snapshot, error) {
	snap, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, wrapStoreError("get snapshot", err)
	}
	return snap, nil
}

// History returns snapshots newest first together with the total count.
func (s *Service) History(ctx context.Context, limit, offset int) ([]domain.Snapshot, int, error) {
	if limit < 1 || limit > MaxHistoryLimit || offset < 0 {
		return nil, 0, fmt.Errorf("%w: limit must be 1..%d and offset >= 0", ErrInvalidPagination, MaxHistoryLimit)
	}

	snaps, err := s.repo.List(ctx, offset, limit)
	if err != nil {
		return nil, 0, wrapStoreError("list snapshots", err)
	}

	total, err := s.repo.Count(ctx)
	if err != nil {
		return nil, 0, wrapStoreError("count snapshots", err)
	}

	return snaps, total, nil
}

// ActiveCount returns how many snapshots are flagged active.
func (s *Service) ActiveCount(ctx context.Context) (int, error) {
	n, err := s.repo.CountActive(ctx)
	if err != nil {
		return 0, wrapStoreError("count active snapshots", err)
	}
	return n, nil
}

func (s *Service) invalidate(ctx context.Context) {
	s.cacheMu.Lock()
	defer s.cacheMu.Unlock()

	s.cacheGen++
	if err := s.cache.Delete(ctx, activeCacheKey); err != nil {
		slog.Warn("stock cache invalidation failed", "error", err)
	}
}
