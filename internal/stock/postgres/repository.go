// Package postgres provides PostgreSQL implementation of the stock repository.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/stock"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// activationLockKey is the advisory lock taken by Activate.
const activationLockKey int64 = 0x73746f636b // "stock"

const snapshotColumns = `id, source, title, created_at, parsed_at, active, seeds, gear, other, entries, raw`

// Repository implements the stock.Repository interface using PostgreSQL.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new PostgreSQL repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// InsertIfAbsent inserts snap, leaving an existing row with the same id untouched.
func (r *Repository) InsertIfAbsent(ctx context.Context, snap *domain.Snapshot) (bool, error) {
	query := `
		INSERT INTO stock_snapshots (id, source, title, created_at, parsed_at, active, seeds, gear, other, entries, raw)
		VALUES ($1, $2, $3, $4, $5, FALSE, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	var raw []byte
	if len(snap.Raw) > 0 {
		raw = []byte(snap.Raw)
	}

	tag, err := r.db.Exec(ctx, query,
		snap.ID,
		string(snap.Source),
		snap.Title,
		snap.CreatedAt,
		snap.ParsedAt,
		nonNilMap(snap.Seeds),
		nonNilMap(snap.Gear),
		nonNilMap(snap.Other),
		nonNilEntries(snap.Entries),
		raw,
	)
	if err != nil {
		return false, fmt.Errorf("insert snapshot: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// GetByID retrieves a snapshot by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM stock_snapshots WHERE id = $1`
	snap, err := scanSnapshot(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stock.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("get snapshot by id: %w", err)
	}
	return snap, nil
}

// Activate flags id active and every other snapshot inactive with a single UPDATE.
// The advisory lock keeps concurrent activations from interleaving.
func (r *Repository) Activate(ctx context.Context, id string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, activationLockKey); err != nil {
		return fmt.Errorf("acquire activation lock: %w", err)
	}

	query := `
		UPDATE stock_snapshots
		SET active = (id = $1)
		WHERE (active OR id = $1)
		  AND EXISTS (SELECT 1 FROM stock_snapshots WHERE id = $1)
	`
	tag, err := tx.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("activate snapshot: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return stock.ErrSnapshotNotFound
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// GetActive returns the snapshot flagged active.
func (r *Repository) GetActive(ctx context.Context) (*domain.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM stock_snapshots WHERE active ORDER BY created_at DESC LIMIT 1`
	snap, err := scanSnapshot(r.db.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stock.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("get active snapshot: %w", err)
	}
	return snap, nil
}

// Latest returns the snapshot with the greatest created_at.
func (r *Repository) Latest(ctx context.Context) (*domain.Snapshot, error) {
	query := `SELECT ` + snapshotColumns + ` FROM stock_snapshots ORDER BY created_at DESC, id DESC LIMIT 1`
	snap, err := scanSnapshot(r.db.QueryRow(ctx, query))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, stock.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("get latest snapshot: %w", err)
	}
	return snap, nil
}

// List returns a page of snapshots ordered by created_at descending.
func (r *Repository) List(ctx context.Context, offset, limit int) ([]domain.Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `
		FROM stock_snapshots
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.db.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer rows.Close()

	snaps := make([]domain.Snapshot, 0, limit)
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		snaps = append(snaps, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshots: %w", err)
	}
	return snaps, nil
}

// Count returns the number of stored snapshots.
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM stock_snapshots`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return n, nil
}

// CountActive returns the number of active snapshots.
func (r *Repository) CountActive(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM stock_snapshots WHERE active`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count active snapshots: %w", err)
	}
	return n, nil
}

func scanSnapshot(row pgx.Row) (*domain.Snapshot, error) {
	var (
		snap   domain.Snapshot
		source string
		raw    []byte
	)
	err := row.Scan(
		&snap.ID,
		&source,
		&snap.Title,
		&snap.CreatedAt,
		&snap.ParsedAt,
		&snap.Active,
		&snap.Seeds,
		&snap.Gear,
		&snap.Other,
		&snap.Entries,
		&raw,
	)
	if err != nil {
		return nil, err
	}

	snap.Source = domain.SnapshotSource(source)
	snap.Raw = raw
	snap.CreatedAt = snap.CreatedAt.UTC()
	snap.ParsedAt = snap.ParsedAt.UTC()
	snap.Seeds = nonNilMap(snap.Seeds)
	snap.Gear = nonNilMap(snap.Gear)
	snap.Other = nonNilMap(snap.Other)
	snap.Entries = nonNilEntries(snap.Entries)
	return &snap, nil
}

func nonNilMap(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}

func nonNilEntries(e []domain.StockEntry) []domain.StockEntry {
	if e == nil {
		return []domain.StockEntry{}
	}
	return e
}
