// Package mongodb provides MongoDB implementation of the stock repository.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/stock"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the collection holding snapshots.
const CollectionName = "stock"

type entryDocument struct {
	Key      string `bson:"key"`
	Label    string `bson:"label"`
	Value    string `bson:"value"`
	Category string `bson:"category"`
	Quantity int    `bson:"quantity"`
	Delta    bool   `bson:"delta"`
}

type snapshotDocument struct {
	ID        string          `bson:"id"`
	Source    string          `bson:"source"`
	Title     string          `bson:"title"`
	CreatedAt time.Time       `bson:"created_at"`
	ParsedAt  time.Time       `bson:"parsed_at"`
	Active    bool            `bson:"active"`
	Seeds     map[string]int  `bson:"seeds"`
	Gear      map[string]int  `bson:"gear"`
	Other     map[string]int  `bson:"other"`
	Entries   []entryDocument `bson:"entries"`
	Raw       string          `bson:"raw,omitempty"`
}

// Repository implements the stock.Repository interface using MongoDB.
type Repository struct {
	collection *mongo.Collection
}

// NewRepository creates a repository over the stock collection of db.
func NewRepository(db *mongo.Database) *Repository {
	return &Repository{collection: db.Collection(CollectionName)}
}

// EnsureIndexes creates the unique id index and the ordering indexes.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "active", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create stock indexes: %w", err)
	}
	return nil
}

// InsertIfAbsent upserts with $setOnInsert so an existing document is never modified.
func (r *Repository) InsertIfAbsent(ctx context.Context, snap *domain.Snapshot) (bool, error) {
	doc := toDocument(snap)
	doc.Active = false

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"id": snap.ID},
		bson.M{"$setOnInsert": doc},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert snapshot: %w", err)
	}
	return res.UpsertedCount == 1, nil
}

// GetByID retrieves a snapshot by id.
func (r *Repository) GetByID(ctx context.Context, id string) (*domain.Snapshot, error) {
	return r.findOne(ctx, bson.M{"id": id}, nil, "get snapshot by id")
}

// Activate deactivates every other snapshot and then activates id.
// Readers may briefly observe no active snapshot between the two writes.
func (r *Repository) Activate(ctx context.Context, id string) error {
	n, err := r.collection.CountDocuments(ctx, bson.M{"id": id})
	if err != nil {
		return fmt.Errorf("check snapshot: %w", err)
	}
	if n == 0 {
		return stock.ErrSnapshotNotFound
	}

	if _, err := r.collection.UpdateMany(ctx,
		bson.M{"active": true, "id": bson.M{"$ne": id}},
		bson.M{"$set": bson.M{"active": false}},
	); err != nil {
		return fmt.Errorf("deactivate snapshots: %w", err)
	}

	if _, err := r.collection.UpdateOne(ctx,
		bson.M{"id": id},
		bson.M{"$set": bson.M{"active": true}},
	); err != nil {
		return fmt.Errorf("activate snapshot: %w", err)
	}
	return nil
}

// GetActive returns the snapshot flagged active.
func (r *Repository) GetActive(ctx context.Context) (*domain.Snapshot, error) {
	return r.findOne(ctx, bson.M{"active": true}, bson.D{{Key: "created_at", Value: -1}}, "get active snapshot")
}

// Latest returns the snapshot with the greatest created_at.
func (r *Repository) Latest(ctx context.Context) (*domain.Snapshot, error) {
	return r.findOne(ctx, bson.M{}, bson.D{{Key: "created_at", Value: -1}, {Key: "id", Value: -1}}, "get latest snapshot")
}

// List returns a page of snapshots ordered by created_at descending.
func (r *Repository) List(ctx context.Context, offset, limit int) ([]domain.Snapshot, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "id", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	cur, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var docs []snapshotDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode snapshots: %w", err)
	}

	snaps := make([]domain.Snapshot, 0, len(docs))
	for i := range docs {
		snaps = append(snaps, *fromDocument(&docs[i]))
	}
	return snaps, nil
}

// Count returns the number of stored snapshots.
func (r *Repository) Count(ctx context.Context) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("count snapshots: %w", err)
	}
	return int(n), nil
}

// CountActive returns the number of active snapshots.
func (r *Repository) CountActive(ctx context.Context) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"active": true})
	if err != nil {
		return 0, fmt.Errorf("count active snapshots: %w", err)
	}
	return int(n), nil
}

func (r *Repository) findOne(ctx context.Context, filter any, sort bson.D, op string) (*domain.Snapshot, error) {
	opts := options.FindOne()
	if sort != nil {
		opts.SetSort(sort)
	}

	var doc snapshotDocument
	if err := r.collection.FindOne(ctx, filter, opts).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, stock.ErrSnapshotNotFound
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return fromDocument(&doc), nil
}

func toDocument(s *domain.Snapshot) snapshotDocument {
	entries := make([]entryDocument, 0, len(s.Entries))
	for _, e := range s.Entries {
		entries = append(entries, entryDocument{
			Key:      e.Key,
			Label:    e.Label,
			Value:    e.Value,
			Category: string(e.Category),
			Quantity: e.Quantity,
			Delta:    e.Delta,
		})
	}
	return snapshotDocument{
		ID:        s.ID,
		Source:    string(s.Source),
		Title:     s.Title,
		CreatedAt: s.CreatedAt.UTC(),
		ParsedAt:  s.ParsedAt.UTC(),
		Active:    s.Active,
		Seeds:     nonNil(s.Seeds),
		Gear:      nonNil(s.Gear),
		Other:     nonNil(s.Other),
		Entries:   entries,
		Raw:       string(s.Raw),
	}
}

func fromDocument(d *snapshotDocument) *domain.Snapshot {
	entries := make([]domain.StockEntry, 0, len(d.Entries))
	for _, e := range d.Entries {
		entries = append(entries, domain.StockEntry{
			Key:      e.Key,
			Label:    e.Label,
			Value:    e.Value,
			Category: domain.ItemCategory(e.Category),
			Quantity: e.Quantity,
			Delta:    e.Delta,
		})
	}
	snap := &domain.Snapshot{
		ID:        d.ID,
		Source:    domain.SnapshotSource(d.Source),
		Title:     d.Title,
		CreatedAt: d.CreatedAt.UTC(),
		ParsedAt:  d.ParsedAt.UTC(),
		Active:    d.Active,
		Seeds:     nonNil(d.Seeds),
		Gear:      nonNil(d.Gear),
		Other:     nonNil(d.Other),
		Entries:   entries,
	}
	if d.Raw != "" {
		snap.Raw = []byte(d.Raw)
	}
	return snap
}

func nonNil(m map[string]int) map[string]int {
	if m == nil {
		return map[string]int{}
	}
	return m
}
