// Package mongodb provides MongoDB implementation of the subscriptions repository.
package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/subscriptions"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CollectionName is the collection holding subscriptions.
const CollectionName = "plant_subscriptions"

type subscriptionDocument struct {
	UserID    string    `bson:"user_id"`
	Plants    []string  `bson:"plants"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// Repository implements the subscriptions.Repository interface using MongoDB.
type Repository struct {
	collection *mongo.Collection
	now        func() time.Time
}

// NewRepository creates a repository over the plant_subscriptions collection of db.
func NewRepository(db *mongo.Database) *Repository {
	return &Repository{
		collection: db.Collection(CollectionName),
		now:        time.Now,
	}
}

// EnsureIndexes creates the unique user index and the multikey index on plants.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "plants", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("create subscription indexes: %w", err)
	}
	return nil
}

// Get retrieves the subscription of userID.
func (r *Repository) Get(ctx context.Context, userID string) (*domain.Subscription, error) {
	var doc subscriptionDocument
	err := r.collection.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, subscriptions.ErrSubscriptionNotFound
		}
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	sub := fromDocument(doc)
	return &sub, nil
}

// ToggleItem pulls item when the document holds it, otherwise adds it with an upsert.
func (r *Repository) ToggleItem(ctx context.Context, userID, item string) (bool, error) {
	now := r.now().UTC()

	res, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID, "plants": item},
		bson.M{"$pull": bson.M{"plants": item}, "$set": bson.M{"updated_at": now}},
	)
	if err != nil {
		return false, fmt.Errorf("remove subscription item: %w", err)
	}
	if res.ModifiedCount == 1 {
		return false, nil
	}

	add := func() error {
		_, err := r.collection.UpdateOne(ctx,
			bson.M{"user_id": userID},
			bson.M{"$addToSet": bson.M{"plants": item}, "$set": bson.M{"updated_at": now}},
			options.Update().SetUpsert(true),
		)
		return err
	}

	err = add()
	// Two first toggles for the same user race on the upsert; the loser retries as an update.
	if mongo.IsDuplicateKeyError(err) {
		err = add()
	}
	if err != nil {
		return false, fmt.Errorf("add subscription item: %w", err)
	}
	return true, nil
}

// Clear empties the item set of an existing subscription.
func (r *Repository) Clear(ctx context.Context, userID string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{"$set": bson.M{"plants": []string{}, "updated_at": r.now().UTC()}},
	)
	if err != nil {
		return fmt.Errorf("clear subscription: %w", err)
	}
	return nil
}

// Delete removes the subscription of userID.
func (r *Repository) Delete(ctx context.Context, userID string) error {
	if _, err := r.collection.DeleteOne(ctx, bson.M{"user_id": userID}); err != nil {
		return fmt.Errorf("delete subscription: %w", err)
	}
	return nil
}

// ListActive returns subscriptions with at least one item.
func (r *Repository) ListActive(ctx context.Context) ([]domain.Subscription, error) {
	opts := options.Find().SetSort(bson.D{{Key: "user_id", Value: 1}})
	cur, err := r.collection.Find(ctx, bson.M{"plants.0": bson.M{"$exists": true}}, opts)
	if err != nil {
		return nil, fmt.Errorf("list subscriptions: %w", err)
	}
	defer func() { _ = cur.Close(ctx) }()

	var docs []subscriptionDocument
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode subscriptions: %w", err)
	}

	subs := make([]domain.Subscription, 0, len(docs))
	for _, doc := range docs {
		subs = append(subs, fromDocument(doc))
	}
	return subs, nil
}

func fromDocument(doc subscriptionDocument) domain.Subscription {
	items := doc.Plants
	if items == nil {
		items = []string{}
	}
	return domain.Subscription{
		UserID:    doc.UserID,
		Items:     items,
		UpdatedAt: doc.UpdatedAt.UTC(),
	}
}
