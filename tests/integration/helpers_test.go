//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/bissquit/stockwatch/internal/stock"
	stockmongodb "github.com/bissquit/stockwatch/internal/stock/mongodb"
	stockpostgres "github.com/bissquit/stockwatch/internal/stock/postgres"
	"github.com/bissquit/stockwatch/internal/subscriptions"
	submongodb "github.com/bissquit/stockwatch/internal/subscriptions/mongodb"
	subpostgres "github.com/bissquit/stockwatch/internal/subscriptions/postgres"
)

type stockBackend struct {
	name    string
	newRepo func(t *testing.T) stock.Repository
}

type subscriptionBackend struct {
	name    string
	newRepo func(t *testing.T) subscriptions.Repository
}

// stockBackends returns every persistent snapshot store, each starting empty.
func stockBackends() []stockBackend {
	return []stockBackend{
		{name: "postgres", newRepo: func(t *testing.T) stock.Repository {
			t.Helper()
			resetPostgres(t)
			return stockpostgres.NewRepository(testDB)
		}},
		{name: "mongodb", newRepo: func(t *testing.T) stock.Repository {
			t.Helper()
			ctx := context.Background()
			coll := testMongo.Collection(stockmongodb.CollectionName)
			_, err := coll.DeleteMany(ctx, bson.M{})
			require.NoError(t, err)
			repo := stockmongodb.NewRepository(testMongo)
			require.NoError(t, repo.EnsureIndexes(ctx))
			return repo
		}},
	}
}

// subscriptionBackends returns every persistent subscription store, each starting empty.
func subscriptionBackends() []subscriptionBackend {
	return []subscriptionBackend{
		{name: "postgres", newRepo: func(t *testing.T) subscriptions.Repository {
			t.Helper()
			resetPostgres(t)
			return subpostgres.NewRepository(testDB)
		}},
		{name: "mongodb", newRepo: func(t *testing.T) subscriptions.Repository {
			t.Helper()
			ctx := context.Background()
			coll := testMongo.Collection(submongodb.CollectionName)
			_, err := coll.DeleteMany(ctx, bson.M{})
			require.NoError(t, err)
			repo := submongodb.NewRepository(testMongo)
			require.NoError(t, repo.EnsureIndexes(ctx))
			return repo
		}},
	}
}

func resetPostgres(t *testing.T) {
	t.Helper()
	_, err := testDB.Exec(context.Background(), "TRUNCATE stock_snapshots, plant_subscriptions")
	require.NoError(t, err)
}

func stockRecord(id, createdAt string, fields ...stock.EmbedField) stock.Record {
	return stock.Record{
		ID:        id,
		CreatedAt: createdAt,
		Embeds:    []stock.Embed{{Title: "Stock", Fields: fields}},
	}
}

func field(name, value string) stock.EmbedField {
	return stock.EmbedField{Name: name, Value: value}
}
