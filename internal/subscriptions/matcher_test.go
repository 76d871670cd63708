package subscriptions

import (
	"testing"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type emojiMap map[string]string

func (m emojiMap) Emoji(key string) string { return m[key] }

func (m emojiMap) Canonical(name string) string { return domain.ItemKey(name) }

func snapshotWith(entries ...domain.StockEntry) *domain.Snapshot {
	snap := &domain.Snapshot{
		ID:    "s1",
		Seeds: map[string]int{},
		Gear:  map[string]int{},
		Other: map[string]int{},
	}
	for _, e := range entries {
		snap.Entries = append(snap.Entries, e)
		switch e.Category {
		case domain.CategorySeed:
			snap.Seeds[e.Key] = e.Quantity
		case domain.CategoryGear:
			snap.Gear[e.Key] = e.Quantity
		default:
			snap.Other[e.Key] = e.Quantity
		}
	}
	return snap
}

func seed(key string, qty int) domain.StockEntry {
	return domain.StockEntry{Key: key, Label: key, Value: "x", Category: domain.CategorySeed, Quantity: qty}
}

func TestMatchSnapshot(t *testing.T) {
	tests := []struct {
		name  string
		snap  *domain.Snapshot
		items []string
		want  []string
	}{
		{
			name:  "suffixed subscription matches bare key",
			snap:  snapshotWith(seed("grape", 3)),
			items: []string{"grape_seed"},
			want:  []string{"grape"},
		},
		{
			name:  "display name subscription",
			snap:  snapshotWith(seed("dragon_fruit", 1)),
			items: []string{"Dragon Fruit"},
			want:  []string{"dragon_fruit"},
		},
		{
			name:  "disjoint sets",
			snap:  snapshotWith(seed("tomato", 4)),
			items: []string{"corn"},
		},
		{
			name:  "zero quantity is not in stock",
			snap:  snapshotWith(seed("corn", 0)),
			items: []string{"corn"},
		},
		{
			name:  "negative delta is not in stock",
			snap:  snapshotWith(domain.StockEntry{Key: "corn", Category: domain.CategorySeed, Quantity: -2, Delta: true}),
			items: []string{"corn"},
		},
		{
			name:  "other category never matches",
			snap:  snapshotWith(domain.StockEntry{Key: "restock_in", Category: domain.CategoryOther, Quantity: 5}),
			items: []string{"restock_in"},
		},
		{
			name:  "gear matches",
			snap:  snapshotWith(domain.StockEntry{Key: "water_bucket", Category: domain.CategoryGear, Quantity: 2}),
			items: []string{"Water Bucket"},
			want:  []string{"water_bucket"},
		},
		{
			name:  "items follow snapshot order",
			snap:  snapshotWith(seed("sunflower", 1), seed("corn", 2), seed("grape", 3)),
			items: []string{"grape", "sunflower"},
			want:  []string{"sunflower", "grape"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := []domain.Subscription{{UserID: "u1", Items: tt.items}}
			matches := MatchSnapshot(tt.snap, subs, nil)

			if len(tt.want) == 0 {
				assert.Empty(t, matches)
				return
			}
			require.Len(t, matches, 1)
			keys := make([]string, 0, len(matches[0].Items))
			for _, item := range matches[0].Items {
				keys = append(keys, item.Key)
			}
			assert.Equal(t, tt.want, keys)
		})
	}
}

func TestMatchSnapshot_MultipleSubscribers(t *testing.T) {
	snap := snapshotWith(
		domain.StockEntry{Key: "sunflower", Label: "🌻 Sunflower", Value: "**x5**", Category: domain.CategorySeed, Quantity: 5},
		domain.StockEntry{Key: "corn", Label: "Corn", Value: "+4 stock", Category: domain.CategorySeed, Quantity: 4, Delta: true},
	)
	subs := []domain.Subscription{
		{UserID: "3", Items: []string{"corn"}},
		{UserID: "1", Items: []string{"sunflower", "pumpkin"}},
		{UserID: "2", Items: []string{"pumpkin"}},
		{UserID: "4"},
	}

	matches := MatchSnapshot(snap, subs, emojiMap{"sunflower": "🌻"})

	require.Len(t, matches, 2)
	assert.Equal(t, "1", matches[0].UserID)
	assert.Equal(t, []MatchedItem{{
		Key: "sunflower", Label: "🌻 Sunflower", Emoji: "🌻", Value: "**x5**", Quantity: 5,
	}}, matches[0].Items)

	assert.Equal(t, "3", matches[1].UserID)
	assert.True(t, matches[1].Items[0].Delta)
	assert.Equal(t, 4, matches[1].Items[0].Quantity)
}

func TestMatchSnapshot_Empty(t *testing.T) {
	assert.Nil(t, MatchSnapshot(nil, []domain.Subscription{{UserID: "1", Items: []string{"corn"}}}, nil))
	assert.Nil(t, MatchSnapshot(snapshotWith(seed("corn", 1)), nil, nil))
}

func TestMatchSnapshot_RequiresPositiveQuantity(t *testing.T) {
	snap := snapshotWith(
		domain.StockEntry{Key: "cactus", Label: "Cactus", Value: "-2 stock", Category: domain.CategorySeed, Quantity: -2, Delta: true},
		domain.StockEntry{Key: "mango", Label: "Mango", Value: "x0", Category: domain.CategorySeed, Quantity: 0},
		domain.StockEntry{Key: "corn", Label: "Corn", Value: "+1 stock", Category: domain.CategorySeed, Quantity: 1, Delta: true},
	)
	subs := []domain.Subscription{
		{UserID: "1", Items: []string{"cactus", "mango"}},
		{UserID: "2", Items: []string{"cactus", "corn"}},
	}

	matches := MatchSnapshot(snap, subs, nil)

	require.Len(t, matches, 1)
	assert.Equal(t, "2", matches[0].UserID)
	require.Len(t, matches[0].Items, 1)
	assert.Equal(t, "corn", matches[0].Items[0].Key)
}
