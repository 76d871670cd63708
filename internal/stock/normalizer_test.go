package stock

import (
	"errors"
	"testing"
	"time"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedNormalizer(bonus []BonusItem) *Normalizer {
	n := NewNormalizer(nil, bonus)
	n.now = func() time.Time { return time.Date(2025, 9, 1, 12, 0, 0, 0, time.UTC) }
	return n
}

func TestNormalize_FieldPerItem(t *testing.T) {
	n := fixedNormalizer(nil)

	snap, err := n.Normalize(Record{
		ID:        "S1",
		CreatedAt: "2025-09-01T10:00:00Z",
		Embeds: []Embed{{
			Title: "Plants vs Brainrots Stock",
			Fields: []EmbedField{
				{Name: "🌻 Sunflower", Value: "**x5**"},
				{Name: "🌵 🌵 🌵 🌵 Cactus", Value: "+4 stock"},
				{Name: "Water Bucket", Value: "x2"},
			},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, "S1", snap.ID)
	assert.Equal(t, domain.SourceHTTP, snap.Source)
	assert.Equal(t, "Plants vs Brainrots Stock", snap.Title)
	assert.Equal(t, time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC), snap.CreatedAt)
	assert.Equal(t, map[string]int{"sunflower": 5, "cactus": 4}, snap.Seeds)
	assert.Equal(t, map[string]int{"water_bucket": 2}, snap.Gear)
	assert.Empty(t, snap.Other)
	assert.False(t, snap.Active)
	assert.NotEmpty(t, snap.Raw)

	require.Len(t, snap.Entries, 3)
	assert.Equal(t, "🌵 Cactus", snap.Entries[1].Label)
	assert.Equal(t, "+4 stock", snap.Entries[1].Value)
	assert.True(t, snap.Entries[1].Delta)
	assert.False(t, snap.Entries[0].Delta)
	assert.Equal(t, "x5", snap.Entries[0].Value)
}

func TestNormalize_DiscordBlocks(t *testing.T) {
	n := fixedNormalizer(nil)

	snap, err := n.Normalize(Record{
		ID:     "1400000000000000001",
		Source: domain.SourceDiscord,
		Embeds: []Embed{{
			Title:     "Plants vs Brainrots Stock",
			Timestamp: "2025-09-01T11:05:00.000000+00:00",
			Fields: []EmbedField{
				{Name: "Seeds", Value: "<:Sunflower:111> Sunflower **x5**\n<:Dragon:222> Dragon Fruit **x1**\n\n<:Carrot:333> Carrot **x12**"},
				{Name: "Gear", Value: "<:Bucket:444> Water Bucket **x3**\n<:Grenade:555> Frost Grenade **x1**"},
			},
		}},
	})
	require.NoError(t, err)

	assert.Equal(t, domain.SourceDiscord, snap.Source)
	assert.Equal(t, time.Date(2025, 9, 1, 11, 5, 0, 0, time.UTC), snap.CreatedAt)
	assert.Equal(t, map[string]int{"sunflower": 5, "dragon_fruit": 1, "carrot": 12}, snap.Seeds)
	assert.Equal(t, map[string]int{"water_bucket": 3, "frost_grenade": 1}, snap.Gear)
	assert.Equal(t, "Dragon Fruit", snap.Entries[1].Label)
}

func TestNormalize_SignedDeltas(t *testing.T) {
	n := fixedNormalizer(nil)

	snap, err := n.Normalize(Record{
		ID: "D1",
		Embeds: []Embed{{Fields: []EmbedField{
			{Name: "Tomato", Value: "-2"},
			{Name: "Corn", Value: "+3 stock"},
		}}},
	})
	require.NoError(t, err)

	assert.Equal(t, -2, snap.Seeds["tomato"])
	assert.Equal(t, 3, snap.Seeds["corn"])
	assert.True(t, snap.Entries[0].Delta)
}

func TestNormalize_Classification(t *testing.T) {
	tests := []struct {
		name     string
		label    string
		wantKey  string
		wantKind domain.ItemCategory
	}{
		{"catalog name", "Sunflower", "sunflower", domain.CategorySeed},
		{"catalog alias", "🐉 Dragon", "dragon_fruit", domain.CategorySeed},
		{"seed suffix", "Grape Seed", "grape", domain.CategorySeed},
		{"gear keyword", "Banana Gun", "banana_gun", domain.CategoryGear},
		{"gear keyword beats contained seed", "Carrot Launcher", "carrot_launcher", domain.CategoryGear},
		{"longest contained seed", "Golden Mr Carrot", "mr_carrot", domain.CategorySeed},
		{"emoji only", "🥭", "mango", domain.CategorySeed},
		{"unknown kept as other", "Mystery Box", "mystery_box", domain.CategoryOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := fixedNormalizer(nil)
			snap, err := n.Normalize(Record{
				ID:     "C",
				Embeds: []Embed{{Fields: []EmbedField{{Name: tt.label, Value: "x1"}}}},
			})
			require.NoError(t, err)
			require.Len(t, snap.Entries, 1)
			assert.Equal(t, tt.wantKey, snap.Entries[0].Key)
			assert.Equal(t, tt.wantKind, snap.Entries[0].Category)
		})
	}
}

func TestNormalize_SkipsUnparseableLines(t *testing.T) {
	n := fixedNormalizer(nil)

	snap, err := n.Normalize(Record{
		ID: "P",
		Embeds: []Embed{{Fields: []EmbedField{
			{Name: "Seeds", Value: "Sunflower **x5**\nrestocking soon\nPumpkin x2"},
			{Name: "Note", Value: "no numbers here"},
		}}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"sunflower": 5, "pumpkin": 2}, snap.Seeds)
	assert.Len(t, snap.Entries, 2)
}

func TestNormalize_Malformed(t *testing.T) {
	tests := []struct {
		name string
		rec  Record
	}{
		{"missing id", Record{Embeds: []Embed{{Fields: []EmbedField{{Name: "Corn", Value: "x1"}}}}}},
		{"no embeds", Record{ID: "X"}},
		{"no parseable fields", Record{ID: "X", Embeds: []Embed{{Fields: []EmbedField{{Name: "Hello", Value: "world"}}}}}},
		{"empty fields", Record{ID: "X", Embeds: []Embed{{Title: "Stock"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := fixedNormalizer(nil).Normalize(tt.rec)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrMalformedRecord))
		})
	}
}

func TestNormalize_BonusItems(t *testing.T) {
	n := fixedNormalizer([]BonusItem{
		{Label: "🌵 🌵 🌵 🌵 Cactus", Value: "+4 stock"},
		{Label: "🍓 🍓 🍓 Strawberry", Value: "+3 stock"},
	})

	snap, err := n.Normalize(Record{
		ID:     "B",
		Embeds: []Embed{{Fields: []EmbedField{{Name: "Corn", Value: "x1"}}}},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"corn": 1, "cactus": 4, "strawberry": 3}, snap.Seeds)
	assert.Equal(t, "🍓 Strawberry", snap.Entries[2].Label)

	_, err = n.Normalize(Record{ID: "B2"})
	assert.ErrorIs(t, err, ErrMalformedRecord, "bonus items never rescue an empty record")
}

func TestNormalize_CreatedAtFallback(t *testing.T) {
	n := fixedNormalizer(nil)
	fields := []EmbedField{{Name: "Corn", Value: "x1"}}

	snap, err := n.Normalize(Record{ID: "T1", CreatedAt: "2025-09-01T09:30:00.123456", Embeds: []Embed{{Fields: fields}}})
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, 9, 1, 9, 30, 0, 123456000, time.UTC), snap.CreatedAt)

	snap, err = n.Normalize(Record{ID: "T2", CreatedAt: "garbage", Embeds: []Embed{{Fields: fields}}})
	require.NoError(t, err)
	assert.Equal(t, n.now(), snap.CreatedAt)
}

func TestDisplayLabel(t *testing.T) {
	assert.Equal(t, "🌵 Cactus", DisplayLabel("🌵 🌵 🌵 🌵 Cactus"))
	assert.Equal(t, "Sunflower", DisplayLabel("<:Sunflower:1> **Sunflower**"))
	assert.Equal(t, "Big Big Tomato", DisplayLabel("Big  Big Tomato"))
}

func TestCatalog_Lookup(t *testing.T) {
	c := DefaultCatalog()

	item, ok := c.Lookup("dragon")
	require.True(t, ok)
	assert.Equal(t, "dragon_fruit", item.Key)
	assert.Equal(t, "🐉", c.Emoji("dragon_fruit"))
	assert.Equal(t, "", c.Emoji("water_bucket"))

	items := c.Items()
	assert.Equal(t, "sunflower", items[0].Key)
	items[0].Key = "changed"
	assert.Equal(t, "sunflower", c.Items()[0].Key)
}
