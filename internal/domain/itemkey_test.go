package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestItemKey(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"plain name", "Sunflower", "sunflower"},
		{"two words", "Dragon Fruit", "dragon_fruit"},
		{"already a key", "dragon_fruit", "dragon_fruit"},
		{"seed suffix", "grape_seed", "grape"},
		{"seed suffix with spaces", "Grape Seed", "grape"},
		{"seeds suffix", "Corn Seeds", "corn"},
		{"gear suffix", "bucket_gear", "bucket"},
		{"unicode emoji prefix", "🍇 Grape", "grape"},
		{"repeated emoji", "🌵 🌵 🌵 🌵 Cactus", "cactus"},
		{"discord custom emoji", "<:Cactus:1234567890> Cactus", "cactus"},
		{"animated custom emoji", "<a:spin:42> Mango", "mango"},
		{"markdown", "**Water Bucket**", "water_bucket"},
		{"hyphen and dot", "Mr. Carrot-Launcher", "mr_carrot_launcher"},
		{"fullwidth letters", "Ｔｏｍａｔｏ", "tomato"},
		{"only suffix word", "Seed", "seed"},
		{"empty", "", ""},
		{"only emoji", "🌶️", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ItemKey(tt.input))
		})
	}
}

func TestItemKey_Idempotent(t *testing.T) {
	for _, in := range []string{"Grape Seed", "🌻 Sunflower", "Frost Grenade", "<:x:1> Corn"} {
		once := ItemKey(in)
		assert.Equal(t, once, ItemKey(once), in)
	}
}

func TestSnapshot_InStock(t *testing.T) {
	snap := &Snapshot{
		Entries: []StockEntry{
			{Key: "sunflower", Category: CategorySeed, Quantity: 5},
			{Key: "water_bucket", Category: CategoryGear, Quantity: 2},
			{Key: "pumpkin", Category: CategorySeed, Quantity: 0},
			{Key: "mystery", Category: CategoryOther, Quantity: 3},
		},
	}

	e, ok := snap.InStock("sunflower")
	assert.True(t, ok)
	assert.Equal(t, 5, e.Quantity)

	_, ok = snap.InStock("water_bucket")
	assert.True(t, ok)

	_, ok = snap.InStock("pumpkin")
	assert.False(t, ok, "zero quantity is not in stock")

	_, ok = snap.InStock("mystery")
	assert.False(t, ok, "other items are not matchable")

	_, ok = snap.InStock("corn")
	assert.False(t, ok)
}

func TestSubscription_Has(t *testing.T) {
	sub := Subscription{UserID: "1", Items: []string{"grape_seed", "corn"}}
	assert.True(t, sub.Has("grape"))
	assert.True(t, sub.Has("corn"))
	assert.False(t, sub.Has("tomato"))
}
