package stock

import (
	"strings"

	"github.com/bissquit/stockwatch/internal/domain"
)

// CatalogItem is a known seed with its display emoji and alternative spellings.
type CatalogItem struct {
	Key     string   `json:"key"`
	Name    string   `json:"name"`
	Emoji   string   `json:"emoji"`
	Aliases []string `json:"aliases,omitempty"`
}

// Catalog is the fixed lookup table used to recognise seeds.
type Catalog struct {
	items   []CatalogItem
	byKey   map[string]int
	gearTok map[string]struct{}
}

var defaultSeeds = []CatalogItem{
	{Key: "sunflower", Name: "Sunflower", Emoji: "🌻"},
	{Key: "pumpkin", Name: "Pumpkin", Emoji: "🎃"},
	{Key: "dragon_fruit", Name: "Dragon Fruit", Emoji: "🐉", Aliases: []string{"dragon fruit", "dragon", "dragonfruit"}},
	{Key: "eggplant", Name: "Eggplant", Emoji: "🍆"},
	{Key: "cactus", Name: "Cactus", Emoji: "🌵"},
	{Key: "strawberry", Name: "Strawberry", Emoji: "🍓"},
	{Key: "corn", Name: "Corn", Emoji: "🌽"},
	{Key: "tomato", Name: "Tomato", Emoji: "🍅"},
	{Key: "carrot", Name: "Carrot", Emoji: "🥕"},
	{Key: "pepper", Name: "Pepper", Emoji: "🌶", Aliases: []string{"chili", "chili pepper"}},
	{Key: "mango", Name: "Mango", Emoji: "🥭"},
	{Key: "starfruit", Name: "Starfruit", Emoji: "🌟", Aliases: []string{"star fruit"}},
	{Key: "grape", Name: "Grape", Emoji: "🍇"},
	{Key: "watermelon", Name: "Watermelon", Emoji: "🍉"},
	{Key: "cocotank", Name: "Cocotank", Emoji: "🥥", Aliases: []string{"coco tank", "coconut"}},
	{Key: "shroombino", Name: "Shroombino", Emoji: "🍄"},
	{Key: "mr_carrot", Name: "Mr Carrot", Emoji: "🥕"},
}

var gearTokens = []string{
	"bucket", "grenade", "gun", "blower", "launcher", "sprinkler",
	"potion", "shovel", "gear", "tool", "fertilizer",
}

// DefaultCatalog returns the built-in seed table.
func DefaultCatalog() *Catalog {
	return NewCatalog(defaultSeeds)
}

// NewCatalog builds a catalog from items. Aliases and names are indexed by their canonical key.
func NewCatalog(items []CatalogItem) *Catalog {
	c := &Catalog{
		items:   make([]CatalogItem, len(items)),
		byKey:   make(map[string]int, len(items)*2),
		gearTok: make(map[string]struct{}, len(gearTokens)),
	}
	copy(c.items, items)

	for i, item := range c.items {
		c.byKey[item.Key] = i
		c.byKey[domain.ItemKey(item.Name)] = i
		for _, alias := range item.Aliases {
			c.byKey[domain.ItemKey(alias)] = i
		}
	}
	for _, tok := range gearTokens {
		c.gearTok[tok] = struct{}{}
	}
	return c
}

// Items returns the catalog entries in their declared order.
func (c *Catalog) Items() []CatalogItem {
	out := make([]CatalogItem, len(c.items))
	copy(out, c.items)
	return out
}

// Emoji returns the display emoji for key, or an empty string.
func (c *Catalog) Emoji(key string) string {
	if i, ok := c.byKey[key]; ok {
		return c.items[i].Emoji
	}
	return ""
}

// Lookup resolves an exact key or alias.
func (c *Catalog) Lookup(key string) (CatalogItem, bool) {
	if i, ok := c.byKey[key]; ok {
		return c.items[i], true
	}
	return CatalogItem{}, false
}

// Canonical returns the catalog key for an item name or alias, or the plain
// domain.ItemKey when the name is not in the catalog.
func (c *Catalog) Canonical(name string) string {
	key := domain.ItemKey(name)
	if item, ok := c.Lookup(key); ok {
		return item.Key
	}
	return key
}

// Classify resolves the canonical key and category for a label.
// hint is used as the category when it is a seed or gear header.
func (c *Catalog) Classify(label string, hint domain.ItemCategory) (string, domain.ItemCategory) {
	key := c.Canonical(label)

	if item, ok := c.Lookup(key); ok {
		if hint == domain.CategoryGear {
			return key, hint
		}
		return item.Key, domain.CategorySeed
	}

	if hint == domain.CategorySeed || hint == domain.CategoryGear {
		if hint == domain.CategorySeed {
			if item, ok := c.contained(key); ok {
				return item.Key, hint
			}
		}
		return key, hint
	}

	if c.isGear(key) {
		return key, domain.CategoryGear
	}

	if item, ok := c.contained(key); ok {
		return item.Key, domain.CategorySeed
	}

	if item, ok := c.byEmoji(label); ok {
		return item.Key, domain.CategorySeed
	}

	return key, domain.CategoryOther
}

func (c *Catalog) isGear(key string) bool {
	for _, tok := range strings.Split(key, "_") {
		if _, ok := c.gearTok[tok]; ok {
			return true
		}
	}
	return false
}

// contained finds a catalog item whose key appears as a whole-word run inside key.
// Longer keys win so "mr_carrot" is preferred over "carrot".
func (c *Catalog) contained(key string) (CatalogItem, bool) {
	if key == "" {
		return CatalogItem{}, false
	}
	padded := "_" + key + "_"
	best := -1
	for k, i := range c.byKey {
		if !strings.Contains(padded, "_"+k+"_") {
			continue
		}
		if best < 0 || len(c.items[i].Key) > len(c.items[best].Key) ||
			(len(c.items[i].Key) == len(c.items[best].Key) && c.items[i].Key < c.items[best].Key) {
			best = i
		}
	}
	if best < 0 {
		return CatalogItem{}, false
	}
	return c.items[best], true
}

func (c *Catalog) byEmoji(label string) (CatalogItem, bool) {
	for _, item := range c.items {
		if item.Emoji != "" && strings.Contains(label, item.Emoji) {
			return item, true
		}
	}
	return CatalogItem{}, false
}
