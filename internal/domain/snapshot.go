// Package domain contains the core types shared by the stock and subscription modules.
package domain

import (
	"encoding/json"
	"time"
)

// SnapshotSource identifies where a snapshot was ingested from.
type SnapshotSource string

// Snapshot sources.
const (
	SourceHTTP    SnapshotSource = "http"
	SourceDiscord SnapshotSource = "discord"
)

// ItemCategory classifies a stock entry.
type ItemCategory string

// Item categories.
const (
	CategorySeed  ItemCategory = "seed"
	CategoryGear  ItemCategory = "gear"
	CategoryOther ItemCategory = "other"
)

// IsValid checks if the category is a known value.
func (c ItemCategory) IsValid() bool {
	switch c {
	case CategorySeed, CategoryGear, CategoryOther:
		return true
	}
	return false
}

// StockEntry is a single parsed line of a snapshot.
type StockEntry struct {
	Key      string       `json:"key"`
	Label    string       `json:"label"`
	Value    string       `json:"value"`
	Category ItemCategory `json:"category"`
	Quantity int          `json:"quantity"`
	Delta    bool         `json:"delta"`
}

// Snapshot is one observed stock rotation.
// Only Active changes after a snapshot is stored.
type Snapshot struct {
	ID        string          `json:"id"`
	Source    SnapshotSource  `json:"source"`
	Title     string          `json:"title"`
	CreatedAt time.Time       `json:"created_at"`
	ParsedAt  time.Time       `json:"parsed_at"`
	Active    bool            `json:"active"`
	Seeds     map[string]int  `json:"seeds"`
	Gear      map[string]int  `json:"gear"`
	Other     map[string]int  `json:"other"`
	Entries   []StockEntry    `json:"entries"`
	Raw       json.RawMessage `json:"-"`
}

// InStock returns the entry for key if it is a seed or gear item with a positive quantity.
func (s *Snapshot) InStock(key string) (StockEntry, bool) {
	for _, e := range s.Entries {
		if e.Key != key || e.Quantity <= 0 {
			continue
		}
		if e.Category == CategorySeed || e.Category == CategoryGear {
			return e, true
		}
	}
	return StockEntry{}, false
}

// ItemCount returns the number of distinct items across all categories.
func (s *Snapshot) ItemCount() int {
	return len(s.Seeds) + len(s.Gear) + len(s.Other)
}
