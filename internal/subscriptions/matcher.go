package subscriptions

import (
	"sort"

	"github.com/bissquit/stockwatch/internal/domain"
)

// Catalog maps item names and aliases to the keys snapshots are stored under.
// A nil Catalog falls back to domain.ItemKey and no emoji.
type Catalog interface {
	Canonical(name string) string
	Emoji(key string) string
}

func canonicalKey(catalog Catalog, name string) string {
	if catalog == nil {
		return domain.ItemKey(name)
	}
	return catalog.Canonical(name)
}

// MatchedItem is one subscribed item present in a snapshot.
type MatchedItem struct {
	Key      string
	Label    string
	Emoji    string
	Value    string
	Quantity int
	Delta    bool
}

// Match is the set of subscribed items one user should be told about.
type Match struct {
	UserID string
	Items  []MatchedItem
}

// MatchSnapshot intersects every subscription with the seed and gear items in stock.
// Subscribers without a match are left out. Results are ordered by user id and items
// follow the snapshot's entry order.
func MatchSnapshot(snap *domain.Snapshot, subs []domain.Subscription, catalog Catalog) []Match {
	if snap == nil || len(subs) == 0 {
		return nil
	}

	inStock := make(map[string]domain.StockEntry)
	var order []string
	for _, e := range snap.Entries {
		if _, seen := inStock[e.Key]; seen {
			continue
		}
		if entry, ok := snap.InStock(e.Key); ok {
			inStock[e.Key] = entry
			order = append(order, e.Key)
		}
	}
	if len(inStock) == 0 {
		return nil
	}

	var matches []Match
	for _, sub := range subs {
		if len(sub.Items) == 0 {
			continue
		}

		wanted := make(map[string]struct{}, len(sub.Items))
		for _, item := range sub.Items {
			if key := canonicalKey(catalog, item); key != "" {
				wanted[key] = struct{}{}
			}
		}

		var items []MatchedItem
		for _, key := range order {
			if _, ok := wanted[key]; !ok {
				continue
			}
			entry := inStock[key]
			item := MatchedItem{
				Key:      key,
				Label:    entry.Label,
				Value:    entry.Value,
				Quantity: entry.Quantity,
				Delta:    entry.Delta,
			}
			if catalog != nil {
				item.Emoji = catalog.Emoji(key)
			}
			items = append(items, item)
		}

		if len(items) > 0 {
			matches = append(matches, Match{UserID: sub.UserID, Items: items})
		}
	}

	sort.Slice(matches, func(i, j int) bool { return matches[i].UserID < matches[j].UserID })
	return matches
}
