package stock

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/bissquit/stockwatch/internal/domain"
)

// Stock lines follow "<label> <marker> <signed-int> <suffix>", e.g. "Cactus **x3**",
// "🍓 Strawberry +3 stock" or a bare "x5" in a field value.
var quantityRe = regexp.MustCompile(`(?i)(?:^|[^\p{L}\p{N}])(x\s*)?([+-])?\s*(\d+)\b`)

var markdownReplacer = strings.NewReplacer("**", "", "*", "", "__", "", "~~", "", "`", "")

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

// BonusItem is an entry appended to every snapshot after its own fields are parsed.
type BonusItem struct {
	Label string `koanf:"label"`
	Value string `koanf:"value"`
}

// Normalizer turns raw records into snapshots.
type Normalizer struct {
	catalog *Catalog
	bonus   []BonusItem
	now     func() time.Time
}

// NewNormalizer creates a normalizer. A nil catalog selects DefaultCatalog.
func NewNormalizer(catalog *Catalog, bonus []BonusItem) *Normalizer {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	return &Normalizer{
		catalog: catalog,
		bonus:   bonus,
		now:     time.Now,
	}
}

// Catalog returns the seed table used for classification.
func (n *Normalizer) Catalog() *Catalog {
	return n.catalog
}

// Normalize parses rec into a snapshot. It returns an error wrapping ErrMalformedRecord
// when the record has no id or no field yields a stock entry.
func (n *Normalizer) Normalize(rec Record) (*domain.Snapshot, error) {
	id := strings.TrimSpace(rec.ID)
	if id == "" {
		return nil, malformed("missing id")
	}

	snap := &domain.Snapshot{
		ID:        id,
		Source:    rec.Source,
		Title:     strings.TrimSpace(rec.Title()),
		CreatedAt: n.createdAt(rec),
		ParsedAt:  n.now().UTC(),
		Seeds:     make(map[string]int),
		Gear:      make(map[string]int),
		Other:     make(map[string]int),
		Raw:       rec.Raw,
	}
	if snap.Source == "" {
		snap.Source = domain.SourceHTTP
	}
	if len(snap.Raw) == 0 {
		if raw, err := json.Marshal(rec); err == nil {
			snap.Raw = raw
		}
	}

	for _, embed := range rec.Embeds {
		for _, field := range embed.Fields {
			snap.Entries = append(snap.Entries, n.parseField(field)...)
		}
	}
	if len(snap.Entries) == 0 {
		return nil, malformed("record %s has no parseable stock fields", id)
	}

	for _, b := range n.bonus {
		qty, delta, value, ok := splitQuantity(cleanText(b.Value))
		if !ok {
			continue
		}
		if e, ok := n.entry(b.Label, value, qty, delta, ""); ok {
			snap.Entries = append(snap.Entries, e)
		}
	}

	for _, e := range snap.Entries {
		switch e.Category {
		case domain.CategorySeed:
			snap.Seeds[e.Key] = e.Quantity
		case domain.CategoryGear:
			snap.Gear[e.Key] = e.Quantity
		default:
			snap.Other[e.Key] = e.Quantity
		}
	}

	return snap, nil
}

func (n *Normalizer) createdAt(rec Record) time.Time {
	if t, ok := parseTimestamp(rec.CreatedAt); ok {
		return t
	}
	for _, e := range rec.Embeds {
		if t, ok := parseTimestamp(e.Timestamp); ok {
			return t
		}
	}
	return n.now().UTC()
}

func (n *Normalizer) parseField(f EmbedField) []domain.StockEntry {
	hint, isHeader := categoryHint(f.Name)
	lines := splitLines(f.Value)

	if isHeader || len(lines) > 1 {
		entries := make([]domain.StockEntry, 0, len(lines))
		for _, line := range lines {
			if e, ok := n.parseLine(line, hint); ok {
				entries = append(entries, e)
			}
		}
		return entries
	}

	if len(lines) == 0 {
		return nil
	}

	if strings.TrimSpace(f.Name) != "" {
		qty, delta, value, ok := splitQuantity(cleanText(lines[0]))
		if ok {
			if e, ok := n.entry(f.Name, value, qty, delta, ""); ok {
				return []domain.StockEntry{e}
			}
		}
	}

	if e, ok := n.parseLine(lines[0], ""); ok {
		return []domain.StockEntry{e}
	}
	return nil
}

func (n *Normalizer) parseLine(line string, hint domain.ItemCategory) (domain.StockEntry, bool) {
	clean := cleanText(line)
	m := lastQuantityMatch(clean)
	if m == nil {
		return domain.StockEntry{}, false
	}
	qty, delta, value, ok := quantityFromMatch(clean, m)
	if !ok {
		return domain.StockEntry{}, false
	}
	return n.entry(clean[:m[0]], value, qty, delta, hint)
}

func (n *Normalizer) entry(label, value string, qty int, delta bool, hint domain.ItemCategory) (domain.StockEntry, bool) {
	display := DisplayLabel(label)
	key, category := n.catalog.Classify(display, hint)
	if key == "" {
		return domain.StockEntry{}, false
	}
	return domain.StockEntry{
		Key:      key,
		Label:    display,
		Value:    value,
		Category: category,
		Quantity: qty,
		Delta:    delta,
	}, true
}

// DisplayLabel strips custom emoji and markdown from a label and collapses repeated emoji,
// so "🌵 🌵 🌵 🌵 Cactus" becomes "🌵 Cactus".
func DisplayLabel(s string) string {
	fields := strings.Fields(cleanText(s))
	out := fields[:0]
	for _, f := range fields {
		if len(out) > 0 && f == out[len(out)-1] && !hasLetter(f) {
			continue
		}
		out = append(out, f)
	}
	return strings.Join(out, " ")
}

func categoryHint(name string) (domain.ItemCategory, bool) {
	switch domain.ItemKey(name) {
	case "seed", "seeds", "seed_stock", "seeds_stock", "seed_shop":
		return domain.CategorySeed, true
	case "gear", "gears", "gear_stock", "gear_shop":
		return domain.CategoryGear, true
	}
	return "", false
}

func splitQuantity(s string) (qty int, delta bool, value string, ok bool) {
	m := lastQuantityMatch(s)
	if m == nil {
		return 0, false, "", false
	}
	return quantityFromMatch(s, m)
}

func lastQuantityMatch(s string) []int {
	all := quantityRe.FindAllStringSubmatchIndex(s, -1)
	if len(all) == 0 {
		return nil
	}
	return all[len(all)-1]
}

// quantityFromMatch reads the groups of a quantityRe match: 1 marker, 2 sign, 3 digits.
func quantityFromMatch(s string, m []int) (qty int, delta bool, value string, ok bool) {
	qty, err := strconv.Atoi(s[m[6]:m[7]])
	if err != nil {
		return 0, false, "", false
	}

	start := m[6]
	if m[4] >= 0 {
		start = m[4]
		delta = true
		if s[m[4]:m[5]] == "-" {
			qty = -qty
		}
	}
	if m[2] >= 0 {
		start = m[2]
	}
	return qty, delta, strings.TrimSpace(s[start:]), true
}

func cleanText(s string) string {
	s = domain.StripCustomEmoji(s)
	s = markdownReplacer.Replace(s)
	return strings.Join(strings.Fields(s), " ")
}

func splitLines(s string) []string {
	var lines []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func hasLetter(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}
