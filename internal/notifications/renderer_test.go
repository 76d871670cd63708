package notifications

import (
	"testing"
	"time"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/subscriptions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSnapshot() *domain.Snapshot {
	return &domain.Snapshot{
		ID:        "s1",
		Title:     "Plants vs Brainrots Stock",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Seeds:     map[string]int{"sunflower": 5, "corn": 4},
		Gear:      map[string]int{"water_bucket": 2},
		Other:     map[string]int{"restock_in": 5},
		Entries: []domain.StockEntry{
			{Key: "sunflower", Label: "🌻 Sunflower", Value: "**x5**", Category: domain.CategorySeed, Quantity: 5},
			{Key: "corn", Label: "Corn", Value: "+4 stock", Category: domain.CategorySeed, Quantity: 4, Delta: true},
			{Key: "water_bucket", Label: "Water <Bucket>", Value: "x2", Category: domain.CategoryGear, Quantity: 2},
			{Key: "restock_in", Label: "Restock in", Value: "5 min", Category: domain.CategoryOther, Quantity: 5},
		},
	}
}

func TestNewRenderer(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)
	require.NotNil(t, r)

	assert.Len(t, r.templates, 2)
}

func TestRenderer_TelegramFormat(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	snap := testSnapshot()
	alert := NewStockAlert(snap, subscriptions.Match{
		UserID: "1",
		Items: []subscriptions.MatchedItem{
			{Key: "sunflower", Label: "🌻 Sunflower", Emoji: "🌻", Quantity: 5},
			{Key: "corn", Label: "Corn", Emoji: "🌽", Quantity: 4, Delta: true},
		},
	})

	subject, body, err := r.Render(domain.ChannelTypeTelegram, alert)
	require.NoError(t, err)

	assert.Equal(t, "[Stock] Sunflower, Corn", subject)
	assert.Contains(t, body, "<b>Your plants are in stock!</b>")
	assert.Contains(t, body, "📅 01.01.2024 00:00 UTC")
	assert.Contains(t, body, "🌻 Sunflower: <b>x5</b>")
	assert.NotContains(t, body, "🌻 🌻", "emoji already in the label is not repeated")
	assert.Contains(t, body, "🌽 Corn: <b>+4</b>")
	assert.Contains(t, body, "Water &lt;Bucket&gt;: x2", "labels are HTML escaped")
	assert.NotContains(t, body, "Restock in", "other entries are not part of the stock list")
}

func TestRenderer_LogFormat(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	alert := NewStockAlert(testSnapshot(), subscriptions.Match{
		UserID: "1",
		Items:  []subscriptions.MatchedItem{{Key: "sunflower", Label: "🌻 Sunflower", Emoji: "🌻", Quantity: 5}},
	})

	_, body, err := r.Render(domain.ChannelTypeLog, alert)
	require.NoError(t, err)
	assert.Contains(t, body, "Snapshot: s1")
	assert.Contains(t, body, "- 🌻 Sunflower: x5")
	assert.NotContains(t, body, "<b>")
}

func TestRenderer_NoCreatedAt(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	snap := testSnapshot()
	snap.CreatedAt = time.Time{}

	_, body, err := r.Render(domain.ChannelTypeTelegram, NewStockAlert(snap, subscriptions.Match{UserID: "1"}))
	require.NoError(t, err)
	assert.NotContains(t, body, "📅")
}

func TestRenderer_UnknownTemplate(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	_, _, err = r.Render(domain.ChannelType("sms"), StockAlert{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "template not found")
}

func TestFormatQuantity(t *testing.T) {
	tests := []struct {
		qty   int
		delta bool
		want  string
	}{
		{qty: 5, want: "x5"},
		{qty: 0, want: "x0"},
		{qty: 4, delta: true, want: "+4"},
		{qty: -2, delta: true, want: "-2"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, formatQuantity(tt.qty, tt.delta))
		})
	}
}

func TestWithEmoji(t *testing.T) {
	assert.Equal(t, "🍇 Grape", withEmoji("🍇", "Grape"))
	assert.Equal(t, "🍇 Grape", withEmoji("🍇", "🍇 Grape"))
	assert.Equal(t, "Grape", withEmoji("", "Grape"))
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2025, 3, 9, 17, 5, 0, 0, time.FixedZone("MSK", 3*3600))
	assert.Equal(t, "09.03.2025 14:05 UTC", formatTime(ts))
}
