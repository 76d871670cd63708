package notifications

import (
	"bytes"
	"embed"
	"fmt"
	"html"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/bissquit/stockwatch/internal/domain"
	"github.com/bissquit/stockwatch/internal/subscriptions"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

//go:embed templates/*.tmpl
var templatesFS embed.FS

// StockAlert is the template input for one recipient.
type StockAlert struct {
	SnapshotID string
	Title      string
	CreatedAt  time.Time
	Items      []subscriptions.MatchedItem
	Stock      []domain.StockEntry
}

// NewStockAlert builds the alert for match, listing the snapshot's seeds and gear as the full stock.
func NewStockAlert(snap *domain.Snapshot, match subscriptions.Match) StockAlert {
	alert := StockAlert{
		SnapshotID: snap.ID,
		Title:      snap.Title,
		CreatedAt:  snap.CreatedAt,
		Items:      match.Items,
	}
	for _, e := range snap.Entries {
		if e.Category == domain.CategorySeed || e.Category == domain.CategoryGear {
			alert.Stock = append(alert.Stock, e)
		}
	}
	return alert
}

// Renderer renders notifications from templates.
type Renderer struct {
	templates map[domain.ChannelType]*template.Template
}

// NewRenderer creates a new renderer and loads all templates.
func NewRenderer() (*Renderer, error) {
	funcMap := template.FuncMap{
		"title":      titleCase,
		"formatTime": formatTime,
		"quantity":   formatQuantity,
		"withEmoji":  withEmoji,
		"escapeHTML": html.EscapeString,
	}

	r := &Renderer{templates: make(map[domain.ChannelType]*template.Template)}

	for _, channel := range []domain.ChannelType{domain.ChannelTypeTelegram, domain.ChannelTypeLog} {
		filename := fmt.Sprintf("templates/%s_stock.tmpl", channel)

		content, err := templatesFS.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("read template %s: %w", filename, err)
		}

		tmpl, err := template.New(string(channel)).Funcs(funcMap).Parse(string(content))
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", filename, err)
		}
		r.templates[channel] = tmpl
	}

	return r, nil
}

// Render renders alert for the specified channel type. Returns subject and body.
func (r *Renderer) Render(channelType domain.ChannelType, alert StockAlert) (subject, body string, err error) {
	tmpl, ok := r.templates[channelType]
	if !ok {
		return "", "", fmt.Errorf("template not found: %s", channelType)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, alert); err != nil {
		return "", "", fmt.Errorf("execute template %s: %w", channelType, err)
	}

	return renderSubject(alert), strings.TrimSpace(buf.String()), nil
}

func renderSubject(alert StockAlert) string {
	names := make([]string, 0, len(alert.Items))
	for _, item := range alert.Items {
		names = append(names, titleCase(strings.ReplaceAll(item.Key, "_", " ")))
	}
	return fmt.Sprintf("[Stock] %s", strings.Join(names, ", "))
}

// Template functions

var titleCaser = cases.Title(language.English)

func titleCase(s string) string {
	return titleCaser.String(s)
}

func formatTime(t time.Time) string {
	return t.UTC().Format("02.01.2006 15:04 UTC")
}

// formatQuantity renders "x5" for a count and "+4" / "-2" for a delta.
func formatQuantity(qty int, delta bool) string {
	if !delta {
		return "x" + strconv.Itoa(qty)
	}
	if qty > 0 {
		return "+" + strconv.Itoa(qty)
	}
	return strconv.Itoa(qty)
}

func withEmoji(emoji, label string) string {
	if emoji == "" || strings.Contains(label, emoji) {
		return label
	}
	return emoji + " " + label
}
