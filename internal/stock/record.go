package stock

import (
	"encoding/json"

	"github.com/bissquit/stockwatch/internal/domain"
)

// Record is a raw stock message as delivered by a source, before normalisation.
// The HTTP source decodes it from the API payload and the Discord source builds it
// from a gateway message.
type Record struct {
	ID        string  `json:"id"`
	Content   string  `json:"content"`
	CreatedAt string  `json:"createdAt"`
	Embeds    []Embed `json:"embeds"`

	Source domain.SnapshotSource `json:"-"`
	Raw    json.RawMessage       `json:"-"`
}

// Embed is a rich message block.
type Embed struct {
	Title     string       `json:"title"`
	Timestamp string       `json:"timestamp"`
	Fields    []EmbedField `json:"fields"`
}

// EmbedField is a name/value pair inside an embed.
type EmbedField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Title returns the first non-empty embed title.
func (r Record) Title() string {
	for _, e := range r.Embeds {
		if e.Title != "" {
			return e.Title
		}
	}
	return ""
}
