package domain

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// customEmojiRe matches Discord custom emoji tokens such as <:Cactus:123> or <a:spin:456>.
var customEmojiRe = regexp.MustCompile(`<a?:[A-Za-z0-9_~]+:\d+>`)

var keySuffixes = []string{"_seeds", "_seed", "_gear"}

// StripCustomEmoji removes Discord custom emoji tokens from s.
func StripCustomEmoji(s string) string {
	return customEmojiRe.ReplaceAllString(s, " ")
}

// ItemKey returns the canonical key for an item name or label.
// "Grape Seed", "grape_seed" and "🍇 Grape" all map to "grape".
func ItemKey(s string) string {
	s = StripCustomEmoji(s)
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)

	var b strings.Builder
	pendingSep := false
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			if pendingSep && b.Len() > 0 {
				b.WriteByte('_')
			}
			pendingSep = false
			b.WriteRune(r)
			continue
		}
		pendingSep = true
	}

	key := b.String()
	for _, suffix := range keySuffixes {
		if strings.HasSuffix(key, suffix) && len(key) > len(suffix) {
			return strings.TrimSuffix(key, suffix)
		}
	}
	return key
}
