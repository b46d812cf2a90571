package textutil

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Normalize prepares free text for matching: Unicode NFC normalization,
// whitespace collapsing, and trimming. Casing is left untouched; the matcher
// lowercases on its own so normalized text stays readable in the silver table.
func Normalize(text string) string {
	composed := norm.NFC.String(text)

	var b strings.Builder
	b.Grow(len(composed))
	space := false
	for _, r := range composed {
		if unicode.IsSpace(r) {
			space = true
			continue
		}
		if space && b.Len() > 0 {
			b.WriteByte(' ')
		}
		space = false
		b.WriteRune(r)
	}
	return b.String()
}
