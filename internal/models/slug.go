package models

import (
	"strings"
	"unicode"

	"github.com/goliatone/go-slug"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Slugify strips diacritics from s and normalizes it with the default slug
// rules: lower-case ASCII letters and digits joined by single hyphens.
// Input with nothing left to keep yields "".
func Slugify(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}

	out, err := slug.Normalize(strings.Join(strings.Fields(folded), " "))
	if err != nil {
		return ""
	}
	return out
}
