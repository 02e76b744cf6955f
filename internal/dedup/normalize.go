package dedup

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const tatweel = 'ـ'

// Normalize produces the comparison form of a title: NFKD with combining
// marks (Latin accents, Arabic harakat and hamza) removed, tatweel dropped,
// lowercased, punctuation turned into spaces and whitespace collapsed.
func Normalize(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, s)
	if err != nil {
		stripped = s
	}

	var b strings.Builder
	b.Grow(len(stripped))
	space := false
	for _, r := range strings.ToLower(stripped) {
		switch {
		case r == tatweel:
			continue
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}

// Keys returns the normalized dedup keys for a (title, title_arabic) pair.
func Keys(title, titleArabic string) (string, string) {
	return Normalize(title), Normalize(titleArabic)
}
