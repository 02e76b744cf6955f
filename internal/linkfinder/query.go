package linkfinder

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	notQueryRune = regexp.MustCompile(`[^\p{Latin}0-9\x{0600}-\x{06FF}\s]`)
	seasonSuffix = regexp.MustCompile(`(?i)(season|الموسم)\s*\d+`)
	spaces       = regexp.MustCompile(`\s+`)
)

// QueryVariants builds the search strings for a show: each title as is
// (Arabic first), without punctuation, without a season suffix and cut at a
// colon. Order is kept, duplicates and strings of two runes or fewer dropped.
func QueryVariants(title, titleArabic string) []string {
	var titles []string
	if t := strings.TrimSpace(titleArabic); t != "" {
		titles = append(titles, t)
	}
	if t := strings.TrimSpace(title); t != "" && t != strings.TrimSpace(titleArabic) {
		titles = append(titles, t)
	}

	var out []string
	add := func(v string) {
		v = strings.TrimSpace(spaces.ReplaceAllString(v, " "))
		if utf8.RuneCountInString(v) <= 2 {
			return
		}
		for _, o := range out {
			if o == v {
				return
			}
		}
		out = append(out, v)
	}

	for _, t := range titles {
		add(t)
		add(notQueryRune.ReplaceAllString(t, ""))
		add(seasonSuffix.ReplaceAllString(t, ""))
		if i := strings.Index(t, ":"); i > 0 {
			add(t[:i])
		}
	}
	return out
}
