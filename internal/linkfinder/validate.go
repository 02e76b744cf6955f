package linkfinder

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
)

var (
	episodeHref    = regexp.MustCompile(`(?i)(episode|ep-|ep_|الحلقة|حلقة-|حلقة_)`)
	structureClass = regexp.MustCompile(`(?i)(episode|server|watch|player)`)

	episodeWords = []string{"حلقة", "episode", "ep.", "ep "}
	watchWords   = []string{"مشاهدة", "watch", "play", "video", "stream"}
	genreWords   = []string{"مسلسل", "drama", "series"}
)

// Verdict is the outcome of validating one candidate page.
type Verdict struct {
	Valid        bool
	Score        int
	EpisodeLinks int
	Structure    bool
	Reason       string // set when rejected
}

// Score weighs how strongly a page's raw HTML points at the show.
func Score(html, title, titleArabic string) int {
	lower := strings.ToLower(html)
	score := 0

	if t := strings.ToLower(strings.TrimSpace(title)); utf8.RuneCountInString(t) > 3 && strings.Contains(lower, t) {
		score += 2
	}
	if t := strings.TrimSpace(titleArabic); utf8.RuneCountInString(t) > 2 && strings.Contains(html, t) {
		score += 2
	}
	if containsAny(lower, episodeWords) {
		score++
	}
	if containsAny(lower, watchWords) {
		score++
	}
	if containsAny(lower, genreWords) {
		score++
	}
	return score
}

// countEpisodeLinks counts distinct hrefs that look like episode pages.
func countEpisodeLinks(doc *goquery.Document) int {
	seen := map[string]struct{}{}
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		decoded, err := url.PathUnescape(href)
		if err != nil {
			decoded = href
		}
		if episodeHref.MatchString(href) || episodeHref.MatchString(decoded) {
			seen[href] = struct{}{}
		}
	})
	return len(seen)
}

// hasStructure reports whether a list-like block is labelled as an episode,
// server or player list.
func hasStructure(doc *goquery.Document) bool {
	found := false
	doc.Find("div, ul, section, table").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		if structureClass.MatchString(class) || structureClass.MatchString(id) {
			found = true
			return false
		}
		return true
	})
	return found
}

// Validate applies the acceptance predicate: score at or above minScore and
// either three episode links or an episode/server block.
func Validate(html string, doc *goquery.Document, title, titleArabic string, minScore int) Verdict {
	v := Verdict{
		Score:        Score(html, title, titleArabic),
		EpisodeLinks: countEpisodeLinks(doc),
		Structure:    hasStructure(doc),
	}
	switch {
	case v.Score < minScore:
		v.Reason = fmt.Sprintf("title mismatch (score %d)", v.Score)
	case v.EpisodeLinks < 3 && !v.Structure:
		v.Reason = "no episode structure"
	default:
		v.Valid = true
	}
	return v
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}
