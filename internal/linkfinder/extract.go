package linkfinder

import (
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	posterClass   = regexp.MustCompile(`(?i)(poster|thumbnail|drama|serie|cover|movie-image)`)
	posterSrc     = regexp.MustCompile(`(?i)(poster|cover|thumb|image)`)
	arabicEpisode = regexp.MustCompile(`(\d+)\s*(حلقة|الحلقة)`)
	latinEpisode  = regexp.MustCompile(`(?i)(\d+)\s*(episodes?|eps)\b`)
)

// ExtractPoster finds the poster of a validated page, in order: og:image,
// twitter:image, an img with a poster-like class, an img whose URL looks
// like a poster. The result is absolute.
func ExtractPoster(doc *goquery.Document, base *url.URL) string {
	for _, sel := range []string{
		`meta[property="og:image"]`,
		`meta[property="twitter:image"]`,
		`meta[name="twitter:image"]`,
	} {
		if c, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(c) != "" {
			if u := absolute(base, c); u != "" {
				return u
			}
		}
	}

	var out string
	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		class, _ := img.Attr("class")
		if posterClass.MatchString(class) {
			out = absolute(base, imgSrc(img))
		}
		return out == ""
	})
	if out != "" {
		return out
	}

	doc.Find("img").EachWithBreak(func(_ int, img *goquery.Selection) bool {
		if src := imgSrc(img); posterSrc.MatchString(src) {
			out = absolute(base, src)
		}
		return out == ""
	})
	return out
}

func imgSrc(img *goquery.Selection) string {
	for _, attr := range []string{"src", "data-src", "data-original"} {
		if v, ok := img.Attr(attr); ok && strings.TrimSpace(v) != "" && !strings.HasPrefix(v, "data:") {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// ExtractEpisodes reads an episode count like "16 حلقة" or "16 episodes"
// from page text; 0 when none is found.
func ExtractEpisodes(text string) int {
	for _, re := range []*regexp.Regexp{arabicEpisode, latinEpisode} {
		if m := re.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
				return n
			}
		}
	}
	return 0
}

// absolute resolves ref against base and keeps only http(s) URLs.
func absolute(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || strings.HasPrefix(ref, "#") || strings.HasPrefix(ref, "javascript:") {
		return ""
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ""
	}
	if base != nil {
		u = base.ResolveReference(u)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}
