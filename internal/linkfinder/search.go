package linkfinder

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/aicha-kelia/drama-aggregator/internal/fetch"
)

var (
	softNotFound = []string{"no results", "not found", "لم يتم العثور", "لا توجد نتائج", "404"}

	contentPath = regexp.MustCompile(`(?i)/(serie|series|drama|show|episode)/`)
	numericPath = regexp.MustCompile(`/\d{3,}`)
	skipPath    = regexp.MustCompile(`(?i)/(search|tag|tags|category|categories|author|page)(/|$)`)
)

// searchURL fills a {query} template.
func searchURL(template, q string) string {
	return strings.ReplaceAll(template, "{query}", strings.ReplaceAll(url.QueryEscape(q), "+", "%20"))
}

// isSoftNotFound reports whether a 200 page is really an empty result page.
func isSoftNotFound(doc *goquery.Document) bool {
	return containsAny(strings.ToLower(doc.Find("body").Text()), softNotFound)
}

// extractCandidates collects content-page links from a search result page:
// path-pattern matches first, numeric-id paths when those are too few.
// Only links on the site's own host are kept.
func extractCandidates(doc *goquery.Document, page *url.URL, site Site, want int) []string {
	var primary, numeric []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := absolute(page, href)
		if abs == "" {
			return
		}
		u, err := url.Parse(abs)
		if err != nil || !sameSite(u, site) || isListingURL(u) {
			return
		}
		switch {
		case contentPath.MatchString(u.Path):
			if !slices.Contains(primary, abs) {
				primary = append(primary, abs)
			}
		case numericPath.MatchString(u.Path):
			if !slices.Contains(numeric, abs) {
				numeric = append(numeric, abs)
			}
		}
	})

	if len(primary) >= want {
		return primary
	}
	for _, n := range numeric {
		if !slices.Contains(primary, n) {
			primary = append(primary, n)
		}
	}
	return primary
}

func sameSite(u *url.URL, site Site) bool {
	return site.host == "" || bareHost(u.Host) == site.host
}

// isListingURL excludes the homepage and search, tag, category, author and
// pagination pages.
func isListingURL(u *url.URL) bool {
	if strings.Trim(u.Path, "/") == "" {
		return true
	}
	if skipPath.MatchString(u.Path) {
		return true
	}
	q := u.Query()
	return q.Has("s") || q.Has("q") || q.Has("keyword")
}

// search runs every variant against every search URL of site until at least
// minCandidates have been found. The result is de-duplicated, in discovery
// order and capped at maxCandidates.
func search(ctx context.Context, client *fetch.Client, site Site, variants []string, minCandidates, maxCandidates int, logf func(string, ...any)) []string {
	var all []string
	for _, v := range variants {
		for _, tmpl := range site.SearchURLs {
			if ctx.Err() != nil {
				return all
			}
			su := searchURL(tmpl, v)
			page, err := client.Get(ctx, su)
			if err != nil {
				logf("search %s failed: %v", su, err)
				continue
			}
			doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
			if err != nil {
				continue
			}
			if isSoftNotFound(doc) {
				logf("search %s: no results page", su)
				continue
			}
			for _, c := range extractCandidates(doc, page.URL, site, minCandidates) {
				if !slices.Contains(all, c) {
					all = append(all, c)
				}
			}
			if len(all) >= minCandidates {
				return capList(all, maxCandidates)
			}
		}
	}
	return capList(all, maxCandidates)
}

func capList(s []string, n int) []string {
	if n > 0 && len(s) > n {
		return s[:n]
	}
	return s
}
