package scraper

import (
	"bytes"
	"context"
	"fmt"
	"iter"
	"net/url"
	"os"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/aicha-kelia/drama-aggregator/internal/fetch"
	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

// Catalog describes an HTML catalog site: listing pages per country that
// link to one detail page per show.
type Catalog struct {
	Name        string     `yaml:"name"`
	Language    string     `yaml:"language"`
	Categories  []Category `yaml:"categories"`
	PageURL     string     `yaml:"page_url"` // {url} and {page}; used from page 2 on
	MaxPages    int        `yaml:"max_pages"`
	ItemPattern string     `yaml:"item_pattern"`
	Selectors   Selectors  `yaml:"selectors"`
	YearLabel   string     `yaml:"year_label"`
	EpisodeWord string     `yaml:"episodes_label"`
	OngoingWord string     `yaml:"ongoing_marker"`
	Disabled    bool       `yaml:"disabled"`
}

type Category struct {
	Country string `yaml:"country"`
	URL     string `yaml:"url"`
}

type Selectors struct {
	Title         string `yaml:"title"`
	TitleOriginal string `yaml:"title_original"`
	Description   string `yaml:"description"`
	Poster        string `yaml:"poster"`
	Genres        string `yaml:"genres"`
	EpisodeLinks  string `yaml:"episode_links"`
}

// LoadCatalogs reads the catalogs section of a sites file.
func LoadCatalogs(path string) ([]Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalogs: %w", err)
	}
	var doc struct {
		Catalogs []Catalog `yaml:"catalogs"`
	}
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, fmt.Errorf("parse catalogs %s: %w", path, err)
	}
	for i := range doc.Catalogs {
		c := &doc.Catalogs[i]
		if c.Name == "" || c.ItemPattern == "" {
			return nil, fmt.Errorf("catalog %d: name and item_pattern are required", i+1)
		}
		if _, err := regexp.Compile(c.ItemPattern); err != nil {
			return nil, fmt.Errorf("catalog %s: item_pattern: %w", c.Name, err)
		}
		for j := range c.Categories {
			country := models.NormalizeCountry(c.Categories[j].Country)
			if country == "" {
				return nil, fmt.Errorf("catalog %s: unknown country %q", c.Name, c.Categories[j].Country)
			}
			c.Categories[j].Country = country
		}
		if c.Selectors.Title == "" {
			c.Selectors.Title = "h1"
		}
		if c.MaxPages <= 0 {
			c.MaxPages = 1
		}
	}
	return doc.Catalogs, nil
}

// CatalogSource scrapes one Catalog.
type CatalogSource struct {
	Catalog Catalog
	Years   []int // when set, records outside these years are dropped
	client  *fetch.Client
	log     logrus.FieldLogger
	itemRe  *regexp.Regexp
}

func NewCatalogSource(c Catalog, client *fetch.Client, log logrus.FieldLogger) *CatalogSource {
	if c.Selectors.Title == "" {
		c.Selectors.Title = "h1"
	}
	return &CatalogSource{
		Catalog: c,
		client:  client,
		log:     log.WithFields(logrus.Fields{"component": "catalog", "site": c.Name}),
		itemRe:  regexp.MustCompile(c.ItemPattern),
	}
}

func (s *CatalogSource) Name() string { return "catalog:" + s.Catalog.Name }

func (s *CatalogSource) Records(ctx context.Context) iter.Seq2[models.ShowCanonical, error] {
	return func(yield func(models.ShowCanonical, error) bool) {
		seen := map[string]struct{}{}
		for _, cat := range s.Catalog.Categories {
			for page := 1; page <= s.Catalog.MaxPages; page++ {
				if ctx.Err() != nil {
					return
				}
				items, err := s.listPage(ctx, cat, page)
				if err != nil {
					s.log.WithError(err).WithField("page", page).Warn("listing failed, next category")
					break
				}
				fresh := items[:0]
				for _, u := range items {
					if _, ok := seen[u]; !ok {
						seen[u] = struct{}{}
						fresh = append(fresh, u)
					}
				}
				if len(fresh) == 0 {
					break
				}
				s.log.WithField("page", page).Infof("%d shows to check", len(fresh))

				for _, u := range fresh {
					rec, keep, err := s.detail(ctx, u, cat.Country)
					if err != nil {
						if !yield(rec, err) {
							return
						}
						continue
					}
					if !keep {
						continue
					}
					if !yield(rec, nil) {
						return
					}
				}
			}
		}
	}
}

func (s *CatalogSource) listPage(ctx context.Context, cat Category, page int) ([]string, error) {
	pageURL := cat.URL
	if page > 1 {
		if s.Catalog.PageURL == "" {
			return nil, nil
		}
		pageURL = strings.NewReplacer("{url}", cat.URL, "{page}", strconv.Itoa(page)).Replace(s.Catalog.PageURL)
	}

	p, err := s.client.Get(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	var out []string
	doc.Find("a[href]").Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		abs := resolve(p.URL, href)
		if abs == "" {
			return
		}
		u, err := url.Parse(abs)
		if err != nil || u.Host != p.URL.Host || !s.itemRe.MatchString(u.Path) {
			return
		}
		if !slices.Contains(out, abs) {
			out = append(out, abs)
		}
	})
	return out, nil
}

const upcomingMarker = "قادم"

// detail scrapes one show page. keep is false for pages filtered out by year.
func (s *CatalogSource) detail(ctx context.Context, pageURL, country string) (rec models.ShowCanonical, keep bool, err error) {
	rec = models.ShowCanonical{Country: country, Source: s.Name()}

	p, err := s.client.Get(ctx, pageURL)
	if err != nil {
		rec.Title = slug(pageURL)
		return rec, false, fmt.Errorf("%s: %w", pageURL, err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(p.Body))
	if err != nil {
		rec.Title = slug(pageURL)
		return rec, false, fmt.Errorf("%s: parse: %w", pageURL, err)
	}
	sel := s.Catalog.Selectors
	text := doc.Find("body").Text()

	title := strings.TrimSpace(doc.Find(sel.Title).First().Text())
	if title == "" {
		title, _ = doc.Find(`meta[property="og:title"]`).Attr("content")
		title = strings.TrimSpace(title)
	}
	if title == "" {
		rec.Title = slug(pageURL)
		return rec, false, fmt.Errorf("%s: no title found", pageURL)
	}
	if hasArabic(title) {
		rec.TitleArabic = title
	} else {
		rec.Title = title
	}
	if sel.TitleOriginal != "" {
		rec.TitleOriginal = strings.TrimSpace(doc.Find(sel.TitleOriginal).First().Text())
	}
	if rec.Title == "" && rec.TitleOriginal != "" && !hasArabic(rec.TitleOriginal) {
		rec.Title = rec.TitleOriginal
	}

	rec.ReleaseYear = labelledYear(text, s.Catalog.YearLabel)
	if len(s.Years) > 0 && (rec.ReleaseYear == nil || !slices.Contains(s.Years, *rec.ReleaseYear)) {
		s.log.WithField("show", rec.DisplayTitle()).Debug("outside year filter, skipped")
		return rec, false, nil
	}

	desc := s.description(doc)
	if hasArabic(desc) {
		rec.DescriptionArabic = desc
	} else {
		rec.Description = desc
	}

	if sel.Poster != "" {
		img := doc.Find(sel.Poster).First()
		src, ok := img.Attr("data-src")
		if !ok || src == "" {
			src, _ = img.Attr("src")
		}
		rec.PosterURL = resolve(p.URL, src)
	}
	if rec.PosterURL == "" {
		og, _ := doc.Find(`meta[property="og:image"]`).Attr("content")
		rec.PosterURL = resolve(p.URL, og)
	}

	if sel.Genres != "" {
		doc.Find(sel.Genres).EachWithBreak(func(_ int, g *goquery.Selection) bool {
			if name := strings.TrimSpace(g.Text()); name != "" {
				rec.Genres = appendIfMissing(rec.Genres, name)
			}
			return len(rec.Genres) < 5
		})
	}

	rec.TotalEpisodes = labelledInt(text, s.Catalog.EpisodeWord)
	if rec.TotalEpisodes == 0 && sel.EpisodeLinks != "" {
		var eps []string
		doc.Find(sel.EpisodeLinks).Each(func(_ int, a *goquery.Selection) {
			href, _ := a.Attr("href")
			if abs := resolve(p.URL, href); abs != "" && !slices.Contains(eps, abs) {
				eps = append(eps, abs)
			}
		})
		rec.TotalEpisodes = len(eps)
	}

	switch {
	case s.Catalog.OngoingWord != "" && strings.Contains(text, s.Catalog.OngoingWord):
		rec.Status = models.StatusOngoing
	case strings.Contains(text, upcomingMarker):
		rec.Status = ""
	default:
		rec.Status = models.StatusCompleted
	}

	rec.WatchLinks = []models.WatchLinkCanonical{{
		Site:              s.Catalog.Name,
		URL:               p.URL.String(),
		Language:          models.NormalizeLanguage(s.Catalog.Language),
		EpisodesAvailable: rec.TotalEpisodes,
	}}
	return rec, true, nil
}

// description picks the first paragraph long enough to be a synopsis.
func (s *CatalogSource) description(doc *goquery.Document) string {
	selector := s.Catalog.Selectors.Description
	if selector == "" {
		selector = "p"
	}
	var out string
	doc.Find(selector).EachWithBreak(func(_ int, p *goquery.Selection) bool {
		t := strings.TrimSpace(p.Text())
		if utf8.RuneCountInString(t) > 50 && !strings.Contains(t, "الاسم") && !strings.Contains(t, "البلد") {
			out = t
			return false
		}
		return true
	})
	if out == "" {
		out, _ = doc.Find(`meta[name="description"]`).Attr("content")
		out = strings.TrimSpace(out)
	}
	return out
}

func labelledYear(text, label string) *int {
	if label != "" {
		re := regexp.MustCompile(regexp.QuoteMeta(label) + `\s*:?\s*(\d{4})`)
		if m := re.FindStringSubmatch(text); m != nil {
			if y := parseYear(m[1]); y != nil {
				return y
			}
		}
	}
	return parseYear(text)
}

func labelledInt(text, label string) int {
	if label == "" {
		return 0
	}
	re := regexp.MustCompile(regexp.QuoteMeta(label) + `\s*:?\s*(\d+)`)
	if m := re.FindStringSubmatch(text); m != nil {
		return parseInt(m[1])
	}
	return 0
}

// resolve makes href absolute against base; "" for unusable hrefs.
func resolve(base *url.URL, href string) string {
	href = strings.TrimSpace(href)
	if href == "" || strings.HasPrefix(href, "#") || strings.HasPrefix(href, "javascript:") || strings.HasPrefix(href, "data:") {
		return ""
	}
	u, err := url.Parse(href)
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

func slug(pageURL string) string {
	u, err := url.Parse(pageURL)
	if err != nil {
		return pageURL
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if s, err := url.PathUnescape(parts[len(parts)-1]); err == nil && s != "" {
		return s
	}
	return pageURL
}
