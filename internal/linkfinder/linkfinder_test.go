package linkfinder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicha-kelia/drama-aggregator/internal/fetch"
	"github.com/aicha-kelia/drama-aggregator/internal/logging"
	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

type memLinks struct {
	mu      sync.Mutex
	links   map[string]models.WatchLink
	deletes int
	upserts int
	failOn  error
}

func newMemLinks() *memLinks { return &memLinks{links: map[string]models.WatchLink{}} }

func linkKey(showID int64, site string) string { return fmt.Sprintf("%d|%s", showID, site) }

func (m *memLinks) GetBySite(_ context.Context, showID int64, site string) (*models.WatchLink, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l, ok := m.links[linkKey(showID, site)]
	if !ok {
		return nil, nil
	}
	return &l, nil
}

func (m *memLinks) Upsert(_ context.Context, l models.WatchLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failOn != nil {
		return m.failOn
	}
	m.upserts++
	m.links[linkKey(l.ShowID, l.SiteName)] = l
	return nil
}

func (m *memLinks) Delete(_ context.Context, showID int64, site string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := linkKey(showID, site)
	_, ok := m.links[k]
	delete(m.links, k)
	m.deletes++
	return ok, nil
}

type memPosters struct {
	set map[int64]string
}

func (m *memPosters) SetPosterURLIfEmpty(_ context.Context, id int64, u string) (bool, error) {
	if m.set == nil {
		m.set = map[int64]string{}
	}
	if _, ok := m.set[id]; ok {
		return false, nil
	}
	m.set[id] = u
	return true, nil
}

const vincenzoPage = `<html><head>
<title>مشاهدة مسلسل Vincenzo</title>
<meta property="og:image" content="/img/vincenzo.jpg">
</head><body>
<h1>Vincenzo</h1>
<p>Korean drama, 20 episodes, watch online.</p>
<div class="episodes-list">
<a href="/episode/vincenzo-1">1</a>
<a href="/episode/vincenzo-2">2</a>
<a href="/episode/vincenzo-3">3</a>
</div>
</body></html>`

const searchPage = `<html><body>
<a href="/">home</a>
<a href="/tag/korean">korean</a>
<a href="/series/vincenzo">Vincenzo</a>
<a href="https://elsewhere.example/series/vincenzo">mirror</a>
</body></html>`

type fakeSite struct {
	srv      *httptest.Server
	searches int
	mu       sync.Mutex
}

func newFakeSite(t *testing.T, pages map[string]string) *fakeSite {
	t.Helper()
	fs := &fakeSite{}
	mux := http.NewServeMux()
	for path, body := range pages {
		body := body
		mux.HandleFunc(path, func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path == "/search" {
				fs.mu.Lock()
				fs.searches++
				fs.mu.Unlock()
			}
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			fmt.Fprint(w, body)
		})
	}
	fs.srv = httptest.NewServer(mux)
	t.Cleanup(fs.srv.Close)
	return fs
}

func (f *fakeSite) site(t *testing.T, name string, countries ...string) Site {
	t.Helper()
	s := Site{
		Name:       name,
		BaseURL:    f.srv.URL,
		SearchURLs: []string{f.srv.URL + "/search?q={query}"},
		Countries:  countries,
	}
	require.NoError(t, s.init())
	return s
}

func newEngine(sites []Site, links LinkStore, posters PosterStore, opts Options) *Engine {
	return NewEngine(fetch.New(fetch.Options{}), sites, links, posters, opts, logging.Discard())
}

var vincenzo = models.Show{ID: 1, Title: "Vincenzo", TitleArabic: "فينتشنزو", Country: models.CountryKorean, TotalEpisodes: 20}

func TestDiscoverSavesValidatedLink(t *testing.T) {
	fs := newFakeSite(t, map[string]string{
		"/search":          searchPage,
		"/series/vincenzo": vincenzoPage,
	})
	links, posters := newMemLinks(), &memPosters{}
	e := newEngine([]Site{fs.site(t, "Akwam", "korean")}, links, posters, Options{})

	res := e.Discover(context.Background(), vincenzo)
	require.Len(t, res.Sites, 1)
	sr := res.Sites[0]
	assert.Equal(t, Saved, sr.State)
	assert.Equal(t, []State{Searching, CandidatesFound, Validating, Validated, Saved}, sr.Trace)
	assert.Equal(t, []string{fs.srv.URL + "/series/vincenzo"}, sr.Candidates)
	assert.Equal(t, 20, sr.Episodes)

	l, _ := links.GetBySite(context.Background(), 1, "Akwam")
	require.NotNil(t, l)
	assert.Equal(t, fs.srv.URL+"/series/vincenzo", l.URL)
	assert.Equal(t, models.LanguageArabic, l.Language)
	assert.Equal(t, fs.srv.URL+"/img/vincenzo.jpg", posters.set[1])
	assert.Equal(t, fs.srv.URL+"/img/vincenzo.jpg", res.PosterSet)
}

func TestDiscoverSoftNotFoundYieldsNoCandidates(t *testing.T) {
	fs := newFakeSite(t, map[string]string{
		"/search": `<html><body><div class="results">لا توجد نتائج</div>
<a href="/series/something-else">x</a></body></html>`,
	})
	links := newMemLinks()
	e := newEngine([]Site{fs.site(t, "Akwam")}, links, &memPosters{}, Options{})

	res := e.Discover(context.Background(), vincenzo)
	require.Len(t, res.Sites, 1)
	assert.Equal(t, NoCandidates, res.Sites[0].State)
	assert.Empty(t, res.Sites[0].Candidates)
	assert.Empty(t, links.links)
	assert.Zero(t, links.upserts)
	// every variant was tried before giving up
	assert.Equal(t, len(QueryVariants(vincenzo.Title, vincenzo.TitleArabic)), fs.searches)
}

func TestDiscoverReplacesStaleLink(t *testing.T) {
	fs := newFakeSite(t, map[string]string{
		"/search":          searchPage,
		"/series/vincenzo": vincenzoPage,
	})
	links := newMemLinks()
	stale := fs.srv.URL + "/series/removed-page"
	links.links[linkKey(1, "Akwam")] = models.WatchLink{ShowID: 1, SiteName: "Akwam", URL: stale}

	e := newEngine([]Site{fs.site(t, "Akwam")}, links, &memPosters{}, Options{})
	sr := e.Discover(context.Background(), vincenzo).Sites[0]

	assert.Equal(t, Saved, sr.State)
	assert.Equal(t, stale, sr.Removed)
	assert.Equal(t, 1, links.deletes)
	require.Len(t, links.links, 1)
	assert.Equal(t, fs.srv.URL+"/series/vincenzo", links.links[linkKey(1, "Akwam")].URL)
}

func TestDiscoverKeepsValidLink(t *testing.T) {
	fs := newFakeSite(t, map[string]string{
		"/search":          searchPage,
		"/series/vincenzo": vincenzoPage,
	})
	links := newMemLinks()
	links.links[linkKey(1, "Akwam")] = models.WatchLink{ShowID: 1, SiteName: "Akwam", URL: fs.srv.URL + "/series/vincenzo"}

	e := newEngine([]Site{fs.site(t, "Akwam")}, links, &memPosters{}, Options{})
	sr := e.Discover(context.Background(), vincenzo).Sites[0]

	assert.Equal(t, Kept, sr.State)
	assert.Zero(t, fs.searches)
	assert.Zero(t, links.deletes)
	assert.Zero(t, links.upserts)
}

func TestDiscoverNeverSavesWeakPages(t *testing.T) {
	tests := []struct {
		name   string
		page   string
		reason string
	}{
		{
			name: "structure without title",
			page: `<html><body><h1>Another show</h1>
<div class="episodes"><a href="/episode/a-1">1</a><a href="/episode/a-2">2</a><a href="/episode/a-3">3</a></div>
</body></html>`,
			reason: "title mismatch",
		},
		{
			name:   "title without structure",
			page:   `<html><body><h1>Vincenzo</h1><p>Watch the drama online.</p></body></html>`,
			reason: "no episode structure",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := newFakeSite(t, map[string]string{
				"/search":          searchPage,
				"/series/vincenzo": tc.page,
			})
			links := newMemLinks()
			e := newEngine([]Site{fs.site(t, "Akwam")}, links, &memPosters{}, Options{})

			sr := e.Discover(context.Background(), vincenzo).Sites[0]
			assert.Equal(t, AllCandidatesRejected, sr.State)
			require.Len(t, sr.Rejections, 1)
			assert.Contains(t, sr.Rejections[0].Reason, tc.reason)
			assert.Empty(t, links.links)
		})
	}
}

func TestDiscoverSkipsSitesForOtherCountries(t *testing.T) {
	fs := newFakeSite(t, map[string]string{"/search": searchPage})
	e := newEngine([]Site{fs.site(t, "Turkish3sk", "turkish")}, newMemLinks(), &memPosters{}, Options{})

	res := e.Discover(context.Background(), vincenzo)
	require.Len(t, res.Sites, 1)
	assert.Equal(t, SiteSkipped, res.Sites[0].State)
	assert.Zero(t, fs.searches)
	assert.Equal(t, 1, res.Count(SiteSkipped))
}

func TestDiscoverDryRunWritesNothing(t *testing.T) {
	fs := newFakeSite(t, map[string]string{
		"/search":          searchPage,
		"/series/vincenzo": vincenzoPage,
	})
	links, posters := newMemLinks(), &memPosters{}
	stale := fs.srv.URL + "/series/removed-page"
	links.links[linkKey(1, "Akwam")] = models.WatchLink{ShowID: 1, SiteName: "Akwam", URL: stale}

	e := newEngine([]Site{fs.site(t, "Akwam")}, links, posters, Options{DryRun: true})
	res := e.Discover(context.Background(), vincenzo)

	assert.Equal(t, Saved, res.Sites[0].State)
	assert.Zero(t, links.deletes)
	assert.Zero(t, links.upserts)
	assert.Equal(t, stale, links.links[linkKey(1, "Akwam")].URL)
	assert.Empty(t, posters.set)
	assert.NotEmpty(t, res.PosterSet)
}

func TestDiscoverStoreFailure(t *testing.T) {
	fs := newFakeSite(t, map[string]string{
		"/search":          searchPage,
		"/series/vincenzo": vincenzoPage,
	})
	links := newMemLinks()
	links.failOn = errors.New("disk full")
	show := vincenzo
	show.PosterURL = "https://image.tmdb.org/t/p/w500/v.jpg"

	posters := &memPosters{}
	e := newEngine([]Site{fs.site(t, "Akwam")}, links, posters, Options{})
	res := e.Discover(context.Background(), show)

	assert.Equal(t, Failed, res.Sites[0].State)
	assert.EqualError(t, res.Sites[0].Err, "disk full")
	assert.Empty(t, posters.set)
}

func TestDiscoverKeepsExistingPoster(t *testing.T) {
	fs := newFakeSite(t, map[string]string{
		"/search":          searchPage,
		"/series/vincenzo": vincenzoPage,
	})
	show := vincenzo
	show.PosterURL = "https://image.tmdb.org/t/p/w500/v.jpg"
	posters := &memPosters{}
	e := newEngine([]Site{fs.site(t, "Akwam")}, newMemLinks(), posters, Options{})

	res := e.Discover(context.Background(), show)
	assert.Equal(t, Saved, res.Sites[0].State)
	assert.Empty(t, posters.set)
	assert.Empty(t, res.PosterSet)
}

func TestQueryVariants(t *testing.T) {
	assert.Equal(t, []string{"فينتشنزو", "Vincenzo"}, QueryVariants("Vincenzo", "فينتشنزو"))
	assert.Equal(t,
		[]string{"Kuruluş Osman: Season 2", "Kuruluş Osman Season 2", "Kuruluş Osman:", "Kuruluş Osman"},
		QueryVariants("Kuruluş Osman: Season 2", ""))
	assert.Equal(t, []string{"رحمة"}, QueryVariants("", "رحمة"))
	assert.Empty(t, QueryVariants("Go", ""))
}

func TestScore(t *testing.T) {
	html := `<h1>Vincenzo</h1><p>watch every episode of the drama</p>`
	assert.Equal(t, 5, Score(html, "Vincenzo", ""))
	assert.Equal(t, 3, Score(html, "Other", ""))
	assert.Equal(t, 3, Score(`<h1>مسلسل رحمة</h1>`, "", "رحمة"))
	// titles of three runes or fewer never count
	assert.Equal(t, 0, Score(`<p>abc</p>`, "abc", ""))
}

func doc(t *testing.T, html string) *goquery.Document {
	t.Helper()
	d, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	require.NoError(t, err)
	return d
}

func TestValidate(t *testing.T) {
	links := `<a href="/ep-1">1</a><a href="/ep-2">2</a><a href="/%D8%A7%D9%84%D8%AD%D9%84%D9%82%D8%A9-3">3</a>`
	html := `<h1>Vincenzo</h1> drama ` + links
	v := Validate(html, doc(t, html), "Vincenzo", "", 3)
	assert.True(t, v.Valid)
	assert.Equal(t, 3, v.EpisodeLinks)
	assert.False(t, v.Structure)

	html = `<h1>Vincenzo</h1> drama <ul id="servers"></ul>`
	v = Validate(html, doc(t, html), "Vincenzo", "", 3)
	assert.True(t, v.Valid)
	assert.True(t, v.Structure)

	html = `<h1>Vincenzo</h1> drama`
	v = Validate(html, doc(t, html), "Vincenzo", "", 3)
	assert.False(t, v.Valid)
	assert.Equal(t, "no episode structure", v.Reason)

	v = Validate(html, doc(t, html), "Vincenzo", "", 4)
	assert.False(t, v.Valid)
	assert.Equal(t, "title mismatch (score 3)", v.Reason)
}

func TestExtractPoster(t *testing.T) {
	base, _ := url.Parse("https://akwam.example/series/1")
	tests := []struct {
		name string
		html string
		want string
	}{
		{"og", `<head><meta property="og:image" content="/p.jpg"><meta name="twitter:image" content="/t.jpg"></head>`, "https://akwam.example/p.jpg"},
		{"twitter", `<head><meta name="twitter:image" content="https://cdn.example/t.jpg"></head>`, "https://cdn.example/t.jpg"},
		{"class", `<img src="/logo.png"><img class="drama-poster" data-src="/x.jpg">`, "https://akwam.example/x.jpg"},
		{"src", `<img src="/logo.png"><img src="/uploads/cover-1.jpg">`, "https://akwam.example/uploads/cover-1.jpg"},
		{"none", `<img src="/logo.png">`, ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractPoster(doc(t, tc.html), base))
		})
	}
}

func TestExtractEpisodes(t *testing.T) {
	assert.Equal(t, 16, ExtractEpisodes("مسلسل كامل 16 حلقة"))
	assert.Equal(t, 24, ExtractEpisodes("Total: 24 Episodes"))
	assert.Equal(t, 0, ExtractEpisodes("nothing here"))
}

func TestParseSites(t *testing.T) {
	sites, err := ParseSites([]byte(`
sites:
  - name: Akwam
    base_url: https://www.akwam.example
    search_urls: ["https://akwam.example/search?q={query}"]
    countries: [Korea, turkish]
  - name: Shahid4u
    base_url: https://shahid4u.example
    search_urls: ["https://shahid4u.example/?s={query}"]
    language: en
    disabled: true
`))
	require.NoError(t, err)
	require.Len(t, sites, 2)
	assert.Equal(t, []string{"korean", "turkish"}, sites[0].Countries)
	assert.Equal(t, "akwam.example", sites[0].host)
	assert.Equal(t, models.LanguageArabic, sites[0].Language)
	assert.Equal(t, models.LanguageEnglish, sites[1].Language)
	assert.True(t, sites[1].Hosts("moroccan"))
	assert.False(t, sites[0].Hosts("moroccan"))
	assert.True(t, sites[0].Hosts(""))

	assert.Len(t, FilterSites(sites, "akwam"), 1)
	assert.Len(t, FilterSites(sites), 2)

	bad := []string{
		"sites:\n  - name: A\n    base_url: https://a.example\n    search_urls: [\"https://a.example/search\"]\n",
		"sites:\n  - name: A\n    base_url: https://a.example\n    search_urls: [\"https://a.example/?s={query}\"]\n    countries: [mars]\n",
		"sites:\n  - name: A\n    base_url: https://a.example\n    search_urls: [\"https://a.example/?s={query}\"]\n  - name: A\n    base_url: https://b.example\n    search_urls: [\"https://b.example/?s={query}\"]\n",
		"sites:\n  - name: A\n    base_url: nope\n    search_urls: [\"https://a.example/?s={query}\"]\n",
	}
	for _, b := range bad {
		_, err := ParseSites([]byte(b))
		assert.Error(t, err)
	}
}

func TestExtractCandidates(t *testing.T) {
	site := Site{Name: "Akwam", BaseURL: "https://akwam.example", SearchURLs: []string{"https://akwam.example/?s={query}"}}
	require.NoError(t, site.init())
	page, _ := url.Parse("https://akwam.example/?s=vincenzo")
	d := doc(t, `
<a href="/">home</a>
<a href="/series/vincenzo">a</a>
<a href="/series/vincenzo#top">dup</a>
<a href="https://www.akwam.example/drama/vincenzo-2">b</a>
<a href="/tag/korean">tag</a>
<a href="/page/2">next</a>
<a href="/?s=vincenzo">again</a>
<a href="https://other.example/series/vincenzo">other</a>
<a href="/watch/12345">numeric</a>
<a href="javascript:void(0)">js</a>`)

	assert.Equal(t, []string{
		"https://akwam.example/series/vincenzo",
		"https://www.akwam.example/drama/vincenzo-2",
		"https://akwam.example/watch/12345",
	}, extractCandidates(d, page, site, 5))
	assert.Equal(t, []string{
		"https://akwam.example/series/vincenzo",
		"https://www.akwam.example/drama/vincenzo-2",
	}, extractCandidates(d, page, site, 2))
}

func TestSearchURL(t *testing.T) {
	assert.Equal(t, "https://a.example/?s=Kurulu%C5%9F%20Osman", searchURL("https://a.example/?s={query}", "Kuruluş Osman"))
}
