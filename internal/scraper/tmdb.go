package scraper

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"
	"sync"

	"github.com/google/go-querystring/query"
	"github.com/sirupsen/logrus"

	"github.com/aicha-kelia/drama-aggregator/internal/fetch"
	"github.com/aicha-kelia/drama-aggregator/pkg/models"
	"github.com/aicha-kelia/drama-aggregator/pkg/utils"
)

// ErrUnknownCountry is returned for origin country codes the catalog does not carry.
var ErrUnknownCountry = errors.New("tmdb: unknown country code")

// maxPages is TMDB's own ceiling for discover pagination.
const maxPages = 500

var countryCodes = map[string]string{
	"KR": models.CountryKorean,
	"TR": models.CountryTurkish,
	"IN": models.CountryIndian,
	"CN": models.CountryChinese,
	"MA": models.CountryMoroccan,
	"JP": models.CountryJapanese,
	"TH": models.CountryThai,
}

// CountryForCode maps an ISO 3166-1 code to the catalog country.
func CountryForCode(code string) (string, error) {
	c, ok := countryCodes[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownCountry, code)
	}
	return c, nil
}

// TMDB talks to the v3 API: discover, detail, genre list and search.
type TMDB struct {
	client    *fetch.Client
	baseURL   string
	apiKey    string
	language  string
	imageBase string
	log       logrus.FieldLogger

	genresOnce sync.Once
	genres     map[int]string
}

func NewTMDB(cfg utils.ClientConfig, log logrus.FieldLogger) *TMDB {
	return &TMDB{
		client: fetch.New(fetch.Options{
			Timeout:        cfg.Timeout,
			RateLimitDelay: cfg.RateLimitDelay,
			UserAgent:      cfg.UserAgent,
		}),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:    cfg.APIKey,
		language:  cfg.Language,
		imageBase: strings.TrimRight(cfg.ImageBaseURL, "/"),
		log:       log.WithField("component", "tmdb"),
	}
}

type commonParams struct {
	APIKey   string `url:"api_key,omitempty"`
	Language string `url:"language,omitempty"`
}

type discoverParams struct {
	commonParams
	OriginCountry string `url:"with_origin_country"`
	AirDateGTE    string `url:"first_air_date.gte,omitempty"`
	AirDateLTE    string `url:"first_air_date.lte,omitempty"`
	SortBy        string `url:"sort_by"`
	Page          int    `url:"page"`
}

type searchParams struct {
	commonParams
	Query string `url:"query"`
	Year  int    `url:"first_air_date_year,omitempty"`
}

type tvResult struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	OriginalName string `json:"original_name"`
	Overview     string `json:"overview"`
	FirstAirDate string `json:"first_air_date"`
	GenreIDs     []int  `json:"genre_ids"`
	PosterPath   string `json:"poster_path"`
}

type pageResponse struct {
	Page       int        `json:"page"`
	TotalPages int        `json:"total_pages"`
	Results    []tvResult `json:"results"`
}

type tvDetail struct {
	NumberOfEpisodes int    `json:"number_of_episodes"`
	EpisodeRunTime   []int  `json:"episode_run_time"`
	Status           string `json:"status"`
	Genres           []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

type genreList struct {
	Genres []struct {
		ID   int    `json:"id"`
		Name string `json:"name"`
	} `json:"genres"`
}

func (t *TMDB) get(ctx context.Context, path string, params any, v any) error {
	if params == nil {
		params = commonParams{APIKey: t.apiKey, Language: t.language}
	}
	vals, err := query.Values(params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	return t.client.GetJSON(ctx, t.baseURL+path+"?"+vals.Encode(), v)
}

// DiscoverQuery selects a slice of the TMDB catalog.
type DiscoverQuery struct {
	CountryCode string
	YearFrom    int
	YearTo      int
	Pages       int // 0 means until TMDB runs out
}

// Discover returns a Source that pages through /discover/tv for q.
func (t *TMDB) Discover(q DiscoverQuery) (*DiscoverSource, error) {
	country, err := CountryForCode(q.CountryCode)
	if err != nil {
		return nil, err
	}
	if q.YearFrom > 0 && q.YearTo > 0 && q.YearFrom > q.YearTo {
		return nil, fmt.Errorf("tmdb: year range %d-%d is inverted", q.YearFrom, q.YearTo)
	}
	return &DiscoverSource{tmdb: t, query: q, country: country}, nil
}

// DiscoverSource is a lazy TMDB discover listing.
type DiscoverSource struct {
	tmdb    *TMDB
	query   DiscoverQuery
	country string
}

func (s *DiscoverSource) Name() string {
	return "tmdb:" + strings.ToUpper(s.query.CountryCode)
}

func (s *DiscoverSource) Records(ctx context.Context) iter.Seq2[models.ShowCanonical, error] {
	return func(yield func(models.ShowCanonical, error) bool) {
		t := s.tmdb
		pages := s.query.Pages
		if pages <= 0 || pages > maxPages {
			pages = maxPages
		}

		for page := 1; page <= pages; page++ {
			if ctx.Err() != nil {
				return
			}

			params := discoverParams{
				commonParams:  commonParams{APIKey: t.apiKey, Language: t.language},
				OriginCountry: strings.ToUpper(s.query.CountryCode),
				SortBy:        "popularity.desc",
				Page:          page,
			}
			if s.query.YearFrom > 0 {
				params.AirDateGTE = fmt.Sprintf("%d-01-01", s.query.YearFrom)
			}
			if s.query.YearTo > 0 {
				params.AirDateLTE = fmt.Sprintf("%d-12-31", s.query.YearTo)
			}

			var resp pageResponse
			if err := t.get(ctx, "/discover/tv", params, &resp); err != nil {
				t.log.WithError(err).WithField("page", page).Warn("discover failed, stopping")
				return
			}
			if len(resp.Results) == 0 {
				return
			}
			t.log.WithField("page", page).Infof("discover page with %d results", len(resp.Results))

			for _, r := range resp.Results {
				if !yield(t.toCanonical(ctx, r, s.country), nil) {
					return
				}
			}
			if resp.TotalPages > 0 && page >= resp.TotalPages {
				return
			}
		}
	}
}

// toCanonical maps a discover result and fills the detail fields. Detail
// failures leave those fields empty.
func (t *TMDB) toCanonical(ctx context.Context, r tvResult, country string) models.ShowCanonical {
	rec := models.ShowCanonical{
		Title:         strings.TrimSpace(r.Name),
		TitleOriginal: strings.TrimSpace(r.OriginalName),
		Description:   strings.TrimSpace(r.Overview),
		Country:       country,
		ReleaseYear:   parseYear(r.FirstAirDate),
		ExternalID:    externalID(r.ID),
		Source:        "tmdb",
	}
	if rec.Title == "" {
		rec.Title = rec.TitleOriginal
	}
	if r.PosterPath != "" && t.imageBase != "" {
		rec.PosterURL = t.imageBase + r.PosterPath
	}

	names := t.genreNames(ctx)
	for _, id := range r.GenreIDs {
		if n, ok := names[id]; ok {
			rec.Genres = appendIfMissing(rec.Genres, n)
		}
	}

	d, err := t.detail(ctx, r.ID)
	if err != nil {
		t.log.WithError(err).WithField("show", rec.Title).Warn("detail fetch failed")
		return rec
	}
	rec.TotalEpisodes = d.NumberOfEpisodes
	if len(d.EpisodeRunTime) > 0 && d.EpisodeRunTime[0] > 0 {
		rec.EpisodeDuration = d.EpisodeRunTime[0]
	}
	rec.Status = tmdbStatus(d.Status)
	return rec
}

func (t *TMDB) detail(ctx context.Context, id int) (*tvDetail, error) {
	var d tvDetail
	if err := t.get(ctx, "/tv/"+strconv.Itoa(id), nil, &d); err != nil {
		return nil, err
	}
	return &d, nil
}

// genreNames fetches /genre/tv/list once per adapter. A failed fetch leaves
// the table empty for the rest of the run.
func (t *TMDB) genreNames(ctx context.Context) map[int]string {
	t.genresOnce.Do(func() {
		t.genres = map[int]string{}
		var gl genreList
		if err := t.get(ctx, "/genre/tv/list", nil, &gl); err != nil {
			t.log.WithError(err).Warn("genre list fetch failed")
			return
		}
		for _, g := range gl.Genres {
			t.genres[g.ID] = g.Name
		}
	})
	return t.genres
}

// SearchShow returns the TMDB id of the best match for title, or 0 when
// nothing matches.
func (t *TMDB) SearchShow(ctx context.Context, title string, year *int) (int, error) {
	params := searchParams{
		commonParams: commonParams{APIKey: t.apiKey, Language: t.language},
		Query:        title,
	}
	if year != nil {
		params.Year = *year
	}

	var resp pageResponse
	if err := t.get(ctx, "/search/tv", params, &resp); err != nil {
		return 0, fmt.Errorf("search %q: %w", title, err)
	}
	if len(resp.Results) == 0 {
		return 0, nil
	}
	return resp.Results[0].ID, nil
}

// ShowGenres returns the genre names TMDB lists for a show.
func (t *TMDB) ShowGenres(ctx context.Context, id int) ([]string, error) {
	d, err := t.detail(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("detail %d: %w", id, err)
	}
	var out []string
	for _, g := range d.Genres {
		out = appendIfMissing(out, g.Name)
	}
	return out, nil
}

// GenresFor looks title up and returns its genres; nil when TMDB has no match.
func (t *TMDB) GenresFor(ctx context.Context, title string, year *int) ([]string, error) {
	id, err := t.SearchShow(ctx, title, year)
	if err != nil || id == 0 {
		return nil, err
	}
	return t.ShowGenres(ctx, id)
}

func externalID(id int) string {
	if id <= 0 {
		return ""
	}
	return "tmdb:" + strconv.Itoa(id)
}

// tmdbStatus maps Ended/Canceled to completed and anything else known to ongoing.
func tmdbStatus(s string) string {
	if strings.TrimSpace(s) == "" {
		return ""
	}
	if models.NormalizeStatus(s) == models.StatusCompleted {
		return models.StatusCompleted
	}
	return models.StatusOngoing
}
