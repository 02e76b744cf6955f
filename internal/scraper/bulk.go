package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"iter"
	"strings"

	"github.com/spf13/afero"

	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

// BulkFile is the on-disk import/export format: {"dramas": [...]}.
type BulkFile struct {
	Dramas []BulkDrama `json:"dramas"`
}

type BulkDrama struct {
	Title             string     `json:"title"`
	TitleArabic       string     `json:"title_arabic"`
	TitleOriginal     string     `json:"title_original,omitempty"`
	Description       string     `json:"description,omitempty"`
	DescriptionArabic string     `json:"description_arabic,omitempty"`
	Country           string     `json:"country,omitempty"`
	TotalEpisodes     FlexInt    `json:"total_episodes"`
	EpisodeDuration   FlexInt    `json:"episode_duration,omitempty"`
	ReleaseYear       FlexInt    `json:"release_year,omitempty"`
	Status            string     `json:"status,omitempty"`
	ThumbnailURL      string     `json:"thumbnail_url,omitempty"`
	ExternalID        string     `json:"external_id,omitempty"`
	Genres            []string   `json:"genres"`
	WatchLinks        []BulkLink `json:"watch_links,omitempty"`
}

type BulkLink struct {
	WebsiteName       string  `json:"website_name"`
	URL               string  `json:"url"`
	Language          string  `json:"language"`
	EpisodesAvailable FlexInt `json:"episodes_available"`
}

// FlexInt accepts a JSON number, a numeric string or null.
type FlexInt int

func (f *FlexInt) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*f = 0
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = FlexInt(parseInt(s))
		return nil
	}
	var n float64
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("flexint: %w", err)
	}
	*f = FlexInt(int(n))
	return nil
}

func (d BulkDrama) canonical() models.ShowCanonical {
	rec := models.ShowCanonical{
		Title:             strings.TrimSpace(d.Title),
		TitleArabic:       strings.TrimSpace(d.TitleArabic),
		TitleOriginal:     strings.TrimSpace(d.TitleOriginal),
		Description:       strings.TrimSpace(d.Description),
		DescriptionArabic: strings.TrimSpace(d.DescriptionArabic),
		Country:           models.NormalizeCountry(d.Country),
		TotalEpisodes:     max(int(d.TotalEpisodes), 0),
		EpisodeDuration:   max(int(d.EpisodeDuration), 0),
		ReleaseYear:       models.Year(int(d.ReleaseYear)),
		Status:            models.NormalizeStatus(d.Status),
		PosterURL:         strings.TrimSpace(d.ThumbnailURL),
		ExternalID:        strings.TrimSpace(d.ExternalID),
		Source:            "bulk",
	}
	rec.Genres = mergeStringSlices(nil, trimAll(d.Genres))
	for _, l := range d.WatchLinks {
		if strings.TrimSpace(l.WebsiteName) == "" || strings.TrimSpace(l.URL) == "" {
			continue
		}
		rec.WatchLinks = append(rec.WatchLinks, models.WatchLinkCanonical{
			Site:              strings.TrimSpace(l.WebsiteName),
			URL:               strings.TrimSpace(l.URL),
			Language:          models.NormalizeLanguage(l.Language),
			EpisodesAvailable: max(int(l.EpisodesAvailable), 0),
		})
	}
	return rec
}

// BulkFromCanonical is the inverse of the import mapping.
func BulkFromCanonical(c models.ShowCanonical) BulkDrama {
	d := BulkDrama{
		Title:             c.Title,
		TitleArabic:       c.TitleArabic,
		TitleOriginal:     c.TitleOriginal,
		Description:       c.Description,
		DescriptionArabic: c.DescriptionArabic,
		Country:           c.Country,
		TotalEpisodes:     FlexInt(c.TotalEpisodes),
		EpisodeDuration:   FlexInt(c.EpisodeDuration),
		Status:            c.Status,
		ThumbnailURL:      c.PosterURL,
		ExternalID:        c.ExternalID,
		Genres:            c.Genres,
	}
	if d.Genres == nil {
		d.Genres = []string{}
	}
	if c.ReleaseYear != nil {
		d.ReleaseYear = FlexInt(*c.ReleaseYear)
	}
	for _, l := range c.WatchLinks {
		d.WatchLinks = append(d.WatchLinks, BulkLink{
			WebsiteName:       l.Site,
			URL:               l.URL,
			Language:          l.Language,
			EpisodesAvailable: FlexInt(l.EpisodesAvailable),
		})
	}
	return d
}

// BulkSource yields the records of a bulk JSON file.
type BulkSource struct {
	path string
	file BulkFile
}

// LoadBulkFile reads and parses path. A missing file or invalid JSON is a
// configuration error for the whole run.
func LoadBulkFile(fs afero.Fs, path string) (*BulkSource, error) {
	b, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read import file: %w", err)
	}
	var f BulkFile
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse import file %s: %w", path, err)
	}
	return &BulkSource{path: path, file: f}, nil
}

func (s *BulkSource) Name() string { return "bulk:" + s.path }

func (s *BulkSource) Len() int { return len(s.file.Dramas) }

func (s *BulkSource) Records(ctx context.Context) iter.Seq2[models.ShowCanonical, error] {
	return func(yield func(models.ShowCanonical, error) bool) {
		for i, d := range s.file.Dramas {
			if ctx.Err() != nil {
				return
			}
			rec := d.canonical()
			var err error
			if verr := rec.Validate(); verr != nil {
				err = fmt.Errorf("entry %d: %w", i+1, verr)
			}
			if !yield(rec, err) {
				return
			}
		}
	}
}

// WriteBulk writes records in the import format, indented and with
// non-ASCII text left readable.
func WriteBulk(w io.Writer, records []models.ShowCanonical) error {
	f := BulkFile{Dramas: make([]BulkDrama, 0, len(records))}
	for _, r := range records {
		f.Dramas = append(f.Dramas, BulkFromCanonical(r))
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode bulk file: %w", err)
	}
	return nil
}

func trimAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
