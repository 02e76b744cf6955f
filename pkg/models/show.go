package models

import (
	"errors"
	"strings"
)

// ErrMissingTitle is returned when a record carries neither a title nor an Arabic title.
var ErrMissingTitle = errors.New("show: title or title_arabic is required")

// Countries recognised by the catalog.
const (
	CountryKorean   = "korean"
	CountryTurkish  = "turkish"
	CountryIndian   = "indian"
	CountryChinese  = "chinese"
	CountryMoroccan = "moroccan"
	CountryJapanese = "japanese"
	CountryThai     = "thai"
)

const (
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
)

const (
	LanguageArabic  = "arabic"
	LanguageEnglish = "english"
)

// ShowCanonical is the normalized, source-agnostic form of a show.
//
// Every source (TMDB, HTML catalogs, bulk JSON) maps into this structure
// first; dedup and persistence only ever see this representation.
type ShowCanonical struct {
	Title             string               `json:"title"`
	TitleArabic       string               `json:"title_arabic"`
	TitleOriginal     string               `json:"title_original,omitempty"`
	Description       string               `json:"description,omitempty"`
	DescriptionArabic string               `json:"description_arabic,omitempty"`
	Country           string               `json:"country,omitempty"`
	TotalEpisodes     int                  `json:"total_episodes"`             // 0 when unknown
	EpisodeDuration   int                  `json:"episode_duration,omitempty"` // minutes, 0 when unknown
	ReleaseYear       *int                 `json:"release_year,omitempty"`     // nil when unknown
	Status            string               `json:"status,omitempty"`
	Genres            []string             `json:"genres"`
	PosterURL         string               `json:"poster_url,omitempty"`
	WatchLinks        []WatchLinkCanonical `json:"watch_links,omitempty"`
	ExternalID        string               `json:"external_id,omitempty"` // e.g. "tmdb:1399"
	Source            string               `json:"source,omitempty"`
}

// WatchLinkCanonical is one candidate place to watch a show, as produced by a source.
type WatchLinkCanonical struct {
	Site              string `json:"site"`
	URL               string `json:"url"`
	Language          string `json:"language"`
	EpisodesAvailable int    `json:"episodes_available"`
}

// Validate checks the only hard requirement of a canonical record.
func (s ShowCanonical) Validate() error {
	if strings.TrimSpace(s.Title) == "" && strings.TrimSpace(s.TitleArabic) == "" {
		return ErrMissingTitle
	}
	if s.TotalEpisodes < 0 || s.EpisodeDuration < 0 {
		return errors.New("show: negative episode count or duration")
	}
	return nil
}

// DisplayTitle prefers the Arabic title.
func (s ShowCanonical) DisplayTitle() string {
	if t := strings.TrimSpace(s.TitleArabic); t != "" {
		return t
	}
	return strings.TrimSpace(s.Title)
}

// Year returns a pointer to y, or nil for values that are not a plausible year.
func Year(y int) *int {
	if y < 1900 || y > 2100 {
		return nil
	}
	return &y
}

// NormalizeCountry maps free-form country names (English or Arabic) to the enum.
// Unknown values map to "".
func NormalizeCountry(s string) string {
	v := strings.ToLower(strings.TrimSpace(s))
	switch {
	case v == "":
		return ""
	case v == CountryKorean || strings.Contains(v, "korea") || strings.Contains(v, "كوري"):
		return CountryKorean
	case v == CountryTurkish || strings.Contains(v, "turk") || strings.Contains(v, "ترك"):
		return CountryTurkish
	case v == CountryIndian || strings.Contains(v, "india") || strings.Contains(v, "هند"):
		return CountryIndian
	case v == CountryChinese || strings.Contains(v, "china") || strings.Contains(v, "taiwan") ||
		strings.Contains(v, "صين") || strings.Contains(v, "تايوان"):
		return CountryChinese
	case v == CountryMoroccan || strings.Contains(v, "morocc") || strings.Contains(v, "مغرب"):
		return CountryMoroccan
	case v == CountryJapanese || strings.Contains(v, "japan") || strings.Contains(v, "ياب"):
		return CountryJapanese
	case v == CountryThai || strings.Contains(v, "thai") || strings.Contains(v, "تايلا"):
		return CountryThai
	default:
		return ""
	}
}

// NormalizeStatus maps source status strings to ongoing/completed, or "" when unknown.
func NormalizeStatus(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "completed", "complete", "ended", "finished", "canceled", "cancelled", "مكتمل":
		return StatusCompleted
	case "ongoing", "returning series", "in production", "airing", "running", "مستمر", "يبث":
		return StatusOngoing
	default:
		return ""
	}
}

// NormalizeLanguage defaults to arabic for anything that is not explicitly english.
func NormalizeLanguage(s string) string {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case LanguageEnglish, "en", "english subs":
		return LanguageEnglish
	default:
		return LanguageArabic
	}
}
