package models

import (
	"strings"
	"time"
)

// Show is a row of the shows table.
type Show struct {
	ID                   int64       `json:"id"`
	Title                string      `json:"title"`
	TitleArabic          string      `json:"title_arabic"`
	TitleOriginal        string      `json:"title_original,omitempty"`
	Description          string      `json:"description,omitempty"`
	DescriptionArabic    string      `json:"description_arabic,omitempty"`
	Country              string      `json:"country,omitempty"`
	TotalEpisodes        int         `json:"total_episodes"`
	EpisodeDuration      int         `json:"episode_duration,omitempty"`
	ReleaseYear          *int        `json:"release_year,omitempty"`
	Status               string      `json:"status,omitempty"`
	CurrentEpisodeNumber int         `json:"current_episode_number"`
	NextEpisodeDate      *time.Time  `json:"next_episode_date,omitempty"`
	PosterPath           string      `json:"poster_path,omitempty"` // owned copy in the image store
	PosterURL            string      `json:"poster_url,omitempty"`  // external URL
	ExternalID           string      `json:"external_id,omitempty"`
	TitleKey             string      `json:"-"`
	TitleArabicKey       string      `json:"-"`
	Genres               []Genre     `json:"genres,omitempty"`
	Links                []WatchLink `json:"links,omitempty"`
	CreatedAt            time.Time   `json:"created_at"`
	UpdatedAt            time.Time   `json:"updated_at"`
}

// HasPoster reports whether the show has either an owned or an external poster.
func (s Show) HasPoster() bool {
	return strings.TrimSpace(s.PosterPath) != "" || strings.TrimSpace(s.PosterURL) != ""
}

// Poster returns the best poster reference, preferring the owned copy.
func (s Show) Poster() string {
	if s.PosterPath != "" {
		return s.PosterPath
	}
	return s.PosterURL
}

// DisplayTitle prefers the Arabic title.
func (s Show) DisplayTitle() string {
	if s.TitleArabic != "" {
		return s.TitleArabic
	}
	return s.Title
}

type Genre struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	NameArabic string `json:"name_arabic"`
	ShowCount  int    `json:"show_count,omitempty"`
}

type WatchLink struct {
	ID                int64     `json:"id"`
	ShowID            int64     `json:"show_id"`
	SiteName          string    `json:"site_name"`
	URL               string    `json:"url"`
	Language          string    `json:"language"`
	EpisodesAvailable int       `json:"episodes_available"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// Canonical converts a stored show back into the source-agnostic form, so
// exports can be re-imported.
func (s Show) Canonical() ShowCanonical {
	c := ShowCanonical{
		Title:             s.Title,
		TitleArabic:       s.TitleArabic,
		TitleOriginal:     s.TitleOriginal,
		Description:       s.Description,
		DescriptionArabic: s.DescriptionArabic,
		Country:           s.Country,
		TotalEpisodes:     s.TotalEpisodes,
		EpisodeDuration:   s.EpisodeDuration,
		ReleaseYear:       s.ReleaseYear,
		Status:            s.Status,
		PosterURL:         s.Poster(),
		ExternalID:        s.ExternalID,
		Genres:            make([]string, 0, len(s.Genres)),
	}
	for _, g := range s.Genres {
		c.Genres = append(c.Genres, g.Name)
	}
	for _, l := range s.Links {
		c.WatchLinks = append(c.WatchLinks, WatchLinkCanonical{
			Site:              l.SiteName,
			URL:               l.URL,
			Language:          l.Language,
			EpisodesAvailable: l.EpisodesAvailable,
		})
	}
	return c
}
