package scraper

import (
	"bytes"
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

const sampleBulk = `{
  "dramas": [
    {
      "title": "Rahma",
      "title_arabic": "رحمة",
      "country": "Morocco",
      "total_episodes": "30",
      "release_year": 2023,
      "status": "Completed",
      "thumbnail_url": "https://img/rahma.jpg",
      "genres": ["Drama", " ", "Drama", "Family"],
      "watch_links": [
        {"website_name": "Shahid", "url": "https://shahid.mbc.net/rahma", "language": "Arabic", "episodes_available": 30},
        {"website_name": "", "url": "https://broken"}
      ]
    },
    {"title": "", "title_arabic": "  "},
    {"title_arabic": "بلا سنة", "release_year": null, "total_episodes": -3}
  ]
}`

func TestLoadBulkFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/in/dramas.json", []byte(sampleBulk), 0o644))

	src, err := LoadBulkFile(fs, "/in/dramas.json")
	require.NoError(t, err)
	assert.Equal(t, 3, src.Len())

	var recs []models.ShowCanonical
	var errs []error
	for rec, err := range src.Records(context.Background()) {
		recs = append(recs, rec)
		errs = append(errs, err)
	}
	require.Len(t, recs, 3)

	r := recs[0]
	require.NoError(t, errs[0])
	assert.Equal(t, models.CountryMoroccan, r.Country)
	assert.Equal(t, 30, r.TotalEpisodes)
	assert.Equal(t, 2023, *r.ReleaseYear)
	assert.Equal(t, models.StatusCompleted, r.Status)
	assert.Equal(t, "https://img/rahma.jpg", r.PosterURL)
	assert.Equal(t, []string{"Drama", "Family"}, r.Genres)
	require.Len(t, r.WatchLinks, 1)
	assert.Equal(t, "Shahid", r.WatchLinks[0].Site)
	assert.Equal(t, models.LanguageArabic, r.WatchLinks[0].Language)

	assert.ErrorIs(t, errs[1], models.ErrMissingTitle)

	require.NoError(t, errs[2])
	assert.Nil(t, recs[2].ReleaseYear)
	assert.Zero(t, recs[2].TotalEpisodes)
}

func TestLoadBulkFileErrors(t *testing.T) {
	fs := afero.NewMemMapFs()
	_, err := LoadBulkFile(fs, "/missing.json")
	assert.Error(t, err)

	require.NoError(t, afero.WriteFile(fs, "/bad.json", []byte(`{"dramas": [`), 0o644))
	_, err = LoadBulkFile(fs, "/bad.json")
	assert.Error(t, err)
}

func TestWriteBulkRoundTrips(t *testing.T) {
	in := []models.ShowCanonical{{
		Title:       "Vincenzo",
		TitleArabic: "فينتشنزو",
		Country:     models.CountryKorean,
		ReleaseYear: models.Year(2021),
		Genres:      []string{"Crime"},
		WatchLinks:  []models.WatchLinkCanonical{{Site: "Akwam", URL: "https://ak.sv/series/1", Language: "arabic", EpisodesAvailable: 20}},
	}}

	var buf bytes.Buffer
	require.NoError(t, WriteBulk(&buf, in))
	assert.Contains(t, buf.String(), `"website_name": "Akwam"`)
	assert.Contains(t, buf.String(), "فينتشنزو")

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "/out.json", buf.Bytes(), 0o644))
	src, err := LoadBulkFile(fs, "/out.json")
	require.NoError(t, err)

	for rec, err := range src.Records(context.Background()) {
		require.NoError(t, err)
		assert.Equal(t, in[0].Title, rec.Title)
		assert.Equal(t, in[0].TitleArabic, rec.TitleArabic)
		assert.Equal(t, *in[0].ReleaseYear, *rec.ReleaseYear)
		assert.Equal(t, in[0].WatchLinks, rec.WatchLinks)
	}
}
