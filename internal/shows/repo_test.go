package shows

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicha-kelia/drama-aggregator/pkg/database"
	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func seed(t *testing.T, db *sql.DB) *Repo {
	t.Helper()
	ctx := context.Background()
	repo := NewRepo(db)

	for _, s := range []models.Show{
		{Title: "Vincenzo", TitleArabic: "فينتشنزو", Country: models.CountryKorean, ReleaseYear: models.Year(2021), Status: models.StatusCompleted, PosterURL: "https://img/v.jpg", ExternalID: "tmdb:96162"},
		{Title: "Kuruluş Osman", TitleArabic: "المؤسس عثمان", Country: models.CountryTurkish, ReleaseYear: models.Year(2019), Status: models.StatusOngoing},
		{TitleArabic: "رحمة", Country: models.CountryMoroccan},
	} {
		_, err := repo.Create(ctx, &s)
		require.NoError(t, err)
	}

	_, err := db.Exec(`INSERT INTO genres (name, name_arabic) VALUES ('Drama', 'دراما'), ('Crime', 'جريمة')`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO show_genres (show_id, genre_id) VALUES (1, 1), (1, 2), (2, 1)`)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO watch_links (show_id, site_name, url, episodes_available) VALUES (1, 'Akwam', 'https://ak.sv/series/1', 20)`)
	require.NoError(t, err)
	return repo
}

func TestCreateAndGetByID(t *testing.T) {
	repo := seed(t, newTestDB(t))
	ctx := context.Background()

	s, err := repo.GetByID(ctx, 1)
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, "Vincenzo", s.Title)
	assert.Equal(t, "vincenzo", s.TitleKey)
	require.NotNil(t, s.ReleaseYear)
	assert.Equal(t, 2021, *s.ReleaseYear)
	assert.Len(t, s.Genres, 2)
	require.Len(t, s.Links, 1)
	assert.Equal(t, "arabic", s.Links[0].Language)
	assert.False(t, s.CreatedAt.IsZero())

	s, err = repo.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Nil(t, s.ReleaseYear)
	assert.Empty(t, s.ExternalID)

	s, err = repo.GetByID(ctx, 99)
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestCreateRejectsUntitled(t *testing.T) {
	_, err := NewRepo(newTestDB(t)).Create(context.Background(), &models.Show{Country: "korean"})
	assert.ErrorIs(t, err, models.ErrMissingTitle)
}

func TestFinders(t *testing.T) {
	repo := seed(t, newTestDB(t))
	ctx := context.Background()

	s, err := repo.FindByExternalID(ctx, "tmdb:96162")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.EqualValues(t, 1, s.ID)

	s, err = repo.FindByExternalID(ctx, "tmdb:0")
	require.NoError(t, err)
	assert.Nil(t, s)

	found, err := repo.FindByTitleFold(ctx, "VINCENZO", "رحمة")
	require.NoError(t, err)
	assert.Len(t, found, 2)

	found, err = repo.FindByKeys(ctx, "kurulus osman")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.EqualValues(t, 2, found[0].ID)
}

func TestUpdateAndPosters(t *testing.T) {
	repo := seed(t, newTestDB(t))
	ctx := context.Background()

	s, err := repo.GetByID(ctx, 3)
	require.NoError(t, err)
	s.Title = "Rahma"
	s.TotalEpisodes = 30
	require.NoError(t, repo.Update(ctx, s))

	got, err := repo.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "rahma", got.TitleKey)
	assert.Equal(t, 30, got.TotalEpisodes)

	changed, err := repo.SetPosterURLIfEmpty(ctx, 1, "https://img/other.jpg")
	require.NoError(t, err)
	assert.False(t, changed, "show 1 already has a poster")

	changed, err = repo.SetPosterURLIfEmpty(ctx, 3, "https://img/rahma.jpg")
	require.NoError(t, err)
	assert.True(t, changed)

	require.NoError(t, repo.SetPosterPath(ctx, 3, "https://res.cloudinary.com/x/rahma.jpg"))
	got, err = repo.GetByID(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, "https://res.cloudinary.com/x/rahma.jpg", got.Poster())
}

func TestListForProcessing(t *testing.T) {
	repo := seed(t, newTestDB(t))
	ctx := context.Background()

	all, err := repo.ListForProcessing(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	ranged, err := repo.ListForProcessing(ctx, Filter{StartID: 2, EndID: 3})
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	limited, err := repo.ListForProcessing(ctx, Filter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.EqualValues(t, 1, limited[0].ID)

	noGenres, err := repo.ListForProcessing(ctx, Filter{WithoutGenres: true})
	require.NoError(t, err)
	require.Len(t, noGenres, 1)
	assert.EqualValues(t, 3, noGenres[0].ID)

	external, err := repo.ListForProcessing(ctx, Filter{ExternalPosterOnly: true})
	require.NoError(t, err)
	require.Len(t, external, 1)
	assert.EqualValues(t, 1, external[0].ID)

	turkish, err := repo.ListForProcessing(ctx, Filter{Country: models.CountryTurkish})
	require.NoError(t, err)
	assert.Len(t, turkish, 1)
}

func TestListAndCount(t *testing.T) {
	repo := seed(t, newTestDB(t))
	ctx := context.Background()

	cases := []struct {
		name string
		q    ListQuery
		want int
	}{
		{"all", ListQuery{}, 3},
		{"country", ListQuery{Country: "Korean"}, 1},
		{"status", ListQuery{Status: "ongoing"}, 1},
		{"genre", ListQuery{GenreID: 1}, 2},
		{"year", ListQuery{Year: 2019}, 1},
		{"search arabic", ListQuery{Search: "عثمان"}, 1},
		{"search latin", ListQuery{Search: "vinc"}, 1},
		{"no match", ListQuery{Country: "thai"}, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			total, err := repo.Count(ctx, tc.q)
			require.NoError(t, err)
			assert.Equal(t, tc.want, total)

			items, err := repo.List(ctx, tc.q)
			require.NoError(t, err)
			assert.Len(t, items, tc.want)
		})
	}

	page, err := repo.List(ctx, ListQuery{Limit: 2, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, page, 1)
}

func TestYearsAndReport(t *testing.T) {
	repo := seed(t, newTestDB(t))
	ctx := context.Background()

	years, err := repo.Years(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{2021, 2019}, years)

	rep, err := repo.Report(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, rep.Shows)
	assert.Equal(t, 2, rep.Genres)
	assert.Equal(t, 1, rep.Links)
	assert.Equal(t, 2, rep.MissingPoster)
	assert.Equal(t, 1, rep.ExternalPoster)
	assert.Equal(t, 1, rep.MissingGenres)
	assert.Equal(t, map[int]int{0: 2, 1: 1}, rep.ByLinkCount)
	assert.Equal(t, map[string]int{"Akwam": 1}, rep.LinksBySite)
	assert.Equal(t, 1, rep.ByCountry[models.CountryMoroccan])
}

func TestCountWrapsDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM shows`).WillReturnError(errors.New("disk I/O error"))

	_, err = NewRepo(db).Count(context.Background(), ListQuery{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "count scan")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByIDWrapsDriverError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery(`FROM shows WHERE id = \?`).WithArgs(int64(7)).WillReturnError(errors.New("locked"))

	s, err := NewRepo(db).GetByID(context.Background(), 7)
	assert.Nil(t, s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scan getByID")
}
