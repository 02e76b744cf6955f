package shows

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aicha-kelia/drama-aggregator/internal/dedup"
	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

// ListQuery is the public list filter.
type ListQuery struct {
	Country string
	Status  string
	GenreID int64
	Year    int
	Search  string // substring of title, title_arabic or title_original
	Limit   int
	Offset  int
}

// Filter selects stored shows for batch jobs.
type Filter struct {
	StartID       int64
	EndID         int64
	Country       string
	Limit         int
	WithoutGenres bool
	// ExternalPosterOnly selects shows with a poster URL but no owned copy.
	ExternalPosterOnly bool
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

const showColumns = `
	id, title, title_arabic, title_original, description, description_arabic,
	country, total_episodes, episode_duration, release_year, status,
	current_episode_number, next_episode_date, poster_path, poster_url,
	external_id, title_key, title_arabic_key, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanShow(sc scanner) (models.Show, error) {
	var (
		s          models.Show
		year       sql.NullInt64
		nextEp     sql.NullTime
		externalID sql.NullString
	)
	err := sc.Scan(
		&s.ID, &s.Title, &s.TitleArabic, &s.TitleOriginal, &s.Description, &s.DescriptionArabic,
		&s.Country, &s.TotalEpisodes, &s.EpisodeDuration, &year, &s.Status,
		&s.CurrentEpisodeNumber, &nextEp, &s.PosterPath, &s.PosterURL,
		&externalID, &s.TitleKey, &s.TitleArabicKey, &s.CreatedAt, &s.UpdatedAt,
	)
	if err != nil {
		return s, err
	}
	if year.Valid {
		y := int(year.Int64)
		s.ReleaseYear = &y
	}
	if nextEp.Valid {
		t := nextEp.Time
		s.NextEpisodeDate = &t
	}
	s.ExternalID = externalID.String
	return s, nil
}

func (r *Repo) queryShows(ctx context.Context, query string, args ...any) ([]models.Show, error) {
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query shows: %w", err)
	}
	defer rows.Close()

	var out []models.Show
	for rows.Next() {
		s, err := scanShow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan show: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

// Create inserts s, computing its dedup keys, and sets s.ID.
func (r *Repo) Create(ctx context.Context, s *models.Show) (int64, error) {
	if strings.TrimSpace(s.Title) == "" && strings.TrimSpace(s.TitleArabic) == "" {
		return 0, models.ErrMissingTitle
	}
	s.TitleKey, s.TitleArabicKey = dedup.Keys(s.Title, s.TitleArabic)

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO shows (
			title, title_arabic, title_original, description, description_arabic,
			country, total_episodes, episode_duration, release_year, status,
			current_episode_number, next_episode_date, poster_path, poster_url,
			external_id, title_key, title_arabic_key
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		s.Title, s.TitleArabic, s.TitleOriginal, s.Description, s.DescriptionArabic,
		s.Country, s.TotalEpisodes, s.EpisodeDuration, nullInt(s.ReleaseYear), s.Status,
		s.CurrentEpisodeNumber, nullTime(s.NextEpisodeDate), s.PosterPath, s.PosterURL,
		nullString(s.ExternalID), s.TitleKey, s.TitleArabicKey,
	)
	if err != nil {
		return 0, fmt.Errorf("insert show: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	s.ID = id
	return id, nil
}

// Update writes every mutable column of s back.
func (r *Repo) Update(ctx context.Context, s *models.Show) error {
	s.TitleKey, s.TitleArabicKey = dedup.Keys(s.Title, s.TitleArabic)
	_, err := r.DB.ExecContext(ctx, `
		UPDATE shows SET
			title = ?, title_arabic = ?, title_original = ?, description = ?, description_arabic = ?,
			country = ?, total_episodes = ?, episode_duration = ?, release_year = ?, status = ?,
			current_episode_number = ?, next_episode_date = ?, poster_path = ?, poster_url = ?,
			external_id = ?, title_key = ?, title_arabic_key = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`,
		s.Title, s.TitleArabic, s.TitleOriginal, s.Description, s.DescriptionArabic,
		s.Country, s.TotalEpisodes, s.EpisodeDuration, nullInt(s.ReleaseYear), s.Status,
		s.CurrentEpisodeNumber, nullTime(s.NextEpisodeDate), s.PosterPath, s.PosterURL,
		nullString(s.ExternalID), s.TitleKey, s.TitleArabicKey, s.ID,
	)
	if err != nil {
		return fmt.Errorf("update show: %w", err)
	}
	return nil
}

// SetPosterURLIfEmpty records an external poster only when the show has no
// poster at all. It reports whether a row changed.
func (r *Repo) SetPosterURLIfEmpty(ctx context.Context, id int64, url string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		UPDATE shows SET poster_url = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND poster_url = '' AND poster_path = ''
	`, url, id)
	if err != nil {
		return false, fmt.Errorf("set poster url: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// SetPosterPath stores the owned (image store) poster URL.
func (r *Repo) SetPosterPath(ctx context.Context, id int64, path string) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE shows SET poster_path = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?
	`, path, id)
	if err != nil {
		return fmt.Errorf("set poster path: %w", err)
	}
	return nil
}

// GetByID returns the show with its genres and links, or nil when absent.
func (r *Repo) GetByID(ctx context.Context, id int64) (*models.Show, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT`+showColumns+` FROM shows WHERE id = ?`, id)
	s, err := scanShow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan getByID: %w", err)
	}

	if s.Genres, err = r.genresFor(ctx, s.ID); err != nil {
		return nil, err
	}
	if s.Links, err = r.linksFor(ctx, s.ID); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *Repo) FindByExternalID(ctx context.Context, externalID string) (*models.Show, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT`+showColumns+` FROM shows WHERE external_id = ?`, externalID)
	s, err := scanShow(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan findByExternalID: %w", err)
	}
	return &s, nil
}

// FindByTitleFold returns shows whose title or title_arabic equals any of
// titles, ignoring ASCII case.
func (r *Repo) FindByTitleFold(ctx context.Context, titles ...string) ([]models.Show, error) {
	if len(titles) == 0 {
		return nil, nil
	}
	in := placeholders(len(titles))
	args := make([]any, 0, 2*len(titles))
	for _, t := range titles {
		args = append(args, t)
	}
	args = append(args, args...)

	return r.queryShows(ctx, `SELECT`+showColumns+` FROM shows
		WHERE title COLLATE NOCASE IN (`+in+`) OR title_arabic COLLATE NOCASE IN (`+in+`)
		ORDER BY id`, args...)
}

// FindByKeys returns shows whose title_key or title_arabic_key equals any of keys.
func (r *Repo) FindByKeys(ctx context.Context, keys ...string) ([]models.Show, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	in := placeholders(len(keys))
	args := make([]any, 0, 2*len(keys))
	for _, k := range keys {
		args = append(args, k)
	}
	args = append(args, args...)

	return r.queryShows(ctx, `SELECT`+showColumns+` FROM shows
		WHERE title_key IN (`+in+`) OR title_arabic_key IN (`+in+`)
		ORDER BY id`, args...)
}

// ListForProcessing returns shows in id order for batch jobs.
func (r *Repo) ListForProcessing(ctx context.Context, f Filter) ([]models.Show, error) {
	var where []string
	var args []any

	if f.StartID > 0 {
		where = append(where, "id >= ?")
		args = append(args, f.StartID)
	}
	if f.EndID > 0 {
		where = append(where, "id <= ?")
		args = append(args, f.EndID)
	}
	if c := strings.TrimSpace(f.Country); c != "" {
		where = append(where, "country = ?")
		args = append(args, c)
	}
	if f.WithoutGenres {
		where = append(where, "NOT EXISTS (SELECT 1 FROM show_genres sg WHERE sg.show_id = shows.id)")
	}
	if f.ExternalPosterOnly {
		where = append(where, "poster_url <> '' AND poster_path = ''")
	}

	q := `SELECT` + showColumns + ` FROM shows`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += " ORDER BY id"
	if f.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, f.Limit)
	}
	return r.queryShows(ctx, q, args...)
}

func (r *Repo) Count(ctx context.Context, q ListQuery) (int, error) {
	sqlStr, args := buildListSQL(q, true)
	row := r.DB.QueryRowContext(ctx, sqlStr, args...)
	var total int
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("count scan: %w", err)
	}
	return total, nil
}

func (r *Repo) List(ctx context.Context, q ListQuery) ([]models.Show, error) {
	sqlStr, args := buildListSQL(q, false)
	out, err := r.queryShows(ctx, sqlStr, args...)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = make([]models.Show, 0)
	}
	return out, nil
}

// Years lists distinct release years, newest first.
func (r *Repo) Years(ctx context.Context) ([]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT DISTINCT release_year FROM shows
		WHERE release_year IS NOT NULL
		ORDER BY release_year DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("years query: %w", err)
	}
	defer rows.Close()

	out := make([]int, 0)
	for rows.Next() {
		var y int
		if err := rows.Scan(&y); err != nil {
			return nil, fmt.Errorf("years scan: %w", err)
		}
		out = append(out, y)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}

func (r *Repo) genresFor(ctx context.Context, showID int64) ([]models.Genre, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT g.id, g.name, g.name_arabic
		FROM genres g
		JOIN show_genres sg ON sg.genre_id = g.id
		WHERE sg.show_id = ?
		ORDER BY g.name
	`, showID)
	if err != nil {
		return nil, fmt.Errorf("genres query: %w", err)
	}
	defer rows.Close()

	var out []models.Genre
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.NameArabic); err != nil {
			return nil, fmt.Errorf("genres scan: %w", err)
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (r *Repo) linksFor(ctx context.Context, showID int64) ([]models.WatchLink, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, show_id, site_name, url, language, episodes_available, updated_at
		FROM watch_links
		WHERE show_id = ?
		ORDER BY site_name
	`, showID)
	if err != nil {
		return nil, fmt.Errorf("links query: %w", err)
	}
	defer rows.Close()

	var out []models.WatchLink
	for rows.Next() {
		var l models.WatchLink
		if err := rows.Scan(&l.ID, &l.ShowID, &l.SiteName, &l.URL, &l.Language, &l.EpisodesAvailable, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("links scan: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// buildListSQL builds either COUNT(*) or the paged SELECT.
func buildListSQL(q ListQuery, countOnly bool) (string, []any) {
	baseSelect := `SELECT` + showColumns + ` FROM shows`
	if countOnly {
		baseSelect = `SELECT COUNT(*) FROM shows`
	}

	var where []string
	var args []any

	if s := strings.TrimSpace(q.Search); s != "" {
		where = append(where, "(title LIKE ? OR title_arabic LIKE ? OR title_original LIKE ?)")
		kw := "%" + s + "%"
		args = append(args, kw, kw, kw)
	}
	if c := strings.ToLower(strings.TrimSpace(q.Country)); c != "" {
		where = append(where, "country = ?")
		args = append(args, c)
	}
	if st := strings.ToLower(strings.TrimSpace(q.Status)); st != "" {
		where = append(where, "status = ?")
		args = append(args, st)
	}
	if q.GenreID > 0 {
		where = append(where, "id IN (SELECT show_id FROM show_genres WHERE genre_id = ?)")
		args = append(args, q.GenreID)
	}
	if q.Year > 0 {
		where = append(where, "release_year = ?")
		args = append(args, q.Year)
	}

	sqlStr := baseSelect
	if len(where) > 0 {
		sqlStr += " WHERE " + strings.Join(where, " AND ")
	}

	if !countOnly {
		sqlStr += " ORDER BY created_at DESC, id DESC"
		sqlStr += " LIMIT ? OFFSET ?"
		limit := q.Limit
		if limit <= 0 || limit > 100 {
			limit = 20
		}
		offset := q.Offset
		if offset < 0 {
			offset = 0
		}
		args = append(args, limit, offset)
	}

	return sqlStr, args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func nullString(s string) sql.NullString {
	s = strings.TrimSpace(s)
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func nullTime(p *time.Time) sql.NullTime {
	if p == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *p, Valid: true}
}
