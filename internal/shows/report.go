package shows

import (
	"context"
	"fmt"
)

// Report summarizes the catalog for the report command.
type Report struct {
	Shows          int            `json:"shows"`
	Genres         int            `json:"genres"`
	Links          int            `json:"links"`
	ByCountry      map[string]int `json:"by_country"`
	ByLinkCount    map[int]int    `json:"by_link_count"` // links per show -> number of shows
	LinksBySite    map[string]int `json:"links_by_site"`
	MissingPoster  int            `json:"missing_poster"`
	ExternalPoster int            `json:"external_poster_only"`
	MissingGenres  int            `json:"missing_genres"`
}

func (r *Repo) Report(ctx context.Context) (*Report, error) {
	rep := &Report{
		ByCountry:   map[string]int{},
		ByLinkCount: map[int]int{},
		LinksBySite: map[string]int{},
	}

	counts := []struct {
		dst   *int
		query string
	}{
		{&rep.Shows, `SELECT COUNT(*) FROM shows`},
		{&rep.Genres, `SELECT COUNT(*) FROM genres`},
		{&rep.Links, `SELECT COUNT(*) FROM watch_links`},
		{&rep.MissingPoster, `SELECT COUNT(*) FROM shows WHERE poster_path = '' AND poster_url = ''`},
		{&rep.ExternalPoster, `SELECT COUNT(*) FROM shows WHERE poster_path = '' AND poster_url <> ''`},
		{&rep.MissingGenres, `SELECT COUNT(*) FROM shows s WHERE NOT EXISTS (SELECT 1 FROM show_genres sg WHERE sg.show_id = s.id)`},
	}
	for _, c := range counts {
		if err := r.DB.QueryRowContext(ctx, c.query).Scan(c.dst); err != nil {
			return nil, fmt.Errorf("report count: %w", err)
		}
	}

	if err := r.groupCount(ctx, `SELECT country, COUNT(*) FROM shows GROUP BY country`, func(k string, n int) {
		if k == "" {
			k = "unknown"
		}
		rep.ByCountry[k] = n
	}); err != nil {
		return nil, err
	}
	if err := r.groupCount(ctx, `SELECT site_name, COUNT(*) FROM watch_links GROUP BY site_name`, func(k string, n int) {
		rep.LinksBySite[k] = n
	}); err != nil {
		return nil, err
	}

	rows, err := r.DB.QueryContext(ctx, `
		SELECT links, COUNT(*) FROM (
			SELECT s.id, COUNT(w.id) AS links
			FROM shows s LEFT JOIN watch_links w ON w.show_id = s.id
			GROUP BY s.id
		) GROUP BY links
	`)
	if err != nil {
		return nil, fmt.Errorf("report link buckets: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var links, n int
		if err := rows.Scan(&links, &n); err != nil {
			return nil, fmt.Errorf("report link buckets scan: %w", err)
		}
		rep.ByLinkCount[links] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return rep, nil
}

func (r *Repo) groupCount(ctx context.Context, query string, fn func(string, int)) error {
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("report group: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var k string
		var n int
		if err := rows.Scan(&k, &n); err != nil {
			return fmt.Errorf("report group scan: %w", err)
		}
		fn(k, n)
	}
	return rows.Err()
}
