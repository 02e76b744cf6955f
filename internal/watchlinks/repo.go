package watchlinks

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// GetBySite returns the link stored for (show, site), or nil.
func (r *Repo) GetBySite(ctx context.Context, showID int64, site string) (*models.WatchLink, error) {
	var l models.WatchLink
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, show_id, site_name, url, language, episodes_available, updated_at
		FROM watch_links
		WHERE show_id = ? AND site_name = ?
	`, showID, site).Scan(&l.ID, &l.ShowID, &l.SiteName, &l.URL, &l.Language, &l.EpisodesAvailable, &l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan watch link: %w", err)
	}
	return &l, nil
}

// Upsert writes the single link for (show, site), replacing whatever was there.
func (r *Repo) Upsert(ctx context.Context, l models.WatchLink) error {
	if l.EpisodesAvailable < 0 {
		l.EpisodesAvailable = 0
	}
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO watch_links (show_id, site_name, url, language, episodes_available, updated_at)
		VALUES (?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(show_id, site_name) DO UPDATE SET
			url = excluded.url,
			language = excluded.language,
			episodes_available = excluded.episodes_available,
			updated_at = CURRENT_TIMESTAMP
	`, l.ShowID, l.SiteName, l.URL, models.NormalizeLanguage(l.Language), l.EpisodesAvailable)
	if err != nil {
		return fmt.Errorf("upsert watch link: %w", err)
	}
	return nil
}

func (r *Repo) Delete(ctx context.Context, showID int64, site string) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		DELETE FROM watch_links
		WHERE show_id = ? AND site_name = ?
	`, showID, site)
	if err != nil {
		return false, fmt.Errorf("delete watch link: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (r *Repo) ListByShow(ctx context.Context, showID int64) ([]models.WatchLink, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT id, show_id, site_name, url, language, episodes_available, updated_at
		FROM watch_links
		WHERE show_id = ?
		ORDER BY site_name
	`, showID)
	if err != nil {
		return nil, fmt.Errorf("list watch links: %w", err)
	}
	defer rows.Close()

	var out []models.WatchLink
	for rows.Next() {
		var l models.WatchLink
		if err := rows.Scan(&l.ID, &l.ShowID, &l.SiteName, &l.URL, &l.Language, &l.EpisodesAvailable, &l.UpdatedAt); err != nil {
			return nil, fmt.Errorf("list watch links scan: %w", err)
		}
		out = append(out, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}
