package genres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

type Repo struct {
	DB *sql.DB
}

func NewRepo(db *sql.DB) *Repo {
	return &Repo{DB: db}
}

// GetByName looks a genre up by its exact (case-sensitive) name.
func (r *Repo) GetByName(ctx context.Context, name string) (*models.Genre, error) {
	var g models.Genre
	err := r.DB.QueryRowContext(ctx, `
		SELECT id, name, name_arabic FROM genres WHERE name = ?
	`, name).Scan(&g.ID, &g.Name, &g.NameArabic)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("scan genre: %w", err)
	}
	return &g, nil
}

// Ensure returns the genre called name, creating it when missing.
// arabicName is only consulted on creation; a blank result falls back to name.
// created reports whether a row was inserted.
func (r *Repo) Ensure(ctx context.Context, name string, arabicName func(string) string) (g *models.Genre, created bool, err error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, false, errors.New("genre: empty name")
	}

	g, err = r.GetByName(ctx, name)
	if err != nil || g != nil {
		return g, false, err
	}

	ar := ""
	if arabicName != nil {
		ar = strings.TrimSpace(arabicName(name))
	}
	if ar == "" {
		ar = name
	}

	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO genres (name, name_arabic) VALUES (?, ?)
		ON CONFLICT(name) DO NOTHING
	`, name, ar)
	if err != nil {
		return nil, false, fmt.Errorf("insert genre: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, false, fmt.Errorf("rows affected: %w", err)
	}

	g, err = r.GetByName(ctx, name)
	if err != nil {
		return nil, false, err
	}
	if g == nil {
		return nil, false, fmt.Errorf("genre %q vanished after insert", name)
	}
	return g, n > 0, nil
}

// Attach links a genre to a show. Existing links are left alone; the result
// reports whether a new link was made.
func (r *Repo) Attach(ctx context.Context, showID, genreID int64) (bool, error) {
	res, err := r.DB.ExecContext(ctx, `
		INSERT INTO show_genres (show_id, genre_id) VALUES (?, ?)
		ON CONFLICT(show_id, genre_id) DO NOTHING
	`, showID, genreID)
	if err != nil {
		return false, fmt.Errorf("attach genre: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListWithCounts returns genres that have at least one show, with counts.
func (r *Repo) ListWithCounts(ctx context.Context) ([]models.Genre, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT g.id, g.name, g.name_arabic, COUNT(sg.show_id) AS shows
		FROM genres g
		JOIN show_genres sg ON sg.genre_id = g.id
		GROUP BY g.id, g.name, g.name_arabic
		ORDER BY g.name_arabic
	`)
	if err != nil {
		return nil, fmt.Errorf("list genres: %w", err)
	}
	defer rows.Close()

	out := make([]models.Genre, 0)
	for rows.Next() {
		var g models.Genre
		if err := rows.Scan(&g.ID, &g.Name, &g.NameArabic, &g.ShowCount); err != nil {
			return nil, fmt.Errorf("list genres scan: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows err: %w", err)
	}
	return out, nil
}
