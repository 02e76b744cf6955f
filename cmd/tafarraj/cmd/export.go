package cmd

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aicha-kelia/drama-aggregator/internal/scraper"
	"github.com/aicha-kelia/drama-aggregator/internal/shows"
	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

var csvHeader = []string{
	"id", "title", "title_arabic", "title_original", "country", "release_year", "status",
	"total_episodes", "episode_duration", "genres", "poster", "external_id", "watch_links",
}

func newExportCmd(opts *rootOptions) *cobra.Command {
	var (
		format  string
		outPath string
		country string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the catalog as bulk JSON or CSV",
		Long: `Writes every show with its genres and links. The json format is the
import format, so an export can be imported into another catalog.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			format = strings.ToLower(strings.TrimSpace(format))
			if format != "json" && format != "csv" {
				return fmt.Errorf("unknown format %q (json or csv)", format)
			}

			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			list, err := a.shows.ListForProcessing(ctx, shows.Filter{Country: models.NormalizeCountry(country)})
			if err != nil {
				return err
			}
			full := make([]models.Show, 0, len(list))
			for _, s := range list {
				f, err := a.shows.GetByID(ctx, s.ID)
				if err != nil {
					return err
				}
				if f != nil {
					full = append(full, *f)
				}
			}

			w := cmd.OutOrStdout()
			if outPath != "" && outPath != "-" {
				if err := opts.fs.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
					return err
				}
				f, err := opts.fs.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}

			if format == "csv" {
				err = writeCSV(w, full)
			} else {
				records := make([]models.ShowCanonical, 0, len(full))
				for _, s := range full {
					records = append(records, s.Canonical())
				}
				err = scraper.WriteBulk(w, records)
			}
			if err != nil {
				return fmt.Errorf("export: %w", err)
			}
			a.log.Infof("exported %d shows", len(full))
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "json", "json or csv")
	cmd.Flags().StringVarP(&outPath, "out", "o", "-", "output file, - for stdout")
	cmd.Flags().StringVar(&country, "country", "", "only shows from this country")
	return cmd
}

func writeCSV(out io.Writer, list []models.Show) error {
	w := csv.NewWriter(out)
	if err := w.Write(csvHeader); err != nil {
		return err
	}
	for _, s := range list {
		year := ""
		if s.ReleaseYear != nil {
			year = strconv.Itoa(*s.ReleaseYear)
		}
		genres := make([]string, 0, len(s.Genres))
		for _, g := range s.Genres {
			genres = append(genres, g.Name)
		}
		links := make([]string, 0, len(s.Links))
		for _, l := range s.Links {
			links = append(links, l.SiteName+"="+l.URL)
		}

		if err := w.Write([]string{
			strconv.FormatInt(s.ID, 10),
			s.Title,
			s.TitleArabic,
			s.TitleOriginal,
			s.Country,
			year,
			s.Status,
			strconv.Itoa(s.TotalEpisodes),
			strconv.Itoa(s.EpisodeDuration),
			strings.Join(genres, "|"),
			s.Poster(),
			s.ExternalID,
			strings.Join(links, " "),
		}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}
