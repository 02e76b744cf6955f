package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aicha-kelia/drama-aggregator/internal/dedup"
	"github.com/aicha-kelia/drama-aggregator/internal/ingest"
	"github.com/aicha-kelia/drama-aggregator/internal/linkfinder"
	"github.com/aicha-kelia/drama-aggregator/internal/scraper"
)

// ingestFlags are shared by the commands that create shows.
type ingestFlags struct {
	discoverLinks bool
	sites         []string
}

func (f *ingestFlags) register(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&f.discoverLinks, "discover-links", false, "search content sites for watch links of every new show")
	cmd.Flags().StringSliceVar(&f.sites, "site", nil, "limit link discovery to these sites")
}

// runIngest wires the optional collaborators and imports src.
func runIngest(cmd *cobra.Command, a *app, src scraper.Source, mode dedup.Mode, f ingestFlags) error {
	mirror, err := a.mirror()
	if err != nil {
		return err
	}
	var finder *linkfinder.Engine
	if f.discoverLinks {
		if finder, err = a.finder(f.sites); err != nil {
			return err
		}
	}
	o := a.orchestrator(f.discoverLinks, func(d *ingest.Deps) {
		d.Mirror = mirror
		d.Finder = finder
	})

	sum, err := o.Ingest(cmd.Context(), src, mode)
	printSummary(cmd, sum)
	return err
}

func newTMDBCmd(opts *rootOptions) *cobra.Command {
	var (
		q     scraper.DiscoverQuery
		flags ingestFlags
	)
	cmd := &cobra.Command{
		Use:   "tmdb",
		Short: "Import shows from TMDB discover",
		Long: `Pages through TMDB's TV discover listing for one origin country and
imports every show. A stored show only matches when the TMDB id agrees, or
when title, release year and country all do, so remakes from another country
stay separate. Country codes: KR, TR, IN, CN, MA, JP, TH.

Example:
  tafarraj tmdb --country KR --from 2020 --to 2024 --pages 5`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			t, err := a.tmdb()
			if err != nil {
				return err
			}
			src, err := t.Discover(q)
			if err != nil {
				return err
			}
			return runIngest(cmd, a, src, dedup.ModeScrape, flags)
		},
	}
	cmd.Flags().StringVar(&q.CountryCode, "country", "", "origin country code (required)")
	cmd.Flags().IntVar(&q.YearFrom, "from", 0, "first air year, lower bound")
	cmd.Flags().IntVar(&q.YearTo, "to", 0, "first air year, upper bound")
	cmd.Flags().IntVar(&q.Pages, "pages", 0, "maximum discover pages (0 = all)")
	_ = cmd.MarkFlagRequired("country")
	flags.register(cmd)
	return cmd
}

func newImportCmd(opts *rootOptions) *cobra.Command {
	var flags ingestFlags
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import shows from a bulk JSON file",
		Long: `Imports a {"dramas": [...]} file. Shows already in the catalog are
matched by title and only get their missing fields filled.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := scraper.LoadBulkFile(opts.fs, args[0])
			if err != nil {
				return err
			}
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			a.log.Infof("%d entries in %s", src.Len(), args[0])
			return runIngest(cmd, a, src, dedup.ModeImport, flags)
		},
	}
	flags.register(cmd)
	return cmd
}

func newScrapeCmd(opts *rootOptions) *cobra.Command {
	var (
		names []string
		years []int
		flags ingestFlags
	)
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Import shows from the HTML catalogs in the sites file",
		Long: `Walks the listing pages of every enabled catalog in the sites file and
imports the shows found on their detail pages. Matching is stricter than for
imports: release year and country must agree too, so seasons stay apart.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			catalogs, err := scraper.LoadCatalogs(a.cfg.Links.SitesFile)
			if err != nil {
				return err
			}
			client := a.client()
			var sources []scraper.Source
			for _, c := range catalogs {
				if c.Disabled || !wanted(names, c.Name) {
					continue
				}
				s := scraper.NewCatalogSource(c, client, a.log)
				s.Years = years
				sources = append(sources, s)
			}
			if len(sources) == 0 {
				return errors.New("no enabled catalog selected")
			}
			return runIngest(cmd, a, scraper.NewChain(a.log, sources...), dedup.ModeScrape, flags)
		},
	}
	cmd.Flags().StringSliceVar(&names, "catalog", nil, "catalogs to scrape (default all enabled)")
	cmd.Flags().IntSliceVar(&years, "year", nil, "keep only shows from these years")
	flags.register(cmd)
	return cmd
}

func wanted(names []string, name string) bool {
	if len(names) == 0 {
		return true
	}
	for _, n := range names {
		if strings.EqualFold(strings.TrimSpace(n), name) {
			return true
		}
	}
	return false
}
