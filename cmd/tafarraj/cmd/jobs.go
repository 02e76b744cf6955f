package cmd

import (
	"github.com/spf13/cobra"

	"github.com/aicha-kelia/drama-aggregator/internal/ingest"
	"github.com/aicha-kelia/drama-aggregator/internal/shows"
	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

// rangeFlags select the stored shows a batch job works on.
type rangeFlags struct {
	startID int64
	endID   int64
	limit   int
	country string
}

func (r *rangeFlags) register(cmd *cobra.Command) {
	cmd.Flags().Int64Var(&r.startID, "start-id", 0, "first show id")
	cmd.Flags().Int64Var(&r.endID, "end-id", 0, "last show id")
	cmd.Flags().IntVar(&r.limit, "limit", 0, "maximum number of shows (0 = all)")
	cmd.Flags().StringVar(&r.country, "country", "", "only shows from this country (e.g. korean, turkish)")
}

func (r rangeFlags) filter() shows.Filter {
	return shows.Filter{
		StartID: r.startID,
		EndID:   r.endID,
		Limit:   r.limit,
		Country: models.NormalizeCountry(r.country),
	}
}

func newLinksCmd(opts *rootOptions) *cobra.Command {
	var (
		rf    rangeFlags
		sites []string
	)
	cmd := &cobra.Command{
		Use:   "links",
		Short: "Find, revalidate and save watch links",
		Long: `For every selected show, revalidates the stored link of each site and
searches the site for a new one when the stored link is gone or wrong.

Example:
  tafarraj links --start-id 100 --end-id 200 --site Akwam --dry-run`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			finder, err := a.finder(sites)
			if err != nil {
				return err
			}
			o := a.orchestrator(false, func(d *ingest.Deps) { d.Finder = finder })
			sum, err := o.DiscoverLinks(cmd.Context(), rf.filter())
			printSummary(cmd, sum)
			return err
		},
	}
	rf.register(cmd)
	cmd.Flags().StringSliceVar(&sites, "site", nil, "only these sites (default all enabled)")
	return cmd
}

func newBackfillGenresCmd(opts *rootOptions) *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "backfill-genres",
		Short: "Attach TMDB genres to shows that have none",
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
			o := a.orchestrator(false, func(d *ingest.Deps) { d.Lookup = t })
			sum, err := o.BackfillGenres(cmd.Context(), rf.filter())
			printSummary(cmd, sum)
			return err
		},
	}
	rf.register(cmd)
	return cmd
}

func newBackfillPostersCmd(opts *rootOptions) *cobra.Command {
	var rf rangeFlags
	cmd := &cobra.Command{
		Use:   "backfill-posters",
		Short: "Copy external posters into the image store",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			mirror, err := a.mirror()
			if err != nil {
				return err
			}
			o := a.orchestrator(false, func(d *ingest.Deps) { d.Mirror = mirror })
			sum, err := o.BackfillPosters(cmd.Context(), rf.filter())
			printSummary(cmd, sum)
			return err
		},
	}
	rf.register(cmd)
	return cmd
}
