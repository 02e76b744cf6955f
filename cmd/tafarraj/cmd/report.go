package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"slices"
	"text/tabwriter"

	"github.com/pressly/goose/v3"
	"github.com/spf13/cobra"

	"github.com/aicha-kelia/drama-aggregator/internal/shows"
)

func newReportCmd(opts *rootOptions) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print catalog statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			rep, err := a.shows.Report(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(rep)
			}
			return writeReport(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	return cmd
}

func writeReport(out io.Writer, rep *shows.Report) error {
	tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "shows\t%d\n", rep.Shows)
	fmt.Fprintf(tw, "genres\t%d\n", rep.Genres)
	fmt.Fprintf(tw, "watch links\t%d\n", rep.Links)
	fmt.Fprintf(tw, "missing poster\t%d\n", rep.MissingPoster)
	fmt.Fprintf(tw, "external poster only\t%d\n", rep.ExternalPoster)
	fmt.Fprintf(tw, "missing genres\t%d\n", rep.MissingGenres)

	fmt.Fprintln(tw, "\nby country")
	for _, k := range slices.Sorted(maps.Keys(rep.ByCountry)) {
		fmt.Fprintf(tw, "  %s\t%d\n", k, rep.ByCountry[k])
	}
	fmt.Fprintln(tw, "\nshows by number of links")
	for _, k := range slices.Sorted(maps.Keys(rep.ByLinkCount)) {
		fmt.Fprintf(tw, "  %d links\t%d\n", k, rep.ByLinkCount[k])
	}
	fmt.Fprintln(tw, "\nlinks by site")
	for _, k := range slices.Sorted(maps.Keys(rep.LinksBySite)) {
		fmt.Fprintf(tw, "  %s\t%d\n", k, rep.LinksBySite[k])
	}
	return tw.Flush()
}

func newMigrateCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd, opts)
			if err != nil {
				return err
			}
			defer a.Close()

			v, err := goose.GetDBVersion(a.db)
			if err != nil {
				return fmt.Errorf("schema version: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d (%s)\n", v, a.cfg.Database.Path)
			return nil
		},
	}
}
