package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
)

// rootOptions are the persistent flags shared by every subcommand.
type rootOptions struct {
	cfgFile string
	dryRun  bool
	delay   time.Duration

	fs afero.Fs
}

// NewRootCmd builds the tafarraj command tree.
func NewRootCmd() *cobra.Command {
	return newRootCmd(afero.NewOsFs())
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	opts := &rootOptions{fs: fs}

	root := &cobra.Command{
		Use:   "tafarraj",
		Short: "Build and maintain the Tafarraj drama catalog.",
		Long: `tafarraj fills the catalog of Arabic-subtitled dramas: it imports shows
from TMDB, bulk JSON files and catalog sites, finds watch links on content
sites and repairs missing genres and posters.

Credentials are read from the config file or TAFARRAJ_* environment
variables, e.g. TAFARRAJ_TMDB_API_KEY.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default ./tafarraj.yaml or $HOME/.tafarraj/tafarraj.yaml)")
	root.PersistentFlags().BoolVar(&opts.dryRun, "dry-run", false, "report intended changes without writing anything")
	root.PersistentFlags().DurationVar(&opts.delay, "delay", -1, "delay between items (default ingest.item_delay)")

	root.AddCommand(
		newTMDBCmd(opts),
		newImportCmd(opts),
		newScrapeCmd(opts),
		newLinksCmd(opts),
		newBackfillGenresCmd(opts),
		newBackfillPostersCmd(opts),
		newExportCmd(opts),
		newReportCmd(opts),
		newMigrateCmd(opts),
	)
	return root
}

// Execute runs the root command; SIGINT and SIGTERM cancel the context.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := NewRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
