package cmd

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/aicha-kelia/drama-aggregator/internal/fetch"
	"github.com/aicha-kelia/drama-aggregator/internal/genres"
	"github.com/aicha-kelia/drama-aggregator/internal/imagestore"
	"github.com/aicha-kelia/drama-aggregator/internal/ingest"
	"github.com/aicha-kelia/drama-aggregator/internal/linkfinder"
	"github.com/aicha-kelia/drama-aggregator/internal/localize"
	"github.com/aicha-kelia/drama-aggregator/internal/logging"
	"github.com/aicha-kelia/drama-aggregator/internal/scraper"
	"github.com/aicha-kelia/drama-aggregator/internal/shows"
	"github.com/aicha-kelia/drama-aggregator/internal/watchlinks"
	"github.com/aicha-kelia/drama-aggregator/pkg/database"
	"github.com/aicha-kelia/drama-aggregator/pkg/utils"
)

// app holds what a subcommand needs: config, logger, database and repos.
type app struct {
	opts   *rootOptions
	cfg    utils.Config
	log    *logrus.Logger
	db     *sql.DB
	shows  *shows.Repo
	genres *genres.Repo
	links  *watchlinks.Repo
}

// openApp loads configuration, opens the database and applies migrations.
func openApp(cmd *cobra.Command, opts *rootOptions) (*app, error) {
	v, err := utils.NewViper(opts.cfgFile)
	if err != nil {
		return nil, err
	}
	cfg, err := utils.LoadConfig(v)
	if err != nil {
		return nil, err
	}
	log, err := logging.NewWithOutput(cfg.Log, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}

	db, err := openDB(cfg.Database, log, opts.dryRun)
	if err != nil {
		return nil, err
	}
	log.WithField("db", cfg.Database.Path).Debug("database ready")

	return &app{
		opts:   opts,
		cfg:    cfg,
		log:    log,
		db:     db,
		shows:  shows.NewRepo(db),
		genres: genres.NewRepo(db),
		links:  watchlinks.NewRepo(db),
	}, nil
}

// openDB migrates the schema, except on dry runs, which open the database
// read-only and need it migrated already.
func openDB(cfg utils.DatabaseConfig, log *logrus.Logger, dryRun bool) (*sql.DB, error) {
	dc := database.Config{Path: cfg.Path}
	if dryRun {
		return database.OpenReadOnly(dc)
	}
	db, err := database.Open(dc)
	if err != nil {
		return nil, err
	}
	database.SetLogger(log)
	if err := database.Migrate(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func (a *app) Close() error {
	return a.db.Close()
}

// client is the throttled HTTP client used for content sites and posters.
func (a *app) client() *fetch.Client {
	h := a.cfg.HTTP
	return fetch.New(fetch.Options{
		Timeout:        h.Timeout,
		RateLimitDelay: h.RateLimitDelay,
		UserAgent:      h.UserAgent,
		AcceptLanguage: h.Language,
	})
}

func (a *app) localizer() *localize.Localizer {
	// an empty translator.base_url turns translation off
	tc := a.cfg.Translator.Resolve(a.cfg.HTTP)
	if strings.TrimSpace(tc.BaseURL) == "" {
		return localize.New(localize.Nop{}, a.log)
	}
	return localize.New(localize.NewGoogleTranslator(tc), a.log)
}

func (a *app) tmdb() (*scraper.TMDB, error) {
	if strings.TrimSpace(a.cfg.TMDB.APIKey) == "" {
		return nil, errors.New("tmdb.api_key is not set (config file or TAFARRAJ_TMDB_API_KEY)")
	}
	return scraper.NewTMDB(a.cfg.TMDB.Resolve(a.cfg.HTTP), a.log), nil
}

// mirror returns nil when the image store is disabled.
func (a *app) mirror() (*imagestore.Mirror, error) {
	store, err := imagestore.New(a.cfg.Images, a.opts.fs)
	if errors.Is(err, imagestore.ErrDisabled) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return imagestore.NewMirror(store, a.client(), a.cfg.Images.Attempts, a.cfg.Images.RetryDelay, a.log), nil
}

func (a *app) finder(siteNames []string) (*linkfinder.Engine, error) {
	sites, err := linkfinder.LoadSites(a.cfg.Links.SitesFile)
	if err != nil {
		return nil, err
	}
	sites = linkfinder.FilterSites(sites, siteNames...)
	if len(sites) == 0 {
		return nil, fmt.Errorf("no sites match %v", siteNames)
	}
	lc := a.cfg.Links
	return linkfinder.NewEngine(a.client(), sites, a.links, a.shows, linkfinder.Options{
		MinCandidates:  lc.MinCandidates,
		MaxCandidates:  lc.MaxCandidates,
		MaxValidations: lc.MaxValidations,
		MinScore:       lc.MinScore,
		SiteDelay:      lc.SiteDelay,
		DryRun:         a.opts.dryRun,
	}, a.log), nil
}

// delay is --delay when given, else ingest.item_delay.
func (a *app) delay() time.Duration {
	if a.opts.delay >= 0 {
		return a.opts.delay
	}
	return a.cfg.Ingest.ItemDelay
}

// orchestrator wires an ingest.Orchestrator; extra fills the optional
// collaborators.
func (a *app) orchestrator(discoverLinks bool, extra func(*ingest.Deps)) *ingest.Orchestrator {
	d := ingest.Deps{
		Shows:     a.shows,
		Genres:    a.genres,
		Links:     a.links,
		Localizer: a.localizer(),
		Log:       a.log,
	}
	if extra != nil {
		extra(&d)
	}
	return ingest.New(d, ingest.Options{
		ItemDelay:     a.delay(),
		DryRun:        a.opts.dryRun,
		DiscoverLinks: discoverLinks && d.Finder != nil,
	})
}

func printSummary(cmd *cobra.Command, sum *ingest.Summary) {
	if sum != nil {
		fmt.Fprintln(cmd.OutOrStdout(), sum.String())
	}
}
